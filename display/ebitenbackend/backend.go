// Package ebitenbackend implements display.Backend on top of
// hajimehoshi/ebiten/v2, in the style of IntuitionEngine's
// video_backend_ebiten.go: a small ebiten.Game wrapping a mutex-guarded
// frame buffer, run on its own goroutine via ebiten.RunGame.
package ebitenbackend

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// Backend is a display.Backend backed by an ebiten window.
type Backend struct {
	mu     sync.RWMutex
	title  string
	fps    int
	width  int
	height int
	pixels []byte // RGBA8888, row-major

	texture *ebiten.Image

	running bool
	closed  bool

	ready chan struct{}
	once  sync.Once
}

// New constructs a Backend. The window isn't created until the first
// CreateTexture call starts it lazily, matching usercorn/IntuitionEngine's
// lazy-window-creation pattern.
func New(title string, targetFPS int) *Backend {
	if targetFPS <= 0 {
		targetFPS = 60
	}
	return &Backend{title: title, fps: targetFPS, ready: make(chan struct{})}
}

// CreateTexture (re)allocates the backing pixel buffer and, on first call,
// starts the ebiten game loop on its own goroutine.
func (b *Backend) CreateTexture(width, height int) error {
	b.mu.Lock()
	b.width = width
	b.height = height
	b.pixels = make([]byte, width*height*4)
	b.texture = nil
	started := b.running
	b.mu.Unlock()

	if !started {
		b.start()
	}
	return nil
}

func (b *Backend) start() {
	b.mu.Lock()
	b.running = true
	b.mu.Unlock()

	ebiten.SetWindowTitle(b.title)
	ebiten.SetWindowSize(b.width, b.height)
	ebiten.SetWindowResizable(true)
	ebiten.SetVsyncEnabled(true)
	ebiten.SetTPS(b.fps)

	go func() {
		defer func() {
			b.mu.Lock()
			b.closed = true
			b.mu.Unlock()
		}()
		if err := ebiten.RunGame(b); err != nil {
			fmt.Printf("display: ebiten run loop exited: %v\n", err)
		}
	}()

	b.once.Do(func() { <-b.ready })
}

// UploadRGBA converts a row-major RGBA8888 uint32 buffer into the
// byte-per-channel layout ebiten.Image.WritePixels expects.
func (b *Backend) UploadRGBA(pixels []uint32, width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if width != b.width || height != b.height || len(b.pixels) != width*height*4 {
		b.width, b.height = width, height
		b.pixels = make([]byte, width*height*4)
	}
	for i, px := range pixels {
		off := i * 4
		if off+4 > len(b.pixels) {
			break
		}
		b.pixels[off+0] = byte(px >> 24)
		b.pixels[off+1] = byte(px >> 16)
		b.pixels[off+2] = byte(px >> 8)
		b.pixels[off+3] = byte(px)
	}
	return nil
}

// Present is a no-op: ebiten drives Draw itself once RunGame is started,
// so the scan-out loop's explicit Present only needs to exist to satisfy
// display.Backend for backends that don't self-pump.
func (b *Backend) Present() error { return nil }

// ShouldClose reports whether the ebiten run loop has exited.
func (b *Backend) ShouldClose() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// TargetFPS reports the configured frame rate.
func (b *Backend) TargetFPS() int { return b.fps }

// Update implements ebiten.Game. It signals readiness on the first tick so
// CreateTexture's caller doesn't race the window's creation.
func (b *Backend) Update() error {
	select {
	case <-b.ready:
	default:
		close(b.ready)
	}
	if ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game, blitting the current pixel buffer.
func (b *Backend) Draw(screen *ebiten.Image) {
	b.mu.Lock()
	if b.texture == nil && b.width > 0 && b.height > 0 {
		b.texture = ebiten.NewImage(b.width, b.height)
	}
	if b.texture != nil && len(b.pixels) == b.width*b.height*4 {
		b.texture.WritePixels(b.pixels)
	}
	tex := b.texture
	b.mu.Unlock()

	if tex != nil {
		screen.DrawImage(tex, nil)
	}
}

// Layout implements ebiten.Game.
func (b *Backend) Layout(outsideWidth, outsideHeight int) (int, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.width, b.height
}
