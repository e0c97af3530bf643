// Package display defines the scan-out loop's output collaborator, kept
// separate from any concrete windowing toolkit so the runtime orchestrator
// doesn't need to import one (spec.md 9: "display output as an external
// collaborator behind a small interface").
package display

// Backend is the minimal surface the scan-out loop drives once per frame.
// A concrete backend (e.g. display/ebitenbackend) owns the actual window
// and host texture.
type Backend interface {
	// CreateTexture (re)allocates the host-side texture at the given
	// dimensions, called whenever the decoded framebuffer's size changes.
	CreateTexture(width, height int) error

	// UploadRGBA pushes a row-major RGBA8888 buffer of width*height
	// pixels to the host texture.
	UploadRGBA(pixels []uint32, width, height int) error

	// Present draws the current texture and lets the backend pump its
	// own event loop for one tick.
	Present() error

	// ShouldClose reports whether the user closed the window or
	// otherwise asked the runtime to stop.
	ShouldClose() bool

	// TargetFPS reports the backend's configured frame rate, used by the
	// scan-out loop to pace decode work.
	TargetFPS() int
}

// NullBackend is a no-op Backend used by cmd/ps2xdump and tests, where no
// window is wanted.
type NullBackend struct {
	Frames int
	MaxFrames int
	closed  bool
}

func (n *NullBackend) CreateTexture(width, height int) error { return nil }

func (n *NullBackend) UploadRGBA(pixels []uint32, width, height int) error {
	n.Frames++
	if n.MaxFrames > 0 && n.Frames >= n.MaxFrames {
		n.closed = true
	}
	return nil
}

func (n *NullBackend) Present() error     { return nil }
func (n *NullBackend) ShouldClose() bool  { return n.closed }
func (n *NullBackend) TargetFPS() int     { return 60 }
