// Package dma implements the minimal DMA controller pinned by spec.md 4.5:
// channel-control register decoding, linear IMAGE transfers, and
// single-tag chain-mode walking from EE RAM into GS VRAM. Spec.md 9 ("DMA
// engine as a collaborator") asks for this to be a distinct component with
// a Start operation the Memory Bus delegates to rather than inlining the
// copy itself; Engine is that component.
package dma

import (
	"sync/atomic"

	"github.com/ps2x/ps2xrun/gs"
)

const (
	chcrLane   = 0x00
	madrOffset = 0x10
	qwcOffset  = 0x20
	tadrOffset = 0x30

	strBit = 0x100

	chanBase     = 0x10008000
	chanEnd      = 0x1000F000
	channelVIF1  = 0x10009000
	channelGIF   = 0x1000A000
)

// RAM is the narrow slice of AddressSpace the DMA engine needs: byte access
// to main RAM and GS VRAM. Engine depends on this interface rather than on
// ps2mem.AddressSpace directly so ps2mem need not import dma (dma is wired
// in by the runtime/ps2mem.Bus instead, avoiding an import cycle).
type RAM interface {
	RDRAM() []byte
	VRAM() []byte
	Translate(vaddr uint32) uint32
}

// Sink is the diagnostic trace interface (satisfied by *trace.Sink).
type Sink interface {
	Event(category string, addr uint32, format string, args ...interface{})
}

// Engine models the per-channel CHCR/MADR/QWC/TADR registers and performs
// the synchronous IMAGE copy spec.md 4.5 describes. It owns no channel
// state of its own beyond the copy counter; register values live in the
// caller-supplied IO map (ps2mem.AddressSpace.IORegisters), matching
// spec.md 3's "io_registers: sparse mapping from 32-bit address to
// last-written 32-bit value".
type Engine struct {
	mem  RAM
	gs   *gs.Registers
	io   map[uint32]uint32
	sink Sink

	gifCopyCount atomic.Int64
}

// New builds a DMA Engine. io is the shared IO-register map the Memory Bus
// also writes through; Engine mutates it in place (e.g. clearing STR).
func New(mem RAM, regs *gs.Registers, io map[uint32]uint32, sink Sink) *Engine {
	return &Engine{mem: mem, gs: regs, io: io, sink: sink}
}

// GifCopyCount returns the monotonic count of completed IMAGE copies, used
// for test observability (spec.md 4.5) and the debug console.
func (e *Engine) GifCopyCount() int64 { return e.gifCopyCount.Load() }

// OnCHCRWrite is called by the Memory Bus for every 32-bit write into the
// MMIO window. It stores value in io; when addr is the CHCR register (low
// byte 0) of the VIF1 or GIF channel and value has STR set, it also runs
// the transfer. The bus does not store the value itself, so Engine can
// clear STR after the transfer.
func (e *Engine) OnCHCRWrite(addr uint32, value uint32) {
	e.io[addr] = value
	if addr&0xFF != chcrLane {
		return
	}
	if addr < chanBase || addr >= chanEnd {
		return
	}
	if value&strBit == 0 {
		return
	}
	channelBase := addr &^ 0xFF
	if channelBase != channelVIF1 && channelBase != channelGIF {
		return
	}

	madr := e.io[channelBase+madrOffset]
	qwc := e.io[channelBase+qwcOffset] & 0xFFFF
	tadr := e.io[channelBase+tadrOffset]

	if e.sink != nil {
		e.sink.Event("dma-start", addr, "channel=0x%x madr=0x%x qwc=%d tadr=0x%x", channelBase, madr, qwc, tadr)
	}

	if qwc > 0 {
		e.linearCopy(madr, qwc)
	} else {
		e.chainStep(tadr)
	}

	// Clear STR after the transfer (spec.md 4.5).
	e.io[addr] &^= strBit
}

// linearCopy copies qwc*16 bytes from translate(srcAddr) in RDRAM to
// basePage*2048 in GS VRAM, where basePage = gs.dispfb1 & 0x1FF. The copy
// is clamped to the RAM remaining beyond the source physical address.
func (e *Engine) linearCopy(srcAddr uint32, qwc uint32) {
	bytes := qwc * 16
	src := e.mem.Translate(srcAddr)
	ram := e.mem.RDRAM()
	if uint64(src) >= uint64(len(ram)) {
		return
	}
	if remaining := uint32(len(ram)) - src; bytes > remaining {
		bytes = remaining
	}
	basePage := uint32(e.gs.DISPFB1() & 0x1FF)
	dest := basePage * 2048
	vram := e.mem.VRAM()
	if uint64(dest)+uint64(bytes) > uint64(len(vram)) {
		if dest >= uint32(len(vram)) {
			return
		}
		bytes = uint32(len(vram)) - dest
	}
	copy(vram[dest:dest+bytes], ram[src:src+bytes])
	e.gifCopyCount.Add(1)
}

// chainStep reads one 16-byte DMA tag from translate(tadr) and, for
// id in {0,1,2} (refe/cnt/next in this minimal subset), performs a linear
// copy of tag_qwc quadwords from the tag's embedded address. Other ids are
// ignored (spec.md 4.5/9: "behavior for id in {3..7} is undefined here").
func (e *Engine) chainStep(tadr uint32) {
	physTag := e.mem.Translate(tadr)
	ram := e.mem.RDRAM()
	if uint64(physTag)+16 > uint64(len(ram)) {
		return
	}
	tag := leU64(ram[physTag : physTag+8])
	tagQwc := uint32(tag & 0xFFFF)
	id := uint32((tag >> 28) & 0x7)
	addr := uint32((tag >> 32) & 0x7FFFFFF)

	if e.sink != nil {
		e.sink.Event("dma-chain", tadr, "id=%d qwc=%d addr=0x%x", id, tagQwc, addr)
	}

	switch id {
	case 0, 1, 2:
		e.linearCopy(addr, tagQwc)
	default:
		// ids 3-7 (end markers and forms this minimal walker doesn't
		// follow) are intentionally no-ops.
	}
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// ChannelStatus masks out the STR bit (bit 8) from a raw CHCR value, so
// channel-status reads always report the channel as idle (spec.md 4.5).
func ChannelStatus(raw uint32) uint32 {
	return raw &^ strBit
}
