// Package trace implements the bounded-count diagnostic trace sink used
// throughout ps2xrun: MMIO and RAM writes, DMA starts, unknown syscalls
// and unimplemented function calls are all
// "trace-logged" per spec.md rather than treated as errors. Each distinct
// (category, address) pair is reported at most N times, mirroring the
// static log-count counters in the original ps2xRuntime C++ source
// (logGsWrite, logSchedulerWrite).
package trace

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
)

// DefaultLimit is the per-key cap on "first N events per address" applied
// to every (category, address) key.
const DefaultLimit = 10

var (
	colCategory = ansi.ColorCode("cyan+b")
	colAddr     = ansi.ColorCode("yellow")
	colReset    = ansi.Reset
)

type key struct {
	category string
	addr     uint32
}

// Sink is a rate-limited, optionally colorized diagnostic logger. The zero
// value is not usable; construct with New.
type Sink struct {
	mu     sync.Mutex
	counts map[key]int
	limit  int
	out    io.Writer
	color  bool
	file   *fileSink
}

// New builds a Sink writing to w. If w is *os.File and refers to a
// terminal, output is colorized via mattn/go-colorable + mgutz/ansi,
// matching the teacher's register-diff colorizer (go/models/status.go).
func New(w io.Writer) *Sink {
	color := false
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = colorable.NewColorable(f)
		color = true
	}
	return &Sink{
		counts: make(map[key]int),
		limit:  DefaultLimit,
		out:    w,
		color:  color,
	}
}

// NewDefault builds a Sink over os.Stderr, the default destination for
// every diagnostic path in the spec.
func NewDefault() *Sink { return New(os.Stderr) }

// SetLimit overrides the per-key occurrence cap (default DefaultLimit).
func (s *Sink) SetLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = n
}

// AttachFile mirrors every accepted event (even ones past the console rate
// limit) to a snappy-compressed append-only trace file, for later inspection
// or bug reports. See trace/file.go.
func (s *Sink) AttachFile(f *fileSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file = f
}

// Event records one occurrence of category at addr. It is logged to the
// console only while the (category, addr) key is under the configured
// limit; after that it is silently dropped from the console but still
// counted and still mirrored to an attached file, so post-hoc analysis of a
// captured trace isn't truncated the way live console output is.
func (s *Sink) Event(category string, addr uint32, format string, args ...interface{}) {
	s.mu.Lock()
	k := key{category, addr}
	n := s.counts[k]
	s.counts[k] = n + 1
	limit := s.limit
	file := s.file
	s.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if file != nil {
		file.write(category, addr, msg)
	}
	if n >= limit {
		return
	}
	if s.color {
		fmt.Fprintf(s.out, "[%s%s%s] 0x%s%08x%s %s\n", colCategory, category, colReset, colAddr, addr, colReset, msg)
	} else {
		fmt.Fprintf(s.out, "[%s] 0x%08x %s\n", category, addr, msg)
	}
}

// Count returns how many times (category, addr) has been reported,
// regardless of whether it was printed.
func (s *Sink) Count(category string, addr uint32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key{category, addr}]
}
