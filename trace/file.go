package trace

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/golang/snappy"
)

// fileSink mirrors trace events to a snappy-compressed append-only file, the
// way the teacher's go/models/trace/tracefile.go wraps writes in a
// snappy.Writer. Each record is a length-prefixed "[category] 0xaddr msg"
// line; it's a diagnostic artifact, not a replay format, so no attempt is
// made to match the teacher's richer keyframe/op trace encoding.
type fileSink struct {
	mu sync.Mutex
	f  *os.File
	zw *snappy.Writer
}

// NewFileSink opens (creating if needed) path and returns a fileSink ready
// for Sink.AttachFile. The caller is responsible for calling Close on
// shutdown.
func NewFileSink(path string) (*fileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &fileSink{f: f, zw: snappy.NewBufferedWriter(f)}, nil
}

func (fs *fileSink) write(category string, addr uint32, msg string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	line := fmt.Sprintf("[%s] 0x%08x %s\n", category, addr, msg)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(line)))
	fs.zw.Write(lenBuf[:])
	fs.zw.Write([]byte(line))
}

// Close flushes and closes the underlying file.
func (fs *fileSink) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.zw.Close(); err != nil {
		fs.f.Close()
		return err
	}
	return fs.f.Close()
}

// ReadFileSink is a minimal reader counterpart for tests/tools that want to
// dump a captured trace back to stdout.
func ReadFileSink(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr := snappy.NewReader(f)
	br := bufio.NewReader(zr)
	var lines []string
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			break
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(br, buf); err != nil {
			break
		}
		lines = append(lines, string(buf))
	}
	return lines, nil
}
