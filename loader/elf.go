// Package loader implements the ELF-load contract of spec.md 4.7/6.4: parse
// a 32-bit little-endian MIPS EXEC ELF, copy PT_LOAD segments into the
// guest address space, zero-fill BSS tails, and register executable
// segments with the SMC tracker.
package loader

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Destination is the narrow slice of the guest address space the loader
// needs: a segment writer that picks RAM or scratchpad backing by the
// virtual-address window itself (spec.md 4.7: "compute dest = translate
// (vaddr) into scratchpad or RAM (choosing backing by virtual-address
// window)"), and code-region registration.
type Destination interface {
	WriteSegment(vaddr uint32, data []byte)
	RegisterCodeRegion(start, end uint32)
}

// Image is the parsed result of Load: the entry point guest PC.
type Image struct {
	Entry uint32
}

// Load reads a 32-bit MIPS EXEC ELF from r, validates its header against
// spec.md 6.4, and copies every PT_LOAD segment into dst. Segments whose
// p_flags has the executable bit (bit 0 in the spec's MIPS-flavored
// convention, i.e. elf.PF_X) are registered as code regions spanning
// [vaddr, vaddr+memsz).
func Load(r io.ReaderAt, dst Destination) (*Image, error) {
	var head [4]byte
	if _, err := r.ReadAt(head[:], 0); err != nil {
		return nil, errors.Wrap(err, "reading ELF header")
	}
	if !bytes.Equal(head[:], elfMagic) {
		return nil, errors.New("not an ELF file: bad magic")
	}

	f, err := elf.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing ELF")
	}
	if f.Class != elf.ELFCLASS32 {
		return nil, errors.New("unsupported ELF class: expected 32-bit")
	}
	if f.Machine != elf.EM_MIPS {
		return nil, fmt.Errorf("unsupported ELF machine: %s (expected MIPS)", f.Machine)
	}
	if f.Type != elf.ET_EXEC {
		return nil, fmt.Errorf("unsupported ELF type: %s (expected EXEC)", f.Type)
	}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		buf := make([]byte, prog.Filesz)
		if _, err := io.ReadFull(prog.Open(), buf); err != nil {
			return nil, errors.Wrapf(err, "reading PT_LOAD segment at vaddr 0x%x", prog.Vaddr)
		}
		dst.WriteSegment(uint32(prog.Vaddr), buf)

		if prog.Memsz > prog.Filesz {
			dst.WriteSegment(uint32(prog.Vaddr)+uint32(prog.Filesz), make([]byte, prog.Memsz-prog.Filesz))
		}

		if prog.Flags&elf.PF_X != 0 {
			dst.RegisterCodeRegion(uint32(prog.Vaddr), uint32(prog.Vaddr+prog.Memsz))
		}
	}

	return &Image{Entry: uint32(f.Entry)}, nil
}
