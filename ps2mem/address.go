// Package ps2mem implements the PS2 guest address space: virtual-to-physical
// translation (KSEG0/KSEG1/user + TLB), the sized Memory Bus dispatching
// across RAM/scratchpad/VRAM/MMIO/GS-priv, and the self-modifying-code
// tracking layer. See spec.md 3-4.3.
package ps2mem

const (
	// RAMSizeDefault is the default main-RAM backing size (spec.md 3:
	// "32 MiB main RAM (size configurable at init)").
	RAMSizeDefault = 32 * 1024 * 1024

	ScratchpadSize = 16 * 1024
	ScratchpadBase = 0x70000000

	GSVRAMSize = 4 * 1024 * 1024

	GSPrivRegBase = 0x12000000
	GSPrivRegSize = 0x2000

	MMIOBase = 0x10000000
	MMIOSize = 0x00010000
)

// TLBEntry is one row of the linear-scan software TLB (spec.md 3: "ordered
// sequence of {valid, vpn, pfn, mask}; lookup is first-match linear scan").
type TLBEntry struct {
	Valid bool
	VPN   uint32
	PFN   uint32
	Mask  uint32
}

// IsScratchpad reports whether vaddr falls in the 16 KiB scratchpad window.
func IsScratchpad(vaddr uint32) bool {
	return vaddr >= ScratchpadBase && vaddr < ScratchpadBase+ScratchpadSize
}

// Translator maps guest virtual addresses to physical offsets per spec.md
// 4.1. It never raises exceptions; unmapped accesses fall through to
// whatever the Memory Bus does with an out-of-range physical address.
type Translator struct {
	TLB []TLBEntry
}

// Translate implements the 5-step lookup of spec.md 4.1.
func (t *Translator) Translate(vaddr uint32) uint32 {
	if IsScratchpad(vaddr) {
		return vaddr - ScratchpadBase
	}
	if seg := vaddr & 0xE0000000; seg == 0x80000000 || seg == 0xA0000000 {
		return vaddr & 0x1FFFFFFF
	}
	if vaddr < 0x80000000 {
		return vaddr & 0x1FFFFFFF
	}
	for _, e := range t.TLB {
		if !e.Valid {
			continue
		}
		vpnMasked := (vaddr >> 12) & ^e.Mask
		entryVPNMasked := e.VPN & ^e.Mask
		if vpnMasked == entryVPNMasked {
			page := e.PFN | ((vaddr >> 12) & e.Mask)
			return (page << 12) | (vaddr & 0xFFF)
		}
	}
	return vaddr & 0x1FFFFFFF
}

// AddTLBEntry appends an entry to the software TLB; Translate scans entries
// in the order they were added.
func (t *Translator) AddTLBEntry(e TLBEntry) {
	t.TLB = append(t.TLB, e)
}
