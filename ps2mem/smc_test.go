package ps2mem

import "testing"

func TestSMCTrackerMarkAndQuery(t *testing.T) {
	var tr SMCTracker
	tr.RegisterCodeRegion(0x1000, 0x1040)

	if tr.IsCodeModified(0x1000, 4) {
		t.Fatal("freshly registered region should start unmodified")
	}

	tr.MarkModified(0x1004, 4)
	if !tr.IsCodeModified(0x1004, 4) {
		t.Fatal("expected word at 0x1004 to be marked modified")
	}
	if tr.IsCodeModified(0x1008, 4) {
		t.Fatal("word at 0x1008 should be untouched")
	}
}

func TestSMCTrackerWordGranularity(t *testing.T) {
	// A write that only partially overlaps a word still marks the whole
	// word (spec.md 4.3/9).
	var tr SMCTracker
	tr.RegisterCodeRegion(0x1000, 0x1040)
	tr.MarkModified(0x1002, 1) // falls inside word [0x1000,0x1004)
	if !tr.IsCodeModified(0x1000, 4) {
		t.Fatal("expected unaligned write to mark its containing word")
	}
}

func TestSMCTrackerClear(t *testing.T) {
	var tr SMCTracker
	tr.RegisterCodeRegion(0x1000, 0x1040)
	tr.MarkModified(0x1004, 4)
	tr.ClearModified(0x1004, 4)
	if tr.IsCodeModified(0x1004, 4) {
		t.Fatal("expected ClearModified to reset the bit")
	}
}

func TestSMCTrackerMultipleRegionsIndependent(t *testing.T) {
	var tr SMCTracker
	tr.RegisterCodeRegion(0x1000, 0x1040)
	tr.RegisterCodeRegion(0x5000, 0x5040)
	tr.MarkModified(0x1004, 4)
	if tr.IsCodeModified(0x5004, 4) {
		t.Fatal("marking one region should not affect another")
	}
}

func TestSMCTrackerOutOfRangeWriteIgnored(t *testing.T) {
	var tr SMCTracker
	tr.RegisterCodeRegion(0x1000, 0x1040)
	tr.MarkModified(0x9000, 4)
	if tr.IsCodeModified(0x9000, 4) {
		t.Fatal("writes outside any registered region should not register as modified")
	}
}

func TestSMCTrackerRegions(t *testing.T) {
	var tr SMCTracker
	tr.RegisterCodeRegion(0x1000, 0x1040)
	tr.RegisterCodeRegion(0x2000, 0x2040)
	if len(tr.Regions()) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(tr.Regions()))
	}
}
