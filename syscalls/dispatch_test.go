package syscalls

import (
	"testing"

	"github.com/ps2x/ps2xrun/cpu"
)

func newCallCtx(num uint32, a0, a1 uint32) *cpu.Context {
	var ctx cpu.Context
	ctx.SetGPR32(cpu.RegV1, num)
	ctx.SetGPR32(cpu.RegA0, a0)
	ctx.SetGPR32(cpu.RegA1, a1)
	return &ctx
}

func TestDispatchExitSetsExitTrue(t *testing.T) {
	d := New(Services{}, nil, nil)
	ctx := newCallCtx(Exit, 0, 0)
	if exit := d.Dispatch(ctx); !exit {
		t.Fatal("expected Exit syscall to report exit=true")
	}
}

func TestDispatchSetupHeapReturnsEnd(t *testing.T) {
	d := New(Services{}, nil, nil)
	ctx := newCallCtx(SetupHeap, 0x1000, 0x2000)
	d.Dispatch(ctx)
	if got := ctx.GPR(cpu.RegV0).U32(); got != 0x3000 {
		t.Fatalf("got 0x%x, want 0x3000", got)
	}
}

func TestDispatchEndOfHeapEchoesArg(t *testing.T) {
	d := New(Services{}, nil, nil)
	ctx := newCallCtx(EndOfHeap, 0x4000, 0)
	d.Dispatch(ctx)
	if got := ctx.GPR(cpu.RegV0).U32(); got != 0x4000 {
		t.Fatalf("got 0x%x, want 0x4000", got)
	}
}

func TestDispatchUnknownSyscallLogsAndReturnsZero(t *testing.T) {
	events := &recordingSink{}
	d := New(Services{}, nil, events)
	ctx := newCallCtx(9999, 0, 0)
	exit := d.Dispatch(ctx)
	if exit {
		t.Fatal("unknown syscall should not signal exit")
	}
	if got := ctx.GPR(cpu.RegV0).U32(); got != 0 {
		t.Fatalf("expected 0 return, got 0x%x", got)
	}
	if len(events.events) != 1 || events.events[0] != "syscall-unknown" {
		t.Fatalf("expected one syscall-unknown event, got %v", events.events)
	}
}

func TestDispatchThreadServiceNilFallsBackToZero(t *testing.T) {
	d := New(Services{}, nil, nil)
	ctx := newCallCtx(GetThreadId, 0, 0)
	d.Dispatch(ctx)
	if got := ctx.GPR(cpu.RegV0).U32(); got != 0 {
		t.Fatalf("expected 0 fallback return without a ThreadService, got 0x%x", got)
	}
}

func TestDispatchThreadServiceRouting(t *testing.T) {
	svc := &fakeThreadService{getThreadIDReturn: 7}
	d := New(Services{Thread: svc}, nil, nil)
	ctx := newCallCtx(GetThreadId, 0, 0)
	d.Dispatch(ctx)
	if got := ctx.GPR(cpu.RegV0).U32(); got != 7 {
		t.Fatalf("expected routed ThreadService return 7, got %d", got)
	}
	if svc.getThreadIDCalls != 1 {
		t.Fatalf("expected GetThreadId to be called once, got %d", svc.getThreadIDCalls)
	}
}

func TestDispatchGsGetPutIMR(t *testing.T) {
	gsRegs := &fakeGSIMR{regs: map[uint32]uint32{}}
	d := New(Services{}, gsRegs, nil)

	ctx := newCallCtx(GsPutIMR, 0x55, 0)
	d.Dispatch(ctx)
	if gsRegs.regs[gsIMRAddr] != 0x55 {
		t.Fatalf("expected IMR written via GsPutIMR, got 0x%x", gsRegs.regs[gsIMRAddr])
	}

	ctx2 := newCallCtx(GsGetIMR, 0, 0)
	d.Dispatch(ctx2)
	if got := ctx2.GPR(cpu.RegV0).U32(); got != 0x55 {
		t.Fatalf("expected GsGetIMR to read back 0x55, got 0x%x", got)
	}
}

type recordingSink struct {
	events []string
}

func (s *recordingSink) Event(category string, addr uint32, format string, args ...interface{}) {
	s.events = append(s.events, category)
}

type fakeGSIMR struct {
	regs map[uint32]uint32
}

func (f *fakeGSIMR) Read32(addr uint32) uint32    { return f.regs[addr] }
func (f *fakeGSIMR) Write32(addr uint32, v uint32) { f.regs[addr] = v }

type fakeThreadService struct {
	getThreadIDReturn uint32
	getThreadIDCalls  int
}

func (f *fakeThreadService) CreateThread(ctx *cpu.Context) uint32         { return 0 }
func (f *fakeThreadService) DeleteThread(ctx *cpu.Context) uint32         { return 0 }
func (f *fakeThreadService) StartThread(ctx *cpu.Context) uint32          { return 0 }
func (f *fakeThreadService) ExitThread(ctx *cpu.Context)                  {}
func (f *fakeThreadService) ExitDeleteThread(ctx *cpu.Context)            {}
func (f *fakeThreadService) TerminateThread(ctx *cpu.Context) uint32      { return 0 }
func (f *fakeThreadService) ChangeThreadPriority(ctx *cpu.Context) uint32 { return 0 }
func (f *fakeThreadService) RotateThreadReadyQueue(ctx *cpu.Context) uint32 { return 0 }
func (f *fakeThreadService) ReleaseWaitThread(ctx *cpu.Context) uint32    { return 0 }
func (f *fakeThreadService) GetThreadId(ctx *cpu.Context) uint32 {
	f.getThreadIDCalls++
	return f.getThreadIDReturn
}
func (f *fakeThreadService) ReferThreadStatus(ctx *cpu.Context) uint32 { return 0 }
func (f *fakeThreadService) SleepThread(ctx *cpu.Context)              {}
func (f *fakeThreadService) WakeupThread(ctx *cpu.Context) uint32      { return 0 }
func (f *fakeThreadService) IWakeupThread(ctx *cpu.Context) uint32     { return 0 }
func (f *fakeThreadService) SuspendThread(ctx *cpu.Context) uint32     { return 0 }
func (f *fakeThreadService) ResumeThread(ctx *cpu.Context) uint32      { return 0 }
func (f *fakeThreadService) SetupThread(ctx *cpu.Context) uint32       { return 0 }
