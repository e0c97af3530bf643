// Package syscalls implements the dispatch table and GPR-based calling
// convention of spec.md 4.8. Thread, semaphore, and alarm bookkeeping are
// external services (spec.md 1's explicit non-goal); this package only
// decodes the syscall number and arguments, routes to those services when
// one is wired in, and otherwise returns 0. Only an unrecognized syscall
// number is logged; a recognized call with no service wired in returns 0
// without a diagnostic.
package syscalls

import "github.com/ps2x/ps2xrun/cpu"

// Numbers recognized by the dispatcher (spec.md 4.8).
const (
	GsSetCrt             = 2
	Exit                 = 4
	SleepThreadExecPS2   = 7
	EnableIntc           = 20
	DisableIntc          = 21
	EnableDmac           = 22
	DisableDmac          = 23
	SetAlarm             = 24
	CreateThread         = 32
	DeleteThread         = 33
	StartThread          = 34
	ExitThread           = 35
	ExitDeleteThread     = 36
	TerminateThread      = 37
	ChangeThreadPriority = 41
	RotateThreadReadyQ   = 43
	ReleaseWaitThread    = 45
	GetThreadId          = 47
	ReferThreadStatus    = 48
	SleepThread          = 50
	WakeupThread         = 51
	IWakeupThread        = 52
	SuspendThread        = 55
	ResumeThread         = 57
	SetupThread          = 60
	SetupHeap            = 61
	EndOfHeap            = 62
	CreateSema           = 64
	DeleteSema           = 65
	SignalSema           = 66
	ISignalSema          = 67
	WaitSema             = 68
	PollSema             = 69
	IPollSema            = 70
	ReferSemaStatus      = 71
	FlushCache           = 100
	GsGetIMR             = 112
	GsPutIMR             = 113
)

// Sink is the diagnostic trace interface (satisfied by *trace.Sink).
type Sink interface {
	Event(category string, addr uint32, format string, args ...interface{})
}

// Services is the set of external collaborators thread and semaphore
// bookkeeping syscalls route to when present. Any nil field falls back to
// the "acknowledged but inert" behavior: return 0, without the diagnostic
// an unrecognized number gets.
type Services struct {
	Thread ThreadService
	Sema   SemaService
}

// ThreadService models thread lifecycle bookkeeping. The dispatcher passes
// GPR-decoded arguments through unchanged; return semantics are the
// service's own (spec.md 1: "this spec defines only the dispatch table and
// the parameter-passing convention").
type ThreadService interface {
	CreateThread(ctx *cpu.Context) uint32
	DeleteThread(ctx *cpu.Context) uint32
	StartThread(ctx *cpu.Context) uint32
	ExitThread(ctx *cpu.Context)
	ExitDeleteThread(ctx *cpu.Context)
	TerminateThread(ctx *cpu.Context) uint32
	ChangeThreadPriority(ctx *cpu.Context) uint32
	RotateThreadReadyQueue(ctx *cpu.Context) uint32
	ReleaseWaitThread(ctx *cpu.Context) uint32
	GetThreadId(ctx *cpu.Context) uint32
	ReferThreadStatus(ctx *cpu.Context) uint32
	SleepThread(ctx *cpu.Context)
	WakeupThread(ctx *cpu.Context) uint32
	IWakeupThread(ctx *cpu.Context) uint32
	SuspendThread(ctx *cpu.Context) uint32
	ResumeThread(ctx *cpu.Context) uint32
	SetupThread(ctx *cpu.Context) uint32
}

// SemaService models semaphore bookkeeping, same parameter-passing
// convention as ThreadService.
type SemaService interface {
	CreateSema(ctx *cpu.Context) uint32
	DeleteSema(ctx *cpu.Context) uint32
	SignalSema(ctx *cpu.Context) uint32
	ISignalSema(ctx *cpu.Context) uint32
	WaitSema(ctx *cpu.Context) uint32
	PollSema(ctx *cpu.Context) uint32
	IPollSema(ctx *cpu.Context) uint32
	ReferSemaStatus(ctx *cpu.Context) uint32
}

// Dispatcher implements handle_syscall. GS is the register bank so
// GsGetIMR/GsPutIMR can read and write IMR directly (spec.md 4.8).
type Dispatcher struct {
	Services Services
	GS       GSIMR
	Sink     Sink
}

// GSIMR is the narrow slice of gs.Registers the syscall dispatcher needs.
type GSIMR interface {
	Read32(addr uint32) uint32
	Write32(addr uint32, v uint32)
}

const gsIMRAddr = 0x12001010 // PrivRegBase + IMR offset

// New builds a Dispatcher. services and gsRegs may be nil/zero; unset
// collaborators fall back to returning 0.
func New(services Services, gsRegs GSIMR, sink Sink) *Dispatcher {
	return &Dispatcher{Services: services, GS: gsRegs, Sink: sink}
}

// Dispatch decodes the syscall number from GPR 3 and argument GPRs 4..7
// (A0..A3), routes to the matching case, and places the signed 32-bit
// return value in GPR 2 (V0). It reports exit == true for syscall Exit, so
// the runtime orchestrator can signal worker termination.
func (d *Dispatcher) Dispatch(ctx *cpu.Context) (exit bool) {
	num := ctx.GPR(3).U32()
	a0 := ctx.GPR(cpu.RegA0).U32()
	a1 := ctx.GPR(cpu.RegA1).U32()

	switch num {
	case GsSetCrt:
		d.setReturn(ctx, 0)
	case Exit:
		d.setReturn(ctx, 0)
		return true
	case SleepThreadExecPS2, SleepThread:
		if d.Services.Thread != nil {
			d.Services.Thread.SleepThread(ctx)
		}
		d.setReturn(ctx, 0)
	case EnableIntc, DisableIntc, EnableDmac, DisableDmac, SetAlarm:
		d.setReturn(ctx, 0)
	case CreateThread:
		d.routeThread(ctx, num, 0)
	case DeleteThread:
		d.routeThread(ctx, num, 0)
	case StartThread:
		d.routeThread(ctx, num, 0)
	case ExitThread:
		if d.Services.Thread != nil {
			d.Services.Thread.ExitThread(ctx)
		}
		d.setReturn(ctx, 0)
	case ExitDeleteThread:
		if d.Services.Thread != nil {
			d.Services.Thread.ExitDeleteThread(ctx)
		}
		d.setReturn(ctx, 0)
	case TerminateThread, ChangeThreadPriority, RotateThreadReadyQ,
		ReleaseWaitThread, GetThreadId, ReferThreadStatus,
		WakeupThread, IWakeupThread, SuspendThread, ResumeThread, SetupThread:
		d.routeThread(ctx, num, 0)
	case SetupHeap:
		// SetupHeap: a0 = heap_start, a1 = heap_size; returns heap end (spec.md 4.8).
		d.setReturn(ctx, int32(a0+a1))
	case EndOfHeap:
		// EndOfHeap echoes a0 (spec.md 4.8).
		d.setReturn(ctx, int32(a0))
	case CreateSema, DeleteSema, SignalSema, ISignalSema,
		WaitSema, PollSema, IPollSema, ReferSemaStatus:
		d.routeSema(ctx, num)
	case FlushCache:
		d.setReturn(ctx, 0)
	case GsGetIMR:
		if d.GS != nil {
			d.setReturn(ctx, int32(d.GS.Read32(gsIMRAddr)))
		} else {
			d.setReturn(ctx, 0)
		}
	case GsPutIMR:
		if d.GS != nil {
			d.GS.Write32(gsIMRAddr, a0)
		}
		d.setReturn(ctx, 0)
	default:
		if d.Sink != nil {
			d.Sink.Event("syscall-unknown", ctx.PC, "unrecognized syscall #%d", num)
		}
		d.setReturn(ctx, 0)
	}
	return false
}

func (d *Dispatcher) routeThread(ctx *cpu.Context, num uint32, fallback int32) {
	t := d.Services.Thread
	if t == nil {
		d.setReturn(ctx, fallback)
		return
	}
	var rv uint32
	switch num {
	case CreateThread:
		rv = t.CreateThread(ctx)
	case DeleteThread:
		rv = t.DeleteThread(ctx)
	case StartThread:
		rv = t.StartThread(ctx)
	case TerminateThread:
		rv = t.TerminateThread(ctx)
	case ChangeThreadPriority:
		rv = t.ChangeThreadPriority(ctx)
	case RotateThreadReadyQ:
		rv = t.RotateThreadReadyQueue(ctx)
	case ReleaseWaitThread:
		rv = t.ReleaseWaitThread(ctx)
	case GetThreadId:
		rv = t.GetThreadId(ctx)
	case ReferThreadStatus:
		rv = t.ReferThreadStatus(ctx)
	case WakeupThread:
		rv = t.WakeupThread(ctx)
	case IWakeupThread:
		rv = t.IWakeupThread(ctx)
	case SuspendThread:
		rv = t.SuspendThread(ctx)
	case ResumeThread:
		rv = t.ResumeThread(ctx)
	case SetupThread:
		rv = t.SetupThread(ctx)
	}
	d.setReturn(ctx, int32(rv))
}

func (d *Dispatcher) routeSema(ctx *cpu.Context, num uint32) {
	s := d.Services.Sema
	if s == nil {
		d.setReturn(ctx, 0)
		return
	}
	var rv uint32
	switch num {
	case CreateSema:
		rv = s.CreateSema(ctx)
	case DeleteSema:
		rv = s.DeleteSema(ctx)
	case SignalSema:
		rv = s.SignalSema(ctx)
	case ISignalSema:
		rv = s.ISignalSema(ctx)
	case WaitSema:
		rv = s.WaitSema(ctx)
	case PollSema:
		rv = s.PollSema(ctx)
	case IPollSema:
		rv = s.IPollSema(ctx)
	case ReferSemaStatus:
		rv = s.ReferSemaStatus(ctx)
	}
	d.setReturn(ctx, int32(rv))
}

// setReturn places a sign-extended 32-bit result into GPR 2 (V0), per
// spec.md 4.8.
func (d *Dispatcher) setReturn(ctx *cpu.Context, v int32) {
	ctx.SetGPR32(cpu.RegV0, uint32(v))
}
