// Package cpu defines the R5900 (Emotion Engine) architectural state shared
// between recompiled guest functions and the runtime.
package cpu

// Reg128 models one of the EE's 32 general-purpose registers. The low 64
// bits are the MIPS GPR; the upper bits model the multimedia/COP2 extension
// that widens every GPR to 128 bits. Recompiled guest code only reads/writes
// the lanes it needs.
type Reg128 struct {
	Lo, Hi uint64
}

// U32 returns the low 32 bits, the lane almost every MIPS ABI path (syscall
// arguments, branch comparisons) actually uses.
func (r Reg128) U32() uint32 { return uint32(r.Lo) }

// S32 returns the low 32 bits sign-extended, matching MIPS32's convention
// that word-sized results are stored sign-extended across the register.
func (r Reg128) S32() int32 { return int32(r.Lo) }

// SetU32 stores v as the low lane and sign-extends it into the rest of Lo,
// leaving Hi untouched -- this is the common case for syscall return values
// and arithmetic results (spec.md 4.8: "sign-extended when it represents a
// 32-bit signed result").
func (r *Reg128) SetU32(v uint32) {
	r.Lo = uint64(int64(int32(v)))
}

// GPR register name table, retained from the MIPS register convention in
// the teacher's arch/mips backend (at, v0, v1, a0..a3, t0..t9, s0..s8, k0,
// k1, gp, sp, ra) purely for diagnostics; ps2xrun addresses GPRs by number
// per spec.md's ABI (GPR 2-7, 29).
var GPRName = [32]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "s8", "ra",
}

const (
	RegV0 = 2
	RegV1 = 3
	RegA0 = 4
	RegA1 = 5
	RegA2 = 6
	RegA3 = 7
	RegSP = 29
	RegRA = 31
)

// Context is the R5900 architectural state. It is owned exclusively by the
// worker goroutine while the guest runs (spec.md 5): the scan-out loop never
// reads or writes it.
type Context struct {
	R  [32]Reg128
	PC uint32

	// COP0 subset.
	Cop0Status uint32
	Cop0Cause  uint32
	Cop0EPC    uint32

	// VU0 scratch, mutated by StartVU0Microprogram (spec.md 1: "VU0
	// microprogram invocation stubs").
	VU0ClipFlags uint32
	VU0Status    uint32
	VU0Q         float32
}

// ExceptionCode is a COP0 Cause register exception code (the MIPS ExcCode
// field, Cause bits 2-6).
type ExceptionCode uint32

// ExceptionIntegerOverflow is the only exception code ps2xrun's runtime
// routes to a handler (spec.md 7); MIPS ExcCode 12 ("Ov").
const ExceptionIntegerOverflow ExceptionCode = 12

// exceptionVector is the R5900 general exception entry point guest PC is
// redirected to.
const exceptionVector = 0x80000000

// RaiseException implements the COP0 exception-entry sequence: the
// faulting PC is saved to EPC, code is latched into Cause, and PC jumps to
// the general exception vector, mirroring
// ps2xRuntime::PS2Runtime::HandleIntegerOverflow.
func (c *Context) RaiseException(code ExceptionCode) {
	c.Cop0EPC = c.PC
	c.Cop0Cause = (c.Cop0Cause &^ (0x1F << 2)) | (uint32(code) << 2)
	c.PC = exceptionVector
}

// StartVU0Microprogram resets VU0 scratch state to the values a freshly
// dispatched microprogram begins with, standing in for the VU0 interpreter
// spec.md 1 scopes out of this runtime.
func (c *Context) StartVU0Microprogram() {
	c.VU0ClipFlags = 0
	c.VU0Status = 0
	c.VU0Q = 1.0
}

// GPR returns the value of general-purpose register n. Register 0 is wired
// to constant zero regardless of what was last stored there.
func (c *Context) GPR(n int) Reg128 {
	if n == 0 {
		return Reg128{}
	}
	return c.R[n]
}

// SetGPR writes general-purpose register n. Writes to register 0 are
// dropped, preserving the "register 0 is constant zero" invariant.
func (c *Context) SetGPR(n int, v Reg128) {
	if n == 0 {
		return
	}
	c.R[n] = v
}

// SetGPR32 is a convenience wrapper storing a sign-extended 32-bit value.
func (c *Context) SetGPR32(n int, v uint32) {
	if n == 0 {
		return
	}
	c.R[n].SetU32(v)
}
