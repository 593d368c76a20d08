package amd64

import (
	"github.com/nativewasm/corewasm/ir"
	"github.com/nativewasm/corewasm/isa"
	"github.com/nativewasm/corewasm/regalloc"
)

// SysV is the x86-64 System V calling convention table:
// integer args in rdi, rsi, rdx, rcx, r8, r9; float args in xmm0-xmm7;
// return values in rax/rdx and xmm0/xmm1; rbx/rbp/r12-r15
// callee-saved; 16-byte stack alignment at the call instruction; a
// frame-pointer chain is maintained.
var SysV = isa.CallingConventionInfo{
	Convention:       isa.ConventionSystemV,
	ArgIntRegs:       []regalloc.RealReg{RDI, RSI, RDX, RCX, R8, R9},
	ArgFloatRegs:     []regalloc.RealReg{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7},
	RetIntRegs:       []regalloc.RealReg{RAX, RDX},
	RetFloatRegs:     []regalloc.RealReg{XMM0, XMM1},
	CalleeSavedInt:   []regalloc.RealReg{RBX, RBP, R12, R13, R14, R15},
	CalleeSavedFloat: nil,
	StackAlign:       16,
	FramePointer:     true,
}

// WindowsFastcall is the x64 Windows calling convention:
// the first four arguments (regardless of class) occupy rcx/rdx/r8/r9 or
// xmm0-xmm3 — argument N always consumes slot N in both register files,
// so an integer in position 2 still burns xmm1 — and the caller reserves
// a 32-byte "shadow space" below any stack arguments for the callee to
// spill into.
var WindowsFastcall = isa.CallingConventionInfo{
	Convention:       isa.ConventionWindowsFastcall,
	ArgIntRegs:       []regalloc.RealReg{RCX, RDX, R8, R9},
	ArgFloatRegs:     []regalloc.RealReg{XMM0, XMM1, XMM2, XMM3},
	RetIntRegs:       []regalloc.RealReg{RAX},
	RetFloatRegs:     []regalloc.RealReg{XMM0},
	CalleeSavedInt:   []regalloc.RealReg{RBX, RBP, RDI, RSI, R12, R13, R14, R15},
	CalleeSavedFloat: []regalloc.RealReg{XMM6, XMM7, XMM8, XMM9, XMM10, XMM11, XMM12, XMM13, XMM14, XMM15},
	StackAlign:       16,
	FramePointer:     true,
	ShadowSpaceBytes: 32,
}

// Wasmtime is the embedded convention: SysV register assignment, but
// Rets is capped at one register-carried return value
// (MaxRegisterReturns), with any additional return values spilled
// through a caller-supplied return-area pointer threaded as an extra
// leading integer argument (add_ret_area_ptr).
var Wasmtime = isa.CallingConventionInfo{
	Convention:         isa.ConventionWasmtime,
	ArgIntRegs:         []regalloc.RealReg{RDI, RSI, RDX, RCX, R8, R9},
	ArgFloatRegs:       []regalloc.RealReg{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7},
	RetIntRegs:         []regalloc.RealReg{RAX},
	RetFloatRegs:       []regalloc.RealReg{XMM0},
	CalleeSavedInt:     []regalloc.RealReg{RBX, RBP, R12, R13, R14, R15},
	StackAlign:         16,
	FramePointer:       true,
	MaxRegisterReturns: 1,
}

// ComputeArgLocs implements the compute_arg_locs contract:
// it walks params in order, assigning each the next available register
// of its class, falling back to a stack slot once that class's
// registers are exhausted, and honors conv.ShadowSpaceBytes. results is
// not walked: it only decides whether a leading return-area pointer is
// reserved (when conv.MaxRegisterReturns is above zero and results
// outnumber it); ComputeRetLocs assigns the return registers. When the
// params need more stack than fits conv.StackAlign-aligned under
// MaxStackBytes, ErrStackTooLarge is returned.
func ComputeArgLocs(conv isa.CallingConventionInfo, params, results []ir.Type) (*isa.ArgLocsResult, error) {
	res := &isa.ArgLocsResult{RetAddrArgIndex: -1}

	nInt, nFloat := 0, 0
	stackOff := int64(0)

	assignOne := func(t ir.Type) isa.ArgLoc {
		isFloat := t == ir.F32 || t == ir.F64
		if isFloat && nFloat < len(conv.ArgFloatRegs) {
			r := conv.ArgFloatRegs[nFloat]
			nFloat++
			if conv.Convention == isa.ConventionWindowsFastcall {
				nInt++ // fastcall burns both register files per slot
			}
			return isa.ArgLoc{Kind: isa.ArgLocReg, Type: t, Reg: regalloc.FromRealReg(r, regalloc.RegClassFloat)}
		}
		if !isFloat && nInt < len(conv.ArgIntRegs) {
			r := conv.ArgIntRegs[nInt]
			nInt++
			if conv.Convention == isa.ConventionWindowsFastcall {
				nFloat++
			}
			return isa.ArgLoc{Kind: isa.ArgLocReg, Type: t, Reg: regalloc.FromRealReg(r, regalloc.RegClassInt)}
		}
		size := t.Size()
		off := isa.AlignTo(stackOff, size) + conv.ShadowSpaceBytes
		stackOff = isa.AlignTo(stackOff, size) + size
		return isa.ArgLoc{Kind: isa.ArgLocStack, Type: t, Offset: off, Size: size}
	}

	needsRetArea := len(results) > conv.MaxRegisterReturns && conv.MaxRegisterReturns > 0
	if needsRetArea {
		res.Locs = append(res.Locs, isa.ArgLoc{Kind: isa.ArgLocReg, Type: ir.I64, Reg: regalloc.FromRealReg(conv.ArgIntRegs[0], regalloc.RegClassInt)})
		nInt++
		res.RetAddrArgIndex = 0
	}

	for _, p := range params {
		res.Locs = append(res.Locs, assignOne(p))
	}

	res.StackBytes = isa.AlignTo(stackOff, conv.StackAlign)
	if res.StackBytes > isa.MaxStackBytes {
		return nil, isa.ErrStackTooLarge
	}
	return res, nil
}

// ComputeRetLocs assigns each result value a location in the same order
// ComputeArgLocs does for params, using conv's Ret*Regs; results beyond
// MaxRegisterReturns (when capped) are assumed already relocated by the
// caller to the return-area pointer ComputeArgLocs reserved.
func ComputeRetLocs(conv isa.CallingConventionInfo, results []ir.Type) []isa.ArgLoc {
	nInt, nFloat := 0, 0
	out := make([]isa.ArgLoc, 0, len(results))
	limit := len(results)
	if conv.MaxRegisterReturns > 0 && conv.MaxRegisterReturns < limit {
		limit = conv.MaxRegisterReturns
	}
	for idx, t := range results {
		if idx >= limit {
			break
		}
		isFloat := t == ir.F32 || t == ir.F64
		if isFloat && nFloat < len(conv.RetFloatRegs) {
			r := conv.RetFloatRegs[nFloat]
			nFloat++
			out = append(out, isa.ArgLoc{Kind: isa.ArgLocReg, Type: t, Reg: regalloc.FromRealReg(r, regalloc.RegClassFloat)})
		} else if !isFloat && nInt < len(conv.RetIntRegs) {
			r := conv.RetIntRegs[nInt]
			nInt++
			out = append(out, isa.ArgLoc{Kind: isa.ArgLocReg, Type: t, Reg: regalloc.FromRealReg(r, regalloc.RegClassInt)})
		}
	}
	return out
}

// PrologueState tracks the incremental stack-frame layout decisions the
// prologue/epilogue generator makes as it walks clobbered registers and
// local stack-slot requests, following the same running-offset state
// machine generalized to the
// cross-convention contract above.
type PrologueState struct {
	Conv           isa.CallingConventionInfo
	ClobberedInt   []regalloc.RealReg
	ClobberedFloat []regalloc.RealReg
	LocalsBytes    int64
	NeedsStackProbe bool
}

// FrameSize is the total stack-frame footprint below the return address:
// saved frame pointer (if any) + callee-saved spill area + locals,
// aligned to the convention's stack alignment.
func (p PrologueState) FrameSize() int64 {
	size := int64(0)
	if p.Conv.FramePointer {
		size += 8
	}
	size += int64(len(p.ClobberedInt)) * 8
	size += int64(len(p.ClobberedFloat)) * 16
	size += p.LocalsBytes
	return isa.AlignTo(size, p.Conv.StackAlign)
}

// GenClobberSave emits the push/movups sequence that spills every
// register in ClobberedInt/ClobberedFloat to its frame slot, in the
// fixed order the epilogue's GenClobberRestore reverses.
func GenClobberSave(p PrologueState) []*Instruction {
	var out []*Instruction
	for _, r := range p.ClobberedInt {
		out = append(out, &Instruction{Kind: KindPush64, Op1: Operand{Kind: OperandReg, Reg: regalloc.FromRealReg(r, regalloc.RegClassInt)}})
	}
	off := int32(0)
	for _, r := range p.ClobberedFloat {
		off -= 16
		mem := NewAmodeImmReg(off, regalloc.FromRealReg(RSP, regalloc.RegClassInt))
		out = append(out, &Instruction{
			Kind: KindXmmMovRM, U1: uint64(SseMovUPS),
			Op1: Operand{Kind: OperandReg, Reg: regalloc.FromRealReg(r, regalloc.RegClassFloat)},
			Op2: NewOperandMem(mem),
		})
	}
	return out
}

// GenClobberRestore emits the inverse of GenClobberSave, popping integer
// registers in reverse order (LIFO, matching the pushes) after reloading
// float registers from their slots.
func GenClobberRestore(p PrologueState) []*Instruction {
	var out []*Instruction
	off := int32(0)
	for _, r := range p.ClobberedFloat {
		off -= 16
		mem := NewAmodeImmReg(off, regalloc.FromRealReg(RSP, regalloc.RegClassInt))
		out = append(out, &Instruction{
			Kind: KindXmmUnaryRmR, U1: uint64(SseMovUPS),
			Op1: NewOperandMem(mem),
			Op2: Operand{Kind: OperandReg, Reg: regalloc.FromRealReg(r, regalloc.RegClassFloat)},
		})
	}
	for i := len(p.ClobberedInt) - 1; i >= 0; i-- {
		r := p.ClobberedInt[i]
		out = append(out, &Instruction{Kind: KindPop64, Op1: Operand{Kind: OperandReg, Reg: regalloc.FromRealReg(r, regalloc.RegClassInt)}})
	}
	return out
}

// GenCall builds a direct call to symbol as a CallKnown with argUses as
// its uses and retDefs as its defs. It emits no argument or result
// moves.
func GenCall(symbol string, argUses, retDefs []regalloc.VReg) *Instruction {
	return NewCallKnown(symbol, argUses, retDefs)
}

// GenMemcpy emits an inline rep-movsb style copy for small sizes; this
// implementation always uses the simple rep movsb form, trading a few
// bytes of throughput for avoiding a second, size-tiered unrolled-copy
// code path the compiler budget does not need.
func GenMemcpy(dst, src regalloc.VReg, size int64) []*Instruction {
	return []*Instruction{
		NewImm(uint64(size), regalloc.FromRealReg(RCX, regalloc.RegClassInt), true),
		NewMovRR(dst, regalloc.FromRealReg(RDI, regalloc.RegClassInt), true),
		NewMovRR(src, regalloc.FromRealReg(RSI, regalloc.RegClassInt), true),
		{Kind: KindRepMovsb},
	}
}
