// Package s390x fixes the s390x half of the cross-architecture ABI
// contract: argument-location computation only, per the same
// scope decision as isa/arm64 (recorded in DESIGN.md) — no full encoder.
//
// s390x is the odd one out among the conventions supported here: it
// reserves a fixed 160-byte register-save area at the bottom of every
// frame (the "standard frame" the zSeries ABI mandates regardless of
// whether the callee actually spills there), and any argument whose
// natural size exceeds a single general register's 8 bytes is passed not
// by value but through an ImplicitPtrArg — a pointer the caller
// materializes to a stack-resident copy and the callee dereferences,
// rather than splitting the value across two registers the way AArch64's
// i128 composite does.
package s390x

import (
	"github.com/nativewasm/corewasm/ir"
	"github.com/nativewasm/corewasm/isa"
	"github.com/nativewasm/corewasm/regalloc"
)

// Physical general-purpose registers r0-r15 and float registers f0-f15.
const (
	R0 regalloc.RealReg = iota
	R1
	R2
	R3
	R4
	R5
	R6
	SP = 15
)

const (
	F0 regalloc.RealReg = 2 * iota
	F2
	F4
	F6
)

// RegisterSaveAreaBytes is the fixed standard-frame reservation every
// s390x call site carries regardless of whether the callee spills into
// it.
const RegisterSaveAreaBytes = 160

// S390x is the zSeries ELF ABI calling convention: r2-r6 integer args,
// f0/f2/f4/f6 float args, r2(:r3) integer return, f0 float return, 8-byte
// stack alignment within the 160-byte standard-frame offset.
var S390x = isa.CallingConventionInfo{
	Convention:     isa.ConventionS390x,
	ArgIntRegs:     []regalloc.RealReg{R2, R3, R4, R5, R6},
	ArgFloatRegs:   []regalloc.RealReg{F0, F2, F4, F6},
	RetIntRegs:     []regalloc.RealReg{R2, R3},
	RetFloatRegs:   []regalloc.RealReg{F0},
	CalleeSavedInt: []regalloc.RealReg{8, 9, 10, 11, 12, 13, SP},
	StackAlign:     8,
	FramePointer:   false,
}

// ComputeArgLocs implements compute_arg_locs for s390x,
// including the ImplicitPtrArg rule: any argument wider than 8 bytes
// (the only such type here is i128) is passed as a pointer to a
// caller-materialized stack copy rather than split across registers.
func ComputeArgLocs(params []ir.Type) (*isa.ArgLocsResult, error) {
	conv := S390x
	res := &isa.ArgLocsResult{RetAddrArgIndex: -1}
	nInt, nFloat := 0, 0
	stackOff := int64(RegisterSaveAreaBytes)

	for _, p := range params {
		if p.Size() > 8 {
			if nInt < len(conv.ArgIntRegs) {
				r := conv.ArgIntRegs[nInt]
				nInt++
				res.Locs = append(res.Locs, isa.ArgLoc{
					Kind: isa.ArgLocImplicitPtr, Type: p,
					Ptr: regalloc.FromRealReg(r, regalloc.RegClassInt),
				})
				continue
			}
			off := isa.AlignTo(stackOff, 8)
			stackOff = off + 8
			res.Locs = append(res.Locs, isa.ArgLoc{Kind: isa.ArgLocImplicitPtr, Type: p, Offset: off})
			continue
		}

		isFloat := p == ir.F32 || p == ir.F64
		switch {
		case isFloat && nFloat < len(conv.ArgFloatRegs):
			r := conv.ArgFloatRegs[nFloat]
			nFloat++
			res.Locs = append(res.Locs, isa.ArgLoc{Kind: isa.ArgLocReg, Type: p, Reg: regalloc.FromRealReg(r, regalloc.RegClassFloat)})
		case !isFloat && nInt < len(conv.ArgIntRegs):
			r := conv.ArgIntRegs[nInt]
			nInt++
			res.Locs = append(res.Locs, isa.ArgLoc{Kind: isa.ArgLocReg, Type: p, Reg: regalloc.FromRealReg(r, regalloc.RegClassInt)})
		default:
			off := isa.AlignTo(stackOff, 8)
			stackOff = off + 8
			res.Locs = append(res.Locs, isa.ArgLoc{Kind: isa.ArgLocStack, Type: p, Offset: off, Size: 8})
		}
	}

	res.StackBytes = isa.AlignTo(stackOff, conv.StackAlign)
	if res.StackBytes > isa.MaxStackBytes {
		return nil, isa.ErrStackTooLarge
	}
	return res, nil
}
