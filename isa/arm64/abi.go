// Package arm64 fixes the AArch64 half of the cross-architecture ABI
// contract: argument-location computation only. Per the
// scope decision recorded in DESIGN.md, this core does not carry a
// second full instruction encoder — arm64/s390x exist solely to pin
// down the calling-convention contract isa.CallingConventionInfo/
// isa.ArgLoc must generalize over, the way this frames every
// architecture but x86-64 as present "to fix the ABI contract" rather
// than to be fully backed by an encoder.
package arm64

import (
	"github.com/nativewasm/corewasm/ir"
	"github.com/nativewasm/corewasm/isa"
	"github.com/nativewasm/corewasm/regalloc"
)

// Physical integer registers x0-x30 and float/SIMD registers v0-v31, in
// AArch64 ABI-assigned numbering.
const (
	X0 regalloc.RealReg = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	FP  = 29 // x29, frame pointer
	LR  = 30 // x30, link register
)

const (
	V0 regalloc.RealReg = iota
	V1
	V2
	V3
	V4
	V5
	V6
	V7
)

// StandardAArch64 is the base AAPCS64 convention: x0-x7 integer args,
// v0-v7 float/vector args, x0 (+x1 for 128-bit) integer return, v0 float
// return, 16-byte stack alignment, frame-pointer chain maintained.
var StandardAArch64 = isa.CallingConventionInfo{
	Convention:       isa.ConventionStandardAArch64,
	ArgIntRegs:       []regalloc.RealReg{X0, X1, X2, X3, X4, X5, X6, X7},
	ArgFloatRegs:     []regalloc.RealReg{V0, V1, V2, V3, V4, V5, V6, V7},
	RetIntRegs:       []regalloc.RealReg{X0, X1},
	RetFloatRegs:     []regalloc.RealReg{V0, V1},
	CalleeSavedInt:   []regalloc.RealReg{19, 20, 21, 22, 23, 24, 25, 26, 27, 28, FP, LR},
	CalleeSavedFloat: []regalloc.RealReg{8, 9, 10, 11, 12, 13, 14, 15},
	StackAlign:       16,
	FramePointer:     true,
}

// AppleAArch64 is Apple's AAPCS64 variant: identical register
// assignment, but stack-passed arguments are packed at their natural
// alignment rather than padded to 8 bytes each, which this
// implementation models by giving AlignTo the argument's own size
// instead of a fixed 8.
var AppleAArch64 = isa.CallingConventionInfo{
	Convention:       isa.ConventionAppleAArch64,
	ArgIntRegs:       []regalloc.RealReg{X0, X1, X2, X3, X4, X5, X6, X7},
	ArgFloatRegs:     []regalloc.RealReg{V0, V1, V2, V3, V4, V5, V6, V7},
	RetIntRegs:       []regalloc.RealReg{X0, X1},
	RetFloatRegs:     []regalloc.RealReg{V0, V1},
	CalleeSavedInt:   []regalloc.RealReg{19, 20, 21, 22, 23, 24, 25, 26, 27, 28, FP, LR},
	CalleeSavedFloat: []regalloc.RealReg{8, 9, 10, 11, 12, 13, 14, 15},
	StackAlign:       16,
	FramePointer:     true,
}

// ComputeArgLocs implements compute_arg_locs for AArch64,
// including the composite-argument rule: an i128 value that has run out
// of registers is assigned a single 16-byte-aligned stack slot as one
// ArgLocComposite rather than splitting across a register and the
// stack, and one that still has registers available occupies two
// consecutive integer registers as a register-resident Composite.
func ComputeArgLocs(conv isa.CallingConventionInfo, params []ir.Type) (*isa.ArgLocsResult, error) {
	res := &isa.ArgLocsResult{RetAddrArgIndex: -1}
	nInt, nFloat := 0, 0
	stackOff := int64(0)
	argByteAlign := func(size int64) int64 {
		if conv.Convention == isa.ConventionAppleAArch64 {
			return size
		}
		return 8
	}

	for _, p := range params {
		if p == ir.I128 {
			if nInt+1 < len(conv.ArgIntRegs) {
				lo := isa.ArgLoc{Kind: isa.ArgLocReg, Type: ir.I64, Reg: regalloc.FromRealReg(conv.ArgIntRegs[nInt], regalloc.RegClassInt)}
				hi := isa.ArgLoc{Kind: isa.ArgLocReg, Type: ir.I64, Reg: regalloc.FromRealReg(conv.ArgIntRegs[nInt+1], regalloc.RegClassInt)}
				nInt += 2
				l, h := lo, hi
				res.Locs = append(res.Locs, isa.ArgLoc{Kind: isa.ArgLocComposite, Type: p, Lo: &l, Hi: &h})
				continue
			}
			off := isa.AlignTo(stackOff, 16)
			stackOff = off + 16
			res.Locs = append(res.Locs, isa.ArgLoc{Kind: isa.ArgLocComposite, Type: p, Offset: off, Size: 16})
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
			align := argByteAlign(p.Size())
			off := isa.AlignTo(stackOff, align)
			stackOff = off + p.Size()
			res.Locs = append(res.Locs, isa.ArgLoc{Kind: isa.ArgLocStack, Type: p, Offset: off, Size: p.Size()})
		}
	}

	res.StackBytes = isa.AlignTo(stackOff, conv.StackAlign)
	if res.StackBytes > isa.MaxStackBytes {
		return nil, isa.ErrStackTooLarge
	}
	return res, nil
}
