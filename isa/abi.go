// Package isa fixes the cross-architecture ABI contract:
// the calling-convention descriptor, argument-location sum type, and the
// compute_arg_locs contract every per-architecture lowerer
// (isa/amd64, isa/arm64, isa/s390x) implements identically in shape,
// differently in detail.
package isa

import (
	"fmt"

	"github.com/nativewasm/corewasm/ir"
	"github.com/nativewasm/corewasm/regalloc"
)

// Extension is the sign/zero/none promotion rule applied to a
// narrower-than-register argument or return value.
type Extension byte

const (
	ExtensionNone Extension = iota
	ExtensionSign
	ExtensionZero
)

// Convention names one of the calling conventions this core lowers to.
// "Wasmtime" is the embedded convention: it additionally constrains Rets
// to at most one register-carried return value, spilling the rest
// through a caller-provided return-area pointer.
type Convention byte

const (
	ConventionSystemV Convention = iota
	ConventionWindowsFastcall
	ConventionWasmtime
	ConventionAppleAArch64
	ConventionStandardAArch64
	ConventionS390x
)

// CallingConventionInfo is the per-architecture, per-convention table
// of which registers carry arguments/returns, which are
// callee-saved, stack alignment, and frame-pointer/stack-probe policy.
type CallingConventionInfo struct {
	Convention Convention

	ArgIntRegs, ArgFloatRegs       []regalloc.RealReg
	RetIntRegs, RetFloatRegs       []regalloc.RealReg
	CalleeSavedInt, CalleeSavedFloat []regalloc.RealReg

	StackAlign int64

	// FramePointer is true if this convention maintains a traditional
	// frame-pointer chain (rbp/x29) rather than omitting it.
	FramePointer bool

	// ShadowSpaceBytes is non-zero only for x64 Windows fastcall, which
	// reserves 32 bytes below any stack arguments for the callee to spill
	// its register arguments into.
	ShadowSpaceBytes int64

	// MaxRegisterReturns is the Rets-limiting rule for
	// the embedded "wasmtime" convention: at most this many return
	// values may use a register; the rest spill through the return-area
	// pointer. Zero means no cap: return values take registers until the
	// convention's Ret*Regs run out (SysV and fastcall leave it zero).
	MaxRegisterReturns int
}

// ArgLocKind is the sum-type tag of ArgLoc, an ABI argument location.
type ArgLocKind byte

const (
	ArgLocReg ArgLocKind = iota
	ArgLocStack
	// ArgLocComposite is a multi-slot composite, e.g. i128 over two GPRs.
	ArgLocComposite
	// ArgLocStructArg is a pointer to an in-memory struct argument.
	ArgLocStructArg
	// ArgLocImplicitPtr is the s390x-only case where a value exceeding
	// register size is passed by an implicit pointer the callee
	// dereferences.
	ArgLocImplicitPtr
)

// ArgLoc is the location a single lowered argument or return value was
// assigned to.
type ArgLoc struct {
	Kind ArgLocKind
	Type ir.Type

	// ArgLocReg
	Reg       regalloc.VReg
	Extension Extension

	// ArgLocStack / ArgLocStructArg / ArgLocImplicitPtr
	Offset int64
	Size   int64
	Ptr    regalloc.VReg // base register the offset is relative to

	// ArgLocComposite: two consecutive slots, each either a register or a
	// stack offset; composites never mix kinds across their two halves in
	// this implementation (AArch64's only composite case, i128, is
	// either fully register- or fully stack-resident).
	Lo, Hi *ArgLoc
}

func (a ArgLoc) String() string {
	switch a.Kind {
	case ArgLocReg:
		return fmt.Sprintf("reg(%s)", a.Reg)
	case ArgLocStack:
		return fmt.Sprintf("stack(+%d)", a.Offset)
	case ArgLocComposite:
		return fmt.Sprintf("composite(%s, %s)", a.Lo, a.Hi)
	case ArgLocStructArg:
		return fmt.Sprintf("structarg(+%d, size=%d)", a.Offset, a.Size)
	case ArgLocImplicitPtr:
		return fmt.Sprintf("implicitptr(%s+%d)", a.Ptr, a.Offset)
	default:
		return "invalid"
	}
}

// ErrStackTooLarge is returned by ComputeArgLocs when the lowered stack
// footprint exceeds the 128 MiB implementation limit this sets.
var ErrStackTooLarge = fmt.Errorf("isa: stack frame exceeds 128 MiB implementation limit")

// MaxStackBytes is the hard limit this sets on stack_bytes.
const MaxStackBytes = 128 << 20

// AlignTo rounds v up to the nearest multiple of align (which must be a
// power of two).
func AlignTo(v, align int64) int64 {
	return (v + align - 1) &^ (align - 1)
}

// ArgLocsResult is the return value of ComputeArgLocs.
type ArgLocsResult struct {
	Locs []ArgLoc
	// StackBytes is aligned to CallingConventionInfo.StackAlign and
	// bounded by MaxStackBytes.
	StackBytes int64
	// RetAddrArgIndex is set when add_ret_area_ptr requested a pointer
	// to the return area be threaded as an extra integer argument; -1
	// means none was added.
	RetAddrArgIndex int
}
