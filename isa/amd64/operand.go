package amd64

import (
	"fmt"

	"github.com/nativewasm/corewasm/mach"
	"github.com/nativewasm/corewasm/regalloc"
)

// GPR is a newtype wrapper restricting a register to the integer class.
// The only way to obtain one is AsGPR, which fails (returns ok=false) if
// the underlying register is not RegClassInt — an XMM opcode can never
// receive a GPR constructed any other way.
type GPR struct{ v regalloc.VReg }

// XMM is the float-class counterpart of GPR.
type XMM struct{ v regalloc.VReg }

// AsGPR validates v's class and wraps it, or reports ok=false.
func AsGPR(v regalloc.VReg) (GPR, bool) {
	if v.RegClass() != regalloc.RegClassInt {
		return GPR{}, false
	}
	return GPR{v: v}, true
}

// AsXMM validates v's class and wraps it, or reports ok=false.
func AsXMM(v regalloc.VReg) (XMM, bool) {
	if v.RegClass() != regalloc.RegClassFloat {
		return XMM{}, false
	}
	return XMM{v: v}, true
}

// VReg unwraps back to the general register representation, e.g. for the
// operand collector, which does not care about class once the invariant
// has been checked at construction.
func (g GPR) VReg() regalloc.VReg { return g.v }
func (x XMM) VReg() regalloc.VReg { return x.v }

func (g GPR) String() string { return formatReg(g.v, true) }
func (x XMM) String() string { return formatReg(x.v, true) }

func formatReg(v regalloc.VReg, wide bool) string {
	if !v.IsRealReg() {
		return fmt.Sprintf("%%v%d", v.ID())
	}
	r := v.RealReg()
	if v.RegClass() == regalloc.RegClassFloat {
		return "%" + floatRegNames[r]
	}
	if wide {
		return "%" + intRegNames[r]
	}
	return "%" + intRegNames[r]
}

// AmodeKind is the sum-type tag of Amode, an addressing mode.
type AmodeKind byte

const (
	AmodeImmReg AmodeKind = iota
	AmodeImmRegRegShift
	AmodeRipRelative
	// AmodeNominalSPOffset and AmodeConstantOffset are Synthetic-only
	// variants: the emitter resolves them to AmodeImmReg /
	// AmodeRipRelative respectively before the final encoding pass.
	AmodeNominalSPOffset
	AmodeConstantOffset
)

// AddrFlags carries trap/alignment bits inherited from the source
// load/store.
type AddrFlags struct {
	Trapping    bool
	AlignExempt bool
}

// Amode is the x86-64 addressing mode. Synthetic variants
// (NominalSPOffset, ConstantOffset) are only legal before emission; the
// encoder's resolveAmode rewrites them to a concrete ImmReg /
// RipRelative using the current virtual-SP offset or constant-pool
// label.
type Amode struct {
	Kind  AmodeKind
	Disp  int32
	Base  regalloc.VReg // AmodeImmReg, AmodeImmRegRegShift
	Index regalloc.VReg // AmodeImmRegRegShift
	Shift byte          // 0..3, AmodeImmRegRegShift only
	Label mach.Label    // AmodeRipRelative, AmodeConstantOffset
	Off   int32         // AmodeNominalSPOffset
	Flags AddrFlags
}

// NewAmodeImmReg constructs the ImmReg form. The RSP/RBP restriction
// enforced by NewAmodeImmRegRegShift does not apply here — that
// restriction applies only to the *indexed* form, since ImmReg is
// exactly how the frame/stack pointer are addressed.
func NewAmodeImmReg(disp int32, base regalloc.VReg) Amode {
	return Amode{Kind: AmodeImmReg, Disp: disp, Base: base}
}

// NewAmodeImmRegRegShift constructs the ImmRegRegShift form. base and
// index must both be integer-class and neither may be RSP or RBP — any
// construction that would produce that is a program error, so violating
// this panics rather than returning an error.
func NewAmodeImmRegRegShift(disp int32, base, index regalloc.VReg, shift byte) Amode {
	if base.RegClass() != regalloc.RegClassInt || index.RegClass() != regalloc.RegClassInt {
		panic("BUG: ImmRegRegShift base/index must be integer-class")
	}
	if shift > 3 {
		panic("BUG: ImmRegRegShift shift must be 0..=3")
	}
	if isSPorBP(base) || isSPorBP(index) {
		panic("BUG: ImmRegRegShift base/index must not be RSP or RBP")
	}
	return Amode{Kind: AmodeImmRegRegShift, Disp: disp, Base: base, Index: index, Shift: shift}
}

func isSPorBP(v regalloc.VReg) bool {
	return v.IsRealReg() && (v.RealReg() == RSP || v.RealReg() == RBP)
}

// NewAmodeRipRelative constructs a label-relative addressing mode.
func NewAmodeRipRelative(label mach.Label) Amode {
	return Amode{Kind: AmodeRipRelative, Label: label}
}

// NewSyntheticNominalSPOffset constructs the Synthetic-only nominal-SP
// form; off is relative to the compile-time-tracked virtual stack
// pointer, not the physical RSP at the point of emission.
func NewSyntheticNominalSPOffset(off int32) Amode {
	return Amode{Kind: AmodeNominalSPOffset, Off: off}
}

// NewSyntheticConstantOffset addresses a constant-pool entry previously
// interned via mach.CodeBuffer.AddConstant.
func NewSyntheticConstantOffset(label mach.Label) Amode {
	return Amode{Kind: AmodeConstantOffset, Label: label}
}

func (a Amode) String() string {
	switch a.Kind {
	case AmodeImmReg:
		return fmt.Sprintf("%d(%s)", a.Disp, formatReg(a.Base, true))
	case AmodeImmRegRegShift:
		return fmt.Sprintf("%d(%s,%s,%d)", a.Disp, formatReg(a.Base, true), formatReg(a.Index, true), 1<<a.Shift)
	case AmodeRipRelative:
		return fmt.Sprintf("label%d(%%rip)", a.Label)
	case AmodeNominalSPOffset:
		return fmt.Sprintf("nominal_sp+%d", a.Off)
	case AmodeConstantOffset:
		return fmt.Sprintf("const_pool[label%d]", a.Label)
	default:
		return "invalid amode"
	}
}

// OperandKind is the sum-type tag of Operand.
type OperandKind byte

const (
	// OperandReg is register-only.
	OperandReg OperandKind = iota
	// OperandRegMem is register-or-memory.
	OperandRegMem
	// OperandRegMemImm is register-or-memory-or-immediate.
	OperandRegMemImm
	// OperandImm8Reg is 8-bit-immediate-or-register.
	OperandImm8Reg
)

// Operand is one of four variants. Each constructor
// validates the register class and the resulting value reports its used
// registers via Collect, which the instruction embedding it forwards to
// its own OperandCollector.
type Operand struct {
	Kind  OperandKind
	Reg   regalloc.VReg
	Mem   Amode
	Imm32 uint32
}

// NewOperandReg validates class c and constructs a register operand.
func NewOperandReg(v regalloc.VReg, c regalloc.RegClass) (Operand, bool) {
	if v.RegClass() != c {
		return Operand{}, false
	}
	return Operand{Kind: OperandReg, Reg: v}, true
}

// NewOperandMem wraps a memory addressing mode.
func NewOperandMem(m Amode) Operand { return Operand{Kind: OperandRegMem, Mem: m} }

// NewOperandRegOrMem picks OperandReg or OperandRegMem uniformly,
// matching the register-or-memory variant.
func NewOperandRegOrMem(v regalloc.VReg, m *Amode) Operand {
	if m != nil {
		return Operand{Kind: OperandRegMem, Mem: *m}
	}
	return Operand{Kind: OperandReg, Reg: v}
}

// NewOperandImm32 constructs an immediate operand (register-or-memory-or-
// immediate variant, immediate case).
func NewOperandImm32(v uint32) Operand { return Operand{Kind: OperandRegMemImm, Imm32: v} }

// NewOperandImm8OrReg constructs the 8-bit-immediate-or-register variant
// used by shift/rotate counts.
func NewOperandImm8OrReg(v regalloc.VReg, imm8 *byte) Operand {
	if imm8 != nil {
		return Operand{Kind: OperandImm8Reg, Imm32: uint32(*imm8)}
	}
	return Operand{Kind: OperandImm8Reg, Reg: v}
}

// Collect reports to coll which registers this operand uses (and, for the
// memory variants, the base/index registers of its addressing mode),
// so the external register allocator can discover them without the
// emitter knowing the final physical assignment.
func (o Operand) Collect(coll regalloc.OperandCollector) {
	switch o.Kind {
	case OperandReg:
		coll.Use(o.Reg)
	case OperandRegMem:
		o.Mem.collect(coll)
	case OperandImm8Reg:
		if o.Reg != regalloc.VRegInvalid {
			coll.Use(o.Reg)
		}
	}
}

func (a Amode) collect(coll regalloc.OperandCollector) {
	switch a.Kind {
	case AmodeImmReg:
		coll.Use(a.Base)
	case AmodeImmRegRegShift:
		coll.Use(a.Base)
		coll.Use(a.Index)
	}
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandReg:
		return formatReg(o.Reg, true)
	case OperandRegMem:
		return o.Mem.String()
	case OperandRegMemImm:
		return fmt.Sprintf("$%d", int32(o.Imm32))
	case OperandImm8Reg:
		if o.Reg != regalloc.VRegInvalid {
			return formatReg(o.Reg, true)
		}
		return fmt.Sprintf("$%d", o.Imm32)
	default:
		return "invalid operand"
	}
}
