package amd64

import (
	"fmt"
	"strings"

	"github.com/nativewasm/corewasm/mach"
	"github.com/nativewasm/corewasm/regalloc"
)

// Kind is the tag of the Instruction sum type: one flattened struct
// carrying whichever of op1/op2/u1/u2/b1/targets the current Kind
// interprets, rather than one Go type per variant.
type Kind byte

const (
	KindNop Kind = iota
	KindRet
	KindImm
	KindAluRmiR
	KindMovRR
	KindMovzxRmR
	KindMovsxRmR
	KindMov64MR
	KindMovRM
	KindLea
	KindNot
	KindNeg
	KindDiv
	KindMulHi
	KindImul3
	KindSignExtendData
	KindShiftR
	KindCmpRmiR
	KindSetcc
	KindCmove
	KindPush64
	KindPop64
	KindXmmRmR
	KindXmmUnaryRmR
	KindXmmMovRM
	KindXmmToGpr
	KindGprToXmm
	KindXmmCmpRmR
	KindJmpKnown
	KindJmpIf
	KindJmpCond // two-sided: targets[0] = taken, targets[1] = fallthrough, used pre-branch-fold
	KindJmpUnknown
	KindCallKnown
	KindCallIndirect
	KindTrap
	KindCheckedDivOrRemSeq
	KindCvtUint64ToFloatSeq
	KindCvtFloatToUintSeq
	KindJmpTableSeq
	KindStackProbeLoop
	KindTLSAddrSeq
	KindXchg
	KindLockCmpxchg
	KindFence
	KindRepMovsb
)

// AluOp names the arithmetic/logic opcode family an AluRmiR instruction
// performs.
type AluOp byte

const (
	AluAdd AluOp = iota
	AluSub
	AluAnd
	AluOr
	AluXor
	AluAdc
	AluSbb
)

func (o AluOp) String() string {
	return [...]string{"add", "sub", "and", "or", "xor", "adc", "sbb"}[o]
}

// ShiftOp names the shift/rotate family.
type ShiftOp byte

const (
	ShiftShl ShiftOp = iota
	ShiftShr
	ShiftSar
	ShiftRol
	ShiftRor
)

func (o ShiftOp) String() string {
	return [...]string{"shl", "shr", "sar", "rol", "ror"}[o]
}

// SseOp names the SSE/SSE2 scalar and packed opcode family used by
// XmmRmR/XmmUnaryRmR/XmmMovRM.
type SseOp byte

const (
	SseAddSS SseOp = iota
	SseAddSD
	SseSubSS
	SseSubSD
	SseMulSS
	SseMulSD
	SseDivSS
	SseDivSD
	SseSqrtSS
	SseSqrtSD
	SseAndPS
	SseOrPS
	SseXorPS
	SseMovSS
	SseMovSD
	SseMovAPS
	SseMovUPS
	SseCvtSS2SD
	SseCvtSD2SS
	SseCvtSI2SS
	SseCvtSI2SD
	SseCvtTSS2SI
	SseCvtTSD2SI
	SseComISS
	SseComISD
	SsePXor
	SseMinSS
	SseMinSD
	SseMaxSS
	SseMaxSD
)

func (o SseOp) String() string {
	names := [...]string{
		"addss", "addsd", "subss", "subsd", "mulss", "mulsd", "divss", "divsd",
		"sqrtss", "sqrtsd", "andps", "orps", "xorps", "movss", "movsd", "movaps",
		"movups", "cvtss2sd", "cvtsd2ss", "cvtsi2ss", "cvtsi2sd", "cvttss2si",
		"cvttsd2si", "comiss", "comisd", "pxor", "minss", "minsd", "maxss", "maxsd",
	}
	return names[o]
}

// CC is a condition code for Jcc/Setcc/Cmovcc.
type CC byte

const (
	CCO CC = iota
	CCNO
	CCB
	CCNB
	CCZ
	CCNZ
	CCBE
	CCNBE
	CCS
	CCNS
	CCP
	CCNP
	CCL
	CCNL
	CCLE
	CCNLE
)

func (c CC) String() string {
	return [...]string{"o", "no", "b", "nb", "z", "nz", "be", "nbe", "s", "ns", "p", "np", "l", "nl", "le", "nle"}[c]
}

// TLSVariant selects the thread-local-storage address-of sequence:
// ELF general-dynamic, Mach-O, or COFF.
type TLSVariant byte

const (
	TLSVariantELFGD TLSVariant = iota
	TLSVariantMachO
	TLSVariantCOFF
)

// Instruction is the flattened sum type for every machine instruction or
// pseudo-instruction ("super-instruction") in a function body.
type Instruction struct {
	Kind Kind

	Op1, Op2 Operand
	U1, U2   uint64
	B1       bool

	// Targets carries label IDs: one for unconditional/known jumps and
	// calls, two for the pre-fold conditional-branch pair (taken,
	// fallthrough). JmpTableSeq keeps its targets in its own struct.
	Targets []uint32

	// Symbol names an external symbol for CallKnown/TLSAddrSeq; the
	// emitter resolves it to a mach.Reloc.
	Symbol string

	// Scratch holds the extra virtual registers of CallKnown/CallIndirect:
	// the argument uses followed by the return defs, with U1 giving the
	// number of uses.
	Scratch []regalloc.VReg

	// TrapCode labels KindTrap. The super-instruction sequences record
	// their own trap codes directly with the code buffer.
	TrapCode mach.TrapCode

	TLSVariant TLSVariant
}

// NewAluRmiR builds an ALU instruction: dst = dst OP src, the
// read-modify-write two-operand x86 form.
func NewAluRmiR(op AluOp, src, dst Operand, wide bool) *Instruction {
	return &Instruction{Kind: KindAluRmiR, Op1: src, Op2: dst, U1: uint64(op), B1: wide}
}

// NewMovRR builds a register-to-register move.
func NewMovRR(src, dst regalloc.VReg, wide bool) *Instruction {
	return &Instruction{
		Kind: KindMovRR,
		Op1:  Operand{Kind: OperandReg, Reg: src},
		Op2:  Operand{Kind: OperandReg, Reg: dst},
		B1:   wide,
	}
}

// NewImm builds a move-immediate; wide selects movabsq (64-bit) vs movl.
func NewImm(v uint64, dst regalloc.VReg, wide bool) *Instruction {
	return &Instruction{Kind: KindImm, Op2: Operand{Kind: OperandReg, Reg: dst}, U1: v, B1: wide}
}

// NewLoad builds a sized load from mem into dst; size is 1/2/4/8 bytes
// and signed selects movzx vs movsx for sub-register widths.
func NewLoad(mem Amode, dst regalloc.VReg, size byte, signed bool) *Instruction {
	k := KindMovzxRmR
	if signed {
		k = KindMovsxRmR
	}
	if size == 8 {
		k = KindMov64MR
	}
	return &Instruction{
		Kind: k,
		Op1:  NewOperandMem(mem),
		Op2:  Operand{Kind: OperandReg, Reg: dst},
		U1:   extModeFor(size, signed),
	}
}

func extModeFor(size byte, signed bool) uint64 {
	return uint64(size)<<1 | boolToU64(signed)
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// NewStore builds a sized store of src into mem.
func NewStore(src regalloc.VReg, mem Amode, size byte) *Instruction {
	return &Instruction{
		Kind: KindMovRM,
		Op1:  Operand{Kind: OperandReg, Reg: src},
		Op2:  NewOperandMem(mem),
		U1:   uint64(size),
	}
}

// NewLea builds a load-effective-address.
func NewLea(mem Amode, dst regalloc.VReg) *Instruction {
	return &Instruction{Kind: KindLea, Op1: NewOperandMem(mem), Op2: Operand{Kind: OperandReg, Reg: dst}}
}

// NewShiftR builds a shift/rotate; amount is either an 8-bit immediate or
// CL, represented via NewOperandImm8OrReg.
func NewShiftR(op ShiftOp, amount Operand, dst regalloc.VReg, wide bool) *Instruction {
	return &Instruction{Kind: KindShiftR, Op1: amount, Op2: Operand{Kind: OperandReg, Reg: dst}, U1: uint64(op), B1: wide}
}

// NewCmpRmiR builds cmp (isTest=false) or test (isTest=true).
func NewCmpRmiR(src, against Operand, wide, isTest bool) *Instruction {
	u1 := uint64(1)
	if isTest {
		u1 = 0
	}
	return &Instruction{Kind: KindCmpRmiR, Op1: src, Op2: against, U1: u1, B1: wide}
}

// NewSetcc builds a byte-set-on-condition.
func NewSetcc(cc CC, dst regalloc.VReg) *Instruction {
	return &Instruction{Kind: KindSetcc, Op2: Operand{Kind: OperandReg, Reg: dst}, U1: uint64(cc)}
}

// NewCmove builds a conditional move.
func NewCmove(cc CC, src, dst Operand, wide bool) *Instruction {
	return &Instruction{Kind: KindCmove, Op1: src, Op2: dst, U1: uint64(cc), B1: wide}
}

// NewImul3 builds the three-operand imul dst, src, imm32 form.
func NewImul3(src Operand, imm uint32, dst regalloc.VReg) *Instruction {
	return &Instruction{Kind: KindImul3, Op1: src, Op2: Operand{Kind: OperandReg, Reg: dst}, U1: uint64(imm)}
}

// NewDiv builds a one-operand div/idiv consuming RDX:RAX.
func NewDiv(divisor Operand, signed, wide bool) *Instruction {
	u1 := uint64(0)
	if signed {
		u1 = 1
	}
	return &Instruction{Kind: KindDiv, Op1: divisor, U1: u1, B1: wide}
}

// NewXmmRmR builds a binary SSE instruction: dst = dst OP src.
func NewXmmRmR(op SseOp, src, dst Operand) *Instruction {
	return &Instruction{Kind: KindXmmRmR, Op1: src, Op2: dst, U1: uint64(op)}
}

// NewJmpKnown builds an unconditional jump to a resolved label.
func NewJmpKnown(target uint32) *Instruction {
	return &Instruction{Kind: KindJmpKnown, Targets: []uint32{target}}
}

// NewJmpIf builds a conditional jump; the fallthrough path is implicit
// (the next instruction in program order).
func NewJmpIf(cc CC, target uint32) *Instruction {
	return &Instruction{Kind: KindJmpIf, U1: uint64(cc), Targets: []uint32{target}}
}

// NewCallKnown builds a direct call to symbol.
func NewCallKnown(symbol string, argUses, retDefs []regalloc.VReg) *Instruction {
	return &Instruction{Kind: KindCallKnown, Symbol: symbol, Scratch: append(append([]regalloc.VReg{}, argUses...), retDefs...), U1: uint64(len(argUses))}
}

// NewCallIndirect builds an indirect call through a register/memory
// operand. Unlike indirect branches through JmpTableSeq, the call site
// itself is a plain call r/m64.
func NewCallIndirect(target Operand, argUses, retDefs []regalloc.VReg) *Instruction {
	return &Instruction{Kind: KindCallIndirect, Op1: target, Scratch: append(append([]regalloc.VReg{}, argUses...), retDefs...), U1: uint64(len(argUses))}
}

// NewRet builds a return.
func NewRet() *Instruction { return &Instruction{Kind: KindRet} }

// NewTrap builds an unconditional ud2 trap carrying code.
func NewTrap(code mach.TrapCode) *Instruction { return &Instruction{Kind: KindTrap, TrapCode: code} }

// NewSignExtendData builds the cdq/cqo instruction that sign-extends RAX
// into RDX:RAX (wide selects cqo over cdq), the fall-through every
// checked-division sequence needs before idiv.
func NewSignExtendData(wide bool) *Instruction {
	return &Instruction{Kind: KindSignExtendData, B1: wide}
}

// NewCheckedDivOrRemSeq builds a super-instruction that guards division: a
// div/idiv guarded by an explicit zero-check (trapping
// TrapIntegerDivisionByZero) and, for signed division, an
// INT_MIN/-1-overflow check (trapping TrapIntegerOverflow) that a bare
// idiv would instead fault the process on.
type CheckedDivOrRemSeq struct {
	Signed     bool
	IsRem      bool
	Wide       bool
	Divisor    regalloc.VReg
	DividendLo regalloc.VReg // RAX in/out
	DividendHi regalloc.VReg // RDX in/out
	Dst        regalloc.VReg
	// Tmp holds the INT_MIN comparison value during the signed-overflow
	// check so DividendLo itself is never clobbered before the div.
	Tmp regalloc.VReg
}

func (s *CheckedDivOrRemSeq) String() string {
	op := "div"
	if s.Signed {
		op = "idiv"
	}
	if s.IsRem {
		op += "-rem"
	}
	return fmt.Sprintf("checked_%s_seq %s, %s -> %s", op, s.DividendLo, s.Divisor, s.Dst)
}

// CvtUint64ToFloatSeq builds a super-instruction for
// converting an unsigned 64-bit integer to a float: x86 only has a
// signed int-to-float conversion, so values with the sign bit set are
// halved (with the lost bit folded back in via an OR before conversion)
// before cvtsi2sd/ss, then the result is doubled.
type CvtUint64ToFloatSeq struct {
	Dst64   bool // f64 result if true, f32 if false
	Src     regalloc.VReg
	Dst     regalloc.VReg
	TmpGpr1 regalloc.VReg
	TmpGpr2 regalloc.VReg
}

func (s *CvtUint64ToFloatSeq) String() string {
	return fmt.Sprintf("cvt_u64_to_float_seq %s -> %s", s.Src, s.Dst)
}

// CvtFloatToUintSeq builds a super-instruction for
// converting a float to an unsigned (or out-of-range signed) integer:
// cvttss2si/cvttsd2si only ever produce a signed result or the
// "integer indefinite" sentinel on overflow, so this sequence
// range-checks the source against the destination width first and
// traps TrapBadConversionToInteger/TrapIntegerOverflow explicitly
// rather than silently returning the sentinel, and on the saturating
// path instead clamps to the min/max representable value.
type CvtFloatToUintSeq struct {
	Src64      bool
	Dst64      bool
	Signed     bool
	Saturating bool
	Src        regalloc.VReg
	Dst        regalloc.VReg
	TmpGpr     regalloc.VReg
	TmpXmm     regalloc.VReg
}

func (s *CvtFloatToUintSeq) String() string {
	return fmt.Sprintf("cvt_float_to_uint_seq(saturating=%v) %s -> %s", s.Saturating, s.Src, s.Dst)
}

// JmpTableSeq is a Spectre-mitigated indirect-branch super-instruction:
// the index is range-checked and clamped (rather than trusted) before
// the table lookup, so a misspeculated out-of-range index cannot steer
// a transient load past the table's bounds.
type JmpTableSeq struct {
	Index      regalloc.VReg
	TmpGpr1    regalloc.VReg
	TmpGpr2    regalloc.VReg
	DefaultIdx uint32
	Targets    []uint32 // table entries, in order; default is Targets[len-1]
}

func (s *JmpTableSeq) String() string {
	return fmt.Sprintf("jmp_table_seq %s [%d entries]", s.Index, len(s.Targets))
}

// StackProbeLoop is a super-instruction for guarding a
// large stack allocation against skipping over the guard page: it walks
// the to-be-allocated region one page at a time, touching each page so
// the kernel's guard-page fault (rather than silent corruption of
// whatever lives past the stack) fires if the thread is out of stack.
type StackProbeLoop struct {
	FrameSize int64
	TmpGpr    regalloc.VReg
}

func (s *StackProbeLoop) String() string {
	return fmt.Sprintf("stack_probe_loop frame_size=%d", s.FrameSize)
}

// TLSAddrSeq is a super-instruction for computing the
// address of a thread-local variable, one of three forms depending on
// the target object format.
type TLSAddrSeq struct {
	Variant TLSVariant
	Symbol  string
	Dst     regalloc.VReg
}

func (s *TLSAddrSeq) String() string {
	variant := [...]string{"elf-gd", "macho", "coff"}[s.Variant]
	return fmt.Sprintf("tls_addr_seq[%s] %s -> %s", variant, s.Symbol, s.Dst)
}

// String implements regalloc.Instr (via fmt.Stringer) for Instruction
// with a switch-on-kind disassembly.
func (i *Instruction) String() string {
	w := func(b bool, wide, narrow string) string {
		if b {
			return wide
		}
		return narrow
	}
	switch i.Kind {
	case KindNop:
		return "nop"
	case KindRet:
		return "ret"
	case KindImm:
		return fmt.Sprintf("%s $%d, %s", w(i.B1, "movabsq", "movl"), i.U1, i.Op2)
	case KindAluRmiR:
		return fmt.Sprintf("%s %s, %s", AluOp(i.U1), i.Op1, i.Op2)
	case KindMovRR:
		return fmt.Sprintf("%s %s, %s", w(i.B1, "movq", "movl"), i.Op1, i.Op2)
	case KindMovzxRmR:
		return fmt.Sprintf("movzx %s, %s", i.Op1, i.Op2)
	case KindMovsxRmR:
		return fmt.Sprintf("movsx %s, %s", i.Op1, i.Op2)
	case KindMov64MR:
		return fmt.Sprintf("movq %s, %s", i.Op1, i.Op2)
	case KindMovRM:
		return fmt.Sprintf("mov.%d %s, %s", i.U1, i.Op1, i.Op2)
	case KindLea:
		return fmt.Sprintf("lea %s, %s", i.Op1, i.Op2)
	case KindNot:
		return fmt.Sprintf("%s %s", w(i.B1, "notq", "notl"), i.Op1)
	case KindNeg:
		return fmt.Sprintf("%s %s", w(i.B1, "negq", "negl"), i.Op1)
	case KindDiv:
		prefix := ""
		if i.U1 != 0 {
			prefix = "i"
		}
		return fmt.Sprintf("%sdiv%s %s", prefix, w(i.B1, "q", "l"), i.Op1)
	case KindMulHi:
		return fmt.Sprintf("mul%s %s", w(i.B1, "q", "l"), i.Op1)
	case KindImul3:
		return fmt.Sprintf("imul3 %s, %s, $%d", i.Op1, i.Op2, i.U1)
	case KindSignExtendData:
		return w(i.B1, "cqo", "cdq")
	case KindShiftR:
		return fmt.Sprintf("%s%s %s, %s", ShiftOp(i.U1), w(i.B1, "q", "l"), i.Op1, i.Op2)
	case KindCmpRmiR:
		op := "cmp"
		if i.U1 == 0 {
			op = "test"
		}
		return fmt.Sprintf("%s%s %s, %s", op, w(i.B1, "q", "l"), i.Op1, i.Op2)
	case KindSetcc:
		return fmt.Sprintf("set%s %s", CC(i.U1), i.Op2)
	case KindCmove:
		return fmt.Sprintf("cmov%s%s %s, %s", CC(i.U1), w(i.B1, "q", "l"), i.Op1, i.Op2)
	case KindPush64:
		return fmt.Sprintf("pushq %s", i.Op1)
	case KindPop64:
		return fmt.Sprintf("popq %s", i.Op1)
	case KindXmmRmR:
		return fmt.Sprintf("%s %s, %s", SseOp(i.U1), i.Op1, i.Op2)
	case KindXmmUnaryRmR:
		return fmt.Sprintf("%s %s, %s", SseOp(i.U1), i.Op1, i.Op2)
	case KindXmmMovRM:
		return fmt.Sprintf("%s %s, %s", SseOp(i.U1), i.Op1, i.Op2)
	case KindXmmToGpr, KindGprToXmm:
		return fmt.Sprintf("%s %s, %s", SseOp(i.U1), i.Op1, i.Op2)
	case KindXmmCmpRmR:
		return fmt.Sprintf("%s %s, %s", SseOp(i.U1), i.Op1, i.Op2)
	case KindJmpKnown:
		return fmt.Sprintf("jmp label%d", i.Targets[0])
	case KindJmpIf:
		return fmt.Sprintf("j%s label%d", CC(i.U1), i.Targets[0])
	case KindJmpUnknown:
		return fmt.Sprintf("jmp *%s", i.Op1)
	case KindCallKnown:
		return fmt.Sprintf("call %s", i.Symbol)
	case KindCallIndirect:
		return fmt.Sprintf("call *%s", i.Op1)
	case KindTrap:
		return fmt.Sprintf("ud2 ;; %s", i.TrapCode)
	case KindXchg:
		return fmt.Sprintf("xchg %s, %s", i.Op1, i.Op2)
	case KindLockCmpxchg:
		return fmt.Sprintf("lock cmpxchg %s, %s", i.Op1, i.Op2)
	case KindFence:
		return "mfence"
	case KindRepMovsb:
		return "rep movsb"
	default:
		return "<sequence>"
	}
}

// Defs implements regalloc.Instr.
func (i *Instruction) Defs() []regalloc.VReg {
	switch i.Kind {
	case KindImm, KindMovRR, KindMovzxRmR, KindMovsxRmR, KindMov64MR, KindLea,
		KindAluRmiR, KindShiftR, KindCmove, KindXmmRmR, KindXmmUnaryRmR, KindXmmToGpr,
		KindGprToXmm, KindImul3:
		if i.Op2.Kind == OperandReg {
			return []regalloc.VReg{i.Op2.Reg}
		}
	case KindSetcc:
		return []regalloc.VReg{i.Op2.Reg}
	case KindNot, KindNeg:
		if i.Op1.Kind == OperandReg {
			return []regalloc.VReg{i.Op1.Reg}
		}
	case KindCallKnown, KindCallIndirect:
		return i.Scratch[i.U1:]
	}
	return nil
}

// Uses implements regalloc.Instr.
func (i *Instruction) Uses() []regalloc.VReg {
	var out []regalloc.VReg
	collect := func(o Operand) {
		switch o.Kind {
		case OperandReg:
			out = append(out, o.Reg)
		case OperandRegMem:
			switch o.Mem.Kind {
			case AmodeImmReg:
				out = append(out, o.Mem.Base)
			case AmodeImmRegRegShift:
				out = append(out, o.Mem.Base, o.Mem.Index)
			}
		case OperandImm8Reg:
			if o.Reg != regalloc.VRegInvalid {
				out = append(out, o.Reg)
			}
		}
	}
	switch i.Kind {
	case KindAluRmiR, KindCmpRmiR, KindShiftR, KindCmove, KindXmmRmR, KindXmmCmpRmR:
		collect(i.Op1)
		collect(i.Op2)
	case KindMovRR, KindMovzxRmR, KindMovsxRmR, KindMov64MR, KindLea, KindXmmUnaryRmR,
		KindXmmToGpr, KindGprToXmm, KindImul3:
		collect(i.Op1)
	case KindMovRM, KindXmmMovRM:
		collect(i.Op1)
		collect(i.Op2)
	case KindNot, KindNeg, KindDiv, KindMulHi, KindPush64:
		collect(i.Op1)
	case KindJmpUnknown, KindCallIndirect:
		collect(i.Op1)
	case KindCallKnown:
		out = append(out, i.Scratch[:i.U1]...)
	case KindXchg, KindLockCmpxchg:
		collect(i.Op1)
		collect(i.Op2)
	}
	return out
}

// AssignUses implements regalloc.Instr: it overwrites the register
// fields Uses() reported, in the same order, with their allocated
// RealReg-bearing counterparts.
func (i *Instruction) AssignUses(assigned []regalloc.VReg) {
	idx := 0
	next := func() regalloc.VReg { v := assigned[idx]; idx++; return v }
	assign := func(o *Operand) {
		switch o.Kind {
		case OperandReg:
			o.Reg = next()
		case OperandRegMem:
			switch o.Mem.Kind {
			case AmodeImmReg:
				o.Mem.Base = next()
			case AmodeImmRegRegShift:
				o.Mem.Base = next()
				o.Mem.Index = next()
			}
		case OperandImm8Reg:
			if o.Reg != regalloc.VRegInvalid {
				o.Reg = next()
			}
		}
	}
	switch i.Kind {
	case KindAluRmiR, KindCmpRmiR, KindShiftR, KindCmove, KindXmmRmR, KindXmmCmpRmR:
		assign(&i.Op1)
		assign(&i.Op2)
	case KindMovRR, KindMovzxRmR, KindMovsxRmR, KindMov64MR, KindLea, KindXmmUnaryRmR,
		KindXmmToGpr, KindGprToXmm, KindImul3:
		assign(&i.Op1)
	case KindMovRM, KindXmmMovRM:
		assign(&i.Op1)
		assign(&i.Op2)
	case KindNot, KindNeg, KindDiv, KindMulHi, KindPush64:
		assign(&i.Op1)
	case KindJmpUnknown, KindCallIndirect:
		assign(&i.Op1)
	case KindCallKnown:
		for j := range i.Scratch[:i.U1] {
			i.Scratch[j] = next()
		}
	case KindXchg, KindLockCmpxchg:
		assign(&i.Op1)
		assign(&i.Op2)
	}
}

// AssignDef implements regalloc.Instr.
func (i *Instruction) AssignDef(v regalloc.VReg) {
	switch i.Kind {
	case KindImm, KindMovRR, KindMovzxRmR, KindMovsxRmR, KindMov64MR, KindLea,
		KindAluRmiR, KindShiftR, KindCmove, KindXmmRmR, KindXmmUnaryRmR, KindXmmToGpr,
		KindGprToXmm, KindImul3, KindSetcc:
		i.Op2.Reg = v
	case KindNot, KindNeg:
		i.Op1.Reg = v
	}
}

// IsCopy implements regalloc.Instr: true for a bare register-to-register
// move the coalescer may elide.
func (i *Instruction) IsCopy() bool {
	return i.Kind == KindMovRR && i.Op1.Kind == OperandReg
}

// IsCall implements regalloc.Instr.
func (i *Instruction) IsCall() bool { return i.Kind == KindCallKnown }

// IsIndirectCall implements regalloc.Instr.
func (i *Instruction) IsIndirectCall() bool { return i.Kind == KindCallIndirect }

// IsReturn implements regalloc.Instr.
func (i *Instruction) IsReturn() bool { return i.Kind == KindRet }

// FormatSequence renders a block of instructions one per line, for use
// in disassembly-dump test fixtures.
func FormatSequence(instrs []*Instruction) string {
	var b strings.Builder
	for _, ins := range instrs {
		b.WriteString(ins.String())
		b.WriteByte('\n')
	}
	return b.String()
}
