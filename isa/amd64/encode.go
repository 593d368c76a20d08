package amd64

import (
	"fmt"
	"math"

	"github.com/nativewasm/corewasm/mach"
	"github.com/nativewasm/corewasm/regalloc"
)

// regEnc is a 3-bit ModRM/SIB register encoding plus the REX extension
// bit, split so the REX byte can be assembled independently of ModRM/SIB.
type regEnc byte

func encOf(r regalloc.RealReg) regEnc { return regEnc(r) }

func (r regEnc) bits() byte  { return byte(r) & 0x7 }
func (r regEnc) rexBit() byte { return byte(r) >> 3 }

func modRM(mod, reg, rm byte) byte { return mod<<6 | reg<<3 | rm }
func sib(shift, index, base byte) byte { return shift<<6 | index<<3 | base }

const (
	modIndirect0    = 0b00
	modIndirectDisp8 = 0b01
	modIndirectDisp32 = 0b10
	modDirect       = 0b11

	sibUseIndex = 4 // SIB-follows marker in the rm field, also rsp's encoding
)

// rex computes a REX prefix byte, or 0 if none is required and force is
// false. w selects REX.W (64-bit operand size).
func rex(w bool, r, x, b regEnc, force bool) (byte, bool) {
	var wBit, rBit, xBit, bBit byte
	if w {
		wBit = 1
	}
	rBit, xBit, bBit = r.rexBit(), x.rexBit(), b.rexBit()
	v := byte(0x40) | wBit<<3 | rBit<<2 | xBit<<1 | bBit
	if v != 0x40 || force {
		return v, true
	}
	return 0, false
}

// Encoder accumulates encoded bytes and fixup metadata for one function
// body into buf, resolving Amode.AmodeNominalSPOffset/AmodeConstantOffset
// synthetic addressing modes as it goes.
type Encoder struct {
	buf          *mach.CodeBuffer
	nominalSPOff int32
	labelOf      func(blockOrTarget uint32) mach.Label
}

// NewEncoder constructs an Encoder writing into buf. labelOf maps the
// Instruction.Targets block/table indices used during lowering to the
// mach.Label the buffer fixup machinery understands; callers that have
// already converted targets to mach.Label-compatible uint32s may pass
// the identity function.
func NewEncoder(buf *mach.CodeBuffer, labelOf func(uint32) mach.Label) *Encoder {
	return &Encoder{buf: buf, labelOf: labelOf}
}

// SetNominalSPOffset updates the virtual-SP origin AmodeNominalSPOffset
// is relative to; the prologue/epilogue lowering calls this as it adjusts
// RSP so mid-function loads/stores keep addressing the right slot.
func (e *Encoder) SetNominalSPOffset(off int32) { e.nominalSPOff = off }

func (e *Encoder) resolveAmode(a Amode) Amode {
	switch a.Kind {
	case AmodeNominalSPOffset:
		return Amode{Kind: AmodeImmReg, Disp: e.nominalSPOff + a.Off, Base: regalloc.FromRealReg(RSP, regalloc.RegClassInt)}
	case AmodeConstantOffset:
		return Amode{Kind: AmodeRipRelative, Label: a.Label}
	default:
		return a
	}
}

// Encode appends the machine code for a single instruction to the
// buffer, recording any relocation, trap site, or label fixup it needs.
func (e *Encoder) Encode(ins *Instruction) error {
	return e.encodeOne(ins)
}

// EncodeSequence lowers one of the named super-instructions
// into concrete Instructions and encodes each in turn. Callers reach this
// through EncodeAny when the value in hand isn't a plain *Instruction.
func (e *Encoder) EncodeSequence(seq interface{}) error {
	switch s := seq.(type) {
	case *CheckedDivOrRemSeq:
		return e.encodeCheckedDivOrRemSeq(s)
	case *CvtUint64ToFloatSeq:
		return e.encodeCvtUint64ToFloatSeq(s)
	case *CvtFloatToUintSeq:
		return e.encodeCvtFloatToUintSeq(s)
	case *JmpTableSeq:
		return e.encodeJmpTableSeq(s)
	case *StackProbeLoop:
		return e.encodeStackProbeLoop(s)
	case *TLSAddrSeq:
		return e.encodeTLSAddrSeq(s)
	default:
		return fmt.Errorf("amd64: unknown sequence type %T", seq)
	}
}

func (e *Encoder) b(v byte)         { e.buf.EmitByte(v) }
func (e *Encoder) imm32(v uint32)   { e.buf.Emit32LE(v) }
func (e *Encoder) imm64(v uint64)   { e.buf.Emit64LE(v) }

func (e *Encoder) encodeOne(i *Instruction) error {
	switch i.Kind {
	case KindNop:
		e.b(0x90)
	case KindRet:
		e.b(0xC3)
	case KindImm:
		return e.encodeImm(i)
	case KindAluRmiR:
		return e.encodeAluRmiR(i)
	case KindMovRR:
		return e.encodeMovRR(i)
	case KindMovzxRmR, KindMovsxRmR:
		return e.encodeExtend(i)
	case KindMov64MR:
		return e.encodeLoadStore(i, 8, true)
	case KindMovRM:
		return e.encodeLoadStore(i, byte(i.U1), false)
	case KindLea:
		return e.encodeLea(i)
	case KindNot:
		return e.encodeUnaryF7(i, 2)
	case KindNeg:
		return e.encodeUnaryF7(i, 3)
	case KindDiv:
		opExt := byte(6)
		if i.U1 != 0 {
			opExt = 7
		}
		return e.encodeUnaryF7(&Instruction{Op1: i.Op1, B1: i.B1}, opExt)
	case KindMulHi:
		return e.encodeUnaryF7(&Instruction{Op1: i.Op1, B1: i.B1}, 4)
	case KindImul3:
		return e.encodeImul3(i)
	case KindShiftR:
		return e.encodeShift(i)
	case KindCmpRmiR:
		return e.encodeCmp(i)
	case KindSetcc:
		return e.encodeSetcc(i)
	case KindCmove:
		return e.encodeCmov(i)
	case KindPush64:
		return e.encodePushPop(i, true)
	case KindPop64:
		return e.encodePushPop(i, false)
	case KindXmmRmR, KindXmmUnaryRmR, KindXmmMovRM, KindXmmToGpr, KindGprToXmm, KindXmmCmpRmR:
		return e.encodeSSE(i)
	case KindJmpKnown:
		return e.encodeJmp(i.Targets[0])
	case KindJmpIf:
		return e.encodeJcc(CC(i.U1), i.Targets[0])
	case KindJmpUnknown:
		return e.encodeIndirectJmp(i)
	case KindCallKnown:
		e.buf.RecordReloc(mach.RelocX86CallPCRel4, i.Symbol, -4)
		e.b(0xE8)
		e.imm32(0)
	case KindCallIndirect:
		return e.encodeIndirectCall(i)
	case KindTrap:
		e.buf.RecordTrap(i.TrapCode)
		e.b(0x0F)
		e.b(0x0B)
	case KindXchg:
		return e.encodeXchg(i)
	case KindLockCmpxchg:
		e.b(0xF0)
		return e.encodeCmpxchg(i)
	case KindFence:
		e.b(0x0F)
		e.b(0xAE)
		e.b(0xF0)
	case KindRepMovsb:
		e.b(0xF3)
		e.b(0xA4)
	case KindSignExtendData:
		if i.B1 {
			e.b(0x48) // REX.W
		}
		e.b(0x99) // cqo / cdq
	default:
		return fmt.Errorf("amd64: Kind %d must go through EncodeSequence", i.Kind)
	}
	return nil
}

func realOf(o Operand) regalloc.RealReg {
	if !o.Reg.IsRealReg() {
		panic("BUG: operand not yet register-allocated")
	}
	return o.Reg.RealReg()
}

// emitModRMReg emits REX+opcode+ModRM for a register-direct operand pair
// (two-operand read-modify-write and similar forms), mirroring
// encodeRegReg.
func (e *Encoder) emitModRMReg(w bool, opcodes []byte, r, rm regalloc.RealReg, force bool) {
	encR, encRM := encOf(r), encOf(rm)
	if b, ok := rex(w, encR, 0, encRM, force || lowByteNeedsRex(rm) || lowByteNeedsRex(r)); ok {
		e.b(b)
	}
	for _, op := range opcodes {
		e.b(op)
	}
	e.b(modRM(modDirect, encR.bits(), encRM.bits()))
}

// emitModRMMem emits REX+opcode+ModRM[+SIB][+disp] addressing amode,
// mirroring encodeRegMem.
func (e *Encoder) emitModRMMem(w bool, opcodes []byte, r regalloc.RealReg, amode Amode, force bool) {
	amode = e.resolveAmode(amode)
	encR := encOf(r)
	switch amode.Kind {
	case AmodeImmReg:
		base := amode.Base.RealReg()
		encBase := encOf(base)
		if b, ok := rex(w, encR, 0, encBase, force); ok {
			e.b(b)
		}
		for _, op := range opcodes {
			e.b(op)
		}
		immZero := amode.Disp == 0
		baseRbpOrR13 := base == RBP || base == R13
		rspOrR12 := base == RSP || base == R12
		short := amode.Disp >= -128 && amode.Disp <= 127
		switch {
		case immZero && !baseRbpOrR13:
			e.b(modRM(modIndirect0, encR.bits(), encBase.bits()))
			if rspOrR12 {
				e.b(sib(0, 4, 4))
			}
		case short:
			e.b(modRM(modIndirectDisp8, encR.bits(), encBase.bits()))
			if rspOrR12 {
				e.b(sib(0, 4, 4))
			}
			e.b(byte(amode.Disp))
		default:
			e.b(modRM(modIndirectDisp32, encR.bits(), encBase.bits()))
			if rspOrR12 {
				e.b(sib(0, 4, 4))
			}
			e.imm32(uint32(amode.Disp))
		}
	case AmodeImmRegRegShift:
		base, index := amode.Base.RealReg(), amode.Index.RealReg()
		if index == RSP {
			panic("BUG: rsp cannot be used as an index register")
		}
		encBase, encIndex := encOf(base), encOf(index)
		if b, ok := rex(w, encR, encIndex, encBase, force); ok {
			e.b(b)
		}
		for _, op := range opcodes {
			e.b(op)
		}
		immZero := amode.Disp == 0
		baseRbpOrR13 := base == RBP || base == R13
		short := amode.Disp >= -128 && amode.Disp <= 127
		switch {
		case immZero && !baseRbpOrR13:
			e.b(modRM(modIndirect0, encR.bits(), sibUseIndex))
			e.b(sib(amode.Shift, encIndex.bits(), encBase.bits()))
		case short:
			e.b(modRM(modIndirectDisp8, encR.bits(), sibUseIndex))
			e.b(sib(amode.Shift, encIndex.bits(), encBase.bits()))
			e.b(byte(amode.Disp))
		default:
			e.b(modRM(modIndirectDisp32, encR.bits(), sibUseIndex))
			e.b(sib(amode.Shift, encIndex.bits(), encBase.bits()))
			e.imm32(uint32(amode.Disp))
		}
	case AmodeRipRelative:
		if b, ok := rex(w, encR, 0, 0, force); ok {
			e.b(b)
		}
		for _, op := range opcodes {
			e.b(op)
		}
		e.b(modRM(modIndirect0, encR.bits(), 0b101))
		e.buf.RecordFixup(amode.Label, e.buf.Offset(), 4, e.buf.Offset()+4)
		e.imm32(0)
	default:
		panic("BUG: unresolved synthetic amode reached the emitter")
	}
}

func (e *Encoder) encodeImm(i *Instruction) error {
	dst := realOf(i.Op2)
	if i.B1 {
		e.emitRexSingle(true, dst)
		e.b(0xB8 + encOf(dst).bits())
		e.imm64(i.U1)
	} else {
		e.emitRexSingle(false, dst)
		e.b(0xB8 + encOf(dst).bits())
		e.imm32(uint32(i.U1))
	}
	return nil
}

func (e *Encoder) emitRexSingle(w bool, r regalloc.RealReg) {
	if b, ok := rex(w, 0, 0, encOf(r), lowByteNeedsRex(r)); ok {
		e.b(b)
	}
}

var aluOpcodeReg = map[AluOp]byte{
	AluAdd: 0x01, AluSub: 0x29, AluAnd: 0x21, AluOr: 0x09, AluXor: 0x31, AluAdc: 0x11, AluSbb: 0x19,
}

var aluOpcodeExt = map[AluOp]byte{
	AluAdd: 0, AluSub: 5, AluAnd: 4, AluOr: 1, AluXor: 6, AluAdc: 2, AluSbb: 3,
}

func (e *Encoder) encodeAluRmiR(i *Instruction) error {
	op := AluOp(i.U1)
	dst := realOf(i.Op2)
	if i.Op1.Kind == OperandRegMemImm {
		e.emitRexSingle(i.B1, dst)
		e.b(0x81)
		e.b(modRM(modDirect, aluOpcodeExt[op], encOf(dst).bits()))
		e.imm32(i.Op1.Imm32)
		return nil
	}
	if i.Op1.Kind == OperandRegMem {
		e.emitModRMMem(i.B1, []byte{aluOpcodeReg[op] | 0x02}, dst, i.Op1.Mem, false)
		return nil
	}
	src := realOf(i.Op1)
	e.emitModRMReg(i.B1, []byte{aluOpcodeReg[op]}, src, dst, false)
	return nil
}

func (e *Encoder) encodeMovRR(i *Instruction) error {
	src, dst := realOf(i.Op1), realOf(i.Op2)
	e.emitModRMReg(i.B1, []byte{0x89}, src, dst, false)
	return nil
}

func (e *Encoder) encodeExtend(i *Instruction) error {
	dst := realOf(i.Op2)
	size := byte(i.U1 >> 1)
	var op byte
	if i.Kind == KindMovzxRmR {
		op = 0xB6
	} else {
		op = 0xBE
	}
	if size == 2 {
		op++
	}
	if i.Op1.Kind == OperandRegMem {
		e.emitModRMMem(true, []byte{0x0F, op}, dst, i.Op1.Mem, false)
		return nil
	}
	src := realOf(i.Op1)
	e.emitModRMReg(true, []byte{0x0F, op}, dst, src, lowByteNeedsRex(src))
	return nil
}

// encodeLoadStore emits a MovRM (store, src=Op1 reg, dst=Op2 mem) or a
// Mov64MR (load, src=Op1 mem, dst=Op2 reg) form.
func (e *Encoder) encodeLoadStore(i *Instruction, size byte, isLoad bool) error {
	wide := size == 8
	opcode := byte(0x89)
	if size == 1 {
		opcode = 0x88
	}
	var reg Operand
	var mem Operand
	if isLoad {
		opcode |= 0x02
		mem, reg = i.Op1, i.Op2
	} else {
		reg, mem = i.Op1, i.Op2
	}
	if mem.Kind != OperandRegMem {
		return fmt.Errorf("amd64: load/store requires a memory operand")
	}
	r := realOf(reg)
	e.emitModRMMem(wide, []byte{opcode}, r, mem.Mem, size == 1 && lowByteNeedsRex(r))
	return nil
}

// encodeImul3 builds the three-operand imul dst, src, imm32 form.
func (e *Encoder) encodeImul3(i *Instruction) error {
	dst, src := realOf(i.Op2), realOf(i.Op1)
	e.emitModRMReg(true, []byte{0x69}, dst, src, false)
	e.imm32(uint32(i.U1))
	return nil
}

func (e *Encoder) encodeLea(i *Instruction) error {
	dst := realOf(i.Op2)
	e.emitModRMMem(true, []byte{0x8D}, dst, i.Op1.Mem, false)
	return nil
}

func (e *Encoder) encodeUnaryF7(i *Instruction, ext byte) error {
	if i.Op1.Kind == OperandRegMem {
		return fmt.Errorf("amd64: memory-operand div/not/neg not supported by this emitter")
	}
	r := realOf(i.Op1)
	e.emitRexSingle(i.B1, r)
	e.b(0xF7)
	e.b(modRM(modDirect, ext, encOf(r).bits()))
	return nil
}

var shiftOpcodeExt = map[ShiftOp]byte{
	ShiftRol: 0, ShiftRor: 1, ShiftShl: 4, ShiftShr: 5, ShiftSar: 7,
}

func (e *Encoder) encodeShift(i *Instruction) error {
	dst := realOf(i.Op2)
	ext := shiftOpcodeExt[ShiftOp(i.U1)]
	e.emitRexSingle(i.B1, dst)
	if i.Op1.Kind == OperandImm8Reg && i.Op1.Reg == regalloc.VRegInvalid {
		amount := byte(i.Op1.Imm32)
		if amount == 1 {
			e.b(0xD1)
			e.b(modRM(modDirect, ext, encOf(dst).bits()))
			return nil
		}
		e.b(0xC1)
		e.b(modRM(modDirect, ext, encOf(dst).bits()))
		e.b(amount)
		return nil
	}
	// amount in CL
	e.b(0xD3)
	e.b(modRM(modDirect, ext, encOf(dst).bits()))
	return nil
}

func (e *Encoder) encodeCmp(i *Instruction) error {
	isTest := i.U1 == 0
	a, b := realOf(i.Op1), realOf(i.Op2)
	if isTest {
		e.emitModRMReg(i.B1, []byte{0x85}, a, b, false)
		return nil
	}
	e.emitModRMReg(i.B1, []byte{0x39}, a, b, false)
	return nil
}

func (e *Encoder) encodeSetcc(i *Instruction) error {
	dst := realOf(i.Op2)
	e.emitRexSingle(false, dst)
	e.b(0x0F)
	e.b(0x90 + byte(CC(i.U1)))
	e.b(modRM(modDirect, 0, encOf(dst).bits()))
	return nil
}

func (e *Encoder) encodeCmov(i *Instruction) error {
	src, dst := realOf(i.Op1), realOf(i.Op2)
	e.emitModRMReg(i.B1, []byte{0x0F, 0x40 + byte(CC(i.U1))}, dst, src, false)
	return nil
}

func (e *Encoder) encodePushPop(i *Instruction, push bool) error {
	r := realOf(i.Op1)
	if needsRexBit(r) {
		e.b(0x41)
	}
	if push {
		e.b(0x50 + encOf(r).bits())
	} else {
		e.b(0x58 + encOf(r).bits())
	}
	return nil
}

// sseEncoding names the mandatory prefix and two-byte opcode for an SseOp.
type sseEncoding struct {
	prefix byte // 0 = none
	opcode byte
}

var sseEncodings = map[SseOp]sseEncoding{
	SseAddSS: {0xF3, 0x58}, SseAddSD: {0xF2, 0x58},
	SseSubSS: {0xF3, 0x5C}, SseSubSD: {0xF2, 0x5C},
	SseMulSS: {0xF3, 0x59}, SseMulSD: {0xF2, 0x59},
	SseDivSS: {0xF3, 0x5E}, SseDivSD: {0xF2, 0x5E},
	SseSqrtSS: {0xF3, 0x51}, SseSqrtSD: {0xF2, 0x51},
	SseAndPS: {0, 0x54}, SseOrPS: {0, 0x56}, SseXorPS: {0, 0x57},
	SseMovSS: {0xF3, 0x10}, SseMovSD: {0xF2, 0x10},
	SseMovAPS: {0, 0x28}, SseMovUPS: {0, 0x10},
	SseCvtSS2SD: {0xF3, 0x5A}, SseCvtSD2SS: {0xF2, 0x5A},
	SseCvtSI2SS: {0xF3, 0x2A}, SseCvtSI2SD: {0xF2, 0x2A},
	SseCvtTSS2SI: {0xF3, 0x2C}, SseCvtTSD2SI: {0xF2, 0x2C},
	SseComISS: {0, 0x2F}, SseComISD: {0x66, 0x2F},
	SsePXor: {0x66, 0xEF},
	SseMinSS: {0xF3, 0x5D}, SseMinSD: {0xF2, 0x5D},
	SseMaxSS: {0xF3, 0x5F}, SseMaxSD: {0xF2, 0x5F},
}

func (e *Encoder) encodeSSE(i *Instruction) error {
	enc, ok := sseEncodings[SseOp(i.U1)]
	if !ok {
		return fmt.Errorf("amd64: unencoded SseOp %s", SseOp(i.U1))
	}
	if enc.prefix != 0 {
		e.b(enc.prefix)
	}
	switch i.Kind {
	case KindGprToXmm, KindXmmToGpr:
		dst, src := realOf(i.Op2), realOf(i.Op1)
		e.emitModRMReg(i.B1, []byte{0x0F, enc.opcode}, dst, src, false)
	case KindXmmMovRM:
		// store form: opcode+1 swaps the direction bit (movss/movsd
		// xmm/m32, xmm instead of xmm, xmm/m32); Op1 is the source
		// register, Op2 the memory destination.
		src := realOf(i.Op1)
		if i.Op2.Kind != OperandRegMem {
			return fmt.Errorf("amd64: XmmMovRM requires a memory destination")
		}
		e.emitModRMMem(false, []byte{0x0F, enc.opcode + 1}, src, i.Op2.Mem, false)
	default:
		dst := realOf(i.Op2)
		if i.Op1.Kind == OperandRegMem {
			e.emitModRMMem(false, []byte{0x0F, enc.opcode}, dst, i.Op1.Mem, false)
			return nil
		}
		src := realOf(i.Op1)
		e.emitModRMReg(false, []byte{0x0F, enc.opcode}, dst, src, false)
	}
	return nil
}

func (e *Encoder) encodeJmp(target uint32) error {
	e.b(0xE9)
	lbl := e.labelOf(target)
	e.buf.RecordFixup(lbl, e.buf.Offset(), 4, e.buf.Offset()+4)
	e.imm32(0)
	return nil
}

func (e *Encoder) encodeJcc(cc CC, target uint32) error {
	e.b(0x0F)
	e.b(0x80 + byte(cc))
	lbl := e.labelOf(target)
	e.buf.RecordFixup(lbl, e.buf.Offset(), 4, e.buf.Offset()+4)
	e.imm32(0)
	return nil
}

func (e *Encoder) encodeIndirectJmp(i *Instruction) error {
	r := realOf(i.Op1)
	e.emitRexSingle(false, r)
	e.b(0xFF)
	e.b(modRM(modDirect, 4, encOf(r).bits()))
	return nil
}

func (e *Encoder) encodeIndirectCall(i *Instruction) error {
	r := realOf(i.Op1)
	e.emitRexSingle(false, r)
	e.b(0xFF)
	e.b(modRM(modDirect, 2, encOf(r).bits()))
	return nil
}

func (e *Encoder) encodeXchg(i *Instruction) error {
	a, b := realOf(i.Op1), realOf(i.Op2)
	e.emitModRMReg(true, []byte{0x87}, a, b, false)
	return nil
}

func (e *Encoder) encodeCmpxchg(i *Instruction) error {
	a, b := realOf(i.Op1), realOf(i.Op2)
	e.emitModRMReg(true, []byte{0x0F, 0xB1}, a, b, false)
	return nil
}

// emitJmpToLabel emits an unconditional near jmp fixed up to lbl, the same
// rel32 form encodeJmp uses for block targets.
func (e *Encoder) emitJmpToLabel(lbl mach.Label) {
	e.b(0xE9)
	e.buf.RecordFixup(lbl, e.buf.Offset(), 4, e.buf.Offset()+4)
	e.imm32(0)
}

// emitLoadImmGPR mov-immediates v into r, the same B8+rd form encodeImm
// uses.
func (e *Encoder) emitLoadImmGPR(r regalloc.RealReg, wide bool, v uint64) {
	e.emitRexSingle(wide, r)
	e.b(0xB8 + encOf(r).bits())
	if wide {
		e.imm64(v)
	} else {
		e.imm32(uint32(v))
	}
}

// encodeCheckedDivOrRemSeq lowers the div-by-zero / INT_MIN-overflow
// guarded division: compare the divisor to zero and trap
// TrapIntegerDivisionByZero, then (signed only) compare the divisor to -1 —
// short-circuiting a rem to 0 (X % -1 is always 0, never an overflow) or,
// for a div, checking the dividend against INT_MIN and trapping
// TrapIntegerOverflow — before falling through to RDX's sign/zero
// extension and the bare div/idiv.
func (e *Encoder) encodeCheckedDivOrRemSeq(s *CheckedDivOrRemSeq) error {
	divisor := s.Divisor.RealReg()
	doDiv := e.buf.AllocateLabel()
	remByNegOne := s.Signed && s.IsRem
	var end mach.Label
	if remByNegOne {
		end = e.buf.AllocateLabel()
	}

	// test divisor, divisor; jnz do_div; ud2 (TrapIntegerDivisionByZero)
	e.emitModRMReg(s.Wide, []byte{0x85}, divisor, divisor, false)
	e.b(0x0F)
	e.b(0x80 + byte(CCNZ))
	e.buf.RecordFixup(doDiv, e.buf.Offset(), 4, e.buf.Offset()+4)
	e.imm32(0)
	e.buf.RecordTrap(mach.TrapIntegerDivisionByZero)
	e.b(0x0F)
	e.b(0x0B)

	if s.Signed {
		// cmp divisor, -1; jnz do_div — only a divisor of -1 ever needs
		// special-casing; every other divisor is safe to divide by directly.
		e.emitRexSingle(s.Wide, divisor)
		e.b(0x83)
		e.b(modRM(modDirect, 7, encOf(divisor).bits()))
		e.b(0xFF)
		e.b(0x0F)
		e.b(0x80 + byte(CCNZ))
		e.buf.RecordFixup(doDiv, e.buf.Offset(), 4, e.buf.Offset()+4)
		e.imm32(0)

		if s.IsRem {
			// X % -1 == 0 for every X, including INT_MIN: no overflow is
			// possible on the remainder path.
			dst := s.Dst.RealReg()
			e.emitModRMReg(false, []byte{0x31}, dst, dst, false) // xor dst, dst
			e.emitJmpToLabel(end)
		} else {
			// Quotient path: INT_MIN / -1 is the one input pair idiv can't
			// represent; every other dividend divides cleanly by -1.
			lo, tmp := s.DividendLo.RealReg(), s.Tmp.RealReg()
			e.emitLoadImmGPR(tmp, s.Wide, minInt(s.Wide))
			e.emitModRMReg(s.Wide, []byte{0x39}, tmp, lo, false) // cmp lo, tmp
			e.b(0x0F)
			e.b(0x80 + byte(CCNZ))
			e.buf.RecordFixup(doDiv, e.buf.Offset(), 4, e.buf.Offset()+4)
			e.imm32(0)
			e.buf.RecordTrap(mach.TrapIntegerOverflow)
			e.b(0x0F)
			e.b(0x0B)
		}
	}

	e.buf.BindLabel(doDiv)
	if s.Signed {
		// cdq/cqo: sign-extend RAX into RDX:RAX ahead of idiv.
		if err := e.encodeOne(NewSignExtendData(s.Wide)); err != nil {
			return err
		}
	} else {
		// div reads an unsigned dividend from RDX:RAX too; zero RDX rather
		// than dividing against whatever it last held.
		hi := s.DividendHi.RealReg()
		e.emitModRMReg(false, []byte{0x31}, hi, hi, false) // xor hi, hi
	}
	e.emitRexSingle(s.Wide, divisor)
	e.b(0xF7)
	ext := byte(6)
	if s.Signed {
		ext = 7
	}
	e.b(modRM(modDirect, ext, encOf(divisor).bits()))

	if remByNegOne {
		e.buf.BindLabel(end)
	}
	return nil
}

func minInt(wide bool) uint64 {
	if wide {
		return 0x8000000000000000
	}
	return 0x80000000
}

// encodeCvtUint64ToFloatSeq converts a u64 to a float. cvtsi2sd/ss only
// accepts a signed source, so a source with the sign bit set is halved
// first (folding the lost low bit back in with an OR, to round correctly),
// converted, then the result is doubled; a source within the signed range
// converts directly.
func (e *Encoder) encodeCvtUint64ToFloatSeq(s *CvtUint64ToFloatSeq) error {
	src := s.Src.RealReg()
	tmp1, tmp2 := s.TmpGpr1.RealReg(), s.TmpGpr2.RealReg()
	dst := s.Dst.RealReg()

	cvtOp, addOp := SseCvtSI2SD, SseAddSD
	if !s.Dst64 {
		cvtOp, addOp = SseCvtSI2SS, SseAddSS
	}
	cvtEnc, addEnc := sseEncodings[cvtOp], sseEncodings[addOp]

	negative := e.buf.AllocateLabel()
	done := e.buf.AllocateLabel()

	// test src, src; js negative — the sign bit is the only one
	// cvtsi2sd/ss can't round-trip directly.
	e.emitModRMReg(true, []byte{0x85}, src, src, false)
	e.b(0x0F)
	e.b(0x80 + byte(CCS))
	e.buf.RecordFixup(negative, e.buf.Offset(), 4, e.buf.Offset()+4)
	e.imm32(0)

	e.b(cvtEnc.prefix)
	e.emitModRMReg(true, []byte{0x0F, cvtEnc.opcode}, dst, src, false)
	e.emitJmpToLabel(done)

	e.buf.BindLabel(negative)
	e.emitModRMReg(true, []byte{0x89}, src, tmp1, false) // mov tmp1, src
	e.emitModRMReg(true, []byte{0x89}, src, tmp2, false) // mov tmp2, src
	e.emitRexSingle(true, tmp1)
	e.b(0xD1)
	e.b(modRM(modDirect, 5, encOf(tmp1).bits())) // shr tmp1, 1
	e.emitRexSingle(true, tmp2)
	e.b(0x83)
	e.b(modRM(modDirect, 4, encOf(tmp2).bits()))
	e.b(0x01)                                             // and tmp2, 1
	e.emitModRMReg(true, []byte{0x09}, tmp2, tmp1, false) // or tmp1, tmp2
	e.b(cvtEnc.prefix)
	e.emitModRMReg(true, []byte{0x0F, cvtEnc.opcode}, dst, tmp1, false)
	e.b(addEnc.prefix)
	e.emitModRMReg(false, []byte{0x0F, addEnc.opcode}, dst, dst, false) // dst += dst

	e.buf.BindLabel(done)
	return nil
}

// loadFloatConst interns v's bit pattern (as f32 if !wide, f64 if wide)
// into the constant pool and movss/movsd-loads it into dst via a
// RIP-relative fixup, the range-check boundaries
// encodeCvtFloatToUintSeq compares src against.
func (e *Encoder) loadFloatConst(dst regalloc.RealReg, wide bool, v float64) {
	var bytes []byte
	if wide {
		bits := math.Float64bits(v)
		bytes = []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24), byte(bits >> 32), byte(bits >> 40), byte(bits >> 48), byte(bits >> 56)}
	} else {
		bits := math.Float32bits(float32(v))
		bytes = []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
	}
	lbl := e.buf.AddConstant(bytes)
	movOp := SseMovSD
	if !wide {
		movOp = SseMovSS
	}
	enc := sseEncodings[movOp]
	e.b(enc.prefix)
	e.emitModRMMem(false, []byte{0x0F, enc.opcode}, dst, Amode{Kind: AmodeRipRelative, Label: lbl}, false)
}

// encodeCvtFloatToUintSeq range-checks src before truncating: cvttss2si/
// cvttsd2si only ever produce a signed result or the shared "integer
// indefinite" sentinel on NaN/overflow, with no hardware trap to catch at
// this PC, so this sequence detects NaN and the below/above-range regions
// itself via ucomiss/ucomisd-style compares and either traps
// (TrapBadConversionToInteger / TrapIntegerOverflow) or, when Saturating,
// clamps to 0/the representable min/max instead of converting.
func (e *Encoder) encodeCvtFloatToUintSeq(s *CvtFloatToUintSeq) error {
	src, dst, tmpXmm := s.Src.RealReg(), s.Dst.RealReg(), s.TmpXmm.RealReg()

	comiOp := SseComISD
	if !s.Src64 {
		comiOp = SseComISS
	}
	comiEnc := sseEncodings[comiOp]

	var lowVal, highVal float64
	switch {
	case s.Signed && s.Dst64:
		lowVal, highVal = -9223372036854775808.0, 9223372036854775808.0
	case s.Signed:
		lowVal, highVal = -2147483648.0, 2147483648.0
	case s.Dst64:
		lowVal, highVal = 0, 18446744073709551616.0
	default:
		lowVal, highVal = 0, 4294967296.0
	}

	nan := e.buf.AllocateLabel()
	belowRange := e.buf.AllocateLabel()
	aboveRange := e.buf.AllocateLabel()
	done := e.buf.AllocateLabel()

	// comiss/comisd src, src: PF is set only for NaN, which the boundary
	// compares below can't distinguish from a legitimate equal-to-boundary
	// result (both set ZF=PF=CF=1 on an unordered compare).
	if comiEnc.prefix != 0 {
		e.b(comiEnc.prefix)
	}
	e.emitModRMReg(false, []byte{0x0F, comiEnc.opcode}, src, src, false)
	e.b(0x0F)
	e.b(0x8A) // jp nan
	e.buf.RecordFixup(nan, e.buf.Offset(), 4, e.buf.Offset()+4)
	e.imm32(0)

	e.loadFloatConst(tmpXmm, s.Src64, lowVal)
	if comiEnc.prefix != 0 {
		e.b(comiEnc.prefix)
	}
	e.emitModRMReg(false, []byte{0x0F, comiEnc.opcode}, src, tmpXmm, false)
	e.b(0x0F)
	e.b(0x80 + byte(CCB)) // jb below_range
	e.buf.RecordFixup(belowRange, e.buf.Offset(), 4, e.buf.Offset()+4)
	e.imm32(0)

	e.loadFloatConst(tmpXmm, s.Src64, highVal)
	if comiEnc.prefix != 0 {
		e.b(comiEnc.prefix)
	}
	e.emitModRMReg(false, []byte{0x0F, comiEnc.opcode}, src, tmpXmm, false)
	e.b(0x0F)
	e.b(0x80 + byte(CCNB)) // jae above_range
	e.buf.RecordFixup(aboveRange, e.buf.Offset(), 4, e.buf.Offset()+4)
	e.imm32(0)

	// In range: the bare truncating convert is exact here.
	op := SseCvtTSD2SI
	if !s.Src64 {
		op = SseCvtTSS2SI
	}
	enc := sseEncodings[op]
	e.b(enc.prefix)
	e.emitModRMReg(s.Dst64 || !s.Signed, []byte{0x0F, enc.opcode}, dst, src, false)
	e.emitJmpToLabel(done)

	e.buf.BindLabel(nan)
	if s.Saturating {
		e.emitLoadImmGPR(dst, s.Dst64, 0)
		e.emitJmpToLabel(done)
	} else {
		e.buf.RecordTrap(mach.TrapBadConversionToInteger)
		e.b(0x0F)
		e.b(0x0B)
	}

	e.buf.BindLabel(belowRange)
	if s.Saturating {
		var low uint64
		if s.Signed {
			low = minInt(s.Dst64)
		}
		e.emitLoadImmGPR(dst, s.Dst64, low)
		e.emitJmpToLabel(done)
	} else {
		e.buf.RecordTrap(mach.TrapIntegerOverflow)
		e.b(0x0F)
		e.b(0x0B)
	}

	e.buf.BindLabel(aboveRange)
	if s.Saturating {
		var high uint64
		switch {
		case s.Signed && s.Dst64:
			high = 0x7FFFFFFFFFFFFFFF
		case s.Signed:
			high = 0x7FFFFFFF
		case s.Dst64:
			high = 0xFFFFFFFFFFFFFFFF
		default:
			high = 0xFFFFFFFF
		}
		e.emitLoadImmGPR(dst, s.Dst64, high)
	} else {
		e.buf.RecordTrap(mach.TrapIntegerOverflow)
		e.b(0x0F)
		e.b(0x0B)
	}

	e.buf.BindLabel(done)
	return nil
}

// encodeJmpTableSeq clamps the index into [0, len(Targets)-1] before the
// table load, so a misspeculated out-of-range index cannot be used to
// steer a transient read past the table.
func (e *Encoder) encodeJmpTableSeq(s *JmpTableSeq) error {
	idx := s.Index.RealReg()
	tmp1, tmp2 := s.TmpGpr1.RealReg(), s.TmpGpr2.RealReg()
	last := uint32(len(s.Targets) - 1)
	e.emitRexSingle(false, tmp1)
	e.b(0xB8 + encOf(tmp1).bits())
	e.imm32(last)
	e.emitModRMReg(false, []byte{0x39}, tmp1, idx, false)       // cmp idx, tmp1
	e.emitModRMReg(false, []byte{0x0F, 0x40 + byte(CCNBE)}, idx, tmp1, false) // cmova idx, tmp1 (clamp)
	e.emitModRMMem(true, []byte{0x8D}, tmp2, NewAmodeRipRelative(0), false) // lea tmp2, [rip+table]
	idxV := regalloc.FromRealReg(idx, regalloc.RegClassInt)
	tmp2V := regalloc.FromRealReg(tmp2, regalloc.RegClassInt)
	e.emitModRMMem(true, []byte{0x8B}, tmp1, NewAmodeImmRegRegShift(0, tmp2V, idxV, 3), false)
	e.emitModRMReg(true, []byte{0x01}, tmp1, tmp2, false) // add tmp2, tmp1
	e.emitRexSingle(false, tmp2)
	e.b(0xFF)
	e.b(modRM(modDirect, 4, encOf(tmp2).bits()))
	return nil
}

// encodeStackProbeLoop walks the frame one page at a time so a deep
// allocation cannot silently skip over the guard page. FrameSize is a
// parameter rather than the current function's fixed frame size, so the
// same sequence is reusable by alloca-like guest operations.
func (e *Encoder) encodeStackProbeLoop(s *StackProbeLoop) error {
	const pageSize = 4096
	tmp := s.TmpGpr.RealReg()
	e.emitRexSingle(true, tmp)
	e.b(0xB8 + encOf(tmp).bits())
	e.imm64(uint64(s.FrameSize))
	loopStart := e.buf.Offset()
	e.emitModRMMem(true, []byte{0x85}, RSP, NewAmodeImmReg(0, regalloc.FromRealReg(RSP, regalloc.RegClassInt)), false)
	e.emitRexSingle(true, RSP)
	e.b(0x81)
	e.b(modRM(modDirect, 5, encOf(RSP).bits()))
	e.imm32(pageSize)
	e.emitRexSingle(true, tmp)
	e.b(0x81)
	e.b(modRM(modDirect, 5, encOf(tmp).bits()))
	e.imm32(pageSize)
	e.emitModRMReg(true, []byte{0x85}, tmp, tmp, false)
	e.b(0x0F)
	e.b(0x80 + byte(CCNLE)) // jg: loop while bytes remain
	rel := int32(loopStart - (e.buf.Offset() + 4))
	e.imm32(uint32(rel))
	return nil
}

// encodeTLSAddrSeq computes the address of a thread-local variable using
// the relocation sequence appropriate to the target object format: ELF
// general-dynamic via __tls_get_addr, Mach-O via the descriptor-function
// pointer convention. The COFF variant is a single RIP-relative load
// carrying a section-relative (X86SecRel) relocation against the symbol;
// it does not read _tls_index or the thread's TLS array.
func (e *Encoder) encodeTLSAddrSeq(s *TLSAddrSeq) error {
	dst := s.Dst.RealReg()
	switch s.Variant {
	case TLSVariantELFGD:
		e.b(0x66)
		e.emitModRMMem(true, []byte{0x8D}, RDI, NewAmodeRipRelative(0), false)
		e.buf.RecordReloc(mach.RelocElfX86_64TlsGd, s.Symbol, -4)
		e.b(0x66)
		e.b(0x66)
		e.b(0x48)
		e.b(0xE8)
		e.buf.RecordReloc(mach.RelocX86CallPLTRel4, "__tls_get_addr", -4)
		e.imm32(0)
		e.emitModRMReg(true, []byte{0x89}, RAX, dst, false)
	case TLSVariantMachO:
		e.emitModRMMem(true, []byte{0x8B}, RDI, NewAmodeRipRelative(0), false)
		e.buf.RecordReloc(mach.RelocMachOX86_64Tlv, s.Symbol, -4)
		// call *(%rdi), invoking the TLV descriptor thunk; RDX supplies /2.
		e.emitModRMMem(false, []byte{0xFF}, RDX, NewAmodeImmReg(0, regalloc.FromRealReg(RDI, regalloc.RegClassInt)), false)
		e.emitModRMReg(true, []byte{0x89}, RAX, dst, false)
	case TLSVariantCOFF:
		e.emitModRMMem(true, []byte{0x8B}, dst, NewAmodeRipRelative(0), false)
		e.buf.RecordReloc(mach.RelocX86SecRel, s.Symbol, 0)
	}
	return nil
}
