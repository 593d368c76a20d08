// Package amd64 is the x86-64 instruction encoder: the Register/Operand/
// addressing-mode data model for this architecture, the Instruction sum
// type, and the byte-exact emitter, including the composite sequences
// (CheckedDivOrRemSeq, CvtFloatToUintSeq, JmpTableSeq, StackProbeLoop,
// TLS address-of) that lower a single IR op to several machine instructions.
package amd64

import "github.com/nativewasm/corewasm/regalloc"

// Physical integer registers, numbered to match their 4-bit ModRM/SIB/REX
// encoding.
const (
	RAX regalloc.RealReg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	numIntRegs
)

// Physical XMM registers, numbered identically.
const (
	XMM0 regalloc.RealReg = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
	numFloatRegs
)

// intRegNames/floatRegNames are used for disassembly-style String()
// implementations across this package.
var intRegNames = [...]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

var floatRegNames = [...]string{
	"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7",
	"xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13", "xmm14", "xmm15",
}

// lowByteSpecial is the set of registers whose single-byte encoding
// requires a (possibly otherwise redundant) REX prefix to disambiguate
// from the legacy AH/CH/DH/BH byte registers.
// SPL, BPL, SIL, DIL are RSP..RDI in byte form; R8B..R15B always need
// REX.B regardless.
func lowByteNeedsRex(r regalloc.RealReg) bool {
	return r == RSP || r == RBP || r == RSI || r == RDI || r >= R8
}

// encBits returns the 3-bit ModRM/SIB encoding of r (ignoring the REX
// extension bit, which the caller derives from r >= 8).
func encBits(r regalloc.RealReg) byte { return byte(r) & 0x7 }

// needsRexBit reports whether r requires REX.R/X/B (i.e. r is R8..R15 or
// XMM8..XMM15).
func needsRexBit(r regalloc.RealReg) bool { return r >= 8 }
