// Package mach is the machine-code sink used by every ISA's instruction
// encoder: an append-only byte buffer with label definition/fixup
// tracking, and the side tables (relocations, trap sites, stack maps)
// that make up a compiled function's executable-image metadata. It
// deliberately knows nothing about any particular ISA's opcode
// encoding — that is the job of isa/amd64 (and friends).
package mach

import (
	"fmt"
	"sort"
)

// TrapCode is the closed set of trap codes a compiled function can raise
// at runtime.
type TrapCode byte

const (
	TrapStackOverflow TrapCode = iota
	TrapHeapOutOfBounds
	TrapTableOutOfBounds
	TrapIndirectCallToNull
	TrapBadSignature
	TrapIntegerOverflow
	TrapIntegerDivisionByZero
	TrapBadConversionToInteger
	TrapUnreachableCodeReached
	TrapInterrupt
)

func (t TrapCode) String() string {
	switch t {
	case TrapStackOverflow:
		return "stack overflow"
	case TrapHeapOutOfBounds:
		return "out of bounds memory access"
	case TrapTableOutOfBounds:
		return "undefined element"
	case TrapIndirectCallToNull:
		return "uninitialized element"
	case TrapBadSignature:
		return "indirect call type mismatch"
	case TrapIntegerOverflow:
		return "integer overflow"
	case TrapIntegerDivisionByZero:
		return "integer divide by zero"
	case TrapBadConversionToInteger:
		return "invalid conversion to integer"
	case TrapUnreachableCodeReached:
		return "unreachable"
	case TrapInterrupt:
		return "interrupt"
	default:
		return "unknown trap"
	}
}

// RelocKind is the closed set of relocation kinds the encoder records
//. Resolution (patching the byte offset once the final layout
// of all functions is known) is the linker's job; this package only
// records them.
type RelocKind byte

const (
	RelocAbs8 RelocKind = iota
	RelocX86CallPCRel4
	RelocX86CallPLTRel4
	RelocX86PCRel4
	RelocX86GOTPCRel4
	RelocX86SecRel
	RelocElfX86_64TlsGd
	RelocMachOX86_64Tlv
)

// Reloc is one recorded relocation site.
type Reloc struct {
	Offset int64
	Kind   RelocKind
	Symbol string
	Addend int64
}

// TrapSite is one recorded trap site: the offset of the faulting
// instruction and the trap code it raises.
type TrapSite struct {
	Offset int64
	Code   TrapCode
}

// StackMapEntry records, for one call-site offset, the set of live
// reference-typed stack slots a garbage collector (absent in this core
// Non-goals, but still required by the ABI contract so the
// image format matches the one a real embedder consumes) would need.
// We carry the offsets only; no GC walks them in this core.
type StackMapEntry struct {
	CallSiteOffset int64
	SlotOffsets    []int32
}

type labelFixup struct {
	label  Label
	offset int64
	// size is the width in bytes of the encoded displacement/offset that
	// must be patched once the label resolves (1 or 4 for x86-64 near/far
	// branches, 4 for RIP-relative displacements).
	size int
	// pcRelativeFrom is the offset (from function start) the patched
	// value is relative to; for PC-relative encodings this is the offset
	// of the byte immediately following the patched field.
	pcRelativeFrom int64
}

// CodeBuffer is an append-only code sink with label fixups, relocation
// recording, and trap/stack-map site tables.
type CodeBuffer struct {
	Code []byte

	labelOffsets []int64 // -1 until the label is bound
	fixups       []labelFixup

	Relocs    []Reloc
	TrapSites []TrapSite
	StackMaps []StackMapEntry

	// constPool holds constant-pool entries (e.g. the absolute bit
	// patterns used by CvtFloatToUintSeq) addressed by a synthetic
	// ConstantOffset label.
	constPool      [][]byte
	constPoolLabel []Label
}

// NewCodeBuffer returns an empty buffer.
func NewCodeBuffer() *CodeBuffer {
	return &CodeBuffer{}
}

// Offset is the current write position, i.e. the offset the next emitted
// byte will land at.
func (b *CodeBuffer) Offset() int64 { return int64(len(b.Code)) }

// EmitByte appends one byte.
func (b *CodeBuffer) EmitByte(v byte) { b.Code = append(b.Code, v) }

// EmitBytes appends a byte slice verbatim.
func (b *CodeBuffer) EmitBytes(v []byte) { b.Code = append(b.Code, v...) }

// Emit32LE appends a little-endian 32-bit value.
func (b *CodeBuffer) Emit32LE(v uint32) {
	b.Code = append(b.Code, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// Emit64LE appends a little-endian 64-bit value.
func (b *CodeBuffer) Emit64LE(v uint64) {
	for i := 0; i < 8; i++ {
		b.Code = append(b.Code, byte(v>>(8*i)))
	}
}

// AllocateLabel reserves a new, as-yet-unbound label.
func (b *CodeBuffer) AllocateLabel() Label {
	b.labelOffsets = append(b.labelOffsets, -1)
	return Label(len(b.labelOffsets) - 1)
}

// BindLabel marks l as resolving to the current write offset. Every
// fixup recorded against l is patched once all code for the function has
// been emitted (call ResolveFixups).
func (b *CodeBuffer) BindLabel(l Label) {
	b.labelOffsets[l] = b.Offset()
}

// RecordFixup records that the size-byte field at offset needs to be
// patched, once l resolves, to l's offset minus pcRelativeFrom (for
// PC-relative fields) or to l's absolute offset (pcRelativeFrom < 0).
func (b *CodeBuffer) RecordFixup(l Label, offset int64, size int, pcRelativeFrom int64) {
	b.fixups = append(b.fixups, labelFixup{label: l, offset: offset, size: size, pcRelativeFrom: pcRelativeFrom})
}

// ResolveFixups patches every recorded label fixup. It must be called
// after all labels referenced by a function's fixups have been bound.
func (b *CodeBuffer) ResolveFixups() error {
	for _, f := range b.fixups {
		target := b.labelOffsets[f.label]
		if target < 0 {
			return fmt.Errorf("mach: label %d never bound", f.label)
		}
		var value int64
		if f.pcRelativeFrom >= 0 {
			value = target - f.pcRelativeFrom
		} else {
			value = target
		}
		switch f.size {
		case 1:
			b.Code[f.offset] = byte(value)
		case 4:
			v := uint32(int32(value))
			b.Code[f.offset] = byte(v)
			b.Code[f.offset+1] = byte(v >> 8)
			b.Code[f.offset+2] = byte(v >> 16)
			b.Code[f.offset+3] = byte(v >> 24)
		default:
			return fmt.Errorf("mach: unsupported fixup size %d", f.size)
		}
	}
	return nil
}

// AddConstant interns bytes into the function's constant pool and returns
// a label addressing it; repeated calls with identical bytes return the
// same label (deduplicated, same spirit as the component inliner's
// interning of repeated DFG nodes).
func (b *CodeBuffer) AddConstant(bytes []byte) Label {
	for i, existing := range b.constPool {
		if string(existing) == string(bytes) {
			return b.constPoolLabel[i]
		}
	}
	l := b.AllocateLabel()
	b.constPool = append(b.constPool, bytes)
	b.constPoolLabel = append(b.constPoolLabel, l)
	return l
}

// EmitConstantPool appends the interned constant pool to the buffer,
// 16-byte aligned, binding each pool label to its final address. Must be
// called once, after the last instruction of the function is emitted.
func (b *CodeBuffer) EmitConstantPool() {
	for len(b.Code)%16 != 0 {
		b.EmitByte(0)
	}
	for i, bytes := range b.constPool {
		b.BindLabel(b.constPoolLabel[i])
		b.EmitBytes(bytes)
	}
}

// RecordTrap records that the instruction starting at the buffer's
// current offset (the one emitted next) may raise code.
func (b *CodeBuffer) RecordTrap(code TrapCode) {
	b.TrapSites = append(b.TrapSites, TrapSite{Offset: b.Offset(), Code: code})
}

// RecordReloc records a relocation at the current offset.
func (b *CodeBuffer) RecordReloc(kind RelocKind, symbol string, addend int64) {
	b.Relocs = append(b.Relocs, Reloc{Offset: b.Offset(), Kind: kind, Symbol: symbol, Addend: addend})
}

// RecordStackMap records the live slot set at a call site.
func (b *CodeBuffer) RecordStackMap(slots []int32) {
	b.StackMaps = append(b.StackMaps, StackMapEntry{CallSiteOffset: b.Offset(), SlotOffsets: slots})
}

// SortedTrapSites returns TrapSites sorted by offset, as this requires
// ("a sorted list of trap sites").
func (b *CodeBuffer) SortedTrapSites() []TrapSite {
	out := append([]TrapSite(nil), b.TrapSites...)
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// SortedRelocs returns Relocs sorted by offset, as this requires.
func (b *CodeBuffer) SortedRelocs() []Reloc {
	out := append([]Reloc(nil), b.Relocs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}
