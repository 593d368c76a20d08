package mach

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeBuffer_EmitBasics(t *testing.T) {
	b := NewCodeBuffer()
	b.EmitByte(0x90)
	b.Emit32LE(0x12345678)
	b.Emit64LE(0x0102030405060708)
	require.Equal(t, int64(13), b.Offset())
	require.Equal(t, []byte{0x90, 0x78, 0x56, 0x34, 0x12, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, b.Code)
}

func TestCodeBuffer_LabelFixup_PCRelative(t *testing.T) {
	b := NewCodeBuffer()
	target := b.AllocateLabel()

	b.EmitByte(0xE9) // jmp rel32
	fixupOffset := b.Offset()
	b.Emit32LE(0) // placeholder, patched below
	b.RecordFixup(target, fixupOffset, 4, b.Offset())

	for i := 0; i < 10; i++ {
		b.EmitByte(0x90)
	}
	b.BindLabel(target)

	require.NoError(t, b.ResolveFixups())
	// rel32 = target offset (15) - pcRelativeFrom (5) = 10
	require.Equal(t, byte(10), b.Code[fixupOffset])
	require.Equal(t, byte(0), b.Code[fixupOffset+1])
}

func TestCodeBuffer_LabelFixup_Absolute(t *testing.T) {
	b := NewCodeBuffer()
	target := b.AllocateLabel()
	b.EmitByte(0)
	b.RecordFixup(target, 0, 1, -1)
	for i := 0; i < 5; i++ {
		b.EmitByte(0x90)
	}
	b.BindLabel(target)
	require.NoError(t, b.ResolveFixups())
	require.Equal(t, byte(6), b.Code[0])
}

func TestCodeBuffer_UnboundLabelErrors(t *testing.T) {
	b := NewCodeBuffer()
	l := b.AllocateLabel()
	b.EmitByte(0)
	b.RecordFixup(l, 0, 1, -1)
	require.Error(t, b.ResolveFixups())
}

func TestCodeBuffer_AddConstant_Dedup(t *testing.T) {
	b := NewCodeBuffer()
	l1 := b.AddConstant([]byte{1, 2, 3, 4})
	l2 := b.AddConstant([]byte{1, 2, 3, 4})
	l3 := b.AddConstant([]byte{5, 6, 7, 8})
	require.Equal(t, l1, l2)
	require.NotEqual(t, l1, l3)
}

func TestCodeBuffer_EmitConstantPool_Alignment(t *testing.T) {
	b := NewCodeBuffer()
	b.EmitByte(0x90)
	b.AddConstant([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	b.EmitConstantPool()
	require.Equal(t, 0, len(b.Code)%16)
}

func TestCodeBuffer_SortedTrapSitesAndRelocs(t *testing.T) {
	b := NewCodeBuffer()
	b.EmitBytes([]byte{0, 0, 0})
	b.RecordTrap(TrapIntegerOverflow)
	b.EmitBytes([]byte{0})
	b.RecordReloc(RelocX86PCRel4, "foo", 0)
	b.EmitBytes([]byte{0, 0})
	b.RecordTrap(TrapIntegerDivisionByZero)

	sites := b.SortedTrapSites()
	require.Len(t, sites, 2)
	require.Less(t, sites[0].Offset, sites[1].Offset)

	relocs := b.SortedRelocs()
	require.Len(t, relocs, 1)
	require.Equal(t, "foo", relocs[0].Symbol)
}

func TestTrapCodeString(t *testing.T) {
	require.Equal(t, "integer divide by zero", TrapIntegerDivisionByZero.String())
	require.Equal(t, "unreachable", TrapUnreachableCodeReached.String())
}
