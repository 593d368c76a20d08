package isa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativewasm/corewasm/regalloc"
)

func TestAlignTo(t *testing.T) {
	require.Equal(t, int64(0), AlignTo(0, 16))
	require.Equal(t, int64(16), AlignTo(1, 16))
	require.Equal(t, int64(16), AlignTo(16, 16))
	require.Equal(t, int64(32), AlignTo(17, 16))
	require.Equal(t, int64(8), AlignTo(5, 8))
}

func TestArgLoc_String(t *testing.T) {
	reg := ArgLoc{Kind: ArgLocReg, Reg: regalloc.FromRealReg(0, regalloc.RegClassInt)}
	require.Contains(t, reg.String(), "reg(")

	stack := ArgLoc{Kind: ArgLocStack, Offset: 8}
	require.Equal(t, "stack(+8)", stack.String())

	composite := ArgLoc{Kind: ArgLocComposite, Lo: &reg, Hi: &stack}
	require.Contains(t, composite.String(), "composite(")

	structArg := ArgLoc{Kind: ArgLocStructArg, Offset: 16, Size: 24}
	require.Equal(t, "structarg(+16, size=24)", structArg.String())
}

func TestErrStackTooLarge_IsBoundedByMaxStackBytes(t *testing.T) {
	require.Equal(t, int64(128<<20), int64(MaxStackBytes))
	require.Error(t, ErrStackTooLarge)
}
