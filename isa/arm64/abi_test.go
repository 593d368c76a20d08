package arm64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativewasm/corewasm/isa"
	"github.com/nativewasm/corewasm/ir"
)

func TestComputeArgLocs_RegisterArgs(t *testing.T) {
	res, err := ComputeArgLocs(StandardAArch64, []ir.Type{ir.I32, ir.F64, ir.I64})
	require.NoError(t, err)
	require.Len(t, res.Locs, 3)
	require.Equal(t, isa.ArgLocReg, res.Locs[0].Kind)
	require.Equal(t, isa.ArgLocReg, res.Locs[1].Kind)
	require.Equal(t, isa.ArgLocReg, res.Locs[2].Kind)
}

func TestComputeArgLocs_I128CompositeRegister(t *testing.T) {
	res, err := ComputeArgLocs(StandardAArch64, []ir.Type{ir.I128})
	require.NoError(t, err)
	require.Equal(t, isa.ArgLocComposite, res.Locs[0].Kind)
	require.NotNil(t, res.Locs[0].Lo)
	require.NotNil(t, res.Locs[0].Hi)
	require.Equal(t, isa.ArgLocReg, res.Locs[0].Lo.Kind)
}

func TestComputeArgLocs_I128CompositeSpillsToStackOnceRegistersExhausted(t *testing.T) {
	// Eight int registers: fill seven with i32 args, leaving only one
	// register free — not enough for the two-register composite rule, so
	// the i128 must spill to a single 16-byte-aligned stack slot.
	params := []ir.Type{ir.I32, ir.I32, ir.I32, ir.I32, ir.I32, ir.I32, ir.I32, ir.I128}
	res, err := ComputeArgLocs(StandardAArch64, params)
	require.NoError(t, err)
	last := res.Locs[len(res.Locs)-1]
	require.Equal(t, isa.ArgLocComposite, last.Kind)
	require.Nil(t, last.Lo)
	require.Equal(t, int64(16), last.Size)
}

func TestComputeArgLocs_StackArgsPackedNaturallyOnApple(t *testing.T) {
	params := make([]ir.Type, 0, 9)
	for i := 0; i < 8; i++ {
		params = append(params, ir.I32)
	}
	params = append(params, ir.I32, ir.I32) // int regs exhausted: these two go to the stack
	res, err := ComputeArgLocs(AppleAArch64, params)
	require.NoError(t, err)
	// Packed at their natural 4-byte alignment rather than 8 bytes apart.
	require.Equal(t, isa.ArgLocStack, res.Locs[8].Kind)
	require.Equal(t, int64(0), res.Locs[8].Offset)
	require.Equal(t, int64(4), res.Locs[9].Offset)
	require.Equal(t, int64(16), res.StackBytes)
}

func TestComputeArgLocs_StackTooLarge(t *testing.T) {
	params := make([]ir.Type, 0, 9)
	for i := 0; i < 8; i++ {
		params = append(params, ir.I64)
	}
	huge := make([]ir.Type, 20_000_000)
	for i := range huge {
		huge[i] = ir.I64
	}
	params = append(params, huge...)
	_, err := ComputeArgLocs(StandardAArch64, params)
	require.ErrorIs(t, err, isa.ErrStackTooLarge)
}
