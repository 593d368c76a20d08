package s390x

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativewasm/corewasm/ir"
	"github.com/nativewasm/corewasm/isa"
)

func TestComputeArgLocs_StandardFrameReservation(t *testing.T) {
	res, err := ComputeArgLocs([]ir.Type{ir.I32})
	require.NoError(t, err)
	require.Equal(t, isa.ArgLocReg, res.Locs[0].Kind)
	// With only one register arg, nothing spills past the reserved save area.
	require.Equal(t, int64(RegisterSaveAreaBytes), res.StackBytes)
}

func TestComputeArgLocs_ImplicitPtrForWideArg(t *testing.T) {
	res, err := ComputeArgLocs([]ir.Type{ir.I128})
	require.NoError(t, err)
	require.Equal(t, isa.ArgLocImplicitPtr, res.Locs[0].Kind)
	require.True(t, res.Locs[0].Ptr.IsRealReg())
}

func TestComputeArgLocs_ImplicitPtrSpillsToStackOnceRegistersExhausted(t *testing.T) {
	params := []ir.Type{ir.I64, ir.I64, ir.I64, ir.I64, ir.I64, ir.I128}
	res, err := ComputeArgLocs(params)
	require.NoError(t, err)
	last := res.Locs[len(res.Locs)-1]
	require.Equal(t, isa.ArgLocImplicitPtr, last.Kind)
	require.False(t, last.Ptr.IsRealReg())
	require.GreaterOrEqual(t, last.Offset, int64(RegisterSaveAreaBytes))
}

func TestComputeArgLocs_StackTooLarge(t *testing.T) {
	huge := make([]ir.Type, 20_000_000)
	for i := range huge {
		huge[i] = ir.I64
	}
	_, err := ComputeArgLocs(huge)
	require.ErrorIs(t, err, isa.ErrStackTooLarge)
}
