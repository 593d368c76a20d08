package interp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func runDivS(a, b int32) Result {
	return Run(&Program{
		Locals: []Value{{Kind: KindI32, I32: a}, {Kind: KindI32, I32: b}},
		Code: []Instr{
			{Op: OpLocalGet, Local: 0},
			{Op: OpLocalGet, Local: 1},
			{Op: OpI32DivS},
		},
	})
}

func TestRun_I32DivS_DivisionByZero(t *testing.T) {
	r := runDivS(5, 0)
	require.Equal(t, TrapIntegerDivisionByZero, r.Trap)
}

func TestRun_I32DivS_Overflow(t *testing.T) {
	r := runDivS(math.MinInt32, -1)
	require.Equal(t, TrapIntegerOverflow, r.Trap)
}

func TestRun_I32DivS_Normal(t *testing.T) {
	r := runDivS(7, 2)
	require.Equal(t, TrapNone, r.Trap)
	require.Equal(t, int32(3), r.Value.I32)
}

func TestRun_I64DivS_Overflow(t *testing.T) {
	r := Run(&Program{
		Locals: []Value{{Kind: KindI64, I64: math.MinInt64}, {Kind: KindI64, I64: -1}},
		Code: []Instr{
			{Op: OpLocalGet, Local: 0},
			{Op: OpLocalGet, Local: 1},
			{Op: OpI64DivS},
		},
	})
	require.Equal(t, TrapIntegerOverflow, r.Trap)
}

func runTruncSatF64U(f float64) uint32 {
	r := Run(&Program{
		Locals: []Value{{Kind: KindF64, F64: f}},
		Code: []Instr{
			{Op: OpLocalGet, Local: 0},
			{Op: OpI32TruncSatF64U},
		},
	})
	require.Equal(t, TrapNone, r.Trap)
	return uint32(r.Value.I32)
}

func TestRun_I32TruncSatF64U_Saturation(t *testing.T) {
	require.Equal(t, uint32(0), runTruncSatF64U(math.NaN()))
	require.Equal(t, uint32(0), runTruncSatF64U(-1.0))
	require.Equal(t, uint32(0xFFFFFFFF), runTruncSatF64U(1e20))
	require.Equal(t, uint32(42), runTruncSatF64U(42.7))
}
