package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/nativewasm/corewasm/interp"
)

func newDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "run the differential-testing harness's built-in scenarios (S1, S2) through the interpreter",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, res := range runScenarioS1() {
				fmt.Fprintln(cmd.OutOrStdout(), res)
			}
			for _, res := range runScenarioS2() {
				fmt.Fprintln(cmd.OutOrStdout(), res)
			}
			return nil
		},
	}
	return cmd
}

// runScenarioS1 exercises this integer-division-trap scenario
// through the interpreter: (5, 0) traps IntegerDivisionByZero,
// (INT32_MIN, -1) traps IntegerOverflow, (7, 2) returns 3.
func runScenarioS1() []string {
	run := func(a, b int32) interp.Result {
		return interp.Run(&interp.Program{
			Locals: []interp.Value{{Kind: interp.KindI32, I32: a}, {Kind: interp.KindI32, I32: b}},
			Code: []interp.Instr{
				{Op: interp.OpLocalGet, Local: 0},
				{Op: interp.OpLocalGet, Local: 1},
				{Op: interp.OpI32DivS},
			},
		})
	}
	var out []string
	for _, c := range []struct{ a, b int32 }{{5, 0}, {math.MinInt32, -1}, {7, 2}} {
		r := run(c.a, c.b)
		if r.Trap != interp.TrapNone {
			out = append(out, fmt.Sprintf("S1 div_s(%d, %d) -> trap %d", c.a, c.b, r.Trap))
		} else {
			out = append(out, fmt.Sprintf("S1 div_s(%d, %d) -> %d", c.a, c.b, r.Value.I32))
		}
	}
	return out
}

// runScenarioS2 exercises this float-to-uint saturation
// scenario: NaN and -1.0 saturate to 0, 1e20 saturates to 0xFFFFFFFF,
// 42.7 truncates to 42.
func runScenarioS2() []string {
	run := func(f float64) interp.Result {
		return interp.Run(&interp.Program{
			Locals: []interp.Value{{Kind: interp.KindF64, F64: f}},
			Code: []interp.Instr{
				{Op: interp.OpLocalGet, Local: 0},
				{Op: interp.OpI32TruncSatF64U},
			},
		})
	}
	var out []string
	for _, f := range []float64{math.NaN(), -1.0, 1e20, 42.7} {
		r := run(f)
		out = append(out, fmt.Sprintf("S2 trunc_sat_f64_u(%v) -> %d", f, uint32(r.Value.I32)))
	}
	return out
}
