package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nativewasm/corewasm/isa/amd64"
	"github.com/nativewasm/corewasm/mach"
	"github.com/nativewasm/corewasm/regalloc"
)

func newCompileCmd() *cobra.Command {
	var showLabels bool
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "assemble the built-in demonstration function and print its machine code",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := compileDivSFunction()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(code))
			if showLabels {
				fmt.Fprintf(cmd.OutOrStdout(), "# %d bytes\n", len(code))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showLabels, "verbose", false, "print byte-length summary")
	return cmd
}

// compileDivSFunction assembles scenario S1's function body — (param i32
// i32) (result i32) i32.div_s — using the CheckedDivOrRemSeq
// super-instruction directly, demonstrating the encoder end-to-end
// without a WebAssembly decoder front-end (out of scope).
func compileDivSFunction() ([]byte, error) {
	buf := mach.NewCodeBuffer()
	enc := amd64.NewEncoder(buf, func(uint32) mach.Label { return mach.LabelInvalid })

	rax := regalloc.FromRealReg(0, regalloc.RegClassInt)
	rdx := regalloc.FromRealReg(2, regalloc.RegClassInt)
	rsi := regalloc.FromRealReg(6, regalloc.RegClassInt)
	tmp := regalloc.FromRealReg(1, regalloc.RegClassInt)

	seq := &amd64.CheckedDivOrRemSeq{
		Signed: true, IsRem: false, Wide: false,
		Divisor: rsi, DividendLo: rax, DividendHi: rdx, Dst: rax, Tmp: tmp,
	}
	if err := enc.EncodeSequence(seq); err != nil {
		return nil, err
	}
	if err := enc.Encode(amd64.NewRet()); err != nil {
		return nil, err
	}
	if err := buf.ResolveFixups(); err != nil {
		return nil, err
	}
	return buf.Code, nil
}
