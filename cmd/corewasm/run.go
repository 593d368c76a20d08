package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nativewasm/corewasm/mach"
)

func newRunCmd() *cobra.Command {
	var a, b int32
	cmd := &cobra.Command{
		Use:   "run",
		Short: "compile the built-in demonstration function into executable memory and report its address (it is not invoked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := compileDivSFunction()
			if err != nil {
				return err
			}
			img, err := mach.Finalize(code)
			if err != nil {
				return fmt.Errorf("finalize: %w", err)
			}
			defer img.Close()

			// Adapting img.Addr() into a callable Go func value needs an
			// architecture-specific entry trampoline that is outside this
			// core's scope — report the mapped code instead of
			// invoking it blind.
			fmt.Fprintf(cmd.OutOrStdout(), "compiled %d bytes at 0x%x for div_s(%d, %d)\n", len(code), img.Addr(), a, b)
			return nil
		},
	}
	cmd.Flags().Int32Var(&a, "a", 7, "dividend")
	cmd.Flags().Int32Var(&b, "b", 2, "divisor")
	return cmd
}
