// Command corewasm is a small demonstration harness around the core,
// built with cobra/pflag. It works on one built-in function (scenario
// S1's div_s) rather than loading modules: compile prints its machine
// code, run maps that code into executable memory and reports where, and
// diff runs the built-in scenarios S1 and S2 through the reference
// interpreter only.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corewasm",
		Short: "demonstrate the core backend on a built-in function and interpreter scenarios",
	}
	cmd.AddCommand(newCompileCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newDiffCmd())
	return cmd
}
