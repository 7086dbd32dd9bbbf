package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "bunsenctl",
		Short:        "Operate the Bunsen issue agent from a terminal",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		newSignCmd(),
		newVerifyCmd(),
		newResolveCmd(),
		newRespondCmd(),
		newDispatchCmd(),
	)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
