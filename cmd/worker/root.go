package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "worker",
		Short:        "Background jobs for the ISP agent service",
		SilenceUsage: true,
	}
	cmd.AddCommand(newScheduledCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
