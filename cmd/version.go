package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridden at build time via
// -ldflags "-X github.com/xkilldash9x/agentdb/cmd.Version=...".
var Version = "0.1.0-dev"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agentdb version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
