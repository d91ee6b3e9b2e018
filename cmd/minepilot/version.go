package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"minepilot.ai/internal/protocol"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "minepilot %s (gateway protocol %s)\n", version, protocol.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
