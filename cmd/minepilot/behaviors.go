package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"minepilot.ai/internal/behavior"
)

var behaviorsCmd = &cobra.Command{
	Use:   "behaviors",
	Short: "List the built-in behaviors with their cadence and default config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tEVERY\tDEFAULTS\tDESCRIPTION")
		for _, def := range behavior.DefaultRegistry().Definitions() {
			defaults, err := json.Marshal(def.Defaults())
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", def.Name, def.Interval, defaults, def.Description)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(behaviorsCmd)
}
