package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"minepilot.ai/internal/persistence/journal"
)

var journalJSON bool

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the tick and tool-call journal",
}

var journalCatCmd = &cobra.Command{
	Use:   "cat <file|dir>",
	Short: "Decode journal files and print their entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := []string{args[0]}
		if fi, err := os.Stat(args[0]); err != nil {
			return err
		} else if fi.IsDir() {
			files, err = journal.Files(args[0])
			if err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		enc := json.NewEncoder(out)
		for _, f := range files {
			err := journal.ReadFile(f, func(e journal.Entry) error {
				if journalJSON {
					return enc.Encode(e)
				}
				status := "ok"
				if !e.OK {
					status = "FAIL " + e.Code + " " + e.Error
				}
				_, err := fmt.Fprintf(out, "%s %-4s %-20s %8.1fms %s\n", e.Time.Format("2006-01-02T15:04:05.000Z"), e.Kind, e.Name, e.DurationMS, status)
				return err
			})
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
		}
		return nil
	},
}

func init() {
	journalCatCmd.Flags().BoolVar(&journalJSON, "json", false, "print raw JSON lines")
	journalCmd.AddCommand(journalCatCmd)
	rootCmd.AddCommand(journalCmd)
}
