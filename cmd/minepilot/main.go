// minepilot drives a game avatar for agents: one-shot actions and background
// behaviors exposed over an MCP tool endpoint and in-game chat commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "minepilot",
	Short: "Remote control for a game avatar",
	Long: `minepilot keeps one game session and exposes it to agents.

  minepilot serve                     Connect, serve MCP tools and chat commands
  minepilot behaviors                 List the built-in behaviors
  minepilot journal cat <file|dir>    Print journal entries
  minepilot version                   Print the version`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("MINEPILOT_CONFIG"), "path to minepilot.yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()
	return ctx, cancel
}
