package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/pairpad/internal/config"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "pairpad",
	Short: "pairpad - collaborative code editing backend",
	Long: `pairpad relays edits between participants in named rooms and runs
submitted code in a resource-bounded sandbox.

Run "pairpad serve" to start the server, "pairpad join <room>" to join a room
from the terminal, or "pairpad run <file>" to try the sandbox locally.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ./pairpad.yaml or ~/.pairpad/pairpad.yaml)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
