package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"blister-inspector/config"
	"blister-inspector/internal/log"
)

// cfg is loaded once for every subcommand
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "blister-inspector",
	Short:         "Blister pack inspection line controller",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		log.Init(c.LogLevel)
		cfg = c
		return nil
	},
}

func Execute() {
	// Ctrl+C and SIGTERM cancel the command context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd(), newInspectionsCmd(), newParamsCmd())
}
