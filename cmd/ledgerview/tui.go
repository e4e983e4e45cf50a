package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/boddenberg/ledgerview/internal/infra/observability"
	"github.com/boddenberg/ledgerview/internal/tui"

	"github.com/spf13/cobra"
)

func tuiCmd() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse the ledger interactively in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// the terminal belongs to the UI, so logs go to a file
			logger, err := observability.NewFileLogger(cfg.LogLevel, logFile)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return tui.Run(cmd.Context(), a.ledger)
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", filepath.Join(os.TempDir(), "ledgerview.log"), "where the terminal UI writes its logs")
	return cmd
}
