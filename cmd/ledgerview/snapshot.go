package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/boddenberg/ledgerview/internal/domain"
	"github.com/boddenberg/ledgerview/internal/infra/observability"
	"github.com/boddenberg/ledgerview/internal/service"
	"github.com/boddenberg/ledgerview/internal/tui"

	"github.com/spf13/cobra"
)

type snapshotOptions struct {
	filters domain.FilterCriteria
	pages   int
	asJSON  bool
}

func snapshotCmd() *cobra.Command {
	var opts snapshotOptions

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Load the ledger once and print balance, chart and rows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := observability.NewFileLogger(cfg.LogLevel, "stderr")
			if err != nil {
				return err
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return runSnapshot(cmd.Context(), a.ledger, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.filters.Type, "type", "", "only income or expense")
	cmd.Flags().StringVar(&opts.filters.StartDate, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.filters.EndDate, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.filters.DescriptionSearch, "search", "", "description contains")
	cmd.Flags().StringVar(&opts.filters.CodeSearch, "code", "", "display code contains")
	cmd.Flags().IntVar(&opts.pages, "pages", 1, "number of pages to load")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the view as JSON")
	return cmd
}

// runSnapshot applies the filters, loads up to opts.pages pages and prints the result.
func runSnapshot(ctx context.Context, ledger *service.LedgerController, opts snapshotOptions, out io.Writer) error {
	for _, field := range domain.FilterFields {
		if err := ledger.UpdateDraft(field, opts.filters.Get(field)); err != nil {
			return err
		}
	}
	if err := ledger.ApplyFilters(ctx); err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	for page := 1; page < opts.pages; page++ {
		err := ledger.LoadMore(ctx)
		if errors.Is(err, domain.ErrNoMorePages) {
			break
		}
		if err != nil {
			return fmt.Errorf("load page %d: %w", page+1, err)
		}
	}

	view := ledger.View()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	_, err := fmt.Fprintln(out, tui.RenderView(tui.DefaultTheme, view, -1))
	return err
}
