package tui

import (
	"context"
	"fmt"

	"github.com/boddenberg/ledgerview/internal/service"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the interactive ledger screen and blocks until the user quits
// or ctx is cancelled. Controller events are forwarded into the program.
func Run(ctx context.Context, ledger *service.LedgerController) error {
	p := tea.NewProgram(NewModel(ctx, ledger), tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := ledger.Subscribe(func(ev service.Event) {
		p.Send(eventMsg{event: ev})
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
