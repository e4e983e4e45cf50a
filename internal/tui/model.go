package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/boddenberg/ledgerview/internal/domain"
	"github.com/boddenberg/ledgerview/internal/service"

	tea "github.com/charmbracelet/bubbletea"
)

// Ledger is the slice of the controller the terminal renderer drives.
type Ledger interface {
	View() service.View
	Mount(ctx context.Context) error
	UpdateDraft(field domain.FilterField, value string) error
	ApplyFilters(ctx context.Context) error
	ClearFilters(ctx context.Context) error
	LoadMore(ctx context.Context) error
	Reload(ctx context.Context) error
	Delete(ctx context.Context, id domain.TransactionID) error
	ImportExternal(ctx context.Context) (*domain.ImportSummary, error)
}

// Mode is the current input mode.
type Mode int

const (
	ModeBrowse Mode = iota
	ModeSearchDescription
	ModeSearchCode
	ModeConfirmDelete
)

// eventMsg carries a controller event into the update loop.
type eventMsg struct{ event service.Event }

// doneMsg reports a finished trigger.
type doneMsg struct {
	trigger string
	err     error
}

// Model is the bubbletea model for the ledger screen.
type Model struct {
	ctx      context.Context
	ledger   Ledger
	theme    Theme
	view     service.View
	notice   *service.Notice
	input    string
	mode     Mode
	selected int
	width    int
	quitting bool
}

// NewModel creates the model. ctx bounds every trigger it issues.
func NewModel(ctx context.Context, ledger Ledger) Model {
	return Model{
		ctx:    ctx,
		ledger: ledger,
		theme:  DefaultTheme,
		view:   ledger.View(),
	}
}

// Init mounts the controller.
func (m Model) Init() tea.Cmd {
	return m.run(service.TriggerMount, m.ledger.Mount)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case eventMsg:
		m.view = msg.event.View
		if msg.event.Notice != nil {
			m.notice = msg.event.Notice
		}
		m.clampSelection()

	case doneMsg:
		m.view = m.ledger.View()
		m.clampSelection()
		if msg.err != nil {
			m.notice = noticeFor(msg.trigger, msg.err)
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.mode {
	case ModeSearchDescription, ModeSearchCode:
		return m.handleInput(msg)
	case ModeConfirmDelete:
		m.mode = ModeBrowse
		if msg.String() != "y" || m.selected >= len(m.view.Snapshot.Rows) {
			return m, nil
		}
		id := m.view.Snapshot.Rows[m.selected].ID
		return m, m.run(service.TriggerDelete, func(ctx context.Context) error {
			return m.ledger.Delete(ctx, id)
		})
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.view.Snapshot.Rows)-1 {
			m.selected++
		}
	case "m":
		return m, m.run(service.TriggerLoadMore, m.ledger.LoadMore)
	case "r":
		return m, m.run(service.TriggerReload, m.ledger.Reload)
	case "a":
		return m, m.run(service.TriggerApplyFilter, m.ledger.ApplyFilters)
	case "c":
		m.selected = 0
		return m, m.run(service.TriggerClearFilter, m.ledger.ClearFilters)
	case "i":
		return m, m.run(service.TriggerImport, func(ctx context.Context) error {
			_, err := m.ledger.ImportExternal(ctx)
			return err
		})
	case "t":
		next := nextTypeFilter(m.view.Draft.Type)
		if err := m.ledger.UpdateDraft(domain.FilterType, next); err == nil {
			m.view = m.ledger.View()
		}
	case "/":
		m.mode, m.input = ModeSearchDescription, m.view.Draft.DescriptionSearch
	case "#":
		m.mode, m.input = ModeSearchCode, m.view.Draft.CodeSearch
	case "d":
		if len(m.view.Snapshot.Rows) > 0 {
			m.mode = ModeConfirmDelete
		}
	}
	return m, nil
}

// handleInput edits a search field; enter applies it.
func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	field := domain.FilterDescriptionSearch
	if m.mode == ModeSearchCode {
		field = domain.FilterCodeSearch
	}

	switch msg.Type {
	case tea.KeyEsc:
		m.mode, m.input = ModeBrowse, ""
	case tea.KeyEnter:
		m.mode = ModeBrowse
		if err := m.ledger.UpdateDraft(field, strings.TrimSpace(m.input)); err != nil {
			m.notice = noticeFor(service.TriggerApplyFilter, err)
			return m, nil
		}
		m.input = ""
		m.selected = 0
		return m, m.run(service.TriggerApplyFilter, m.ledger.ApplyFilters)
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		m.input += string(msg.Runes)
	}
	return m, nil
}

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(RenderView(m.theme, m.view, m.selected))
	b.WriteString("\n")

	switch m.mode {
	case ModeSearchDescription:
		b.WriteString(m.theme.Header.Render("Description: ") + m.input + "█\n")
	case ModeSearchCode:
		b.WriteString(m.theme.Header.Render("Code: ") + m.input + "█\n")
	case ModeConfirmDelete:
		if m.selected < len(m.view.Projection.Rows) {
			b.WriteString(m.theme.Error.Render("Delete "+m.view.Projection.Rows[m.selected].Code+"? (y/n)") + "\n")
		}
	}

	if m.notice != nil {
		style := m.theme.Success
		if m.notice.IsError {
			style = m.theme.Error
		}
		b.WriteString(style.Render(m.notice.Message) + "\n")
	}

	b.WriteString(m.theme.Muted.Render("j/k move  m more  r reload  t type  / desc  # code  a apply  c clear  i import  d delete  q quit"))
	return b.String()
}

// run issues a trigger off the update loop.
func (m Model) run(trigger string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return doneMsg{trigger: trigger, err: fn(ctx)}
	}
}

func (m *Model) clampSelection() {
	if n := len(m.view.Snapshot.Rows); m.selected >= n {
		m.selected = max(n-1, 0)
	}
}

func nextTypeFilter(current string) string {
	switch current {
	case "":
		return string(domain.TypeIncome)
	case string(domain.TypeIncome):
		return string(domain.TypeExpense)
	}
	return ""
}

// noticeFor turns a trigger error into a status line. Reload and
// mutation failures already produced a notice event; this covers the
// errors that do not.
func noticeFor(trigger string, err error) *service.Notice {
	var busy *domain.ErrBusy
	switch {
	case errors.As(err, &busy):
		return &service.Notice{Title: "Busy", Message: service.MsgBusy, IsError: true}
	case errors.Is(err, domain.ErrNoMorePages):
		return &service.Notice{Title: "Info", Message: "No more transactions."}
	case errors.Is(err, domain.ErrStaleSnapshot):
		return &service.Notice{Title: "Info", Message: "Filters changed. Press r to reload."}
	}

	kind := service.MutationKind("")
	switch trigger {
	case service.TriggerDelete:
		kind = service.MutationDelete
	case service.TriggerImport:
		kind = service.MutationImport
	default:
		return &service.Notice{Title: "Error", Message: service.MsgLoadFailed, IsError: true}
	}
	return &service.Notice{Title: "Error", Message: service.MutationMessage(kind, err), IsError: true}
}
