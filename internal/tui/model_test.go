package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/ledgerview/internal/domain"
	"github.com/boddenberg/ledgerview/internal/service"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeLedger struct {
	mu       sync.Mutex
	view     service.View
	calls    []string
	draft    domain.FilterCriteria
	err      error
	deleteID domain.TransactionID
}

func (f *fakeLedger) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeLedger) View() service.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.view
	v.Draft = f.draft
	return v
}

func (f *fakeLedger) Mount(context.Context) error        { return f.record("mount") }
func (f *fakeLedger) ApplyFilters(context.Context) error { return f.record("apply") }
func (f *fakeLedger) ClearFilters(context.Context) error { return f.record("clear") }
func (f *fakeLedger) LoadMore(context.Context) error     { return f.record("load_more") }
func (f *fakeLedger) Reload(context.Context) error       { return f.record("reload") }

func (f *fakeLedger) UpdateDraft(field domain.FilterField, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := f.draft.With(field, value)
	if err != nil {
		return err
	}
	f.draft = next
	return nil
}

func (f *fakeLedger) Delete(_ context.Context, id domain.TransactionID) error {
	f.deleteID = id
	return f.record("delete")
}

func (f *fakeLedger) ImportExternal(context.Context) (*domain.ImportSummary, error) {
	return &domain.ImportSummary{}, f.record("import")
}

func loadedView() service.View {
	snap := service.LedgerSnapshot{
		Rows: []domain.Transaction{
			{ID: "1", DisplayCode: "TRN-0001", Description: "Salary", Amount: decimal.NewFromInt(120), Type: domain.TypeIncome, RunningBalance: decimal.NewFromInt(120)},
			{ID: "2", DisplayCode: "TRN-0002", Description: "Coffee", Amount: decimal.NewFromInt(5), Type: domain.TypeExpense, RunningBalance: decimal.NewFromInt(115)},
		},
		TotalBalance: decimal.RequireFromString("115.00"),
		Loaded:       true,
	}
	page := service.PageState{CurrentPage: 1, HasMore: true}
	return service.View{Snapshot: snap, Page: page, Projection: service.Project(snap, page)}
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, c := m.Update(msg)
		m = next.(Model)
		cmd = c
	}
	return m, cmd
}

func runCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestInit_Mounts(t *testing.T) {
	ledger := &fakeLedger{}
	m := NewModel(context.Background(), ledger)

	runCmd(t, m, m.Init())

	assert.Equal(t, []string{"mount"}, ledger.calls)
}

func TestKeys_IssueTriggers(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"m", "load_more"},
		{"r", "reload"},
		{"a", "apply"},
		{"c", "clear"},
		{"i", "import"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			ledger := &fakeLedger{view: loadedView()}
			m := NewModel(context.Background(), ledger)

			m, cmd := press(t, m, tt.key)
			runCmd(t, m, cmd)

			assert.Equal(t, []string{tt.want}, ledger.calls)
		})
	}
}

func TestTypeFilterCycles(t *testing.T) {
	ledger := &fakeLedger{view: loadedView()}
	m := NewModel(context.Background(), ledger)

	m, _ = press(t, m, "t")
	assert.Equal(t, "income", ledger.draft.Type)
	m, _ = press(t, m, "t")
	assert.Equal(t, "expense", ledger.draft.Type)
	press(t, m, "t")
	assert.Equal(t, "", ledger.draft.Type)
	assert.Empty(t, ledger.calls, "editing the draft must not fetch")
}

func TestDescriptionSearch_AppliesOnEnter(t *testing.T) {
	ledger := &fakeLedger{view: loadedView()}
	m := NewModel(context.Background(), ledger)

	m, _ = press(t, m, "/", "r", "e", "n", "t")
	assert.Equal(t, ModeSearchDescription, m.mode)
	assert.Empty(t, ledger.calls)

	m, cmd := press(t, m, "enter")
	runCmd(t, m, cmd)

	assert.Equal(t, "rent", ledger.draft.DescriptionSearch)
	assert.Equal(t, []string{"apply"}, ledger.calls)
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	ledger := &fakeLedger{view: loadedView()}
	m := NewModel(context.Background(), ledger)

	m, cmd := press(t, m, "j", "d", "n")
	assert.Nil(t, cmd)
	assert.Empty(t, ledger.calls)

	m, cmd = press(t, m, "d", "y")
	runCmd(t, m, cmd)
	assert.Equal(t, []string{"delete"}, ledger.calls)
	assert.Equal(t, domain.TransactionID("2"), ledger.deleteID)
}

func TestBusyErrorShowsNotice(t *testing.T) {
	ledger := &fakeLedger{view: loadedView(), err: &domain.ErrBusy{State: "loading_full", Trigger: "load_more"}}
	m := NewModel(context.Background(), ledger)

	m, cmd := press(t, m, "m")
	m = runCmd(t, m, cmd)

	require.NotNil(t, m.notice)
	assert.Equal(t, service.MsgBusy, m.notice.Message)
}

func TestEventUpdatesView(t *testing.T) {
	ledger := &fakeLedger{}
	m := NewModel(context.Background(), ledger)

	next, _ := m.Update(eventMsg{event: service.Event{
		Kind:   service.EventNotice,
		View:   loadedView(),
		Notice: &service.Notice{Message: "Transaction added successfully!"},
	}})
	m = next.(Model)

	out := m.View()
	assert.Contains(t, out, "$115.00")
	assert.Contains(t, out, "TRN-0002")
	assert.Contains(t, out, "Transaction added successfully!")
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", Sparkline(nil))
	assert.Equal(t, "█", Sparkline([]service.ChartPoint{{Balance: 3}}))

	line := Sparkline([]service.ChartPoint{{Balance: 0}, {Balance: 50}, {Balance: 100}})
	runes := []rune(line)
	require.Len(t, runes, 3)
	assert.Equal(t, '▁', runes[0])
	assert.Equal(t, '█', runes[2])
}

func TestRenderView_States(t *testing.T) {
	assert.Contains(t, RenderView(DefaultTheme, service.View{}, -1), "Loading transactions...")

	empty := service.View{Snapshot: service.LedgerSnapshot{Loaded: true}}
	empty.Projection = service.Project(empty.Snapshot, empty.Page)
	out := RenderView(DefaultTheme, empty, -1)
	assert.Contains(t, out, "No transactions found.")
	assert.False(t, strings.Contains(out, "more available"))
}
