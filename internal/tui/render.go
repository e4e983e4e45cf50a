// Package tui renders a LedgerController in the terminal.
package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/boddenberg/ledgerview/internal/service"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the styles used by the renderer.
type Theme struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Header   lipgloss.Style
	Selected lipgloss.Style
	Credit   lipgloss.Style
	Deficit  lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Box      lipgloss.Style
}

// DefaultTheme is the default theme.
var DefaultTheme = Theme{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fafafa")),
	Subtitle: lipgloss.NewStyle().Foreground(lipgloss.Color("#a3a3a3")),
	Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#a78bfa")),
	Selected: lipgloss.NewStyle().Background(lipgloss.Color("#404040")).Foreground(lipgloss.Color("#fafafa")),
	Credit:   lipgloss.NewStyle().Foreground(lipgloss.Color("#10b981")),
	Deficit:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")),
	Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#737373")),
	Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("#10b981")).Bold(true),
	Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#404040")).
		Padding(0, 1),
}

func (t Theme) tone(tone service.Tone) lipgloss.Style {
	if tone == service.ToneDeficit {
		return t.Deficit
	}
	return t.Credit
}

// RenderBalance draws the total balance in its tone.
func RenderBalance(t Theme, b service.BalanceView) string {
	return t.Subtitle.Render("Total balance ") + t.tone(b.Tone).Bold(true).Render(b.Text)
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Sparkline maps the chart series onto block characters, oldest first.
// An empty series renders as "".
func Sparkline(points []service.ChartPoint) string {
	if len(points) == 0 {
		return ""
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, p.Balance)
		hi = math.Max(hi, p.Balance)
	}

	var b strings.Builder
	for _, p := range points {
		idx := len(sparkLevels) - 1
		if hi > lo {
			idx = int((p.Balance - lo) / (hi - lo) * float64(len(sparkLevels)-1))
		}
		b.WriteRune(sparkLevels[idx])
	}
	return b.String()
}

// RenderChart draws the balance history with its date range.
func RenderChart(t Theme, points []service.ChartPoint) string {
	if len(points) == 0 {
		return t.Muted.Render("No balance history")
	}
	first, last := points[0], points[len(points)-1]
	return fmt.Sprintf("%s %s %s",
		t.Muted.Render(first.Date),
		t.Header.Render(Sparkline(points)),
		t.Muted.Render(last.Date),
	)
}

// RenderRows draws the transaction table. selected < 0 highlights nothing.
func RenderRows(t Theme, rows []service.RowView, selected int) string {
	var b strings.Builder
	b.WriteString(t.Header.Render(fmt.Sprintf("%-10s %-28s %12s %-10s %-8s %12s", "Code", "Description", "Amount", "Date", "Type", "Balance")))
	b.WriteString("\n")

	for i, r := range rows {
		desc := r.Description
		if len([]rune(desc)) > 28 {
			desc = string([]rune(desc)[:27]) + "…"
		}
		line := fmt.Sprintf("%-10s %-28s %s %-10s %-8s %s",
			r.Code,
			desc,
			t.tone(r.AmountTone).Render(fmt.Sprintf("%12s", r.AmountText)),
			r.Date,
			r.TypeLabel,
			t.tone(r.RunningBalanceTone).Render(fmt.Sprintf("%12s", r.RunningBalanceText)),
		)
		if i == selected {
			line = t.Selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderView draws the whole ledger: balance, chart, filters, rows and
// the load-more hint.
func RenderView(t Theme, v service.View, selected int) string {
	p := v.Projection

	sections := []string{
		t.Title.Render("Ledger"),
		RenderBalance(t, p.Balance),
		RenderChart(t, p.Chart),
		renderFilters(t, v),
	}

	switch {
	case !v.Snapshot.Loaded:
		sections = append(sections, t.Muted.Render("Loading transactions..."))
	case p.Empty:
		sections = append(sections, t.Muted.Render("No transactions found."))
	default:
		sections = append(sections, RenderRows(t, p.Rows, selected))
	}

	if p.ShowLoadMore {
		sections = append(sections, t.Muted.Render(fmt.Sprintf("Page %d loaded, more available", v.Page.CurrentPage)))
	}
	if v.State != service.StateIdle {
		sections = append(sections, t.Subtitle.Render(v.State.String()+"..."))
	}
	return strings.Join(sections, "\n")
}

func renderFilters(t Theme, v service.View) string {
	if v.Active.IsEmpty() && v.Draft.IsEmpty() {
		return t.Muted.Render("Filters: none")
	}
	desc := func(label string, f string) string {
		if f == "" {
			return ""
		}
		return label + "=" + f + " "
	}
	active := desc("type", v.Active.Type) + desc("from", v.Active.StartDate) + desc("to", v.Active.EndDate) +
		desc("desc", v.Active.DescriptionSearch) + desc("code", v.Active.CodeSearch)
	draft := desc("type", v.Draft.Type) + desc("from", v.Draft.StartDate) + desc("to", v.Draft.EndDate) +
		desc("desc", v.Draft.DescriptionSearch) + desc("code", v.Draft.CodeSearch)

	out := t.Subtitle.Render("Filters: ") + strings.TrimSpace(active)
	if v.Draft != v.Active {
		out += t.Muted.Render("  (draft: " + strings.TrimSpace(draft) + ", press a to apply)")
	}
	return out
}
