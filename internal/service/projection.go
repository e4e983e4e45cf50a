package service

import (
	"strings"

	"github.com/boddenberg/ledgerview/internal/domain"

	"github.com/shopspring/decimal"
)

// Tone classifies a balance for coloring.
type Tone string

const (
	ToneCredit  Tone = "credit"
	ToneDeficit Tone = "deficit"
)

// ToneOf returns ToneDeficit for negative values and ToneCredit otherwise.
func ToneOf(v decimal.Decimal) Tone {
	if v.IsNegative() {
		return ToneDeficit
	}
	return ToneCredit
}

// BalanceView is the display-ready total balance.
type BalanceView struct {
	Value decimal.Decimal `json:"value"`
	Text  string          `json:"text"`
	Tone  Tone            `json:"tone"`
}

// ChartPoint is one charted (date, balance) pair.
type ChartPoint struct {
	Date    string  `json:"date"`
	Balance float64 `json:"balance"`
}

// RowView is a display-ready transaction row.
type RowView struct {
	ID                 domain.TransactionID   `json:"id"`
	Code               string                 `json:"code"`
	Description        string                 `json:"description"`
	AmountText         string                 `json:"amount_text"`
	AmountTone         Tone                   `json:"amount_tone"`
	Date               string                 `json:"date"`
	TypeLabel          string                 `json:"type_label"`
	Type               domain.TransactionType `json:"type"`
	RunningBalanceText string                 `json:"running_balance_text"`
	RunningBalanceTone Tone                   `json:"running_balance_tone"`
}

// Projection is what renderers draw.
type Projection struct {
	Balance      BalanceView  `json:"balance"`
	Chart        []ChartPoint `json:"chart"`
	Rows         []RowView    `json:"rows"`
	Empty        bool         `json:"empty"`
	ShowLoadMore bool         `json:"show_load_more"`
}

// FormatMoney renders v as "$x.xx".
func FormatMoney(v decimal.Decimal) string {
	return "$" + v.StringFixed(2)
}

// ProjectBalance colors the server-reported total.
func ProjectBalance(total decimal.Decimal) BalanceView {
	return BalanceView{Value: total, Text: FormatMoney(total), Tone: ToneOf(total)}
}

// ProjectChart returns the series exactly as received, oldest first.
func ProjectChart(history []domain.BalancePoint) []ChartPoint {
	points := make([]ChartPoint, 0, len(history))
	for _, p := range history {
		points = append(points, ChartPoint{
			Date:    p.Date.String(),
			Balance: p.Balance.InexactFloat64(),
		})
	}
	return points
}

// ProjectRow formats one transaction for the list.
func ProjectRow(t domain.Transaction) RowView {
	code := t.DisplayCode
	if code == "" {
		code = "N/A"
	}
	desc := t.Description
	if desc == "" {
		desc = "-"
	}

	amount := "$" + t.Amount.Abs().StringFixed(2)
	amountTone := ToneCredit
	if t.Type == domain.TypeExpense {
		amount = "-" + amount
		amountTone = ToneDeficit
	} else {
		amount = "+" + amount
	}

	return RowView{
		ID:                 t.ID,
		Code:               code,
		Description:        desc,
		AmountText:         amount,
		AmountTone:         amountTone,
		Date:               t.CreatedAt.String(),
		TypeLabel:          capitalize(string(t.Type)),
		Type:               t.Type,
		RunningBalanceText: FormatMoney(t.RunningBalance),
		RunningBalanceTone: ToneOf(t.RunningBalance),
	}
}

// Project derives the full projection. Nothing is recomputed from rows:
// balance and chart are the store's values.
func Project(s LedgerSnapshot, page PageState) Projection {
	rows := make([]RowView, 0, len(s.Rows))
	for _, t := range s.Rows {
		rows = append(rows, ProjectRow(t))
	}
	return Projection{
		Balance:      ProjectBalance(s.TotalBalance),
		Chart:        ProjectChart(s.BalanceHistory),
		Rows:         rows,
		Empty:        s.Loaded && len(s.Rows) == 0,
		ShowLoadMore: s.Loaded && len(s.Rows) > 0 && page.HasMore,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
