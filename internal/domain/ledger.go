// Package domain defines the ledger entities consumed by the view controller.
// These models mirror the remote transaction store's contract and are
// independent of any transport or renderer.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ============================================================
// Transactions
// ============================================================

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// TransactionID is the store-assigned identity. The store may encode it as a
// JSON number or string; it is treated as opaque either way.
type TransactionID string

// UnmarshalJSON accepts both numeric and string identifiers.
func (id *TransactionID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = TransactionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	*id = TransactionID(n.String())
	return nil
}

// Transaction is a read-only copy of a stored transaction.
type Transaction struct {
	ID             TransactionID   `json:"id"`
	DisplayCode    string          `json:"display_code"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Type           TransactionType `json:"type"`
	CreatedAt      civil.Date      `json:"created_at"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// BalancePoint is one entry of the balance-history series.
type BalancePoint struct {
	Date    civil.Date      `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

// PageResult is what a single list fetch returns.
// BalanceHistory is nil when the store did not include it.
type PageResult struct {
	Rows           []Transaction
	TotalBalance   decimal.Decimal
	HasMore        bool
	BalanceHistory []BalancePoint
}

// HasBalanceHistory reports whether the response carried a chart series.
func (p *PageResult) HasBalanceHistory() bool {
	return p.BalanceHistory != nil
}

// ImportSummary is the store's answer to an external-import trigger.
type ImportSummary struct {
	Detail string `json:"detail"`
}

// TransactionDraft is the user-entered form data for create/update.
// Amount and Date are kept as entered so pre-flight validation can reject them.
type TransactionDraft struct {
	Description string
	Amount      string
	Date        string
	Type        TransactionType
}

// TransactionPayload is the validated body sent to the store.
type TransactionPayload struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   string          `json:"created_at"`
	Type        TransactionType `json:"type"`
}

// ParseCalendarDate reads either a date ("2024-01-31") or a timestamp
// ("2024-01-31T10:00:00Z") and keeps the calendar date.
func ParseCalendarDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return civil.DateOf(t), nil
}

// ============================================================
// Filters
// ============================================================

// FilterField names one filter input.
type FilterField string

const (
	FilterType              FilterField = "type"
	FilterStartDate         FilterField = "start_date"
	FilterEndDate           FilterField = "end_date"
	FilterDescriptionSearch FilterField = "description_search"
	FilterCodeSearch        FilterField = "code_search"
)

// FilterFields lists every field in query order.
var FilterFields = []FilterField{
	FilterType,
	FilterStartDate,
	FilterEndDate,
	FilterDescriptionSearch,
	FilterCodeSearch,
}

// FilterCriteria holds raw filter values; an empty string means "not set".
type FilterCriteria struct {
	Type              string `json:"type,omitempty"`
	StartDate         string `json:"start_date,omitempty"`
	EndDate           string `json:"end_date,omitempty"`
	DescriptionSearch string `json:"description_search,omitempty"`
	CodeSearch        string `json:"code_search,omitempty"`
}

// Get returns the value bound to field.
func (f FilterCriteria) Get(field FilterField) string {
	switch field {
	case FilterType:
		return f.Type
	case FilterStartDate:
		return f.StartDate
	case FilterEndDate:
		return f.EndDate
	case FilterDescriptionSearch:
		return f.DescriptionSearch
	case FilterCodeSearch:
		return f.CodeSearch
	}
	return ""
}

// With returns a copy of f with field set to value.
func (f FilterCriteria) With(field FilterField, value string) (FilterCriteria, error) {
	switch field {
	case FilterType:
		f.Type = value
	case FilterStartDate:
		f.StartDate = value
	case FilterEndDate:
		f.EndDate = value
	case FilterDescriptionSearch:
		f.DescriptionSearch = value
	case FilterCodeSearch:
		f.CodeSearch = value
	default:
		return f, &ErrValidation{Field: string(field), Message: "unknown filter field"}
	}
	return f, nil
}

// IsEmpty reports whether no field is set.
func (f FilterCriteria) IsEmpty() bool {
	return f == FilterCriteria{}
}
