package service

import (
	"github.com/boddenberg/ledgerview/internal/domain"

	"github.com/shopspring/decimal"
)

// LedgerSnapshot is everything fetched so far for one filter epoch.
//
// TotalBalance and BalanceHistory only change on Replace, i.e. a page-1
// full reload. Append extends Rows and nothing else, so after load-more the
// chart still reflects the most recent full reload.
type LedgerSnapshot struct {
	Rows           []domain.Transaction  `json:"rows"`
	TotalBalance   decimal.Decimal       `json:"total_balance"`
	BalanceHistory []domain.BalancePoint `json:"balance_history"`
	// Filters is the criteria the rows were loaded under.
	Filters domain.FilterCriteria `json:"filters"`
	Loaded  bool                  `json:"loaded"`
}

// Replace rebuilds the snapshot from a page-1 result. The chart series is
// kept as-is when the response carried none.
func (s *LedgerSnapshot) Replace(result *domain.PageResult, filters domain.FilterCriteria) {
	s.Rows = append([]domain.Transaction(nil), result.Rows...)
	s.TotalBalance = result.TotalBalance
	if result.HasBalanceHistory() {
		s.BalanceHistory = append([]domain.BalancePoint{}, result.BalanceHistory...)
	}
	s.Filters = filters
	s.Loaded = true
}

// Append adds a further page of rows.
func (s *LedgerSnapshot) Append(rows []domain.Transaction) {
	s.Rows = append(s.Rows, rows...)
}

// Clone returns a deep copy safe to hand to renderers.
func (s *LedgerSnapshot) Clone() LedgerSnapshot {
	out := *s
	out.Rows = append([]domain.Transaction(nil), s.Rows...)
	if s.BalanceHistory != nil {
		out.BalanceHistory = append([]domain.BalancePoint{}, s.BalanceHistory...)
	}
	return out
}
