// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the controller
// from the concrete transaction store client.
package port

import (
	"context"

	"github.com/boddenberg/ledgerview/internal/domain"
)

// TransactionQuerier fetches one page of transactions under a filter.
type TransactionQuerier interface {
	FetchPage(ctx context.Context, page int, filters domain.FilterCriteria) (*domain.PageResult, error)
}

// TransactionMutator issues state-changing requests against the store.
type TransactionMutator interface {
	Create(ctx context.Context, payload domain.TransactionPayload) (*domain.Transaction, error)
	Update(ctx context.Context, id domain.TransactionID, payload domain.TransactionPayload) (*domain.Transaction, error)
	Delete(ctx context.Context, id domain.TransactionID) error
	ImportExternal(ctx context.Context) (*domain.ImportSummary, error)
}

// TransactionStore is the full remote store contract.
type TransactionStore interface {
	TransactionQuerier
	TransactionMutator
}

// TokenSource yields the anti-forgery token attached to mutating requests.
// An empty token means none is available.
type TokenSource interface {
	Token() string
}
