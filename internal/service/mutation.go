package service

import (
	"errors"
	"strings"

	"github.com/boddenberg/ledgerview/internal/domain"

	"github.com/shopspring/decimal"
)

// MutationKind names a state-changing request.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
	MutationImport MutationKind = "import"
)

// Local pre-flight messages.
const (
	MsgAmountNotPositive   = "Amount must be a positive number."
	MsgDescriptionEmpty    = "Description cannot be empty."
	MsgDateEmpty           = "Date cannot be empty."
	MsgInsufficientBalance = "Not enough balance. Cannot add expense."
	MsgUnexpected          = "An unexpected error occurred. Please try again."
	MsgLoadFailed          = "Failed to load transactions. Please try again."
	MsgBusy                = "Another operation is in progress. Please wait."
)

// fieldPrecedence is the order server field errors are surfaced in, after
// the general detail message.
var fieldPrecedence = []struct {
	field string
	label string
}{
	{"amount", "Amount"},
	{"type", "Type"},
	{"description", "Description"},
	{"created_at", "Date"},
}

// ValidateDraft runs the pre-flight checks and builds the request body.
//
// For a new expense the amount is compared against the displayed balance.
// That balance may be stale; the check only spares an obviously doomed
// request and the store remains the authority.
func ValidateDraft(draft domain.TransactionDraft, displayedBalance decimal.Decimal, isNew bool) (domain.TransactionPayload, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(draft.Amount))
	if err != nil || !amount.IsPositive() {
		return domain.TransactionPayload{}, &domain.ErrLocalValidation{Field: "amount", Message: MsgAmountNotPositive}
	}
	if strings.TrimSpace(draft.Description) == "" {
		return domain.TransactionPayload{}, &domain.ErrLocalValidation{Field: "description", Message: MsgDescriptionEmpty}
	}
	if strings.TrimSpace(draft.Date) == "" {
		return domain.TransactionPayload{}, &domain.ErrLocalValidation{Field: "created_at", Message: MsgDateEmpty}
	}
	if isNew && draft.Type == domain.TypeExpense && amount.GreaterThan(displayedBalance) {
		return domain.TransactionPayload{}, &domain.ErrLocalValidation{Field: "amount", Message: MsgInsufficientBalance}
	}

	return domain.TransactionPayload{
		Description: draft.Description,
		Amount:      amount,
		CreatedAt:   strings.TrimSpace(draft.Date),
		Type:        draft.Type,
	}, nil
}

// MutationMessage returns the message shown for a failed mutation.
func MutationMessage(kind MutationKind, err error) string {
	var local *domain.ErrLocalValidation
	var fields *domain.ErrFieldValidation
	var network *domain.ErrNetwork
	var busy *domain.ErrBusy

	switch {
	case err == nil:
		return ""
	case errors.As(err, &local):
		return local.Message
	case errors.As(err, &busy):
		return MsgBusy
	case errors.As(err, &fields):
		return fieldMessage(kind, fields)
	case errors.As(err, &network):
		switch kind {
		case MutationDelete:
			return "Failed to delete transaction: " + network.Reason()
		case MutationImport:
			return "Failed to import transactions: " + network.Reason()
		}
		if network.Status == 0 {
			return MsgUnexpected
		}
		if network.Detail != "" {
			return network.Detail
		}
		return genericFailure(kind)
	}
	return MsgUnexpected
}

// fieldMessage picks the first present message: detail, then amount, type,
// description, date.
func fieldMessage(kind MutationKind, e *domain.ErrFieldValidation) string {
	if e.Detail != "" {
		return e.Detail
	}
	for _, p := range fieldPrecedence {
		if msgs := e.Messages(p.field); len(msgs) > 0 {
			return p.label + " error: " + strings.Join(msgs, ", ")
		}
	}
	return genericFailure(kind)
}

func genericFailure(kind MutationKind) string {
	switch kind {
	case MutationCreate:
		return "Failed to add transaction."
	case MutationUpdate:
		return "Failed to update transaction."
	case MutationDelete:
		return "Failed to delete transaction."
	case MutationImport:
		return "Failed to import transactions."
	}
	return MsgUnexpected
}

// SuccessMessage is the notice shown after a mutation succeeded.
func SuccessMessage(kind MutationKind) string {
	switch kind {
	case MutationCreate:
		return "Transaction added successfully!"
	case MutationUpdate:
		return "Transaction updated successfully!"
	case MutationDelete:
		return "Transaction deleted successfully!"
	case MutationImport:
		return "Transactions imported from external API!"
	}
	return ""
}
