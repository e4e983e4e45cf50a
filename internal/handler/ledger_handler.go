package handler

import (
	"context"
	"net/http"

	"github.com/boddenberg/ledgerview/internal/domain"
	"github.com/boddenberg/ledgerview/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Ledger Handlers
// ============================================================

type draftRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type transactionRequest struct {
	Description string                 `json:"description"`
	Amount      string                 `json:"amount"`
	Date        string                 `json:"date"`
	Type        domain.TransactionType `json:"type"`
}

func (t transactionRequest) draft() domain.TransactionDraft {
	return domain.TransactionDraft{
		Description: t.Description,
		Amount:      t.Amount,
		Date:        t.Date,
		Type:        t.Type,
	}
}

type mutationResponse struct {
	Message     string                `json:"message"`
	Transaction *domain.Transaction   `json:"transaction,omitempty"`
	Import      *domain.ImportSummary `json:"import,omitempty"`
	View        service.View          `json:"view"`
}

func viewHandler(ledger *service.LedgerController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ledger.View())
	}
}

func updateDraftHandler(ledger *service.LedgerController, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req draftRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, "", logger)
			return
		}
		if err := ledger.UpdateDraft(domain.FilterField(req.Field), req.Value); err != nil {
			handleServiceError(w, err, "", logger)
			return
		}
		writeJSON(w, http.StatusOK, ledger.View())
	}
}

// triggerHandler runs a load trigger and answers with the settled view.
func triggerHandler(ledger *service.LedgerController, logger *zap.Logger, name string, run func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST "+name)
		defer span.End()

		if err := run(ctx); err != nil {
			span.RecordError(err)
			handleServiceError(w, err, "", logger)
			return
		}
		writeJSON(w, http.StatusOK, ledger.View())
	}
}

func applyFiltersHandler(ledger *service.LedgerController, logger *zap.Logger) http.HandlerFunc {
	return triggerHandler(ledger, logger, "/filters/apply", ledger.ApplyFilters)
}

func clearFiltersHandler(ledger *service.LedgerController, logger *zap.Logger) http.HandlerFunc {
	return triggerHandler(ledger, logger, "/filters/clear", ledger.ClearFilters)
}

func loadMoreHandler(ledger *service.LedgerController, logger *zap.Logger) http.HandlerFunc {
	return triggerHandler(ledger, logger, "/load-more", ledger.LoadMore)
}

func reloadHandler(ledger *service.LedgerController, logger *zap.Logger) http.HandlerFunc {
	return triggerHandler(ledger, logger, "/reload", ledger.Reload)
}

func createTransactionHandler(ledger *service.LedgerController, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /transactions")
		defer span.End()

		var req transactionRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, service.MutationCreate, logger)
			return
		}
		tx, err := ledger.Create(ctx, req.draft())
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, service.MutationCreate, logger)
			return
		}
		writeJSON(w, http.StatusCreated, mutationResponse{
			Message:     service.SuccessMessage(service.MutationCreate),
			Transaction: tx,
			View:        ledger.View(),
		})
	}
}

func updateTransactionHandler(ledger *service.LedgerController, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /transactions/{id}")
		defer span.End()
		id := domain.TransactionID(chi.URLParam(r, "id"))
		span.SetAttributes(attribute.String("ledger.transaction_id", string(id)))

		var req transactionRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, service.MutationUpdate, logger)
			return
		}
		tx, err := ledger.Update(ctx, id, req.draft())
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, service.MutationUpdate, logger)
			return
		}
		writeJSON(w, http.StatusOK, mutationResponse{
			Message:     service.SuccessMessage(service.MutationUpdate),
			Transaction: tx,
			View:        ledger.View(),
		})
	}
}

func deleteTransactionHandler(ledger *service.LedgerController, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /transactions/{id}")
		defer span.End()
		id := domain.TransactionID(chi.URLParam(r, "id"))
		span.SetAttributes(attribute.String("ledger.transaction_id", string(id)))

		if err := ledger.Delete(ctx, id); err != nil {
			span.RecordError(err)
			handleServiceError(w, err, service.MutationDelete, logger)
			return
		}
		writeJSON(w, http.StatusOK, mutationResponse{
			Message: service.SuccessMessage(service.MutationDelete),
			View:    ledger.View(),
		})
	}
}

func importHandler(ledger *service.LedgerController, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /import")
		defer span.End()

		summary, err := ledger.ImportExternal(ctx)
		if err != nil {
			span.RecordError(err)
			handleServiceError(w, err, service.MutationImport, logger)
			return
		}
		writeJSON(w, http.StatusOK, mutationResponse{
			Message: service.SuccessMessage(service.MutationImport),
			Import:  summary,
			View:    ledger.View(),
		})
	}
}
