package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boddenberg/ledgerview/internal/domain"
	"github.com/boddenberg/ledgerview/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}

// handleServiceError maps domain errors to HTTP responses. kind selects the
// user-facing wording for mutation failures; it is empty for loads.
func handleServiceError(w http.ResponseWriter, err error, kind service.MutationKind, logger *zap.Logger) {
	var busy *domain.ErrBusy
	var local *domain.ErrLocalValidation
	var fields *domain.ErrFieldValidation
	var validation *domain.ErrValidation
	var network *domain.ErrNetwork
	var circuitOpen *domain.ErrCircuitOpen

	message := func() string {
		if kind != "" {
			return service.MutationMessage(kind, err)
		}
		return err.Error()
	}

	switch {
	case errors.As(err, &busy):
		logger.Debug("trigger dropped", zap.String("trigger", busy.Trigger), zap.String("state", busy.State))
		writeError(w, http.StatusConflict, service.MsgBusy)
	case errors.Is(err, domain.ErrNoMorePages), errors.Is(err, domain.ErrStaleSnapshot):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &local):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: local.Message, Fields: map[string][]string{local.Field: {local.Message}}})
	case errors.As(err, &fields):
		logger.Debug("store rejected fields", zap.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: message(), Fields: fields.Fields})
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, message())
	case errors.As(err, &network):
		logger.Warn("transaction store failure", zap.Error(err))
		if kind == "" {
			writeError(w, http.StatusBadGateway, service.MsgLoadFailed)
			return
		}
		writeError(w, http.StatusBadGateway, message())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("request cancelled", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
