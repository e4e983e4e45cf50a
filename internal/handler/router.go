package handler

import (
	"net/http"

	"github.com/boddenberg/ledgerview/internal/infra/observability"
	"github.com/boddenberg/ledgerview/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// The routes expose one mounted LedgerController to a browser renderer:
// reads return the current View, triggers return the View after the
// operation settled.
func NewRouter(ledger *service.LedgerController, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(ledger))
	r.Get("/readyz", readyzHandler(ledger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/view", viewHandler(ledger))

		// Filters
		r.Put("/filters/draft", updateDraftHandler(ledger, logger))
		r.Post("/filters/apply", applyFiltersHandler(ledger, logger))
		r.Post("/filters/clear", clearFiltersHandler(ledger, logger))

		// Pagination
		r.Post("/load-more", loadMoreHandler(ledger, logger))
		r.Post("/reload", reloadHandler(ledger, logger))

		// Mutations
		r.Post("/transactions", createTransactionHandler(ledger, logger))
		r.Put("/transactions/{id}", updateTransactionHandler(ledger, logger))
		r.Delete("/transactions/{id}", deleteTransactionHandler(ledger, logger))
		r.Post("/import", importHandler(ledger, logger))
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

type healthResponse struct {
	Status       string `json:"status"`
	State        string `json:"state,omitempty"`
	ControllerID string `json:"controller_id,omitempty"`
}

func healthzHandler(ledger *service.LedgerController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "healthy"}
		if ledger != nil {
			resp.State = ledger.State().String()
			resp.ControllerID = ledger.ID()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// readyzHandler reports ready once the first full load has landed.
func readyzHandler(ledger *service.LedgerController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil || !ledger.View().Snapshot.Loaded {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
