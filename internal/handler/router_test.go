package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boddenberg/ledgerview/internal/domain"
	"github.com/boddenberg/ledgerview/internal/handler"
	"github.com/boddenberg/ledgerview/internal/infra/observability"
	"github.com/boddenberg/ledgerview/internal/service"
)

type stubStore struct {
	mu        sync.Mutex
	pages     map[int]*domain.PageResult
	createErr error
	deleteErr error
	fetches   []int
}

func (s *stubStore) FetchPage(_ context.Context, page int, _ domain.FilterCriteria) (*domain.PageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches = append(s.fetches, page)
	if r, ok := s.pages[page]; ok {
		return r, nil
	}
	return &domain.PageResult{}, nil
}

func (s *stubStore) Create(_ context.Context, p domain.TransactionPayload) (*domain.Transaction, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &domain.Transaction{ID: "42", Description: p.Description, Amount: p.Amount, Type: p.Type}, nil
}

func (s *stubStore) Update(_ context.Context, id domain.TransactionID, p domain.TransactionPayload) (*domain.Transaction, error) {
	return &domain.Transaction{ID: id, Description: p.Description, Amount: p.Amount, Type: p.Type}, nil
}

func (s *stubStore) Delete(_ context.Context, _ domain.TransactionID) error {
	return s.deleteErr
}

func (s *stubStore) ImportExternal(_ context.Context) (*domain.ImportSummary, error) {
	return &domain.ImportSummary{Detail: "ok"}, nil
}

func newTestRouter(t *testing.T, store *stubStore) (http.Handler, *service.LedgerController) {
	t.Helper()
	metrics := observability.NewMetrics()
	ledger := service.NewLedgerController(store, store, metrics, zap.NewNop())
	t.Cleanup(ledger.Close)
	return handler.NewRouter(ledger, metrics, zap.NewNop()), ledger
}

func defaultStore() *stubStore {
	return &stubStore{pages: map[int]*domain.PageResult{
		1: {
			Rows:         []domain.Transaction{{ID: "1", DisplayCode: "TRN-0001", Amount: decimal.NewFromInt(30), Type: domain.TypeIncome}},
			TotalBalance: decimal.RequireFromString("30.00"),
			HasMore:      true,
		},
		2: {Rows: []domain.Transaction{{ID: "2"}}, HasMore: false},
	}}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON: %v (%s)", err, rec.Body.String())
	}
	return v
}

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(nil, observability.NewMetrics(), zap.NewNop())

	rec := do(t, router, http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router, ledger := newTestRouter(t, defaultStore())

	if rec := do(t, router, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before mount, got %d", rec.Code)
	}

	if err := ledger.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if rec := do(t, router, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200 after mount, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router, ledger := newTestRouter(t, defaultStore())
	if err := ledger.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}

	rec := do(t, router, http.MethodGet, "/metrics", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ledger_controller_transitions_total") {
		t.Error("expected controller transition metrics to be exposed")
	}
}

func TestReloadAndLoadMore(t *testing.T) {
	store := defaultStore()
	router, _ := newTestRouter(t, store)

	rec := do(t, router, http.MethodPost, "/v1/reload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reload: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	view := decodeView(t, rec)
	projection := view["projection"].(map[string]any)
	if got := projection["balance"].(map[string]any)["text"]; got != "$30.00" {
		t.Errorf("expected $30.00, got %v", got)
	}

	rec = do(t, router, http.MethodPost, "/v1/load-more", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("load-more: expected 200, got %d", rec.Code)
	}
	page := decodeView(t, rec)["page"].(map[string]any)
	if page["current_page"].(float64) != 2 || page["has_more"].(bool) {
		t.Errorf("unexpected page state %v", page)
	}

	rec = do(t, router, http.MethodPost, "/v1/load-more", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 when no more pages, got %d", rec.Code)
	}
	if len(store.fetches) != 2 {
		t.Errorf("expected 2 fetches, got %v", store.fetches)
	}
}

func TestFilters_DraftThenApply(t *testing.T) {
	router, ledger := newTestRouter(t, defaultStore())

	rec := do(t, router, http.MethodPut, "/v1/filters/draft", `{"field":"type","value":"expense"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("draft: expected 200, got %d", rec.Code)
	}
	if ledger.View().Active.Type != "" {
		t.Error("draft must not change active filters")
	}

	rec = do(t, router, http.MethodPut, "/v1/filters/draft", `{"field":"amount","value":"1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field: expected 400, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/v1/filters/apply", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("apply: expected 200, got %d", rec.Code)
	}
	if ledger.View().Active.Type != "expense" {
		t.Errorf("expected active type expense, got %q", ledger.View().Active.Type)
	}

	rec = do(t, router, http.MethodPost, "/v1/filters/clear", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", rec.Code)
	}
	if !ledger.View().Active.IsEmpty() || !ledger.View().Draft.IsEmpty() {
		t.Error("expected filters cleared")
	}
}

func TestCreateTransaction(t *testing.T) {
	router, ledger := newTestRouter(t, defaultStore())
	if err := ledger.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}

	rec := do(t, router, http.MethodPost, "/v1/transactions", `{"description":"Salary","amount":"10","date":"2024-01-01","type":"income"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if msg := decodeView(t, rec)["message"]; msg != "Transaction added successfully!" {
		t.Errorf("unexpected message %v", msg)
	}
}

func TestCreateTransaction_InsufficientBalance(t *testing.T) {
	router, ledger := newTestRouter(t, defaultStore())
	if err := ledger.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}

	rec := do(t, router, http.MethodPost, "/v1/transactions", `{"description":"TV","amount":"50","date":"2024-01-01","type":"expense"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeView(t, rec)["error"]; msg != "Not enough balance. Cannot add expense." {
		t.Errorf("unexpected error %v", msg)
	}
}

func TestCreateTransaction_FieldErrors(t *testing.T) {
	store := defaultStore()
	store.createErr = &domain.ErrFieldValidation{Fields: map[string][]string{"amount": {"must be positive"}}}
	router, _ := newTestRouter(t, store)

	rec := do(t, router, http.MethodPost, "/v1/transactions", `{"description":"x","amount":"1","date":"2024-01-01","type":"income"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeView(t, rec)
	if body["error"] != "Amount error: must be positive" {
		t.Errorf("unexpected error %v", body["error"])
	}
	if _, ok := body["fields"].(map[string]any)["amount"]; !ok {
		t.Error("expected field errors in body")
	}
}

func TestDeleteTransaction_NetworkError(t *testing.T) {
	store := defaultStore()
	store.deleteErr = &domain.ErrNetwork{Operation: "delete", Status: 500}
	router, _ := newTestRouter(t, store)

	rec := do(t, router, http.MethodDelete, "/v1/transactions/1", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if msg := decodeView(t, rec)["error"]; msg != "Failed to delete transaction: HTTP error! status: 500" {
		t.Errorf("unexpected error %v", msg)
	}
}

func TestImport(t *testing.T) {
	store := defaultStore()
	router, _ := newTestRouter(t, store)

	rec := do(t, router, http.MethodPost, "/v1/import", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.fetches) != 1 || store.fetches[0] != 1 {
		t.Errorf("expected a page-1 reload after import, got %v", store.fetches)
	}
}

func TestClosedController(t *testing.T) {
	router, ledger := newTestRouter(t, defaultStore())
	ledger.Close()

	rec := do(t, router, http.MethodPost, "/v1/reload", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
