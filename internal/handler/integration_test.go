package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/ledgerview/internal/handler"
	"github.com/boddenberg/ledgerview/internal/infra/client"
	"github.com/boddenberg/ledgerview/internal/infra/observability"
	"github.com/boddenberg/ledgerview/internal/infra/resilience"
	"github.com/boddenberg/ledgerview/internal/service"

	"go.uber.org/zap"
)

// mockStore is an in-memory stand-in for the remote transaction store.
type mockStore struct {
	mu       sync.Mutex
	requests []string
	tokens   []string
	balance  string
}

func (s *mockStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
	if r.Method != http.MethodGet {
		s.tokens = append(s.tokens, r.Header.Get(client.CSRFHeader))
	}
	balance := s.balance
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/transactions/":
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "cookie-token", Path: "/"})
		io.WriteString(w, `{"transactions": [{"id": 1, "display_code": "TRN-0001", "description": "Salary", "amount": "`+balance+`", "type": "income", "created_at": "2024-01-01", "running_balance": "`+balance+`"}],
			"total_balance": "`+balance+`", "has_more": false,
			"balance_history": [{"date": "2024-01-01", "balance": "`+balance+`"}]}`)
	case r.Method == http.MethodPost && r.URL.Path == "/api/transactions/":
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.balance = "150.00"
		s.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"message": "Transaction created successfully.",
			"new_transaction": map[string]any{
				"id": 2, "display_code": "TRN-0002", "description": body["description"],
				"amount": body["amount"], "type": body["type"], "created_at": body["created_at"],
			},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail": "Not found."}`)
	}
}

func (s *mockStore) snapshot() (requests, tokens []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...), append([]string(nil), s.tokens...)
}

func buildStack(t *testing.T, storeURL string) (http.Handler, *service.LedgerController) {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{Timeout: 5 * time.Second, Jar: jar}

	tokens, err := client.NewCookieTokenSource(jar, storeURL+"/api", "", "")
	if err != nil {
		t.Fatal(err)
	}
	store := client.NewLedgerClient(
		httpClient,
		storeURL+"/api",
		client.DefaultPaths,
		tokens,
		resilience.NewCircuitBreaker("test-"+t.Name()),
		resilience.Config{MaxRetries: 0, InitialBackoff: 10 * time.Millisecond},
		metrics,
		logger,
	)

	ledger := service.NewLedgerController(store, store, metrics, logger)
	t.Cleanup(ledger.Close)
	return handler.NewRouter(ledger, metrics, logger), ledger
}

// TestIntegration_FullFlow runs reload, create and the follow-up reload
// through the real client against a mock store.
func TestIntegration_FullFlow(t *testing.T) {
	store := &mockStore{balance: "100.00"}
	storeServer := httptest.NewServer(store)
	defer storeServer.Close()

	router, _ := buildStack(t, storeServer.URL)

	// --- Initial load ---
	req := httptest.NewRequest(http.MethodPost, "/v1/reload", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	// --- Create ---
	body, _ := json.Marshal(map[string]string{
		"description": "Freelance",
		"amount":      "50",
		"date":        "2024-01-02",
		"type":        "income",
	})
	req = httptest.NewRequest(http.MethodPost, "/v1/transactions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Message     string `json:"message"`
		Transaction struct {
			DisplayCode string `json:"display_code"`
		} `json:"transaction"`
		View struct {
			Projection struct {
				Balance struct {
					Text string `json:"text"`
				} `json:"balance"`
			} `json:"projection"`
		} `json:"view"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result.Transaction.DisplayCode != "TRN-0002" {
		t.Errorf("expected TRN-0002, got %q", result.Transaction.DisplayCode)
	}
	if result.View.Projection.Balance.Text != "$150.00" {
		t.Errorf("expected reloaded balance $150.00, got %q", result.View.Projection.Balance.Text)
	}

	requests, tokens := store.snapshot()
	want := []string{
		"GET /api/transactions/?page=1",
		"POST /api/transactions/?",
		"GET /api/transactions/?page=1",
	}
	if strings.Join(requests, "|") != strings.Join(want, "|") {
		t.Errorf("unexpected request sequence:\n got %v\nwant %v", requests, want)
	}
	if len(tokens) != 1 || tokens[0] != "cookie-token" {
		t.Errorf("expected the cookie token on the POST, got %v", tokens)
	}
}

// TestIntegration_StoreUnavailable tests 502 handling when the store fails.
func TestIntegration_StoreUnavailable(t *testing.T) {
	storeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer storeServer.Close()

	router, ledger := buildStack(t, storeServer.URL)

	req := httptest.NewRequest(http.MethodPost, "/v1/reload", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), service.MsgLoadFailed) {
		t.Errorf("expected load failure message, got %s", rec.Body.String())
	}
	if ledger.State() != service.StateIdle {
		t.Errorf("expected idle after failure, got %s", ledger.State())
	}
}
