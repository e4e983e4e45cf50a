// Package client talks to the remote transaction store over REST.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/ledgerview/internal/domain"
	"github.com/boddenberg/ledgerview/internal/infra/observability"
	"github.com/boddenberg/ledgerview/internal/infra/resilience"
	"github.com/boddenberg/ledgerview/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("client")

// Operation names used for spans, metrics and error messages.
const (
	OpFetchPage = "fetch_page"
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpImport    = "import"
)

// Paths locates the store's resources relative to the base URL.
type Paths struct {
	Transactions string
	Import       string
}

// DefaultPaths matches the store's router, trailing slashes included.
var DefaultPaths = Paths{
	Transactions: "transactions/",
	Import:       "fetch-external-transactions/",
}

var _ port.TransactionStore = (*LedgerClient)(nil)

// LedgerClient implements port.TransactionStore against the REST backend.
type LedgerClient struct {
	httpClient *http.Client
	baseURL    string
	paths      Paths
	tokens     port.TokenSource
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewLedgerClient creates a new LedgerClient. Zero-valued paths fall back to DefaultPaths.
func NewLedgerClient(
	httpClient *http.Client,
	baseURL string,
	paths Paths,
	tokens port.TokenSource,
	cb *gobreaker.CircuitBreaker,
	cfg resilience.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *LedgerClient {
	if paths.Transactions == "" {
		paths.Transactions = DefaultPaths.Transactions
	}
	if paths.Import == "" {
		paths.Import = DefaultPaths.Import
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &LedgerClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		paths:      paths,
		tokens:     tokens,
		cb:         cb,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// --- wire types ---

type wireTransaction struct {
	ID             domain.TransactionID `json:"id"`
	DisplayCode    string               `json:"display_code"`
	Description    *string              `json:"description"`
	Amount         json.RawMessage      `json:"amount"`
	Type           string               `json:"type"`
	CreatedAt      string               `json:"created_at"`
	RunningBalance json.RawMessage      `json:"running_balance"`
}

type wireBalancePoint struct {
	Date    string          `json:"date"`
	Balance json.RawMessage `json:"balance"`
}

type wirePage struct {
	Transactions   []wireTransaction  `json:"transactions"`
	TotalBalance   json.RawMessage    `json:"total_balance"`
	HasMore        bool               `json:"has_more"`
	BalanceHistory []wireBalancePoint `json:"balance_history"`
}

// FetchPage implements port.TransactionQuerier. Only non-empty filter
// fields are sent.
func (c *LedgerClient) FetchPage(ctx context.Context, page int, filters domain.FilterCriteria) (*domain.PageResult, error) {
	ctx, span := tracer.Start(ctx, "LedgerClient.FetchPage")
	defer span.End()
	span.SetAttributes(attribute.Int("ledger.page", page))

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	for _, field := range domain.FilterFields {
		if v := filters.Get(field); v != "" {
			query.Set(string(field), v)
		}
	}

	var result *domain.PageResult
	err := c.execute(ctx, OpFetchPage, true, func() error {
		status, body, err := c.do(ctx, http.MethodGet, c.paths.Transactions, query, nil)
		if err != nil {
			return &domain.ErrNetwork{Operation: OpFetchPage, Err: err}
		}
		if !isSuccess(status) {
			netErr := &domain.ErrNetwork{Operation: OpFetchPage, Status: status, Detail: detailOf(body)}
			if status < http.StatusInternalServerError {
				return resilience.Permanent(netErr)
			}
			return netErr
		}

		var wire wirePage
		if err := json.Unmarshal(body, &wire); err != nil {
			return resilience.Permanent(&domain.ErrNetwork{Operation: OpFetchPage, Status: status, Err: fmt.Errorf("decode page: %w", err)})
		}
		r, err := toPageResult(&wire)
		if err != nil {
			return resilience.Permanent(&domain.ErrNetwork{Operation: OpFetchPage, Status: status, Err: err})
		}
		result = r
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("ledger.rows", len(result.Rows)),
		attribute.Bool("ledger.has_more", result.HasMore),
	)
	return result, nil
}

// Create implements port.TransactionMutator.
func (c *LedgerClient) Create(ctx context.Context, payload domain.TransactionPayload) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerClient.Create")
	defer span.End()

	return c.write(ctx, OpCreate, http.MethodPost, c.paths.Transactions, payload, "new_transaction")
}

// Update implements port.TransactionMutator.
func (c *LedgerClient) Update(ctx context.Context, id domain.TransactionID, payload domain.TransactionPayload) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerClient.Update")
	defer span.End()
	span.SetAttributes(attribute.String("ledger.transaction_id", string(id)))

	return c.write(ctx, OpUpdate, http.MethodPut, c.resourcePath(id), payload, "updated_transaction")
}

// Delete implements port.TransactionMutator.
func (c *LedgerClient) Delete(ctx context.Context, id domain.TransactionID) error {
	ctx, span := tracer.Start(ctx, "LedgerClient.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("ledger.transaction_id", string(id)))

	err := c.execute(ctx, OpDelete, false, func() error {
		status, body, err := c.do(ctx, http.MethodDelete, c.resourcePath(id), nil, nil)
		if err != nil {
			return &domain.ErrNetwork{Operation: OpDelete, Err: err}
		}
		if !isSuccess(status) {
			return permanentIfClientError(status, &domain.ErrNetwork{Operation: OpDelete, Status: status, Detail: detailOf(body)})
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// ImportExternal implements port.TransactionMutator.
func (c *LedgerClient) ImportExternal(ctx context.Context) (*domain.ImportSummary, error) {
	ctx, span := tracer.Start(ctx, "LedgerClient.ImportExternal")
	defer span.End()

	var summary domain.ImportSummary
	err := c.execute(ctx, OpImport, false, func() error {
		status, body, err := c.do(ctx, http.MethodPost, c.paths.Import, nil, nil)
		if err != nil {
			return &domain.ErrNetwork{Operation: OpImport, Err: err}
		}
		if !isSuccess(status) {
			return permanentIfClientError(status, &domain.ErrNetwork{Operation: OpImport, Status: status, Detail: detailOf(body)})
		}
		if len(bytes.TrimSpace(body)) > 0 {
			_ = json.Unmarshal(body, &summary) // summary is informational
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &summary, nil
}

// write sends a create/update body. Structured 4xx bodies become
// ErrFieldValidation; anything else is an ErrNetwork. envelope names the key
// the store may nest the resulting transaction under.
func (c *LedgerClient) write(ctx context.Context, op, method, path string, payload domain.TransactionPayload, envelope string) (*domain.Transaction, error) {
	var tx *domain.Transaction
	err := c.execute(ctx, op, false, func() error {
		status, body, err := c.do(ctx, method, path, nil, payload)
		if err != nil {
			return &domain.ErrNetwork{Operation: op, Err: err}
		}
		if !isSuccess(status) {
			if fv := fieldErrorsOf(body); fv != nil {
				return resilience.Permanent(fv)
			}
			return permanentIfClientError(status, &domain.ErrNetwork{Operation: op, Status: status})
		}

		t, err := decodeWritten(body, envelope)
		if err != nil {
			return resilience.Permanent(&domain.ErrNetwork{Operation: op, Status: status, Err: err})
		}
		tx = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// execute runs fn through the circuit breaker (and the retry loop when
// retry is set) and normalizes the resulting error.
func (c *LedgerClient) execute(ctx context.Context, op string, retry bool, fn func() error) error {
	cfg := c.cfg
	if !retry {
		cfg.MaxRetries = 0
	}

	start := time.Now()
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, cfg, fn)
	})
	c.metrics.RecordRemoteDuration(op, time.Since(start))
	if err == nil {
		return nil
	}
	c.metrics.IncrRemoteError(op)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("ledger store: circuit open", zap.String("operation", op))
		return &domain.ErrNetwork{Operation: op, Err: &domain.ErrCircuitOpen{Service: c.cb.Name()}}
	}

	var fieldErr *domain.ErrFieldValidation
	if errors.As(err, &fieldErr) {
		return fieldErr
	}
	var netErr *domain.ErrNetwork
	if errors.As(err, &netErr) {
		return netErr
	}
	return &domain.ErrNetwork{Operation: op, Err: err}
}

// do executes one request. A non-2xx status is not an error at this level.
func (c *LedgerClient) do(ctx context.Context, method, path string, query url.Values, payload any) (int, []byte, error) {
	target := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set(CSRFHeader, token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ledger store: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("ledger store: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return 0, nil, err
	}

	if !isSuccess(resp.StatusCode) {
		c.logger.Warn("ledger store: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
	} else {
		c.logger.Debug("ledger store: request OK",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
	}
	return resp.StatusCode, body, nil
}

func (c *LedgerClient) resourcePath(id domain.TransactionID) string {
	base := strings.TrimRight(c.paths.Transactions, "/")
	p := base + "/" + url.PathEscape(string(id))
	if strings.HasSuffix(c.paths.Transactions, "/") {
		p += "/"
	}
	return p
}

// --- decoding helpers ---

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func permanentIfClientError(status int, err error) error {
	if status < http.StatusInternalServerError {
		return resilience.Permanent(err)
	}
	return err
}

// detailOf extracts a `detail` string from a failure body, if it has one.
func detailOf(body []byte) string {
	var v struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return ""
	}
	return v.Detail
}

// fieldErrorsOf parses a field-keyed error body. It returns nil when the
// body is not a JSON object with at least one usable message.
func fieldErrorsOf(body []byte) *domain.ErrFieldValidation {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		return nil
	}

	fv := &domain.ErrFieldValidation{Fields: make(map[string][]string)}
	for key, val := range raw {
		msgs := messagesOf(val)
		if len(msgs) == 0 {
			continue
		}
		if key == "detail" {
			fv.Detail = strings.Join(msgs, ", ")
			continue
		}
		fv.Fields[key] = msgs
	}
	if fv.Detail == "" && len(fv.Fields) == 0 {
		return nil
	}
	return fv
}

// messagesOf accepts either a string or a list of strings.
func messagesOf(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return []string{s}
	}
	return nil
}

func decodeWritten(body []byte, envelope string) (*domain.Transaction, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	payload := body
	if nested, ok := raw[envelope]; ok {
		payload = nested
	}

	var w wireTransaction
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	t, err := toTransaction(&w)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toPageResult(w *wirePage) (*domain.PageResult, error) {
	total, err := decimalOf(w.TotalBalance)
	if err != nil {
		return nil, fmt.Errorf("total_balance: %w", err)
	}

	out := &domain.PageResult{
		Rows:         make([]domain.Transaction, 0, len(w.Transactions)),
		TotalBalance: total,
		HasMore:      w.HasMore,
	}
	for i := range w.Transactions {
		t, err := toTransaction(&w.Transactions[i])
		if err != nil {
			return nil, err
		}
		out.Rows = append(out.Rows, t)
	}

	if w.BalanceHistory != nil {
		out.BalanceHistory = make([]domain.BalancePoint, 0, len(w.BalanceHistory))
		for _, p := range w.BalanceHistory {
			d, err := domain.ParseCalendarDate(p.Date)
			if err != nil {
				return nil, fmt.Errorf("balance_history: %w", err)
			}
			b, err := decimalOf(p.Balance)
			if err != nil {
				return nil, fmt.Errorf("balance_history: %w", err)
			}
			out.BalanceHistory = append(out.BalanceHistory, domain.BalancePoint{Date: d, Balance: b})
		}
	}
	return out, nil
}

func toTransaction(w *wireTransaction) (domain.Transaction, error) {
	amount, err := decimalOf(w.Amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s amount: %w", w.ID, err)
	}
	running, err := decimalOf(w.RunningBalance)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s running_balance: %w", w.ID, err)
	}
	created, err := domain.ParseCalendarDate(w.CreatedAt)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s created_at: %w", w.ID, err)
	}

	t := domain.Transaction{
		ID:             w.ID,
		DisplayCode:    w.DisplayCode,
		Amount:         amount,
		Type:           domain.TransactionType(w.Type),
		CreatedAt:      created,
		RunningBalance: running,
	}
	if w.Description != nil {
		t.Description = *w.Description
	}
	return t, nil
}

// decimalOf reads a JSON number or numeric string; absent and null read as zero.
func decimalOf(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, err
		}
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}
