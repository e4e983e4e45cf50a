package service

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/ledgerview/internal/domain"
	"github.com/boddenberg/ledgerview/internal/infra/observability"
	"github.com/boddenberg/ledgerview/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/ledger")

// State is the reconciliation state machine's state.
type State int

const (
	StateIdle State = iota
	StateLoadingFull
	StateLoadingMore
	StateMutating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingFull:
		return "loading_full"
	case StateLoadingMore:
		return "loading_more"
	case StateMutating:
		return "mutating"
	}
	return "unknown"
}

// MarshalText renders the state name in JSON views.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Trigger names, used in logs, metrics and ErrBusy.
const (
	TriggerMount       = "mount"
	TriggerReload      = "reload"
	TriggerApplyFilter = "apply_filters"
	TriggerClearFilter = "clear_filters"
	TriggerLoadMore    = "load_more"
	TriggerCreate      = "create"
	TriggerUpdate      = "update"
	TriggerDelete      = "delete"
	TriggerImport      = "import"
)

// EventKind distinguishes transitions from transient notices.
type EventKind string

const (
	EventTransition EventKind = "transition"
	EventNotice     EventKind = "notice"
)

// Notice is a transient message for the user.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	IsError bool   `json:"is_error"`
}

// Event is delivered to subscribers after every transition and notice.
// Err is set on the transition back to Idle when the operation failed.
type Event struct {
	Kind    EventKind `json:"kind"`
	Trigger string    `json:"trigger"`
	From    State     `json:"from"`
	To      State     `json:"to"`
	View    View      `json:"view"`
	Notice  *Notice   `json:"notice,omitempty"`
	Err     error     `json:"-"`
}

// View is a read-only copy of everything a renderer needs.
type View struct {
	State      State                 `json:"state"`
	Snapshot   LedgerSnapshot        `json:"snapshot"`
	Draft      domain.FilterCriteria `json:"draft"`
	Active     domain.FilterCriteria `json:"active"`
	Page       PageState             `json:"page"`
	Projection Projection            `json:"projection"`
}

// LedgerController owns filters, pagination and the ledger snapshot for one
// mounted view, and serializes every network operation that changes them.
// At most one operation is in flight; triggers arriving while it runs are
// dropped with *domain.ErrBusy, never queued.
//
// Triggers run on the caller's goroutine and return when the operation and
// any follow-up reload completed.
type LedgerController struct {
	id      string
	querier port.TransactionQuerier
	mutator port.TransactionMutator
	metrics *observability.Metrics
	logger  *zap.Logger

	lifetime context.Context
	cancel   context.CancelFunc

	mu       sync.Mutex
	state    State
	closed   bool
	filters  FilterState
	page     PageState
	snapshot LedgerSnapshot

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	// emitMu keeps subscriber delivery in transition order.
	emitMu sync.Mutex
}

// NewLedgerController creates a controller for one view mount.
func NewLedgerController(
	querier port.TransactionQuerier,
	mutator port.TransactionMutator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *LedgerController {
	lifetime, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &LedgerController{
		id:       id,
		querier:  querier,
		mutator:  mutator,
		metrics:  metrics,
		logger:   logger.With(zap.String("controller_id", id)),
		lifetime: lifetime,
		cancel:   cancel,
		page:     NewPageState(),
		subs:     make(map[int]func(Event)),
	}
}

// ID identifies this mount in logs.
func (c *LedgerController) ID() string { return c.id }

// Subscribe registers fn for every event. The returned func unsubscribes.
func (c *LedgerController) Subscribe(fn func(Event)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

// View returns a copy of the current state.
func (c *LedgerController) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// State returns the current machine state.
func (c *LedgerController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close tears the controller down: in-flight requests are cancelled,
// subscribers are dropped and every later trigger returns domain.ErrClosed.
func (c *LedgerController) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()

	c.subMu.Lock()
	c.subs = make(map[int]func(Event))
	c.subMu.Unlock()
}

// UpdateDraft edits a draft filter field. No fetch is issued.
func (c *LedgerController) UpdateDraft(field domain.FilterField, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrClosed
	}
	return c.filters.UpdateDraft(field, value)
}

// Mount performs the initial full load.
func (c *LedgerController) Mount(ctx context.Context) error {
	return c.fullReload(ctx, TriggerMount, nil)
}

// Reload re-fetches page 1 under the active filters.
func (c *LedgerController) Reload(ctx context.Context) error {
	return c.fullReload(ctx, TriggerReload, nil)
}

// ApplyFilters commits the draft as active and reloads from page 1.
func (c *LedgerController) ApplyFilters(ctx context.Context) error {
	return c.fullReload(ctx, TriggerApplyFilter, func() {
		c.filters.CommitDraftAsActive()
	})
}

// ClearFilters empties draft and active filters and reloads from page 1.
func (c *LedgerController) ClearFilters(ctx context.Context) error {
	return c.fullReload(ctx, TriggerClearFilter, func() {
		c.filters.ResetActiveAndDraft()
	})
}

// LoadMore appends the next page. It never touches the total balance or
// the chart series.
func (c *LedgerController) LoadMore(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "LedgerController.LoadMore")
	defer span.End()

	var (
		filters domain.FilterCriteria
		next    int
	)
	err := c.claim(TriggerLoadMore, StateLoadingMore, func() error {
		if !c.page.HasMore {
			return domain.ErrNoMorePages
		}
		if !c.snapshot.Loaded || c.snapshot.Filters != c.filters.Active() {
			return domain.ErrStaleSnapshot
		}
		filters = c.filters.Active()
		next = c.page.NextPage()
		return nil
	})
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("ledger.page", next))

	ctx, done := c.bind(ctx)
	defer done()

	start := time.Now()
	result, err := c.querier.FetchPage(ctx, next, filters)

	c.mu.Lock()
	if err == nil {
		c.snapshot.Append(result.Rows)
		c.page.Advance()
		c.page.RecordFetchResult(result.HasMore)
	}
	events := c.settleLocked(TriggerLoadMore, err, false)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("load more failed", zap.Int("page", next), zap.Error(err))
		events = append(events, c.noticeEvent(TriggerLoadMore, &Notice{Title: "Error", Message: MsgLoadFailed, IsError: true}))
	} else {
		c.metrics.AddRowsLoaded("append", len(result.Rows))
		c.logger.Debug("page appended",
			zap.Int("page", next),
			zap.Int("rows", len(result.Rows)),
			zap.Bool("has_more", result.HasMore),
			zap.Duration("latency", time.Since(start)),
		)
	}
	c.emit(events...)
	return err
}

// Create validates draft, creates the transaction and then reloads.
// The returned error is the mutation's own; a failed follow-up reload is
// reported through a notice only.
func (c *LedgerController) Create(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerController.Create")
	defer span.End()

	var payload domain.TransactionPayload
	err := c.claim(TriggerCreate, StateMutating, func() error {
		p, err := ValidateDraft(draft, c.snapshot.TotalBalance, true)
		payload = p
		return err
	})
	if err != nil {
		return nil, err
	}

	var tx *domain.Transaction
	err = c.mutate(ctx, TriggerCreate, MutationCreate, false, func(ctx context.Context) error {
		var err error
		tx, err = c.mutator.Create(ctx, payload)
		return err
	})
	return tx, err
}

// Update validates draft, updates transaction id and then reloads.
func (c *LedgerController) Update(ctx context.Context, id domain.TransactionID, draft domain.TransactionDraft) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerController.Update")
	defer span.End()
	span.SetAttributes(attribute.String("ledger.transaction_id", string(id)))

	var payload domain.TransactionPayload
	err := c.claim(TriggerUpdate, StateMutating, func() error {
		if id == "" {
			return &domain.ErrValidation{Field: "id", Message: "transaction id is required"}
		}
		p, err := ValidateDraft(draft, c.snapshot.TotalBalance, false)
		payload = p
		return err
	})
	if err != nil {
		return nil, err
	}

	var tx *domain.Transaction
	err = c.mutate(ctx, TriggerUpdate, MutationUpdate, false, func(ctx context.Context) error {
		var err error
		tx, err = c.mutator.Update(ctx, id, payload)
		return err
	})
	return tx, err
}

// Delete removes transaction id and then reloads.
func (c *LedgerController) Delete(ctx context.Context, id domain.TransactionID) error {
	ctx, span := tracer.Start(ctx, "LedgerController.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("ledger.transaction_id", string(id)))

	err := c.claim(TriggerDelete, StateMutating, func() error {
		if id == "" {
			return &domain.ErrValidation{Field: "id", Message: "transaction id is required"}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.mutate(ctx, TriggerDelete, MutationDelete, true, func(ctx context.Context) error {
		return c.mutator.Delete(ctx, id)
	})
}

// ImportExternal asks the store to import external transactions and then reloads.
func (c *LedgerController) ImportExternal(ctx context.Context) (*domain.ImportSummary, error) {
	ctx, span := tracer.Start(ctx, "LedgerController.ImportExternal")
	defer span.End()

	if err := c.claim(TriggerImport, StateMutating, nil); err != nil {
		return nil, err
	}

	var summary *domain.ImportSummary
	err := c.mutate(ctx, TriggerImport, MutationImport, true, func(ctx context.Context) error {
		var err error
		summary, err = c.mutator.ImportExternal(ctx)
		return err
	})
	return summary, err
}

// ============================================================
// State machine internals
// ============================================================

// claim moves Idle -> to if the controller is idle and check passes. check
// runs under the lock and may prepare state; a check error leaves the
// machine Idle.
func (c *LedgerController) claim(trigger string, to State, check func() error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	if c.state != StateIdle {
		busy := &domain.ErrBusy{State: c.state.String(), Trigger: trigger}
		c.mu.Unlock()
		c.metrics.IncrDroppedTrigger(trigger)
		c.logger.Debug("trigger dropped", zap.String("trigger", trigger), zap.String("state", busy.State))
		return busy
	}
	if check != nil {
		if err := check(); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	ev := c.transitionLocked(trigger, to, nil)
	c.mu.Unlock()

	c.emit(ev)
	return nil
}

// settleLocked returns the machine to Idle. With followUp set after a
// successful operation it immediately claims LoadingFull for the reload,
// so no other trigger can slip in between the two steps.
func (c *LedgerController) settleLocked(trigger string, err error, followUp bool) []Event {
	events := []Event{c.transitionLocked(trigger, StateIdle, err)}
	if followUp && err == nil && !c.closed {
		events = append(events, c.transitionLocked(TriggerReload, StateLoadingFull, nil))
	}
	return events
}

func (c *LedgerController) transitionLocked(trigger string, to State, err error) Event {
	from := c.state
	c.state = to
	c.metrics.IncrTransition(from.String(), to.String())
	c.logger.Debug("state transition",
		zap.String("trigger", trigger),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Error(err),
	)
	return Event{
		Kind:    EventTransition,
		Trigger: trigger,
		From:    from,
		To:      to,
		View:    c.viewLocked(),
		Err:     err,
	}
}

// fullReload claims LoadingFull (running prep under the lock first) and loads page 1.
func (c *LedgerController) fullReload(ctx context.Context, trigger string, prep func()) error {
	err := c.claim(trigger, StateLoadingFull, func() error {
		if prep != nil {
			prep()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.loadFirstPage(ctx, trigger)
}

// loadFirstPage runs the page-1 fetch. The machine must already be LoadingFull.
func (c *LedgerController) loadFirstPage(ctx context.Context, trigger string) error {
	ctx, span := tracer.Start(ctx, "LedgerController.loadFirstPage")
	defer span.End()
	span.SetAttributes(attribute.String("ledger.trigger", trigger))

	c.mu.Lock()
	filters := c.filters.Active()
	c.mu.Unlock()

	ctx, done := c.bind(ctx)
	defer done()

	start := time.Now()
	result, err := c.querier.FetchPage(ctx, 1, filters)

	c.mu.Lock()
	if err == nil {
		c.snapshot.Replace(result, filters)
		c.page.ResetToFirstPage()
		c.page.RecordFetchResult(result.HasMore)
	}
	events := c.settleLocked(trigger, err, false)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("full reload failed", zap.String("trigger", trigger), zap.Error(err))
		events = append(events, c.noticeEvent(trigger, &Notice{Title: "Error", Message: MsgLoadFailed, IsError: true}))
	} else {
		c.metrics.AddRowsLoaded("full", len(result.Rows))
		c.logger.Debug("ledger reloaded",
			zap.String("trigger", trigger),
			zap.Int("rows", len(result.Rows)),
			zap.Bool("has_more", result.HasMore),
			zap.Bool("balance_history", result.HasBalanceHistory()),
			zap.Duration("latency", time.Since(start)),
		)
	}
	c.emit(events...)
	return err
}

// mutate runs a claimed mutation, settles to Idle and, on success, follows
// up with a full reload. noticeOnFailure reports failures as a notice too,
// for mutations that have no form to show them on.
func (c *LedgerController) mutate(ctx context.Context, trigger string, kind MutationKind, noticeOnFailure bool, fn func(context.Context) error) error {
	opCtx, done := c.bind(ctx)
	err := fn(opCtx)
	done()

	c.mu.Lock()
	events := c.settleLocked(trigger, err, true)
	reload := err == nil && c.state == StateLoadingFull
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("mutation failed", zap.String("trigger", trigger), zap.Error(err))
		if noticeOnFailure {
			events = append(events, c.noticeEvent(trigger, &Notice{Title: "Error", Message: MutationMessage(kind, err), IsError: true}))
		}
		c.emit(events...)
		return err
	}

	c.logger.Info("mutation succeeded", zap.String("trigger", trigger))
	notice := c.noticeEvent(trigger, &Notice{Title: "Success", Message: SuccessMessage(kind)})
	// the reload transition is emitted after the success notice
	if len(events) > 1 {
		c.emit(events[0], notice, events[1])
	} else {
		c.emit(append(events, notice)...)
	}

	if reload {
		// reload failures surface as their own notice
		_ = c.loadFirstPage(ctx, TriggerReload)
	}
	return nil
}

func (c *LedgerController) noticeEvent(trigger string, n *Notice) Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Event{
		Kind:    EventNotice,
		Trigger: trigger,
		From:    c.state,
		To:      c.state,
		View:    c.viewLocked(),
		Notice:  n,
	}
}

// bind derives a context that is also cancelled when the controller closes.
func (c *LedgerController) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *LedgerController) viewLocked() View {
	snap := c.snapshot.Clone()
	return View{
		State:      c.state,
		Snapshot:   snap,
		Draft:      c.filters.Draft(),
		Active:     c.filters.Active(),
		Page:       c.page,
		Projection: Project(snap, c.page),
	}
}

func (c *LedgerController) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.subMu.Lock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
