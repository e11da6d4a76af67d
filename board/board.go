// Package board wires the task mirror, the user's view criteria and the
// command service into one signal graph per signed-in session.
//
// Any change to the mirror or to a criterion recomputes the derived list.
// The derived list and the error slot are exposed as reactive values so
// transports can push them to clients.
package board

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"tasksync/command"
	"tasksync/domain"
	"tasksync/mirror"
	"tasksync/reactive"
	"tasksync/storage"
	"tasksync/view"
)

type config struct {
	logger  log.FieldLogger
	policy  command.ConflictPolicy
	journal command.Journal
	tracer  trace.Tracer
}

type Option func(*config)

// WithLogger sets the logger. A nil logger keeps the standard one.
func WithLogger(l log.FieldLogger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithConflictPolicy(p command.ConflictPolicy) Option {
	return func(c *config) { c.policy = p }
}

func WithJournal(j command.Journal) Option { return func(c *config) { c.journal = j } }

func WithTracer(t trace.Tracer) Option { return func(c *config) { c.tracer = t } }

// Board is the per-session task board.
type Board struct {
	store  *mirror.Store
	cmds   *command.Service
	logger log.FieldLogger

	priority *reactive.Value[*domain.Priority]
	query    *reactive.Value[string]
	date     *reactive.Value[*time.Time]
	order    *reactive.Value[domain.SortOrder]
	derived  *reactive.Value[[]domain.Task]
	lastErr  *reactive.Value[error]

	recomputeMu sync.Mutex
	batching    bool // guarded by recomputeMu
	criteriaMu  sync.Mutex
	cancels     []func()

	done      chan struct{}
	closeOnce sync.Once
}

func New(remote storage.Remote, opts ...Option) *Board {
	cfg := config{logger: log.StandardLogger()}
	for _, o := range opts {
		o(&cfg)
	}

	b := &Board{
		store:    mirror.New(remote, cfg.logger),
		logger:   cfg.logger,
		priority: reactive.NewValue[*domain.Priority](nil),
		query:    reactive.NewValue(""),
		date:     reactive.NewValue[*time.Time](nil),
		order:    reactive.NewValue(domain.DefaultSortOrder),
		derived:  reactive.NewValue([]domain.Task{}),
		lastErr:  reactive.NewValue[error](nil),
		done:     make(chan struct{}),
	}

	cmdOpts := []command.Option{
		command.WithPolicy(cfg.policy),
		command.WithErrorSink(b),
		command.WithLogger(cfg.logger),
	}
	if cfg.journal != nil {
		cmdOpts = append(cmdOpts, command.WithJournal(cfg.journal))
	}
	if cfg.tracer != nil {
		cmdOpts = append(cmdOpts, command.WithTracer(cfg.tracer))
	}
	b.cmds = command.New(remote, b.store.UserID, cmdOpts...)
	b.store.OnError(b.Report)

	b.cancels = []func(){
		b.store.Tasks().Observe(func([]domain.Task) { b.recompute() }),
		b.priority.Observe(func(*domain.Priority) { b.recompute() }),
		b.query.Observe(func(string) { b.recompute() }),
		b.date.Observe(func(*time.Time) { b.recompute() }),
		b.order.Observe(func(domain.SortOrder) { b.recompute() }),
	}
	return b
}

// recompute derives the list from the current mirror and criteria. It is a
// no-op while SetCriteria is replacing the criteria.
func (b *Board) recompute() {
	b.recomputeMu.Lock()
	defer b.recomputeMu.Unlock()
	if b.batching {
		return
	}
	b.derived.Set(view.Derive(b.store.Tasks().Get(), b.Criteria()))
}

// SetUser switches the board to userID's collection. An empty id signs out.
func (b *Board) SetUser(ctx context.Context, userID string) error {
	if userID == "" {
		b.Logout()
		return nil
	}
	return b.store.Start(ctx, userID)
}

// Logout releases the subscription and clears the mirror and the error slot.
// View criteria are kept.
func (b *Board) Logout() {
	b.store.Stop()
	b.lastErr.Set(nil)
}

func (b *Board) UserID() string { return b.store.UserID() }

func (b *Board) SetPriority(p *domain.Priority) { b.priority.Set(p) }

func (b *Board) SetQuery(q string) { b.query.Set(q) }

// SetDate filters on a calendar day; nil clears the filter.
func (b *Board) SetDate(d *time.Time) { b.date.Set(d) }

func (b *Board) SetOrder(o domain.SortOrder) {
	if !o.Valid() {
		o = domain.DefaultSortOrder
	}
	b.order.Set(o)
}

// SetCriteria replaces every criterion and recomputes the derived list once.
func (b *Board) SetCriteria(c view.Criteria) {
	b.criteriaMu.Lock()
	defer b.criteriaMu.Unlock()

	b.recomputeMu.Lock()
	b.batching = true
	b.recomputeMu.Unlock()

	b.SetPriority(c.Priority)
	b.SetQuery(c.Query)
	b.SetDate(c.Date)
	b.SetOrder(c.Order)

	b.recomputeMu.Lock()
	b.batching = false
	b.recomputeMu.Unlock()
	b.recompute()
}

func (b *Board) Criteria() view.Criteria {
	return view.Criteria{
		Priority: b.priority.Get(),
		Query:    b.query.Get(),
		Date:     b.date.Get(),
		Order:    b.order.Get(),
	}
}

// Tasks returns the current derived list.
func (b *Board) Tasks() []domain.Task { return b.derived.Get() }

// Derived is the derived list signal.
func (b *Board) Derived() *reactive.Value[[]domain.Task] { return b.derived }

// Mirror is the unfiltered task mirror signal.
func (b *Board) Mirror() *reactive.Value[[]domain.Task] { return b.store.Tasks() }

func (b *Board) Sections(now time.Time) view.Sections {
	return view.GroupSections(b.Tasks(), now)
}

// Calendar lays out month; day markers use the unfiltered mirror.
func (b *Board) Calendar(month, now time.Time) [view.GridDays]view.DayCell {
	return view.MonthGrid(month, now, b.store.Tasks().Get())
}

func (b *Board) Status() mirror.Status { return b.store.State().Get() }

// State is the mirror status signal.
func (b *Board) State() *reactive.Value[mirror.Status] { return b.store.State() }

// Err is the most recent error, cleared by the next successful command.
func (b *Board) Err() error { return b.lastErr.Get() }

// Errors is the error slot signal.
func (b *Board) Errors() *reactive.Value[error] { return b.lastErr }

func (b *Board) DismissError() { b.lastErr.Set(nil) }

// Report implements command.ErrorSink.
func (b *Board) Report(err error) { b.lastErr.Set(err) }

func (b *Board) Create(ctx context.Context, t domain.Task) (domain.Task, error) {
	return b.cmds.Create(ctx, t)
}

func (b *Board) Update(ctx context.Context, t domain.Task) error { return b.cmds.Update(ctx, t) }

func (b *Board) Delete(ctx context.Context, id string) error { return b.cmds.Delete(ctx, id) }

func (b *Board) ToggleCompletion(ctx context.Context, t domain.Task) error {
	return b.cmds.ToggleCompletion(ctx, t)
}

// Close stops the subscription and detaches the signal graph. It is safe to
// call more than once.
func (b *Board) Close() {
	b.closeOnce.Do(func() {
		b.store.Stop()
		for _, cancel := range b.cancels {
			cancel()
		}
		close(b.done)
	})
}

// Done is closed once the board is closed.
func (b *Board) Done() <-chan struct{} { return b.done }
