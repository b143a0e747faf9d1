// Package engine runs the source adapters and reconciles their output with
// persisted state into a bounded, deduplicated catalog.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/camarohq/hunter/internal/model"
	"github.com/camarohq/hunter/internal/notify"
	"github.com/camarohq/hunter/internal/relevance"
	"github.com/camarohq/hunter/internal/resilience"
	"github.com/camarohq/hunter/internal/source"
	"github.com/camarohq/hunter/internal/state"
)

// Options tunes a run.
type Options struct {
	Capacity       int
	Order          Order
	Concurrency    int
	AdapterTimeout time.Duration
	RunTimeout     time.Duration
	Retry          resilience.Policy
	DryRun         bool
	Clock          func() time.Time
}

// Report describes a completed run.
type Report struct {
	RunID    string                `json:"run_id"`
	Counts   model.Counts          `json:"counts"`
	Sources  []SourceReport        `json:"sources"`
	New      []model.Listing       `json:"-"`
	Document model.CatalogDocument `json:"-"`
	DryRun   bool                  `json:"dry_run"`
}

// Engine wires adapters, the state store and the notifier together.
type Engine struct {
	adapters []source.Adapter
	store    state.Store
	filter   *relevance.Filter
	notifier notify.Notifier
	opts     Options
}

// New creates an Engine. Adapters run concurrently but are merged in the
// order given here. notifier may be nil.
func New(adapters []source.Adapter, store state.Store, filter *relevance.Filter, notifier notify.Notifier, opts Options) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 1000
	}
	if opts.Order == "" {
		opts.Order = OrderNewest
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{
		adapters: adapters,
		store:    store,
		filter:   filter,
		notifier: notifier,
		opts:     opts,
	}
}

// Run performs one full fetch, reconcile, persist and notify cycle. Adapter
// and notifier failures are logged and never fail the run; state store
// failures do.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("component", "engine"), zap.String("run_id", runID))
	start := time.Now()

	seen, err := e.store.LoadSeen(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "engine: load seen ledger")
	}
	previous, err := e.store.LoadCatalog(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "engine: load catalog")
	}
	log.Info("run starting",
		zap.Int("adapters", len(e.adapters)),
		zap.Int("seen", len(seen)),
		zap.Int("catalog", len(previous.Listings)),
	)

	now := e.opts.Clock().UTC()
	batches := e.fetchAll(ctx, log)

	res := Reconcile(batches, seen, previous.Listings, Policy{
		Filter:   e.filter,
		Capacity: e.opts.Capacity,
		Order:    e.opts.Order,
		Now:      now,
	})

	doc := model.CatalogDocument{
		UpdatedAt: now.Format(time.RFC3339),
		RunID:     runID,
		Total:     res.Counts.Total,
		NewCount:  res.Counts.New,
		Listings:  res.Catalog,
	}
	report := &Report{
		RunID:    runID,
		Counts:   res.Counts,
		Sources:  res.Sources,
		New:      res.New,
		Document: doc,
		DryRun:   e.opts.DryRun,
	}

	fields := []zap.Field{
		zap.Int("fetched", res.Counts.Fetched),
		zap.Int("relevant", res.Counts.Relevant),
		zap.Int("duplicates", res.Counts.Duplicates),
		zap.Int("new", res.Counts.New),
		zap.Int("carried", res.Counts.Carried),
		zap.Int("dropped", res.Counts.Dropped),
		zap.Int("total", res.Counts.Total),
	}

	if e.opts.DryRun {
		log.Info("dry run complete, state untouched", append(fields, zap.Duration("elapsed", time.Since(start)))...)
		return report, nil
	}

	if err := e.store.Commit(ctx, doc, res.Seen); err != nil {
		return nil, eris.Wrap(err, "engine: persist catalog and seen ledger")
	}
	log.Info("run persisted", append(fields, zap.Duration("elapsed", time.Since(start)))...)

	if e.notifier != nil && len(res.New) > 0 {
		if err := e.notifier.Notify(ctx, res.New); err != nil {
			log.Error("notification failed", zap.String("notifier", e.notifier.Name()), zap.Error(err))
		}
	}
	return report, nil
}

// fetchAll runs every adapter and returns their batches in adapter order.
// The run deadline stops adapters that have not finished; batches already
// collected are kept.
func (e *Engine) fetchAll(ctx context.Context, log *zap.Logger) []Batch {
	if e.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RunTimeout)
		defer cancel()
	}

	batches := make([]Batch, len(e.adapters))

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, a := range e.adapters {
		g.Go(func() error {
			batches[i] = e.fetchOne(ctx, a, log)
			return nil // one adapter never aborts the others
		})
	}
	_ = g.Wait()
	return batches
}

func (e *Engine) fetchOne(ctx context.Context, a source.Adapter, log *zap.Logger) Batch {
	log = log.With(zap.String("source", a.Name()))
	start := time.Now()
	b := Batch{Source: a.Name()}

	if err := ctx.Err(); err != nil {
		b.Err = eris.Wrap(err, "engine: run deadline reached before adapter started")
		log.Error("adapter skipped", zap.Error(b.Err))
		return b
	}

	actx := ctx
	if e.opts.AdapterTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, e.opts.AdapterTimeout)
		defer cancel()
	}

	policy := e.opts.Retry
	policy.OnRetry = resilience.RetryLogger("engine", a.Name())
	candidates, err := resilience.Do(actx, policy, func(ctx context.Context) ([]model.RawCandidate, error) {
		return safeFetch(ctx, a)
	})
	b.Duration = time.Since(start)

	if err != nil {
		b.Err = err
		log.Error("adapter failed", zap.Error(err), zap.Duration("elapsed", b.Duration))
		return b
	}
	b.Candidates = candidates
	log.Info("adapter complete", zap.Int("candidates", len(candidates)), zap.Duration("elapsed", b.Duration))
	return b
}

// safeFetch converts an adapter panic into an error.
func safeFetch(ctx context.Context, a source.Adapter) (out []model.RawCandidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = eris.Errorf("engine: adapter %s panicked: %v", a.Name(), r)
		}
	}()
	return a.Fetch(ctx)
}
