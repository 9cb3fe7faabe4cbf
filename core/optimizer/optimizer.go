package optimizer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/kilianp07/railopt/core/adapter"
	"github.com/kilianp07/railopt/core/events"
	"github.com/kilianp07/railopt/core/logger"
	"github.com/kilianp07/railopt/core/metrics"
	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/core/selector"
	"github.com/kilianp07/railopt/core/solver"
	"github.com/kilianp07/railopt/internal/eventbus"
)

// Result is the outcome of one conflict of a batch.
type Result struct {
	ConflictID string
	Decision   model.Decision
	Err        error
}

// Optimizer runs the enabled strategies for each conflict and selects the
// decision handed back to the caller.
type Optimizer struct {
	opts    Options
	solvers []solver.Solver
	bounds  selector.Bounds
	sink    metrics.MetricsSink
	bus     *eventbus.Bus[events.Event]
	log     logger.Logger
	now     func() time.Time

	sem   *semaphore.Weighted
	group singleflight.Group

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Option customises an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(o *Optimizer) { o.log = logger.OrNop(l) } }

// WithMetricsSink sets the sink notified once per completed decision.
func WithMetricsSink(s metrics.MetricsSink) Option {
	return func(o *Optimizer) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithEventBus publishes strategy and decision events on b.
func WithEventBus(b *eventbus.Bus[events.Event]) Option { return func(o *Optimizer) { o.bus = b } }

// WithClock overrides the time source used to stamp decisions.
func WithClock(now func() time.Time) Option { return func(o *Optimizer) { o.now = now } }

// New builds an optimizer. Every enabled strategy must be provided in
// solvers; strategies not enabled are ignored. Attempts are reported in the
// order of opts.EnabledStrategies.
func New(solvers []solver.Solver, opts Options, options ...Option) (*Optimizer, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	byName := make(map[model.StrategyName]solver.Solver, len(solvers))
	for _, s := range solvers {
		if s != nil {
			byName[s.Name()] = s
		}
	}
	o := &Optimizer{
		opts:     opts,
		bounds:   make(selector.Bounds, len(opts.EnabledStrategies)),
		sink:     metrics.NopSink{},
		log:      logger.Nop{},
		now:      time.Now,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrentConflicts)),
		inflight: make(map[string]struct{}),
	}
	for _, name := range opts.EnabledStrategies {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("optimizer: strategy %q enabled but not provided", name)
		}
		o.solvers = append(o.solvers, s)
		o.bounds[name] = s.Bounds()
	}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

// Options returns the effective options.
func (o *Optimizer) Options() Options { return o.opts }

// OptimizeConflict resolves a single conflict. Adapter errors and
// orchestrator errors are returned; solver failures only show up in the
// decision's attempts. The context only matters while the request is queued:
// once solving has started it runs to completion under the solver budget.
func (o *Optimizer) OptimizeConflict(ctx context.Context, c model.Conflict, snap model.NetworkSnapshot) (model.Decision, error) {
	return o.optimize(ctx, c, snap, nil)
}

// BatchOptimize resolves every conflict independently under the shared
// concurrency cap. Conflicts enter the queue in input order and results are
// returned in the same order.
func (o *Optimizer) BatchOptimize(ctx context.Context, conflicts []model.Conflict, snap model.NetworkSnapshot) []Result {
	out := make([]Result, len(conflicts))
	var wg sync.WaitGroup
	for i, c := range conflicts {
		out[i].ConflictID = c.ID
		if err := o.sem.Acquire(ctx, 1); err != nil {
			out[i].Err = &OrchestratorError{Kind: KindCanceled, ConflictID: c.ID, Err: err}
			continue
		}
		t := &ticket{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i].Decision, out[i].Err = o.optimize(ctx, c, snap, t)
		}()
	}
	wg.Wait()
	return out
}

// ticket is a concurrency slot acquired ahead of time. Whoever claims it
// first either uses it or gives it back.
type ticket struct {
	claimed atomic.Bool
}

func (t *ticket) claim() bool { return t != nil && t.claimed.CompareAndSwap(false, true) }

func (o *Optimizer) acquire(ctx context.Context, t *ticket) error {
	if t.claim() {
		return nil
	}
	return o.sem.Acquire(ctx, 1)
}

func (o *Optimizer) drop(t *ticket) {
	if t.claim() {
		o.sem.Release(1)
	}
}

func (o *Optimizer) optimize(ctx context.Context, c model.Conflict, snap model.NetworkSnapshot, t *ticket) (model.Decision, error) {
	if o.opts.OnDuplicate == DuplicateJoin {
		return o.join(ctx, c, snap, t)
	}
	if !o.claimID(c.ID) {
		o.drop(t)
		decisionsTotal.WithLabelValues("already_in_progress").Inc()
		return model.Decision{}, &OrchestratorError{Kind: KindAlreadyInProgress, ConflictID: c.ID}
	}
	defer o.releaseID(c.ID)
	if err := o.acquire(ctx, t); err != nil {
		return model.Decision{}, &OrchestratorError{Kind: KindCanceled, ConflictID: c.ID, Err: err}
	}
	defer o.sem.Release(1)
	return o.run(context.WithoutCancel(ctx), c, snap)
}

// join shares one run between every concurrent request for the same
// conflict. A caller that gives up while the run is still queued gets
// ErrCanceled; once the run has started its initiator waits for it.
func (o *Optimizer) join(ctx context.Context, c model.Conflict, snap model.NetworkSnapshot, t *ticket) (model.Decision, error) {
	var started atomic.Bool
	// the in-flight mark and the shared call are created and removed together
	// under o.mu, so a caller that finds no mark is the one whose fn runs
	o.mu.Lock()
	_, running := o.inflight[c.ID]
	if !running {
		o.inflight[c.ID] = struct{}{}
	}
	ch := o.group.DoChan(c.ID, func() (any, error) {
		defer o.finishJoin(c.ID)
		if err := o.acquire(ctx, t); err != nil {
			return model.Decision{}, &OrchestratorError{Kind: KindCanceled, ConflictID: c.ID, Err: err}
		}
		defer o.sem.Release(1)
		started.Store(true)
		return o.run(context.WithoutCancel(ctx), c, snap)
	})
	o.mu.Unlock()
	if running {
		// a joiner must not sit on a slot the running request may need
		o.drop(t)
	}

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		if !started.Load() {
			o.drop(t)
			return model.Decision{}, &OrchestratorError{Kind: KindCanceled, ConflictID: c.ID, Err: ctx.Err()}
		}
		r = <-ch
	}
	o.drop(t)
	if r.Err != nil {
		return model.Decision{}, r.Err
	}
	d := r.Val.(model.Decision)
	if r.Shared {
		d = cloneDecision(d)
	}
	return d, nil
}

func (o *Optimizer) claimID(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inflight[id]; ok {
		return false
	}
	o.inflight[id] = struct{}{}
	return true
}

func (o *Optimizer) releaseID(id string) {
	o.mu.Lock()
	delete(o.inflight, id)
	o.mu.Unlock()
}

// finishJoin ends a shared run; the next request for id starts a new one.
func (o *Optimizer) finishJoin(id string) {
	o.mu.Lock()
	delete(o.inflight, id)
	o.group.Forget(id)
	o.mu.Unlock()
}

// run performs one resolution. ctx is expected to be detached from the
// caller's cancellation.
func (o *Optimizer) run(ctx context.Context, c model.Conflict, snap model.NetworkSnapshot) (model.Decision, error) {
	inFlight.Inc()
	defer inFlight.Dec()
	start := time.Now()

	p, err := adapter.Normalize(c, snap)
	if err != nil {
		decisionsTotal.WithLabelValues("error").Inc()
		o.log.Errorf("conflict %s: %v", c.ID, err)
		return model.Decision{}, fmt.Errorf("optimize conflict %s: %w", c.ID, err)
	}

	results := make([]selector.StrategyResult, len(o.solvers))
	var wg sync.WaitGroup
	for i, s := range o.solvers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t0 := time.Now()
			cands, err := solver.Run(ctx, s, p.Clone(), o.opts.SolverBudget)
			results[i] = selector.StrategyResult{
				Strategy:   s.Name(),
				Candidates: cands,
				Err:        err,
				Elapsed:    time.Since(t0),
			}
		}()
	}
	wg.Wait()

	d := selector.Select(c.ID, results, o.bounds)
	if d.Solution != nil {
		acts, err := adapter.Denormalize(*d.Solution, c)
		if err != nil {
			decisionsTotal.WithLabelValues("error").Inc()
			o.log.Errorf("conflict %s: %s produced an unusable solution: %v", c.ID, d.Solution.Strategy, err)
			return model.Decision{}, fmt.Errorf("optimize conflict %s: %w", c.ID, err)
		}
		d.Actions = acts
	}
	d.CreatedAt = o.now()
	d.AutoApply = !d.RequiresHumanReview && d.Confidence >= o.opts.AutoApplyThreshold
	if err := d.Validate(); err != nil {
		o.log.Warnf("conflict %s: %v, falling back to manual review", c.ID, err)
		d = withoutSolution(d)
	}
	elapsed := time.Since(start)

	o.report(d, elapsed)
	return d, nil
}

// report emits every side effect of a completed decision.
func (o *Optimizer) report(d model.Decision, elapsed time.Duration) {
	optimizeLatency.WithLabelValues(d.Method()).Observe(elapsed.Seconds())
	decisionsTotal.WithLabelValues(outcome(d)).Inc()
	for _, a := range d.Attempts {
		attemptsTotal.WithLabelValues(string(a.Strategy), string(a.Status)).Inc()
		if o.bus != nil {
			o.bus.Publish(events.StrategyEvent{ConflictID: d.ConflictID, Attempt: a, Time: d.CreatedAt})
		}
	}
	if o.bus != nil {
		o.bus.Publish(events.DecisionEvent{Decision: cloneDecision(d), Latency: elapsed})
	}
	if err := o.sink.RecordDecision(metrics.NewDecisionMetric(d, elapsed)); err != nil {
		o.log.Errorf("metrics sink error: %v", err)
	}
	o.log.Debugw("conflict resolved", map[string]any{
		"conflict_id": d.ConflictID,
		"decision_id": d.ID,
		"method":      d.Method(),
		"score":       d.Score,
		"confidence":  d.Confidence,
		"review":      d.RequiresHumanReview,
		"auto_apply":  d.AutoApply,
		"actions":     len(d.Actions.Actions),
		"latency_ms":  elapsed.Milliseconds(),
	})
}

func outcome(d model.Decision) string {
	switch {
	case d.NoSolution():
		return "no_solution"
	case d.AutoApply:
		return "auto_apply"
	case d.RequiresHumanReview:
		return "review"
	}
	return "recommend"
}

// withoutSolution turns d into the no-solution sentinel, keeping its
// attempts.
func withoutSolution(d model.Decision) model.Decision {
	return model.Decision{
		ID:                  model.DecisionID(d.ConflictID, nil),
		ConflictID:          d.ConflictID,
		Actions:             model.DomainActionSet{ConflictID: d.ConflictID},
		Attempts:            d.Attempts,
		RequiresHumanReview: true,
		CreatedAt:           d.CreatedAt,
	}
}

func cloneDecision(d model.Decision) model.Decision {
	cp := d
	if d.Solution != nil {
		sol := *d.Solution
		sol.Actions = cloneActions(sol.Actions)
		cp.Solution = &sol
	}
	cp.Actions.Actions = cloneActions(d.Actions.Actions)
	cp.Attempts = append([]model.Attempt(nil), d.Attempts...)
	return cp
}

func cloneActions(in []model.Action) []model.Action {
	if in == nil {
		return nil
	}
	out := make([]model.Action, len(in))
	for i, a := range in {
		a.Order = append([]string(nil), a.Order...)
		out[i] = a
	}
	return out
}
