package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/railopt/app/plugins"
	"github.com/kilianp07/railopt/config"
	"github.com/kilianp07/railopt/core/adapter"
	"github.com/kilianp07/railopt/core/audit"
	"github.com/kilianp07/railopt/core/events"
	"github.com/kilianp07/railopt/core/execution"
	coremetrics "github.com/kilianp07/railopt/core/metrics"
	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/core/monitoring"
	"github.com/kilianp07/railopt/core/optimizer"
	"github.com/kilianp07/railopt/infra/logger"
	"github.com/kilianp07/railopt/infra/metrics"
	"github.com/kilianp07/railopt/infra/mqtt"
	"github.com/kilianp07/railopt/infra/policy"
	"github.com/kilianp07/railopt/internal/eventbus"
)

// Outcome is what happened to one conflict: the decision, whether it was
// applied and any failure along the way.
type Outcome struct {
	ConflictID string         `json:"conflict_id"`
	Decision   model.Decision `json:"decision"`
	Applied    bool           `json:"applied"`
	Error      string         `json:"error,omitempty"`
	Err        error          `json:"-"`
}

// Service wires the optimizer to the audit store and the executor.
type Service struct {
	Optimizer  *optimizer.Optimizer
	Audit      audit.Store
	Executor   execution.Executor
	Aggregator *coremetrics.Aggregator

	bus    *eventbus.Bus[events.Event]
	sink   coremetrics.MetricsSink
	log    logger.Logger
	prom   config.PrometheusConfig
	cancel context.CancelFunc
	done   <-chan struct{}
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	backend, err := policy.New(cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	solvers, err := plugins.BuildSolvers(cfg.Optimizer.EnabledStrategies, cfg.Calibration, backend)
	if err != nil {
		return nil, fmt.Errorf("solvers: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	agg := coremetrics.NewAggregator()
	bus := eventbus.New[events.Event](eventbus.DefaultBuffer)

	opt, err := optimizer.New(solvers, cfg.Optimizer,
		optimizer.WithLogger(logger.New("optimizer")),
		optimizer.WithMetricsSink(coremetrics.NewMultiSink(agg, sink)),
		optimizer.WithEventBus(bus),
	)
	if err != nil {
		closeSink(sink)
		return nil, err
	}

	store, err := audit.Open(cfg.Audit)
	if err != nil {
		closeSink(sink)
		return nil, fmt.Errorf("audit store: %w", err)
	}

	var exec execution.Executor = execution.NopExecutor{}
	if cfg.Execution.Mode == config.ExecutionMQTT {
		e, err := mqtt.NewExecutor(cfg.MQTT, mqtt.WithLogger(logger.New("executor")), mqtt.WithEventBus(bus))
		if err != nil {
			_ = store.Close()
			closeSink(sink)
			return nil, fmt.Errorf("mqtt executor: %w", err)
		}
		exec = e
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		Optimizer:  opt,
		Audit:      store,
		Executor:   exec,
		Aggregator: agg,
		bus:        bus,
		sink:       sink,
		log:        logg,
		prom:       cfg.Prometheus,
		cancel:     cancel,
	}
	svc.done = metrics.StartEventCollector(ctx, bus, sink)
	return svc, nil
}

// NewService assembles a Service from already built components. A nil
// executor never applies anything.
func NewService(opt *optimizer.Optimizer, store audit.Store, exec execution.Executor, log logger.Logger) *Service {
	if exec == nil {
		exec = execution.NopExecutor{}
	}
	done := make(chan struct{})
	close(done)
	return &Service{
		Optimizer: opt,
		Audit:     store,
		Executor:  exec,
		log:       logger.OrNop(log),
		cancel:    func() {},
		done:      done,
	}
}

// Resolve optimises one conflict, records the decision and applies it when
// it is eligible for automatic execution. Audit and execution failures are
// reported in the outcome alongside the decision.
func (s *Service) Resolve(ctx context.Context, c model.Conflict, snap model.NetworkSnapshot) Outcome {
	d, err := s.Optimizer.OptimizeConflict(ctx, c, snap)
	return s.finish(ctx, c, d, err)
}

// ResolveBatch resolves every conflict against one snapshot. Outcomes are in
// input order.
func (s *Service) ResolveBatch(ctx context.Context, conflicts []model.Conflict, snap model.NetworkSnapshot) []Outcome {
	res := s.Optimizer.BatchOptimize(ctx, conflicts, snap)
	out := make([]Outcome, len(res))
	for i, r := range res {
		out[i] = s.finish(ctx, conflicts[i], r.Decision, r.Err)
	}
	return out
}

func (s *Service) finish(ctx context.Context, c model.Conflict, d model.Decision, err error) Outcome {
	out := Outcome{ConflictID: c.ID, Decision: d}
	if err != nil {
		s.fail(&out, err)
		if errors.Is(err, adapter.ErrMissingEntity) || errors.Is(err, adapter.ErrInvalidAction) || errors.Is(err, adapter.ErrInvalidInput) {
			monitoring.CaptureException(err, map[string]string{"conflict_id": c.ID, "stage": "optimize"})
		}
		return out
	}

	if err := s.Audit.Append(ctx, audit.NewRecord(d, c)); err != nil {
		s.log.Errorf("audit %s: %v", d.ID, err)
		monitoring.CaptureException(err, map[string]string{"conflict_id": c.ID, "stage": "audit"})
		s.fail(&out, fmt.Errorf("audit: %w", err))
		// an unaudited decision is never executed
		return out
	}

	if !d.AutoApply || d.Actions.Empty() {
		return out
	}
	if err := s.Executor.Apply(ctx, d.Actions); err != nil {
		s.log.Errorf("apply %s: %v", d.ID, err)
		monitoring.CaptureException(err, map[string]string{"conflict_id": c.ID, "stage": "execute"})
		s.fail(&out, fmt.Errorf("apply: %w", err))
		return out
	}
	out.Applied = true
	s.log.Infof("conflict %s: applied %d action(s) from %s", c.ID, len(d.Actions.Actions), d.Method())
	return out
}

func (s *Service) fail(o *Outcome, err error) {
	o.Err = err
	o.Error = err.Error()
}

// Run serves Prometheus metrics, when enabled, until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	if !s.prom.Enabled {
		<-ctx.Done()
		return nil
	}
	return metrics.StartPromServer(ctx, s.prom.Addr)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.cancel()
	if s.bus != nil {
		s.bus.Close()
	}
	select {
	case <-s.done:
	case <-time.After(time.Second):
		s.log.Warnf("event collector did not stop in time")
	}
	if d, ok := s.Executor.(interface{ Disconnect() }); ok {
		d.Disconnect()
	}
	closeSink(s.sink)
	if s.Audit != nil {
		return s.Audit.Close()
	}
	return nil
}

func closeSink(sink coremetrics.MetricsSink) {
	if c, ok := sink.(interface{ Close() }); ok {
		c.Close()
	}
}
