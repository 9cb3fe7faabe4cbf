package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railopt/app/plugins"
	"github.com/kilianp07/railopt/config"
	"github.com/kilianp07/railopt/core/audit"
	"github.com/kilianp07/railopt/core/execution"
	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/core/monitoring"
	"github.com/kilianp07/railopt/core/optimizer"
	"github.com/kilianp07/railopt/core/solver"
	"github.com/kilianp07/railopt/infra/logger"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func conflict(id string, sev model.Severity) (model.Conflict, model.NetworkSnapshot) {
	c := model.Conflict{
		ID:         id,
		Trains:     []string{"p5", "p8"},
		Sections:   []string{"s1"},
		Severity:   sev,
		DetectedAt: t0,
	}
	snap := model.NetworkSnapshot{
		Timestamp: t0,
		Trains: map[string]model.Train{
			"p5": {ID: "p5", Priority: 5, SpeedKmh: 80, Route: []string{"s1"},
				ScheduledEntry: t0.Add(time.Minute), ScheduledExit: t0.Add(6 * time.Minute)},
			"p8": {ID: "p8", Priority: 8, SpeedKmh: 120, Route: []string{"s1"},
				ScheduledEntry: t0.Add(time.Minute), ScheduledExit: t0.Add(6 * time.Minute)},
		},
		Sections: map[string]model.Section{"s1": {ID: "s1", Capacity: 1, LengthKm: 5}},
	}
	return c, snap
}

func ruleOnlyOptimizer(t *testing.T) *optimizer.Optimizer {
	t.Helper()
	names := []model.StrategyName{model.StrategyRuleBased}
	ss, err := plugins.BuildSolvers(names, solver.DefaultCalibration(), nil)
	require.NoError(t, err)
	opt, err := optimizer.New(ss, optimizer.Options{EnabledStrategies: names, AutoApplyThreshold: 0.85})
	require.NoError(t, err)
	return opt
}

func withRecorder(t *testing.T) *monitoring.Recorder {
	t.Helper()
	rec := &monitoring.Recorder{}
	monitoring.Init(rec)
	t.Cleanup(func() { monitoring.Init(monitoring.NopMonitor{}) })
	return rec
}

func TestResolve_AutoApplies(t *testing.T) {
	store := audit.NewMemoryStore()
	exec := &execution.RecordingExecutor{}
	svc := NewService(ruleOnlyOptimizer(t), store, exec, logger.NopLogger{})
	c, snap := conflict("c-low", model.SeverityLow)

	out := svc.Resolve(context.Background(), c, snap)
	require.NoError(t, out.Err)
	assert.True(t, out.Decision.AutoApply)
	assert.True(t, out.Applied)
	require.Len(t, exec.Applied(), 1)
	assert.Equal(t, out.Decision.Actions, exec.Applied()[0])

	recs, err := store.Query(context.Background(), audit.Query{ConflictID: "c-low"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].AutoApply)
	assert.Equal(t, string(model.StrategyRuleBased), recs[0].Method)
}

func TestResolve_BelowThresholdIsOnlyAudited(t *testing.T) {
	store := audit.NewMemoryStore()
	exec := &execution.RecordingExecutor{}
	svc := NewService(ruleOnlyOptimizer(t), store, exec, nil)
	c, snap := conflict("c-high", model.SeverityHigh)

	out := svc.Resolve(context.Background(), c, snap)
	require.NoError(t, out.Err)
	assert.False(t, out.Applied)
	assert.Empty(t, exec.Applied())
	assert.Equal(t, 1, store.Len())

	// resolving again yields the same decision id and no new record
	again := svc.Resolve(context.Background(), c, snap)
	require.NoError(t, again.Err)
	assert.Equal(t, out.Decision.ID, again.Decision.ID)
	assert.Equal(t, 1, store.Len())
}

func TestResolve_ExecutionFailure(t *testing.T) {
	rec := withRecorder(t)
	exec := &execution.RecordingExecutor{Fail: execution.ErrAckTimeout}
	svc := NewService(ruleOnlyOptimizer(t), audit.NewMemoryStore(), exec, nil)
	c, snap := conflict("c-exec", model.SeverityLow)

	out := svc.Resolve(context.Background(), c, snap)
	require.Error(t, out.Err)
	assert.ErrorIs(t, out.Err, execution.ErrAckTimeout)
	assert.False(t, out.Applied)
	assert.Contains(t, out.Error, "apply")
	require.Len(t, rec.Errors(), 1)
	assert.Equal(t, "execute", rec.Errors()[0].Tags["stage"])
}

type brokenStore struct{ audit.Store }

func (brokenStore) Append(context.Context, audit.Record) error { return errors.New("disk full") }

func TestResolve_AuditFailureBlocksExecution(t *testing.T) {
	rec := withRecorder(t)
	exec := &execution.RecordingExecutor{}
	svc := NewService(ruleOnlyOptimizer(t), brokenStore{audit.NewMemoryStore()}, exec, nil)
	c, snap := conflict("c-audit", model.SeverityLow)

	out := svc.Resolve(context.Background(), c, snap)
	require.Error(t, out.Err)
	assert.True(t, out.Decision.AutoApply)
	assert.False(t, out.Applied)
	assert.Empty(t, exec.Applied())
	require.Len(t, rec.Errors(), 1)
	assert.Equal(t, "audit", rec.Errors()[0].Tags["stage"])
}

func TestResolve_AdapterErrorIsReported(t *testing.T) {
	rec := withRecorder(t)
	store := audit.NewMemoryStore()
	svc := NewService(ruleOnlyOptimizer(t), store, nil, nil)
	c, snap := conflict("c-bad", model.SeverityLow)
	delete(snap.Sections, "s1")

	out := svc.Resolve(context.Background(), c, snap)
	require.Error(t, out.Err)
	assert.Equal(t, 0, store.Len())
	require.Len(t, rec.Errors(), 1)
	assert.Equal(t, "c-bad", rec.Errors()[0].Tags["conflict_id"])
}

func TestResolveBatch(t *testing.T) {
	store := audit.NewMemoryStore()
	svc := NewService(ruleOnlyOptimizer(t), store, nil, nil)
	a, snap := conflict("a", model.SeverityLow)
	b, _ := conflict("b", model.SeverityCritical)

	outs := svc.ResolveBatch(context.Background(), []model.Conflict{a, b}, snap)
	require.Len(t, outs, 2)
	assert.Equal(t, "a", outs[0].ConflictID)
	assert.Equal(t, "b", outs[1].ConflictID)
	assert.True(t, outs[0].Applied)
	assert.False(t, outs[1].Applied)
	assert.Equal(t, 2, store.Len())
	require.NoError(t, svc.Close())
}

func TestNew_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Policy.Type = "linear"
	cfg.Audit.Backend = "jsonl"
	cfg.Audit.Path = t.TempDir() + "/audit.jsonl"
	require.NoError(t, cfg.Validate())

	svc, err := New(cfg)
	require.NoError(t, err)
	c, snap := conflict("c-cfg", model.SeverityMedium)
	out := svc.Resolve(context.Background(), c, snap)
	require.NoError(t, out.Err)
	require.Len(t, out.Decision.Attempts, 3)
	assert.Equal(t, 1, svc.Aggregator.Snapshot().Count)
	require.NoError(t, svc.Close())

	reopened, err := audit.Open(cfg.Audit)
	require.NoError(t, err)
	defer reopened.Close()
	recs, err := reopened.Query(context.Background(), audit.Query{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestNew_UnknownPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Policy.Type = "oracle"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	svc := NewService(ruleOnlyOptimizer(t), audit.NewMemoryStore(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, svc.Run(ctx))
}
