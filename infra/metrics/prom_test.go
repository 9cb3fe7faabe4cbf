package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railopt/core/events"
	"github.com/kilianp07/railopt/core/factory"
	coremetrics "github.com/kilianp07/railopt/core/metrics"
	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/internal/eventbus"
)

func TestPromSink_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, s.RecordDecision(coremetrics.DecisionMetric{Strategy: "constraint_programming", Score: 80, Confidence: 0.9, AutoApply: true, Latency: 40 * time.Millisecond}))
	require.NoError(t, s.RecordDecision(coremetrics.DecisionMetric{Strategy: "none", NoSolution: true, RequiresReview: true}))
	require.NoError(t, s.RecordAttempt(coremetrics.AttemptMetric{Strategy: model.StrategyLearned, Status: model.AttemptUnavailable}))
	require.NoError(t, s.RecordExecution(coremetrics.ExecutionMetric{Action: model.ActionDelay, Acknowledged: true, Latency: time.Millisecond}))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.decisions.WithLabelValues("constraint_programming", "auto_apply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.decisions.WithLabelValues("none", "no_solution")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.attempts.WithLabelValues("reinforcement_learning", "unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.executions.WithLabelValues("delay", "true")))
	assert.Equal(t, 1, testutil.CollectAndCount(s.score))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, a.RecordAttempt(coremetrics.AttemptMetric{Strategy: model.StrategyRuleBased, Status: model.AttemptSucceeded}))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.attempts.WithLabelValues("rule_based", "succeeded")))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "no_solution", Outcome(coremetrics.DecisionMetric{NoSolution: true, RequiresReview: true}))
	assert.Equal(t, "review", Outcome(coremetrics.DecisionMetric{RequiresReview: true}))
	assert.Equal(t, "auto_apply", Outcome(coremetrics.DecisionMetric{AutoApply: true}))
	assert.Equal(t, "recommend", Outcome(coremetrics.DecisionMetric{}))
}

func TestEventCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	bus := eventbus.New[events.Event](0)
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, sink)

	bus.Publish(events.StrategyEvent{ConflictID: "c1", Attempt: model.Attempt{Strategy: model.StrategyConstraint, Status: model.AttemptTimeout}})
	bus.Publish(events.ExecutionEvent{ConflictID: "c1", TrainID: "t1", Action: model.ActionReroute, Acknowledged: false})
	bus.Publish(events.DecisionEvent{})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(sink.attempts.WithLabelValues("constraint_programming", "timeout")) == 1 &&
			testutil.ToFloat64(sink.executions.WithLabelValues("reroute", "false")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, testutil.CollectAndCount(sink.decisions))

	cancel()
	<-done
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, s.RecordAttempt(coremetrics.AttemptMetric{Strategy: model.StrategyRuleBased, Status: model.AttemptSucceeded}))

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.True(t, strings.Contains(string(body), `railopt_sink_attempts_total{status="succeeded",strategy="rule_based"} 1`))

	resp, err = srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestFactoryRegistrations(t *testing.T) {
	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, s)

	s, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{"url": "http://127.0.0.1:1", "org": "o", "bucket": "b"}}})
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, s)
}
