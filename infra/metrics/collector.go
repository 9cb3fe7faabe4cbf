package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/railopt/core/events"
	coremetrics "github.com/kilianp07/railopt/core/metrics"
	"github.com/kilianp07/railopt/core/monitoring"
	"github.com/kilianp07/railopt/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records attempt and
// execution metrics on sink. Decisions are recorded by the optimizer
// directly and are ignored here. It stops when the context is canceled or
// the bus is closed; the returned channel is closed on exit.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		defer monitoring.Recover()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				collect(ev, sink)
			}
		}
	}()
	return done
}

func collect(ev events.Event, sink coremetrics.MetricsSink) {
	switch e := ev.(type) {
	case events.StrategyEvent:
		if r, ok := sink.(coremetrics.AttemptRecorder); ok {
			_ = r.RecordAttempt(coremetrics.AttemptMetric{
				ConflictID: e.ConflictID,
				Strategy:   e.Attempt.Strategy,
				Status:     e.Attempt.Status,
				Candidates: e.Attempt.Candidates,
				Elapsed:    e.Attempt.Elapsed,
				Time:       e.Time,
			})
		}
	case events.ExecutionEvent:
		if r, ok := sink.(coremetrics.ExecutionRecorder); ok {
			errStr := ""
			if e.Err != nil {
				errStr = e.Err.Error()
			}
			_ = r.RecordExecution(coremetrics.ExecutionMetric{
				CommandID:    e.CommandID,
				ConflictID:   e.ConflictID,
				TrainID:      e.TrainID,
				Action:       e.Action,
				Acknowledged: e.Acknowledged,
				Latency:      e.Latency,
				Error:        errStr,
				Time:         time.Now(),
			})
		}
	}
}
