package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/railopt/core/metrics"
	"github.com/kilianp07/railopt/infra/logger"
)

// InfluxConfig holds the connection settings of an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes engine metrics to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDecision writes one conflict_decision point.
func (s *InfluxSink) RecordDecision(m coremetrics.DecisionMetric) error {
	p := write.NewPointWithMeasurement("conflict_decision").
		AddTag("conflict_id", m.ConflictID).
		AddTag("strategy", m.Strategy).
		AddTag("outcome", Outcome(m)).
		AddField("decision_id", m.DecisionID).
		AddField("score", round3(m.Score)).
		AddField("confidence", round3(m.Confidence)).
		AddField("actions", m.Actions).
		AddField("attempts", len(m.Attempts)).
		AddField("latency_ms", round3(float64(m.Latency)/float64(time.Millisecond))).
		SetTime(m.Time)
	return s.write(p)
}

// RecordAttempt writes one strategy_attempt point.
func (s *InfluxSink) RecordAttempt(m coremetrics.AttemptMetric) error {
	p := write.NewPointWithMeasurement("strategy_attempt").
		AddTag("conflict_id", m.ConflictID).
		AddTag("strategy", string(m.Strategy)).
		AddTag("status", string(m.Status)).
		AddField("candidates", m.Candidates).
		AddField("elapsed_ms", round3(float64(m.Elapsed)/float64(time.Millisecond))).
		SetTime(m.Time)
	return s.write(p)
}

// RecordExecution writes one execution_ack point.
func (s *InfluxSink) RecordExecution(m coremetrics.ExecutionMetric) error {
	p := write.NewPointWithMeasurement("execution_ack").
		AddTag("conflict_id", m.ConflictID).
		AddTag("train_id", m.TrainID).
		AddTag("action", string(m.Action)).
		AddTag("acknowledged", strconv.FormatBool(m.Acknowledged)).
		AddField("command_id", m.CommandID).
		AddField("latency_ms", round3(float64(m.Latency)/float64(time.Millisecond))).
		AddField("error", m.Error).
		SetTime(m.Time)
	return s.write(p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
