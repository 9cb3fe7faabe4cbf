// Package metrics defines the contracts used to observe the engine. The
// Aggregator keeps process-lifetime statistics over every decision while
// sinks such as PromSink and InfluxSink in infra/metrics export them. The
// factory helpers return a MultiSink automatically when multiple sinks are
// configured.
package metrics
