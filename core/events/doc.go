// Package events defines the engine events emitted on the event bus.
//
// Available event types:
//   - StrategyEvent: outcome of one strategy run for a conflict
//   - DecisionEvent: final decision for a conflict
//   - ExecutionEvent: acknowledgment of an action sent to a train
package events
