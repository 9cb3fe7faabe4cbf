// Package infra holds the adapters behind the core contracts: the zerolog
// logger, metrics sinks, policy backends, the MQTT executor and Sentry
// monitoring. Nothing under core imports these packages.
package infra
