// Package metrics holds the Prometheus collectors for the bridge.
//
// A nil *Metrics is valid and records nothing, so components can be built
// in tests without a registry.
package metrics
