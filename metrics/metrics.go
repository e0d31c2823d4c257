// Package metrics exposes the engine's counters through rcrowley/go-metrics,
// the library go-ethereum's own metrics package wraps, and the one the
// teacher reaches for directly in fetchers_concurrent.go
// (throttleCounter.Inc(1)).
package metrics

import "github.com/rcrowley/go-metrics"

// Registry groups the counters a running fetcher reports. Each fetcher
// instance owns its own Registry so that concurrently running fetchers
// (e.g. a header fetcher and a body fetcher) don't share counters.
type Registry struct {
	Processed metrics.Counter // jobs emitted to the sink
	Finished  metrics.Counter // jobs the sink persisted successfully
	Throttled metrics.Counter // scheduler ticks skipped for backpressure
	Timeouts  metrics.Counter // requests that hit the per-job timeout
	Banned    metrics.Counter // peers banned by the failure controller
	Requeued  metrics.Counter // jobs sent back to inbound for any reason
	Reorgs    metrics.Counter // reorg rewrites applied by the storage sink
}

// NewRegistry allocates a fresh, unregistered set of counters.
func NewRegistry() *Registry {
	return &Registry{
		Processed: metrics.NewCounter(),
		Finished:  metrics.NewCounter(),
		Throttled: metrics.NewCounter(),
		Timeouts:  metrics.NewCounter(),
		Banned:    metrics.NewCounter(),
		Requeued:  metrics.NewCounter(),
		Reorgs:    metrics.NewCounter(),
	}
}
