// Package metrics provides lock-free per-operation timing statistics.
//
// Each operation name owns one Accumulator tracking invocation count, total
// duration and the observed extrema. A Registry creates accumulators on first
// use and guarantees a single instance per name even when many goroutines
// touch a new name at once.
//
// # Basic Usage
//
//	registry := metrics.NewRegistry()
//
//	// Record durations in nanoseconds as operations complete
//	_ = registry.Record("orders.Create", 1_250_000)
//	_ = registry.Record("orders.Create", 980_000)
//
//	snap, _ := registry.Get("orders.Create")
//	fmt.Printf("count=%d avg=%dns max=%dns\n", snap.Count, snap.Average, snap.Max)
//
// # Thread Safety
//
// Record never takes a lock. Snapshots are copies; reading them does not
// block writers.
package metrics
