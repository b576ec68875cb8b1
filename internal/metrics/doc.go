// Package metrics provides thread-safe collection of HTTP traffic metrics.
//
// Counters (total, success, failed) use atomic operations; latency samples
// are bounded and used to derive average and P99 latency. The RecordSource
// counters track whether the resilient frontend answered from the live
// backend, its TTL cache, or the static fallback catalog.
//
// # Usage
//
//	m := metrics.New()
//	m.RecordSuccess(12 * time.Millisecond)
//	m.RecordSource(metrics.SourceLive)
//
//	snap := m.Snapshot()
//	fmt.Printf("rps=%.1f p99=%v live=%d\n",
//		snap.RPS, snap.P99Latency, snap.BySource[metrics.SourceLive])
package metrics
