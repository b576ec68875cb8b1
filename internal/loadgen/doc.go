// Package loadgen provides an HTTP load generator for stress testing services.
//
// The Generator issues GET requests against a target URL at a configurable
// rate using a worker pool, and records latency and success/failure counts
// into a metrics collector.
//
// # Basic Usage
//
//	config := loadgen.DefaultConfig()
//	config.TargetURL = "http://127.0.0.1:8080/"
//	config.Workers = 8
//
//	gen := loadgen.New(config, nil)
//	gen.RunFor(ctx, 10*time.Second)
//
//	snap := gen.Metrics().Snapshot()
//	fmt.Printf("Total: %d, RPS: %.2f\n", snap.TotalRequests, snap.RPS)
//
// Set Config.RequestsLimit to stop after a fixed number of requests
// instead of a duration.
package loadgen
