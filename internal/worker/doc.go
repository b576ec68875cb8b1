// Package worker provides a goroutine pool for concurrent job execution.
//
// The Pool manages a fixed number of worker goroutines that process jobs
// from a shared queue. It supports graceful shutdown and context cancellation.
//
// # Basic Usage
//
//	pool := worker.New(worker.Config{NumWorkers: 4})
//	pool.Start(ctx)
//	defer pool.Stop()
//
//	// Submit jobs
//	for i := 0; i < 100; i++ {
//	    pool.Submit(func() {
//	        // do work
//	    })
//	}
//
// # Graceful Shutdown
//
// Stop() waits for all in-flight jobs to complete before returning.
// The context passed to Start() can be used to cancel waiting jobs.
package worker
