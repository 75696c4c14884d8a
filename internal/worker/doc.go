// Package worker provides a fixed-size goroutine pool.
//
// A Pool owns a fixed number of Workers that drain one shared, unbounded FIFO
// Queue. Every entry on the queue is either Work (a Task to run) or Terminate
// (a poison pill). Exactly one worker receives each entry. A worker runs its
// task synchronously, so at most Size tasks execute at once and the rest wait
// in the queue.
//
// # Basic Usage
//
//	pool, err := worker.NewPool(4)
//	if err != nil {
//	    return err
//	}
//	defer pool.Shutdown()
//
//	pool.Submit(func() {
//	    // do work
//	})
//
// Submit never blocks and reports nothing back; a task that cannot be queued
// is logged and dropped.
//
// # Shutdown
//
// Shutdown sends one Terminate per worker, then joins every worker in order.
// It runs once; later calls wait for the first to finish. Tasks queued before
// the terminate signals still run. Tasks queued behind them are dropped when
// the queue is closed.
//
// # Failures
//
// A task that panics stops the worker running it. The panic is reported as
// that worker's join error during Shutdown. The remaining workers keep
// serving the queue.
package worker
