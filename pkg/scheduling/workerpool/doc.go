/*
Package workerpool runs tasks on a resizable set of goroutines.

Tasks go into an unbounded FIFO queue, so Submit never blocks on a busy
pool. Each submission returns a Future that resolves with the task's Result:

	pool := workerpool.New(4)
	defer func() { <-pool.Shutdown(true) }()

	future, err := pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		return doWork(ctx)
	}))
	if err != nil {
		return err // ErrPoolClosed after Shutdown
	}
	if err := future.Wait(ctx); err != nil {
		log.Printf("task failed: %v", err)
	}

A task that panics does not take its worker down. The panic is recovered and
recorded as an error wrapping ErrTaskPanicked, with the stack trace in the
message. Config.PanicHandler is notified as well.

# Resizing

Resize starts new workers or retires existing ones. A retired worker finishes
the task it is running and then exits; queued tasks stay queued for the
remaining workers, so no task is dropped or run twice.

# Shutdown

Shutdown(true) stops accepting work, runs everything already queued and then
lets the workers exit. Shutdown(false) discards the queue, completing each
discarded Future with ErrPoolClosed, and lets running tasks finish. Both
return a channel that closes when the last worker has exited.

# Configuration

	pool, err := workerpool.NewWithConfig(workerpool.Config{
		Workers:     8,
		TaskTimeout: 30 * time.Second,
		Logger:      logger,
		OnTaskComplete: func(workerID int, result workerpool.Result) {
			log.Printf("worker %d finished in %v", workerID, result.Duration)
		},
	})

Zero fields take the defaults from their struct tags; invalid values are
reported as *errors.ValidationError.

# Metrics

NewWithMetrics and Instrument wrap a pool with Prometheus gauges for size,
idle workers and queue length, plus task counters and duration histograms.
*/
package workerpool
