package workerpool

import "context"

// Future is the pending outcome of a submitted task.
type Future struct {
	done   chan struct{}
	result Result
}

func newFuture(task Task) *Future {
	return &Future{
		done:   make(chan struct{}),
		result: Result{Task: unwrapTask(task), WorkerID: -1},
	}
}

// complete records the result. It must be called exactly once.
func (f *Future) complete(r Result) {
	f.result = r
	close(f.done)
}

// Done returns a channel that is closed when the task has finished or was discarded.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task finishes or ctx is done. It returns the task's
// error, or ctx.Err() if the context ended first.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.result.Error
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result blocks until the task finishes and returns its result.
func (f *Future) Result() Result {
	<-f.done
	return f.result
}
