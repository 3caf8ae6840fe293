package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/tickwork/pkg/common/validation"
)

// Submit adds a task to the pool for execution.
// The task will be executed with context.Background().
// Use SubmitWithContext to provide a custom context.
func (p *WorkerPool) Submit(task Task) (*Future, error) {
	return p.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext adds a task to the pool for execution with the given context.
// The context is passed to the task's Execute method, enabling timeout and
// cancellation propagation. If the pool has a TaskTimeout configured, the
// effective timeout will be the minimum of the context deadline and TaskTimeout.
func (p *WorkerPool) SubmitWithContext(ctx context.Context, task Task) (*Future, error) {
	if err := validation.ValidateNotNil("workerpool", "task", task); err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	// Reject pre-canceled contexts before queueing so the outcome is deterministic
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("cannot submit task: context canceled: %w", ctx.Err())
	default:
	}

	f := newFuture(task)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	p.queue.Add(&job{task: task, ctx: ctx, future: f})
	p.totalSubmitted.Add(1)
	p.cond.Signal()

	return f, nil
}

// Resize grows or shrinks the pool to the given number of workers. Removed
// workers finish the task they are running and then exit; queued tasks stay
// queued for the remaining workers.
func (p *WorkerPool) Resize(workers int) error {
	if err := validation.ValidatePositive("workerpool", "Workers", workers); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	current := len(p.workers)
	switch {
	case workers > current:
		p.spawn(workers - current)
	case workers < current:
		for _, w := range p.workers[workers:] {
			w.stop = true
		}
		p.workers = p.workers[:workers]
		p.cond.Broadcast()
	}

	p.logger.Debug("resized", zap.Int("from", current), zap.Int("to", workers))
	return nil
}

// Shutdown initiates shutdown of the pool. With wait set, every queued task
// runs before the workers exit. Otherwise the queue is discarded, the
// discarded futures complete with ErrPoolClosed, and workers exit after
// their current task. The returned channel closes once all workers are gone.
func (p *WorkerPool) Shutdown(wait bool) <-chan struct{} {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		var discarded []*job
		if wait {
			p.draining = true
		} else {
			for _, w := range p.workers {
				w.stop = true
			}
			discarded = p.takeQueue()
		}
		p.cond.Broadcast()
		p.mu.Unlock()

		discard(discarded, ErrPoolClosed)

		go func() {
			p.wg.Wait()

			p.mu.Lock()
			leftovers := p.takeQueue()
			p.workers = nil
			p.mu.Unlock()

			discard(leftovers, ErrPoolClosed)
			p.logger.Debug("shut down", zap.Bool("drained", wait))
			close(p.done)
		}()
	})

	return p.done
}

// Size returns the number of workers in the pool.
func (p *WorkerPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Idle returns the number of workers currently waiting for a task.
func (p *WorkerPool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *WorkerPool) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Length()
}

// ClearQueue removes every queued task. Their futures complete with
// ErrTaskDiscarded. It returns the number of tasks removed.
func (p *WorkerPool) ClearQueue() int {
	p.mu.Lock()
	jobs := p.takeQueue()
	p.mu.Unlock()

	discard(jobs, ErrTaskDiscarded)
	return len(jobs)
}

// TotalSubmitted returns the total number of tasks accepted by the pool.
func (p *WorkerPool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the total number of tasks that ran to completion,
// successfully or not.
func (p *WorkerPool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// takeQueue empties the queue. Callers must hold p.mu.
func (p *WorkerPool) takeQueue() []*job {
	n := p.queue.Length()
	if n == 0 {
		return nil
	}
	jobs := make([]*job, 0, n)
	for p.queue.Length() > 0 {
		jobs = append(jobs, p.queue.Remove().(*job))
	}
	return jobs
}

func discard(jobs []*job, err error) {
	for _, j := range jobs {
		j.future.complete(Result{Task: unwrapTask(j.task), Error: err, WorkerID: -1})
	}
}

// next blocks until w has a job to run or must exit.
func (p *WorkerPool) next(w *worker) (*job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if w.stop {
			return nil, false
		}
		if p.queue.Length() > 0 {
			return p.queue.Remove().(*job), true
		}
		if p.draining {
			return nil, false
		}
		p.idle++
		p.cond.Wait()
		p.idle--
	}
}

// run is the main loop for a worker.
func (w *worker) run() {
	p := w.pool
	defer p.wg.Done()

	if p.config.OnWorkerStart != nil {
		p.config.OnWorkerStart(w.id)
	}
	if p.config.OnWorkerStop != nil {
		defer p.config.OnWorkerStop(w.id)
	}

	for {
		j, ok := p.next(w)
		if !ok {
			return
		}
		w.execute(j)
	}
}

// execute runs a single job and completes its future.
func (w *worker) execute(j *job) {
	p := w.pool
	result := Result{Task: unwrapTask(j.task), WorkerID: w.id}

	if p.config.OnTaskStart != nil {
		p.config.OnTaskStart(w.id, result.Task)
	}

	start := time.Now()
	result.Error = w.invoke(j)
	result.Duration = time.Since(start)

	p.totalCompleted.Add(1)

	if result.Error != nil {
		p.logger.Debug("task failed",
			zap.Int("worker", w.id),
			zap.Duration("duration", result.Duration),
			zap.Error(result.Error))
	}

	if p.config.OnTaskComplete != nil {
		p.config.OnTaskComplete(w.id, result)
	}

	j.future.complete(result)
}

// invoke calls the task, converting a panic into an error.
func (w *worker) invoke(j *job) (err error) {
	p := w.pool

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\nStack trace:\n%s", ErrTaskPanicked, r, debug.Stack())
			p.logger.Error("task panicked", zap.Int("worker", w.id), zap.Any("panic", r))
			if p.config.PanicHandler != nil {
				p.config.PanicHandler(j.task, r)
			}
		}
	}()

	// The effective timeout is the minimum of the context deadline and TaskTimeout
	ctx := j.ctx
	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	return j.task.Execute(ctx)
}
