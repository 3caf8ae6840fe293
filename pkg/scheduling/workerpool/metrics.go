package workerpool

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/tickwork/pkg/metrics"
)

// MetricsPool wraps a worker Pool with Prometheus metrics collection.
type MetricsPool struct {
	pool     Pool
	name     string
	registry *metrics.Registry
}

// NewWithMetrics creates a new worker pool with metrics enabled.
// It uses a private Prometheus registry so several pools can coexist.
func NewWithMetrics(workers int, name string) *MetricsPool {
	mp, err := NewWithConfigAndMetrics(Config{Workers: workers}, name, metrics.Config{
		Enabled:  true,
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		panic(err)
	}
	return mp
}

// NewWithConfigAndMetrics creates a new worker pool with custom config and metrics.
// With metrics disabled the wrapper still works but records nothing.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (*MetricsPool, error) {
	base, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}
	return Instrument(base, name, metricsConfig.Resolve()), nil
}

// Instrument wraps an existing pool. A nil registry disables recording.
func Instrument(pool Pool, name string, registry *metrics.Registry) *MetricsPool {
	mp := &MetricsPool{
		pool:     pool,
		name:     name,
		registry: registry,
	}
	mp.updateMetrics()
	return mp
}

// updateMetrics updates the current state metrics.
func (mp *MetricsPool) updateMetrics() {
	if mp.registry == nil {
		return
	}

	mp.registry.WorkerPoolSize.WithLabelValues(mp.name).Set(float64(mp.pool.Size()))
	mp.registry.WorkerPoolIdle.WithLabelValues(mp.name).Set(float64(mp.pool.Idle()))
	mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(mp.pool.QueueSize()))
}

// Submit adds a task to the pool for execution.
func (mp *MetricsPool) Submit(task Task) (*Future, error) {
	return mp.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext submits a task with a context passed to its Execute method.
func (mp *MetricsPool) SubmitWithContext(ctx context.Context, task Task) (*Future, error) {
	if task == nil || mp.registry == nil {
		return mp.pool.SubmitWithContext(ctx, task)
	}

	// Wrap the task to collect metrics
	wrapped := &metricsTask{
		original:   task,
		pool:       mp,
		submitTime: time.Now(),
	}

	f, err := mp.pool.SubmitWithContext(ctx, wrapped)
	mp.updateMetrics()
	return f, err
}

// metricsTask wraps a Task to collect execution metrics.
type metricsTask struct {
	original   Task
	pool       *MetricsPool
	submitTime time.Time
}

// Unwrap returns the submitted task.
func (mt *metricsTask) Unwrap() Task {
	return mt.original
}

// Execute runs the original task and records metrics. A panic is recorded
// as a failure and then re-raised for the pool to capture.
func (mt *metricsTask) Execute(ctx context.Context) (err error) {
	reg := mt.pool.registry
	name := mt.pool.name

	start := time.Now()
	reg.TaskQueueDuration.WithLabelValues(name).Observe(start.Sub(mt.submitTime).Seconds())

	panicked := true
	defer func() {
		reg.TaskExecutionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		reg.TasksExecuted.WithLabelValues(name).Inc()
		if panicked || err != nil {
			reg.PoolTasksFailed.WithLabelValues(name).Inc()
		} else {
			reg.TasksCompleted.WithLabelValues(name).Inc()
		}
		mt.pool.updateMetrics()
	}()

	err = mt.original.Execute(ctx)
	panicked = false
	return err
}

// Resize changes the number of workers.
func (mp *MetricsPool) Resize(workers int) error {
	err := mp.pool.Resize(workers)
	mp.updateMetrics()
	return err
}

// Shutdown stops the underlying pool.
func (mp *MetricsPool) Shutdown(wait bool) <-chan struct{} {
	return mp.pool.Shutdown(wait)
}

// Size returns the current number of workers.
func (mp *MetricsPool) Size() int {
	return mp.pool.Size()
}

// Idle returns the number of idle workers.
func (mp *MetricsPool) Idle() int {
	return mp.pool.Idle()
}

// QueueSize returns the current number of queued tasks.
func (mp *MetricsPool) QueueSize() int {
	queueSize := mp.pool.QueueSize()

	if mp.registry != nil {
		mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(queueSize))
	}

	return queueSize
}

// ClearQueue discards queued tasks.
func (mp *MetricsPool) ClearQueue() int {
	n := mp.pool.ClearQueue()
	mp.updateMetrics()
	return n
}

// TotalSubmitted returns the total number of tasks submitted.
func (mp *MetricsPool) TotalSubmitted() int64 {
	return mp.pool.TotalSubmitted()
}

// TotalCompleted returns the total number of tasks completed.
func (mp *MetricsPool) TotalCompleted() int64 {
	return mp.pool.TotalCompleted()
}

// Registry returns the registry metrics are recorded to, or nil if disabled.
func (mp *MetricsPool) Registry() *metrics.Registry {
	return mp.registry
}

var (
	_ Pool = (*WorkerPool)(nil)
	_ Pool = (*MetricsPool)(nil)
)
