// Package metrics provides Prometheus instrumentation for tickwork components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tickwork"

// Registry holds all metric instances for tickwork components.
type Registry struct {
	// Scheduler Metrics
	TasksScheduled  *prometheus.CounterVec
	TasksDispatched *prometheus.CounterVec
	TasksFailed     *prometheus.CounterVec
	DispatchLag     *prometheus.HistogramVec
	StoreSize       *prometheus.GaugeVec
	Wakeups         *prometheus.CounterVec

	// Worker Pool Metrics
	WorkerPoolSize        *prometheus.GaugeVec
	WorkerPoolIdle        *prometheus.GaugeVec
	WorkerPoolQueued      *prometheus.GaugeVec
	TasksExecuted         *prometheus.CounterVec
	TasksCompleted        *prometheus.CounterVec
	PoolTasksFailed       *prometheus.CounterVec
	TaskExecutionDuration *prometheus.HistogramVec
	TaskQueueDuration     *prometheus.HistogramVec
}

// DefaultRegistry is the default metrics registry used by tickwork components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		TasksScheduled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "tasks_scheduled_total",
				Help:      "Total number of tasks added through the scheduling API",
			},
			[]string{"scheduler_name", "kind"},
		),

		TasksDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "tasks_dispatched_total",
				Help:      "Total number of due tasks handed to the worker pool",
			},
			[]string{"scheduler_name", "kind"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "tasks_failed_total",
				Help:      "Total number of scheduled task runs that returned an error",
			},
			[]string{"scheduler_name"},
		),

		DispatchLag: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "dispatch_lag_seconds",
				Help:      "Delay between a task's due time and its dispatch",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
			[]string{"scheduler_name"},
		),

		StoreSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "pending_tasks",
				Help:      "Number of tasks waiting in the ordered task store",
			},
			[]string{"scheduler_name"},
		),

		Wakeups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "wakeups_total",
				Help:      "Number of times the scheduling loop woke up, by reason",
			},
			[]string{"scheduler_name", "reason"},
		),

		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "size",
				Help:      "Current worker pool size",
			},
			[]string{"pool_name"},
		),

		WorkerPoolIdle: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "idle_workers",
				Help:      "Number of workers waiting for a task",
			},
			[]string{"pool_name"},
		),

		WorkerPoolQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "queued_tasks",
				Help:      "Number of queued tasks",
			},
			[]string{"pool_name"},
		),

		TasksExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "tasks_executed_total",
				Help:      "Total number of tasks executed",
			},
			[]string{"pool_name"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "tasks_completed_total",
				Help:      "Total number of tasks completed successfully",
			},
			[]string{"pool_name"},
		),

		PoolTasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "tasks_failed_total",
				Help:      "Total number of tasks that returned an error or panicked",
			},
			[]string{"pool_name"},
		),

		TaskExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "task_duration_seconds",
				Help:      "Time spent executing tasks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),

		TaskQueueDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "workerpool",
				Name:      "task_queue_seconds",
				Help:      "Time tasks spent queued before a worker picked them up",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),
	}
}
