// Package metrics provides Prometheus instrumentation for tickwork components.
//
// # Quick Start
//
// Pass a Registry to the scheduler, or wrap a worker pool:
//
//	sched, _ := scheduler.New(scheduler.Config{
//		Name:    "jobs",
//		Metrics: metrics.DefaultRegistry,
//	})
//
//	pool := workerpool.NewWithMetrics(5, "task_pool")
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation (tests do this to avoid
// duplicate registration):
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistry(reg)
//
// # Available Metrics
//
// Scheduler:
//
//   - tickwork_scheduler_tasks_scheduled_total{scheduler_name,kind}
//   - tickwork_scheduler_tasks_dispatched_total{scheduler_name,kind}
//   - tickwork_scheduler_tasks_failed_total{scheduler_name}
//   - tickwork_scheduler_dispatch_lag_seconds{scheduler_name}
//   - tickwork_scheduler_pending_tasks{scheduler_name}
//   - tickwork_scheduler_wakeups_total{scheduler_name,reason}
//
// Worker pool:
//
//   - tickwork_workerpool_size{pool_name}
//   - tickwork_workerpool_idle_workers{pool_name}
//   - tickwork_workerpool_queued_tasks{pool_name}
//   - tickwork_workerpool_tasks_executed_total{pool_name}
//   - tickwork_workerpool_tasks_completed_total{pool_name}
//   - tickwork_workerpool_tasks_failed_total{pool_name}
//   - tickwork_workerpool_task_duration_seconds{pool_name}
//   - tickwork_workerpool_task_queue_seconds{pool_name}
//
// The kind label is one of "once", "every", "cron", "interval" or "cronspec".
// The reason label is "timeout" or "interrupt".
package metrics
