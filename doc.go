/*
Package tickwork provides an in-process task scheduler backed by a
resizable worker pool, and tickworkd, a daemon that runs commands from a
YAML job file.

Scheduling (pkg/scheduling):
  - scheduler: one-shot, fixed-rate, after-completion and cron tasks
  - crontab: five-field numeric rules with both day fields required to match
  - workerpool: resizable pool with futures and graceful or immediate shutdown
  - waiter: interruptible sleep used by the scheduler loop
  - concurrency: limits overlapping runs of a job

Support:
  - metrics: Prometheus collectors for the scheduler and pool
  - common/errors, common/validation: shared error types and config checks

Example usage:

	import (
		"github.com/vnykmshr/tickwork/pkg/scheduling/scheduler"
		"github.com/vnykmshr/tickwork/pkg/scheduling/workerpool"
	)

	s, _ := scheduler.New(scheduler.Config{Workers: 4})
	_ = s.ScheduleCron("30 2 * * *", workerpool.TaskFunc(backup))
	_ = s.Start()
	defer func() { <-s.Stop() }()
*/
package tickwork
