/*
Package scheduler runs callbacks at, after, or repeatedly on temporal rules.

A Scheduler keeps pending tasks ordered by due time and runs one loop
goroutine that sleeps until the earliest of them. Adding a task wakes the
loop so a new, earlier task is never missed. Due tasks are handed to a
workerpool.Pool, so slow callbacks never delay the loop.

Basic usage:

	s, err := scheduler.New(scheduler.Config{Name: "jobs", Logger: logger})
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	defer func() { <-s.Stop() }()

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		return rotateLogs(ctx)
	})

	s.ScheduleAfter(5*time.Second, task)                  // once, after a delay
	s.ScheduleAt("03:00:00", task)                        // once, next 03:00
	s.ScheduleEvery(time.Minute, task)                    // fixed cadence
	s.ScheduleInterval(30*time.Second, task)              // 30s after each run finishes
	s.ScheduleCron("0 4 1 * 1", task)                     // 04:00 on a Monday the 1st
	s.ScheduleCronSpec("0 9-17 * * 1-5", task)            // full crontab grammar

# Recurrence

ScheduleEvery and the cron variants compute the next due time from the
previous due time when the task is dispatched, so the cadence does not drift
with run time and runs may overlap if a callback is slower than its period.
ScheduleInterval waits for the callback to return and schedules the next run
interval after that, so its runs never overlap.

ScheduleCron uses crontab.Rule, which requires day-of-month and weekday to
both match when both are set. ScheduleCronSpec uses github.com/robfig/cron/v3
with the classic OR behaviour, ranges, steps, an optional seconds field and
descriptors such as "@daily".

# Failures

A callback error or panic is logged, counted in metrics and recorded in the
pool's future. It never stops the loop or cancels later runs.

# Time

Config.Clock accepts any clockwork.Clock. Tests use clockwork.NewFakeClockAt
to drive the scheduler deterministically. ScheduleAt and cron rules are
evaluated in Config.Location.
*/
package scheduler
