/*
Package scheduling groups the task scheduling and execution packages:

  - scheduler: runs tasks when they fall due
  - crontab: computes due times for five-field cron rules
  - workerpool: executes dispatched tasks on a resizable set of workers
  - waiter: interruptible sleep until a deadline
  - concurrency: bounds overlapping runs of one job

Scheduler:

	s, err := scheduler.New(scheduler.Config{Workers: 4})
	if err != nil {
		return err
	}

	_ = s.ScheduleAfter(time.Minute, task)
	_ = s.ScheduleEvery(time.Hour, task)
	_ = s.ScheduleInterval(30*time.Second, task)   // pause counted from completion
	_ = s.ScheduleCron("0 9 1 * 1", task)          // 09:00 on a 1st that is a Monday
	_ = s.ScheduleCronSpec("0 9 * * MON-FRI", task) // full crontab grammar

	_ = s.Start()
	<-s.Stop()

Worker Pool:

	pool := workerpool.New(4)
	future, _ := pool.Submit(task)
	result := future.Result()
	<-pool.Shutdown(true)

All components are safe for concurrent use.
*/
package scheduling
