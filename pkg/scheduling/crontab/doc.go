/*
Package crontab evaluates simple five-field cron expressions.

An expression is "minute hour day month weekday". Each field is either "*"
or one integer; ranges, lists and steps are not supported. For the full
crontab grammar use scheduler.ScheduleCronSpec, which is backed by
github.com/robfig/cron/v3.

Unlike classic cron, a rule that constrains both day-of-month and weekday
requires both to match:

	r := crontab.MustParse("0 0 1 * 1") // midnight on a Monday the 1st
	next := r.Next(time.Now())

Next walks forward from the minute after now, skipping whole months, days
and hours when a coarser field does not match. Calendar arithmetic is done
with time.Date in the location of the reference time, so month ends and DST
transitions are normalized by the time package.
*/
package crontab
