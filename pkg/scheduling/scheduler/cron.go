package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/tickwork/pkg/common/errors"
	"github.com/vnykmshr/tickwork/pkg/common/validation"
	"github.com/vnykmshr/tickwork/pkg/scheduling/crontab"
)

// specParser accepts standard five-field crontab, an optional leading
// seconds field, and descriptors such as "@daily" or "@every 90s".
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCronSpec parses a full crontab expression for ScheduleCronSpec.
// Unlike ScheduleCron, day-of-month and weekday are OR-ed as in classic cron.
func ParseCronSpec(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("%w: empty cron spec", errors.ErrInvalidFormat)
	}
	schedule, err := specParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: cron spec %q: %v", errors.ErrInvalidFormat, expr, err)
	}
	return schedule, nil
}

// ValidateCronExpression checks expr without scheduling anything. With
// spec set it uses the ScheduleCronSpec grammar, otherwise the ScheduleCron one.
func ValidateCronExpression(expr string, spec bool) error {
	if spec {
		_, err := ParseCronSpec(expr)
		return err
	}
	_, err := crontab.Parse(expr)
	return err
}

// NextRuns returns up to n upcoming due times for a cron expression,
// starting after from. It is meant for previews and dry runs. A negative n
// is a validation error.
func NextRuns(expr string, spec bool, from time.Time, n int) ([]time.Time, error) {
	if err := validation.ValidateNonNegative(module, "n", n); err != nil {
		return nil, err
	}

	var next func(time.Time) time.Time
	if spec {
		schedule, err := ParseCronSpec(expr)
		if err != nil {
			return nil, err
		}
		next = schedule.Next
	} else {
		rule, err := crontab.Parse(expr)
		if err != nil {
			return nil, err
		}
		next = rule.Next
	}

	runs := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = next(t)
		if t.IsZero() {
			break
		}
		runs = append(runs, t)
	}
	return runs, nil
}
