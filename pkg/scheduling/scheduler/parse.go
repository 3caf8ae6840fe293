package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/vnykmshr/tickwork/pkg/common/errors"
)

const clockLayout = "15:04:05"

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

// TimeFormatError reports a time string ParseAt does not recognize.
type TimeFormatError struct {
	Value string
}

func (e *TimeFormatError) Error() string {
	return fmt.Sprintf("scheduler: cannot parse time %q: want HH:MM:SS, YYYY-MM-DD HH:MM:SS or YYYY/MM/DD HH:MM:SS", e.Value)
}

// Unwrap lets errors.Is match errors.ErrInvalidFormat.
func (e *TimeFormatError) Unwrap() error {
	return errors.ErrInvalidFormat
}

// ParseAt resolves a time string relative to now, in now's location.
//
// "HH:MM:SS" means that time today, or tomorrow if it is not after now.
// "YYYY-MM-DD HH:MM:SS" and "YYYY/MM/DD HH:MM:SS" are absolute and may be
// in the past.
func ParseAt(value string, now time.Time) (time.Time, error) {
	loc := now.Location()
	value = strings.TrimSpace(value)

	if clock, err := time.ParseInLocation(clockLayout, value, loc); err == nil {
		y, m, d := now.Date()
		at := time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
		if !at.After(now) {
			at = time.Date(y, m, d+1, clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
		}
		return at, nil
	}

	for _, layout := range dateTimeLayouts {
		if at, err := time.ParseInLocation(layout, value, loc); err == nil {
			return at, nil
		}
	}

	return time.Time{}, &TimeFormatError{Value: value}
}
