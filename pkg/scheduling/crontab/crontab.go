package crontab

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vnykmshr/tickwork/pkg/common/errors"
)

// Wildcard marks a field that matches every value.
const Wildcard = -1

// searchHorizon bounds how far ahead Next looks for a matching minute.
const searchHorizon = 50 * 365 * 24 * time.Hour

// maxDays is the largest day-of-month each zero-based month can have.
var maxDays = [12]int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Rule is a parsed five-field cron expression. Each field holds either a single
// value or Wildcard. Month is zero-based (0 = January).
type Rule struct {
	Minute  int
	Hour    int
	Day     int
	Month   int
	Weekday int
}

// FormatError reports a malformed cron expression.
type FormatError struct {
	Expr   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("crontab: malformed expression %q: %s", e.Expr, e.Reason)
}

// Unwrap lets errors.Is match errors.ErrInvalidFormat.
func (e *FormatError) Unwrap() error {
	return errors.ErrInvalidFormat
}

type field struct {
	name     string
	min, max int
	target   *int
}

// Parse parses "minute hour day month weekday". Each field is "*" or a
// single integer within its bounds: minute 0-59, hour 0-23, day 1-31,
// month 1-12, weekday 0-6 with Sunday as 0.
func Parse(expr string) (Rule, error) {
	tokens := strings.Fields(expr)
	if len(tokens) != 5 {
		return Rule{}, &FormatError{Expr: expr, Reason: fmt.Sprintf("expected 5 fields, got %d", len(tokens))}
	}

	var r Rule
	fields := []field{
		{"minute", 0, 59, &r.Minute},
		{"hour", 0, 23, &r.Hour},
		{"day", 1, 31, &r.Day},
		{"month", 1, 12, &r.Month},
		{"weekday", 0, 6, &r.Weekday},
	}

	for i, f := range fields {
		tok := tokens[i]
		if tok == "*" {
			*f.target = Wildcard
			continue
		}
		v, err := strconv.Atoi(tok)
		if err != nil {
			return Rule{}, &FormatError{Expr: expr, Reason: fmt.Sprintf("%s %q is not an integer", f.name, tok)}
		}
		if v < f.min || v > f.max {
			return Rule{}, &FormatError{Expr: expr, Reason: fmt.Sprintf("%s %d out of range %d-%d", f.name, v, f.min, f.max)}
		}
		*f.target = v
	}

	if r.Month != Wildcard {
		r.Month--
		if r.Day != Wildcard && r.Day > maxDays[r.Month] {
			return Rule{}, &FormatError{Expr: expr, Reason: fmt.Sprintf("day %d never occurs in month %d", r.Day, r.Month+1)}
		}
	}

	return r, nil
}

// MustParse is like Parse but panics on error.
func MustParse(expr string) Rule {
	r, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// Next returns the first minute strictly after now that satisfies every
// constrained field. Day and Weekday must both match when both are set.
// The result has zero seconds and is in now's location. If no minute within
// the search horizon matches, the zero time is returned.
func (r Rule) Next(now time.Time) time.Time {
	loc := now.Location()
	next := now.Truncate(time.Minute).Add(time.Minute)
	limit := now.Add(searchHorizon)

	for !next.After(limit) {
		y, m, d := next.Date()
		switch {
		case r.Month != Wildcard && int(m)-1 != r.Month:
			next = forward(next, time.Date(y, m+1, 1, 0, 0, 0, 0, loc))
		case r.Day != Wildcard && d != r.Day,
			r.Weekday != Wildcard && int(next.Weekday()) != r.Weekday:
			next = forward(next, time.Date(y, m, d+1, 0, 0, 0, 0, loc))
		case r.Hour != Wildcard && next.Hour() != r.Hour:
			// Absolute time, since a wall-clock hour skipped by DST
			// normalizes back to the hour before it.
			next = next.Add(time.Duration(60-next.Minute()) * time.Minute)
		case r.Minute != Wildcard && next.Minute() != r.Minute:
			next = next.Add(time.Minute)
		default:
			return next
		}
	}
	return time.Time{}
}

// forward returns candidate, or next moved to the following hour when a DST
// transition normalized candidate to a time that is not after next.
func forward(next, candidate time.Time) time.Time {
	if candidate.After(next) {
		return candidate
	}
	return next.Add(time.Duration(60-next.Minute()) * time.Minute)
}

// Matches reports whether t falls on a minute the rule selects.
func (r Rule) Matches(t time.Time) bool {
	return (r.Month == Wildcard || int(t.Month())-1 == r.Month) &&
		(r.Day == Wildcard || t.Day() == r.Day) &&
		(r.Weekday == Wildcard || int(t.Weekday()) == r.Weekday) &&
		(r.Hour == Wildcard || t.Hour() == r.Hour) &&
		(r.Minute == Wildcard || t.Minute() == r.Minute)
}

// String renders the rule in the form Parse accepts.
func (r Rule) String() string {
	month := r.Month
	if month != Wildcard {
		month++
	}
	parts := make([]string, 0, 5)
	for _, v := range []int{r.Minute, r.Hour, r.Day, month, r.Weekday} {
		if v == Wildcard {
			parts = append(parts, "*")
		} else {
			parts = append(parts, strconv.Itoa(v))
		}
	}
	return strings.Join(parts, " ")
}
