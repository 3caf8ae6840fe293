package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/tickwork/pkg/scheduling/crontab"
	"github.com/vnykmshr/tickwork/pkg/scheduling/workerpool"
)

// Kind identifies the temporal rule a task follows.
type Kind int

const (
	// KindOnce runs a single time at its due time.
	KindOnce Kind = iota
	// KindEvery recurs on a fixed cadence measured from the previous due time.
	KindEvery
	// KindCron recurs on a five-field crontab.Rule.
	KindCron
	// KindInterval re-runs a fixed duration after each run completes.
	KindInterval
	// KindCronSpec recurs on a robfig/cron schedule (ranges, steps, descriptors).
	KindCronSpec
)

func (k Kind) String() string {
	switch k {
	case KindOnce:
		return "once"
	case KindEvery:
		return "every"
	case KindCron:
		return "cron"
	case KindInterval:
		return "interval"
	case KindCronSpec:
		return "cronspec"
	default:
		return "unknown"
	}
}

// Task is a unit of work bound to a temporal rule.
//
// A *Task is shared. The store holds it while it is pending. Once an
// interval task is dispatched, the running job holds it and re-arms it
// after the callback returns; every other recurring kind is re-armed by the
// scheduling loop at dispatch time.
type Task struct {
	id   uint64
	name string
	fn   workerpool.Task
	kind Kind

	every time.Duration // KindEvery, KindInterval
	rule  crontab.Rule  // KindCron
	spec  cron.Schedule // KindCronSpec
	expr  string        // KindCronSpec source
}

// TaskOption configures a task at scheduling time.
type TaskOption func(*Task)

// WithName sets a human-readable name used in logs and Entries.
func WithName(name string) TaskOption {
	return func(t *Task) {
		t.name = name
	}
}

func newTask(kind Kind, fn workerpool.Task, opts []TaskOption) *Task {
	t := &Task{kind: kind, fn: fn}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the identifier assigned when the task was scheduled.
func (t *Task) ID() uint64 { return t.id }

// Name returns the task name, which may be empty.
func (t *Task) Name() string { return t.name }

// Kind returns the task's rule kind.
func (t *Task) Kind() Kind { return t.kind }

// Recurs reports whether the task runs more than once.
func (t *Task) Recurs() bool {
	return t.kind != KindOnce
}

// RerunsAfterCompletion reports whether the next run is measured from the
// completion of the previous one.
func (t *Task) RerunsAfterCompletion() bool {
	return t.kind == KindInterval
}

// nextDueTime computes the due time following ref. For KindInterval ref is
// the completion time; for the other recurring kinds it is the previous due
// time. It returns false for one-shot tasks and for rules with no future match.
func (t *Task) nextDueTime(ref time.Time) (time.Time, bool) {
	var next time.Time
	switch t.kind {
	case KindEvery, KindInterval:
		next = ref.Add(t.every)
	case KindCron:
		next = t.rule.Next(ref)
	case KindCronSpec:
		next = t.spec.Next(ref)
	default:
		return time.Time{}, false
	}
	return next, !next.IsZero()
}

// describe renders the rule for Entries.
func (t *Task) describe(due time.Time) string {
	switch t.kind {
	case KindEvery, KindInterval:
		return t.kind.String() + " " + t.every.String()
	case KindCron:
		return t.rule.String()
	case KindCronSpec:
		return t.expr
	default:
		return due.Format(time.RFC3339)
	}
}

// Entry is a snapshot of a pending task.
type Entry struct {
	ID       uint64
	Name     string
	Kind     Kind
	Due      time.Time
	Schedule string
}
