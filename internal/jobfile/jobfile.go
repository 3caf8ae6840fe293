// Package jobfile loads the YAML job definitions run by tickworkd.
//
// A job file looks like:
//
//	timezone: Europe/Berlin
//	workers: 4
//	jobs:
//	  - name: backup
//	    schedule:
//	      cron: "30 2 * * *"
//	    command: ["/usr/local/bin/backup", "--full"]
//	    timeout: 1h
//	  - name: heartbeat
//	    schedule:
//	      interval: 30s
//	    command: ["curl", "-fsS", "https://example.com/ping"]
//	  - name: reindex
//	    schedule:
//	      every: 5m
//	    command: ["reindex"]
//	    overlap: skip
//
// Exactly one schedule key must be set per job. Environment variables in
// the file are expanded before parsing.
package jobfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vnykmshr/tickwork/internal/runner"
	tkerrors "github.com/vnykmshr/tickwork/pkg/common/errors"
	"github.com/vnykmshr/tickwork/pkg/common/validation"
	"github.com/vnykmshr/tickwork/pkg/scheduling/concurrency"
	"github.com/vnykmshr/tickwork/pkg/scheduling/scheduler"
	"github.com/vnykmshr/tickwork/pkg/scheduling/workerpool"
)

const module = "jobfile"

// File is a parsed job file.
type File struct {
	// Timezone names the location used for "at" and cron schedules.
	// Empty means the daemon's local time.
	Timezone string `yaml:"timezone"`

	// Workers sizes the pool that runs jobs.
	Workers int `yaml:"workers" default:"4" validate:"min=1,max=1024"`

	Jobs []Job `yaml:"jobs" validate:"required,min=1,dive"`
}

// Job is one scheduled command.
type Job struct {
	Name     string            `yaml:"name" validate:"required"`
	Schedule Schedule          `yaml:"schedule"`
	Command  []string          `yaml:"command" validate:"required,min=1,dive,required"`
	Dir      string            `yaml:"dir"`
	Env      map[string]string `yaml:"env"`
	Timeout  time.Duration     `yaml:"timeout" validate:"min=0"`

	// Overlap decides what happens when a run falls due while earlier
	// runs are still active: allow starts it anyway, skip drops it and
	// queue waits for a free slot.
	Overlap string `yaml:"overlap" default:"allow" validate:"oneof=allow skip queue"`

	// MaxConcurrent is how many runs may be active at once under the
	// skip and queue policies.
	MaxConcurrent int `yaml:"max_concurrent" default:"1" validate:"min=1"`
}

// Schedule selects how a job repeats. Exactly one field may be set.
type Schedule struct {
	// Once is an absolute instant in RFC 3339 form.
	Once time.Time `yaml:"once"`

	// After runs the job once, this long after startup.
	After time.Duration `yaml:"after" validate:"min=0"`

	// At runs the job once at "HH:MM:SS" or "YYYY-MM-DD HH:MM:SS".
	At string `yaml:"at"`

	// Every repeats on a fixed cadence measured between due times.
	Every time.Duration `yaml:"every" validate:"min=0"`

	// Interval repeats with this pause after each run completes.
	Interval time.Duration `yaml:"interval" validate:"min=0"`

	// Cron is a five-field numeric rule: minute hour day month weekday.
	Cron string `yaml:"cron"`

	// CronSpec is a full crontab expression with ranges, steps and
	// descriptors such as "@daily".
	CronSpec string `yaml:"cronspec"`
}

// keys lists the schedule keys that are set.
func (s Schedule) keys() []string {
	var keys []string
	if !s.Once.IsZero() {
		keys = append(keys, "once")
	}
	if s.After > 0 {
		keys = append(keys, "after")
	}
	if s.At != "" {
		keys = append(keys, "at")
	}
	if s.Every > 0 {
		keys = append(keys, "every")
	}
	if s.Interval > 0 {
		keys = append(keys, "interval")
	}
	if s.Cron != "" {
		keys = append(keys, "cron")
	}
	if s.CronSpec != "" {
		keys = append(keys, "cronspec")
	}
	return keys
}

// String renders the schedule the way it appears in the file.
func (s Schedule) String() string {
	switch {
	case !s.Once.IsZero():
		return "once " + s.Once.Format(time.RFC3339)
	case s.After > 0:
		return "after " + s.After.String()
	case s.At != "":
		return "at " + s.At
	case s.Every > 0:
		return "every " + s.Every.String()
	case s.Interval > 0:
		return "interval " + s.Interval.String()
	case s.Cron != "":
		return "cron " + s.Cron
	case s.CronSpec != "":
		return "cronspec " + s.CronSpec
	}
	return "none"
}

// Load reads and parses the job file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes, defaults and validates a job file. Unknown keys are errors.
func Parse(data []byte) (*File, error) {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parse job file: %v", tkerrors.ErrInvalidFormat, err)
	}

	if err := validation.Struct(module, &f); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Location resolves Timezone.
func (f *File) Location() (*time.Location, error) {
	if f.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return nil, tkerrors.NewValidationError(module, "timezone", f.Timezone, err.Error())
	}
	return loc, nil
}

// validate checks what struct tags cannot express.
func (f *File) validate() error {
	if _, err := f.Location(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(f.Jobs))
	for i, job := range f.Jobs {
		field := fmt.Sprintf("jobs[%d]", i)
		if seen[job.Name] {
			return tkerrors.NewValidationError(module, field+".name", job.Name, "duplicate job name")
		}
		seen[job.Name] = true

		keys := job.Schedule.keys()
		if len(keys) != 1 {
			return tkerrors.NewValidationError(module, field+".schedule", keys,
				"exactly one schedule key is required").
				WithHint("use one of once, after, at, every, interval, cron, cronspec")
		}

		var err error
		switch {
		case job.Schedule.At != "":
			_, err = scheduler.ParseAt(job.Schedule.At, time.Now())
		case job.Schedule.Cron != "":
			err = scheduler.ValidateCronExpression(job.Schedule.Cron, false)
		case job.Schedule.CronSpec != "":
			err = scheduler.ValidateCronExpression(job.Schedule.CronSpec, true)
		}
		if err != nil {
			return fmt.Errorf("%s (%s): %w", field, job.Name, err)
		}
	}
	return nil
}

// Scheduler is the part of *scheduler.Scheduler that Register needs.
type Scheduler interface {
	ScheduleOnce(at time.Time, fn workerpool.Task, opts ...scheduler.TaskOption) error
	ScheduleAfter(delay time.Duration, fn workerpool.Task, opts ...scheduler.TaskOption) error
	ScheduleAt(value string, fn workerpool.Task, opts ...scheduler.TaskOption) error
	ScheduleEvery(d time.Duration, fn workerpool.Task, opts ...scheduler.TaskOption) error
	ScheduleInterval(d time.Duration, fn workerpool.Task, opts ...scheduler.TaskOption) error
	ScheduleCron(expr string, fn workerpool.Task, opts ...scheduler.TaskOption) error
	ScheduleCronSpec(expr string, fn workerpool.Task, opts ...scheduler.TaskOption) error
}

// Register schedules every job in f as a runner.Command.
func Register(s Scheduler, f *File, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, job := range f.Jobs {
		cmd := &runner.Command{
			Name:    job.Name,
			Args:    job.Command,
			Dir:     job.Dir,
			Env:     job.Env,
			Timeout: job.Timeout,
			Queue:   job.Overlap == "queue",
			Logger:  logger,
		}
		if job.Overlap != "allow" {
			limiter, err := concurrency.New(job.MaxConcurrent)
			if err != nil {
				return tkerrors.NewOperationError(module, "register", err).WithContext(job.Name)
			}
			cmd.Limiter = limiter
		}
		name := scheduler.WithName(job.Name)
		sc := job.Schedule

		var err error
		switch {
		case !sc.Once.IsZero():
			err = s.ScheduleOnce(sc.Once, cmd, name)
		case sc.After > 0:
			err = s.ScheduleAfter(sc.After, cmd, name)
		case sc.At != "":
			err = s.ScheduleAt(sc.At, cmd, name)
		case sc.Every > 0:
			err = s.ScheduleEvery(sc.Every, cmd, name)
		case sc.Interval > 0:
			err = s.ScheduleInterval(sc.Interval, cmd, name)
		case sc.Cron != "":
			err = s.ScheduleCron(sc.Cron, cmd, name)
		case sc.CronSpec != "":
			err = s.ScheduleCronSpec(sc.CronSpec, cmd, name)
		default:
			err = tkerrors.NewValidationError(module, "schedule", sc, "no schedule set")
		}
		if err != nil {
			return tkerrors.NewOperationError(module, "register", err).WithContext(job.Name)
		}

		logger.Info("job registered",
			zap.String("job", job.Name),
			zap.Stringer("schedule", sc),
			zap.Strings("command", job.Command))
	}
	return nil
}
