// tickworkd runs the commands listed in a YAML job file on their schedules.
//
// Usage:
//
//	tickworkd [options]               run the daemon
//	tickworkd check [options]         validate the job file and preview runs
//
// Options:
//
//	-j, --jobs          job file path (default: /etc/tickwork/jobs.yaml)
//	-w, --workers       worker count, overriding the job file
//	    --timezone      location for "at" and cron schedules, overriding the job file
//	    --metrics-addr  address serving /metrics (empty disables it)
//	    --log-level     debug, info, warn or error (default: info)
//	    --log-format    json or console (default: json)
//
// The daemon stops on SIGINT or SIGTERM, letting running jobs finish and
// running jobs that were already due. Under systemd it reports readiness
// with sd_notify. It exits with status 2 when the job file or a flag fails
// validation and 1 on any other error.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/tickwork/internal/jobfile"
	tkerrors "github.com/vnykmshr/tickwork/pkg/common/errors"
	"github.com/vnykmshr/tickwork/pkg/metrics"
	"github.com/vnykmshr/tickwork/pkg/scheduling/scheduler"
)

const (
	defaultJobFile  = "/etc/tickwork/jobs.yaml"
	shutdownTimeout = 10 * time.Second
	previewRuns     = 3
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	app := newApp(os.Stdout)
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "tickworkd:", err)
		return exitCode(err)
	}
	return 0
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "tickworkd",
		Usage:   "run commands on a schedule",
		Version: version,
		Writer:  out,
		Flags: []cli.Flag{
			jobsFlag(),
			timezoneFlag(),
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "worker count (overrides the job file)",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "address serving /metrics, empty to disable",
				Value:   ":9310",
				Sources: cli.EnvVars("TICKWORK_METRICS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				Sources: cli.EnvVars("TICKWORK_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "json or console",
				Value: "json",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "validate the job file and print upcoming runs",
				Flags: []cli.Flag{jobsFlag(), timezoneFlag()},
				Action: func(_ context.Context, cmd *cli.Command) error {
					return check(cmd.Root().Writer, cmd.String("jobs"), cmd.String("timezone"), time.Now())
				},
			},
		},
		Action: serve,
	}
}

// exitCode is 2 for a job file or flag that failed validation and 1 for
// any other failure.
func exitCode(err error) int {
	if tkerrors.IsValidationError(err) {
		return 2
	}
	return 1
}

func jobsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "jobs",
		Aliases: []string{"j"},
		Usage:   "job file path",
		Value:   defaultJobFile,
		Sources: cli.EnvVars("TICKWORK_JOBS"),
	}
}

func timezoneFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "timezone",
		Usage: "location for at and cron schedules (overrides the job file)",
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd.String("log-level"), cmd.String("log-format"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	file, err := jobfile.Load(cmd.String("jobs"))
	if err != nil {
		return err
	}
	loc, err := location(file, cmd.String("timezone"))
	if err != nil {
		return err
	}

	workers := file.Workers
	if w := cmd.Int("workers"); w > 0 {
		workers = w
	}

	s, err := scheduler.New(scheduler.Config{
		Name:     "tickworkd",
		Workers:  workers,
		Location: loc,
		Logger:   logger,
		Metrics:  metrics.DefaultRegistry,
	})
	if err != nil {
		return err
	}
	if err := jobfile.Register(s, file, logger); err != nil {
		<-s.Stop()
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Start(); err != nil {
		return err
	}
	logger.Info("tickworkd started",
		zap.String("version", version),
		zap.Int("jobs", len(file.Jobs)),
		zap.Int("workers", workers),
		zap.String("timezone", loc.String()))

	g, gctx := errgroup.WithContext(ctx)

	if addr := cmd.String("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("stopping scheduler", zap.Int("pending", s.Len()))
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		<-s.Stop()
		return nil
	})

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("sd_notify failed", zap.Error(err))
	} else if ok {
		logger.Debug("notified systemd")
	}

	err = g.Wait()
	logger.Info("tickworkd stopped")
	return err
}

// check validates the job file at path and prints each job with its next
// few runs. Only cron schedules get a preview.
func check(out io.Writer, path, timezone string, now time.Time) error {
	file, err := jobfile.Load(path)
	if err != nil {
		return err
	}
	loc, err := location(file, timezone)
	if err != nil {
		return err
	}
	now = now.In(loc)

	fmt.Fprintf(out, "%s: %d jobs, %d workers, timezone %s\n", path, len(file.Jobs), file.Workers, loc)
	for _, job := range file.Jobs {
		fmt.Fprintf(out, "%s\t%s\n", job.Name, job.Schedule)

		expr, spec := job.Schedule.Cron, false
		if job.Schedule.CronSpec != "" {
			expr, spec = job.Schedule.CronSpec, true
		}
		if expr == "" {
			continue
		}
		runs, err := scheduler.NextRuns(expr, spec, now, previewRuns)
		if err != nil {
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
		for _, r := range runs {
			fmt.Fprintf(out, "\t%s\n", r.Format(time.RFC3339))
		}
	}
	return nil
}

// location picks the flag's timezone over the job file's.
func location(file *jobfile.File, override string) (*time.Location, error) {
	if override == "" {
		return file.Location()
	}
	loc, err := time.LoadLocation(override)
	if err != nil {
		return nil, tkerrors.NewValidationError("tickworkd", "timezone", override, err.Error())
	}
	return loc, nil
}
