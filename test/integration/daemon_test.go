// Package integration runs job files end to end against real processes.
package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/vnykmshr/tickwork/internal/jobfile"
	"github.com/vnykmshr/tickwork/internal/testutil"
	"github.com/vnykmshr/tickwork/pkg/metrics"
	"github.com/vnykmshr/tickwork/pkg/scheduling/scheduler"
)

func requireSh(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func startJobs(t *testing.T, yaml string, reg *metrics.Registry) *scheduler.Scheduler {
	t.Helper()

	f, err := jobfile.Parse([]byte(yaml))
	require.NoError(t, err)

	logger, _ := testutil.NewObservedLogger(zapcore.DebugLevel)
	s, err := scheduler.New(scheduler.Config{
		Name:     "integration",
		Workers:  f.Workers,
		Location: time.UTC,
		Logger:   logger,
		Metrics:  reg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { <-s.Stop() })

	require.NoError(t, jobfile.Register(s, f, logger))
	require.NoError(t, s.Start())
	return s
}

func countLines(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	return strings.Count(string(data), "\n")
}

func TestIntervalJobRunsRepeatedly(t *testing.T) {
	requireSh(t)
	out := filepath.Join(t.TempDir(), "ticks")
	t.Setenv("TICK_OUT", out)

	startJobs(t, `
jobs:
  - name: tick
    schedule:
      interval: 20ms
    command: ["sh", "-c", "echo tick >> \"$TICK_OUT\""]
`, nil)

	testutil.Eventually(t, func() bool { return countLines(out) >= 3 }, testutil.TestTimeout, 10*time.Millisecond)
}

func TestOnceJobRunsOnce(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()

	startJobs(t, `
jobs:
  - name: touch
    schedule:
      after: 10ms
    command: ["sh", "-c", "echo done >> marker"]
    dir: `+dir+`
`, nil)

	marker := filepath.Join(dir, "marker")
	testutil.Eventually(t, func() bool { return countLines(marker) == 1 }, testutil.TestTimeout, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, countLines(marker))
}

func TestSkipOverlapKeepsOneRunActive(t *testing.T) {
	requireSh(t)
	out := filepath.Join(t.TempDir(), "starts")

	startJobs(t, `
workers: 4
jobs:
  - name: slow
    schedule:
      every: 20ms
    command: ["sh", "-c", "echo start >> `+out+`; sleep 0.3"]
    overlap: skip
`, nil)

	// Runs falling due while the first one sleeps are skipped.
	testutil.Eventually(t, func() bool { return countLines(out) >= 1 }, testutil.TestTimeout, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, countLines(out))
}

func TestFailingJobIsCountedAndKeepsRecurring(t *testing.T) {
	requireSh(t)
	reg := metrics.NewRegistry(prometheus.NewRegistry())

	startJobs(t, `
jobs:
  - name: broken
    schedule:
      interval: 10ms
    command: ["sh", "-c", "exit 7"]
`, reg)

	failed := reg.TasksFailed.WithLabelValues("integration")
	testutil.Eventually(t, func() bool { return promtest.ToFloat64(failed) >= 3 }, testutil.TestTimeout, 10*time.Millisecond)
}

func TestStopWaitsForRunningJob(t *testing.T) {
	requireSh(t)
	out := filepath.Join(t.TempDir(), "finished")
	t.Setenv("FINISH_OUT", out)

	s := startJobs(t, `
jobs:
  - name: finisher
    schedule:
      after: 1ms
    command: ["sh", "-c", "sleep 0.2; echo ok >> \"$FINISH_OUT\""]
`, nil)

	testutil.Eventually(t, func() bool { return s.Len() == 0 }, testutil.TestTimeout, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), testutil.TestTimeout)
	defer cancel()
	select {
	case <-s.Stop():
	case <-ctx.Done():
		t.Fatal("timeout waiting for stop")
	}
	assert.Equal(t, 1, countLines(out))
}
