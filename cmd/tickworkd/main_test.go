package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const jobs = `
timezone: UTC
workers: 3
jobs:
  - name: backup
    schedule:
      cron: "30 2 * * *"
    command: ["backup"]
  - name: sweep
    schedule:
      cronspec: "0 */6 * * *"
    command: ["sweep"]
  - name: ping
    schedule:
      interval: 30s
    command: ["ping"]
`

func writeJobs(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, format string
		want          zapcore.Level
	}{
		{"debug", "json", zapcore.DebugLevel},
		{"", "", zapcore.InfoLevel},
		{"WARN", "console", zapcore.WarnLevel},
		{"error", "json", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		logger, err := newLogger(tt.level, tt.format)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(tt.want))
		assert.False(t, logger.Core().Enabled(tt.want-1))
	}

	_, err := newLogger("loud", "json")
	assert.Error(t, err)
	_, err = newLogger("info", "xml")
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	path := writeJobs(t, jobs)
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	var out bytes.Buffer
	require.NoError(t, check(&out, path, "", now))

	want := strings.Join([]string{
		path + ": 3 jobs, 3 workers, timezone UTC",
		"backup\tcron 30 2 * * *",
		"\t2024-01-16T02:30:00Z",
		"\t2024-01-17T02:30:00Z",
		"\t2024-01-18T02:30:00Z",
		"sweep\tcronspec 0 */6 * * *",
		"\t2024-01-15T12:00:00Z",
		"\t2024-01-15T18:00:00Z",
		"\t2024-01-16T00:00:00Z",
		"ping\tinterval 30s",
		"",
	}, "\n")
	assert.Equal(t, want, out.String())
}

func TestCheckTimezoneOverride(t *testing.T) {
	path := writeJobs(t, jobs)
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	var out bytes.Buffer
	require.NoError(t, check(&out, path, "Asia/Tokyo", now))
	assert.Contains(t, out.String(), "timezone Asia/Tokyo")
	assert.Contains(t, out.String(), "2024-01-16T02:30:00+09:00")

	assert.Error(t, check(&out, path, "Nowhere/Special", now))
}

func TestCheckCommand(t *testing.T) {
	path := writeJobs(t, jobs)

	var out bytes.Buffer
	app := newApp(&out)
	require.NoError(t, app.Run(context.Background(), []string{"tickworkd", "check", "--jobs", path}))
	assert.Contains(t, out.String(), "3 jobs")

	bad := writeJobs(t, "jobs: []\n")
	app = newApp(&out)
	assert.Error(t, app.Run(context.Background(), []string{"tickworkd", "check", "--jobs", bad}))
}

func TestExitCode(t *testing.T) {
	dup := writeJobs(t, `
jobs:
  - name: ping
    schedule:
      interval: 30s
    command: ["ping"]
  - name: ping
    schedule:
      interval: 1m
    command: ["ping"]
`)
	path := writeJobs(t, jobs)
	missing := filepath.Join(t.TempDir(), "absent.yaml")
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		path, tz string
		want     int
	}{
		{"duplicate job", dup, "", 2},
		{"unknown timezone", path, "Nowhere/Special", 2},
		{"missing file", missing, "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := check(&out, tt.path, tt.tz, now)
			require.Error(t, err)
			assert.Equal(t, tt.want, exitCode(err))
		})
	}
}
