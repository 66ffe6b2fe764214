package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const monthEndJob = `
source:
  types:
    value: float
derive:
  - op: parse_date
    source: date
    format: MM/dd/yyyy
  - op: end_of_month
    source: date
    target: month_end
group_by: [month_end]
aggregate:
  avg:
    source: value
    func: mean
sort_by: [month_end]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func setupJob(t *testing.T) (dir, job string) {
	t.Helper()
	t.Setenv("RESAMPLE_CONFIG", "")
	dir = t.TempDir()
	writeFile(t, dir, "prices.csv", "date,value\n01/15/2024,1.5\n01/20/2024,2.5\n02/03/2024,4\n")
	job = writeFile(t, dir, "monthly.yaml", monthEndJob)
	return dir, job
}

func TestRun_WritesCSVToStdout(t *testing.T) {
	dir, job := setupJob(t)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"run", "--job", job, filepath.Join(dir, "prices.csv")}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	assert.Equal(t, "month_end,avg\n2024-01-31,2\n2024-02-29,4\n", stdout.String())
	assert.Contains(t, stderr.String(), "Resample run completed")
}

func TestRun_OutputOverride(t *testing.T) {
	dir, job := setupJob(t)
	out := filepath.Join(dir, "result.json")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(),
		[]string{"run", "--job", job, "--out", out, "--format", "json", dir}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.Contains(t, stdout.String(), "written to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
}

func TestRun_LogFile(t *testing.T) {
	dir, job := setupJob(t)
	logPath := filepath.Join(dir, "logs", "run.log")
	cfgPath := writeFile(t, dir, "resample.yaml", "logging:\n  level: info\n  output: file\n  file_path: "+logPath+"\n")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(),
		[]string{"run", "--config", cfgPath, "--job", job, filepath.Join(dir, "prices.csv")}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.NotContains(t, stderr.String(), "Resample run completed")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	var completed map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		if entry["msg"] == "Resample run completed" {
			completed = entry
		}
	}
	require.NotNil(t, completed, string(data))
	assert.NotEmpty(t, completed["trace_id"])

	fds, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd to inspect open files")
	}
	for _, fd := range fds {
		target, err := os.Readlink(filepath.Join("/proc/self/fd", fd.Name()))
		if err == nil {
			assert.NotEqual(t, logPath, target, "log file still open after run")
		}
	}
}

func TestRun_Errors(t *testing.T) {
	dir, job := setupJob(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing job flag", args: []string{"run", dir}},
		{name: "job file does not exist", args: []string{"run", "--job", filepath.Join(dir, "nope.yaml"), dir}},
		{name: "bad format override", args: []string{"run", "--job", job, "--format", "pdf", dir}},
		{name: "no matching inputs", args: []string{"run", "--job", job, filepath.Join(dir, "*.parquet")}},
		{name: "unknown command", args: []string{"frobnicate"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Error(t, run(context.Background(), tt.args, &stdout, &stderr))
		})
	}
}

func TestVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "dateresample v")
}
