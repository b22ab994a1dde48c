package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "geoetl dev\n", out)
}

func TestDetectCmd(t *testing.T) {
	mock := filepath.Join("..", "..", "data", "mock")
	out, err := execute(t, "detect",
		filepath.Join(mock, "android_timeline.json"),
		filepath.Join(mock, "iphone_timeline.json"),
		filepath.Join(mock, "yamap_2025-01-18.gpx"),
		filepath.Join(mock, "broken.json"),
	)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], "\tandroid-timeline"))
	assert.True(t, strings.HasSuffix(lines[1], "\tiphone-timeline"))
	assert.True(t, strings.HasSuffix(lines[2], "\tgpx"))
	assert.Contains(t, lines[3], "\tmalformed_input\t")
}

func TestRunCmd(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out", "timeline.csv")
	metricsFile := filepath.Join(t.TempDir(), "geoetl.prom")
	t.Setenv("METRICS_TEXTFILE", metricsFile)
	t.Setenv("USERNAME_MODE", "filename")

	stdout, err := execute(t, "run", "--data-dir", filepath.Join("..", "..", "data", "mock"), "--output", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "records: 14")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "user_yamap_2025_01_18")

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "geo_etl_last_run_records 14")
}

func TestRunCmd_MissingDataDir(t *testing.T) {
	_, err := execute(t, "run", "--data-dir", filepath.Join(t.TempDir(), "absent"),
		"--output", filepath.Join(t.TempDir(), "x.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discover input files")
}
