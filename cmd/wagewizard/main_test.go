package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/wagewizard/internal/fixture"
	"github.com/YuminosukeSato/wagewizard/metrics"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "wagewizard version: dev\n", out)
}

func TestTrainThenEvaluate(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	data := fixture.WriteDataset(t, dir, 60, 11)
	artifacts := filepath.Join(dir, "out")

	common := []string{"--data", data, "--artifacts", artifacts, "--log-level", "error"}

	out, err := execute(t, append([]string{"train", "--epochs", "2", "--batch-size", "8", "--no-progress"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "trained 2 epochs")
	assert.Contains(t, out, "artifacts written to "+artifacts)

	saved, err := metrics.LoadReport(filepath.Join(artifacts, metrics.MetricsFile))
	require.NoError(t, err)

	out, err = execute(t, append([]string{"evaluate"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "MAE:")

	var fresh bytes.Buffer
	printReport(&fresh, saved)
	assert.Equal(t, fresh.String(), out)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "evaluate", "--log-format", "xml")
	assert.Error(t, err)
}

func TestGinMode(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"debug", gin.DebugMode},
		{"info", gin.ReleaseMode},
		{"", gin.ReleaseMode},
		{"error", gin.ReleaseMode},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ginMode(tt.level), "level %q", tt.level)
	}
}

func TestServeWithoutArtifacts(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	_, err := execute(t, "serve", "--artifacts", filepath.Join(dir, "absent"), "--log-level", "error")
	assert.Error(t, err)
}
