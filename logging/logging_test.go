package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"error", slog.LevelError},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestSetupWritesConsoleAndFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	dir := t.TempDir()
	var console bytes.Buffer
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)

	logger, err := setup(&console, "info", dir, now)
	require.NoError(t, err)

	logger.Debug("only in file", "k", 1)
	logger.With("component", "engine").Info("everywhere")
	logger.WithGroup("run").Warn("grouped", "id", 7)
	require.NoError(t, logger.Close())

	require.Equal(t, filepath.Join(dir, "logs_20250102_030405.txt"), logger.File)

	data, err := os.ReadFile(logger.File)
	require.NoError(t, err)
	require.Contains(t, string(data), "only in file")
	require.Contains(t, string(data), "component=engine")

	require.Contains(t, string(data), "run.id=7")

	require.NotContains(t, console.String(), "only in file")
	require.Contains(t, console.String(), "everywhere")
	require.Contains(t, console.String(), "run.id=7")
}

func TestSetupWithoutDir(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var console bytes.Buffer
	logger, err := setup(&console, "warn", "", time.Now())
	require.NoError(t, err)
	require.Empty(t, logger.File)
	require.NoError(t, logger.Close())

	logger.Info("hidden")
	logger.Warn("shown")
	require.NotContains(t, console.String(), "hidden")
	require.Contains(t, console.String(), "shown")
}

func TestSetupRejectsBadLevel(t *testing.T) {
	_, err := setup(&bytes.Buffer{}, "verbose", "", time.Now())
	require.Error(t, err)
}
