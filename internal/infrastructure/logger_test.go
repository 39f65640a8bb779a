package infrastructure

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

	"paydash/internal/config"
)

func lastEntry(t *testing.T, content []byte) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInitializeLogger_FileOutput(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "nested", "paydash.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info("ledger loaded", "source", "demo")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	entry := lastEntry(t, content)
	assert.Equal(t, "ledger loaded", entry["msg"])
	assert.Equal(t, "demo", entry["source"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestInitializeLogger_OnlyOnce(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	dir := t.TempDir()
	first, err := InitializeLogger(config.LoggingConfig{Output: "file", FilePath: filepath.Join(dir, "a.log")})
	require.NoError(t, err)
	second, err := InitializeLogger(config.LoggingConfig{Output: "file", FilePath: filepath.Join(dir, "b.log")})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first, GetLogger())
	_, statErr := os.Stat(filepath.Join(dir, "b.log"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewLogger_TraceIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "debug"}, &buf)

	ctx := WithTraceID(context.Background(), "trace-123")
	logger.InfoContext(ctx, "with trace")
	entry := lastEntry(t, buf.Bytes())
	assert.Equal(t, "trace-123", entry["trace_id"])

	buf.Reset()
	logger.With("component", "loader").InfoContext(ctx, "derived")
	entry = lastEntry(t, buf.Bytes())
	assert.Equal(t, "trace-123", entry["trace_id"])
	assert.Equal(t, "loader", entry["component"])

	buf.Reset()
	logger.Info("no context")
	entry = lastEntry(t, buf.Bytes())
	assert.NotContains(t, entry, "trace_id")
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		warnSeen  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warning", false, true},
		{"error", false, false},
		{"bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(config.LoggingConfig{Level: tt.level}, &buf)

			logger.Debug("debug line")
			logger.Warn("warn line")

			assert.Equal(t, tt.debugSeen, strings.Contains(buf.String(), "debug line"))
			assert.Equal(t, tt.warnSeen, strings.Contains(buf.String(), "warn line"))
		})
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	traceID := GetTraceID(ctx)
	assert.NotEmpty(t, traceID)

	assert.Equal(t, traceID, GetTraceID(EnsureTraceID(ctx)))
	assert.Empty(t, GetTraceID(context.Background()))
	assert.NotEqual(t, GenerateTraceID(), GenerateTraceID())
}

func TestLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{}, &buf)

	WithComponent(logger, "refresher").Info("tick")
	assert.Equal(t, "refresher", lastEntry(t, buf.Bytes())["component"])

	buf.Reset()
	WithError(logger, os.ErrNotExist).Info("failed")
	assert.Contains(t, lastEntry(t, buf.Bytes())["error"], "file does not exist")

	assert.Same(t, logger, WithError(logger, nil))
}
