package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.in))
		})
	}
}

func TestBatchOperationRecord(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info").WithComponent("batch")

	log.BatchOperation("add", 250, 3, 1, 1500*time.Millisecond)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Batch operation completed", record["msg"])
	assert.Equal(t, "batch", record["component"])
	assert.Equal(t, "add", record["action"])
	assert.Equal(t, 250.0, record["total"])
	assert.Equal(t, 1.0, record["failed_groups"])
	assert.Equal(t, 1500.0, record["duration_ms"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")

	log.PlanComputed("add", 1, 0)
	assert.Zero(t, buf.Len())

	log.GroupFailed("add", 0, 100, assert.AnError)
	assert.NotZero(t, buf.Len())
}
