package internal

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"ERROR":   LogLevelError,
		"warn":    LogLevelWarn,
		"Info":    LogLevelInfo,
		"DEBUG":   LogLevelDebug,
		"trace":   LogLevelTrace,
		"":        LogLevelInfo,
		"verbose": LogLevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, LogLevelWarn)

	logger.Info("hidden %d", 1)
	logger.Warn("sweep found no optimum for %s", "group_1")
	logger.Error("boom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "sweep found no optimum for group_1", entry["message"])
	assert.Equal(t, LogLevelWarn, logger.GetLevel())
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, LogLevelDebug).With("run_id", "abc")
	logger.Debug("started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry["run_id"])
}
