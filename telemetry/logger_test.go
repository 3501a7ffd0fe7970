package telemetry

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerToEmitsComponentField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "engine")

	logger.Info().Str("region", "us-east-1").Msg("run started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "us-east-1", entry["region"])
	assert.Equal(t, "run started", entry["message"])
}

func TestOTELHookWithoutSpanIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "engine")

	logger.Error().Msg("boom")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, hasTrace := entry["trace_id"]
	assert.False(t, hasTrace)
}
