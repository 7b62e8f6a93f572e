package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestZerologLogger_Fields verifies field encoding
// Given: A zerolog logger writing JSON to a buffer
// When: An event with typed fields is logged
// Then: Each field lands with its natural JSON type
func TestZerologLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf))

	logger.Warn("job rejected",
		F("center", "c1"),
		F("workers", 4),
		F("outstanding", int64(9)),
		F("job", JobID(3)),
		F("error", errors.New("boom")),
		F("flags", []string{"a"}),
	)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "warn", got["level"])
	assert.Equal(t, "job rejected", got["message"])
	assert.Equal(t, "jobcenter", got["component"])
	assert.Equal(t, "c1", got["center"])
	assert.Equal(t, float64(4), got["workers"])
	assert.Equal(t, float64(9), got["outstanding"])
	assert.Equal(t, "job-3", got["job"])
	assert.Equal(t, "boom", got["error"])
	assert.Equal(t, []any{"a"}, got["flags"])
}

func TestZerologLogger_LevelFiltered(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	logger.Debug("hidden")
	assert.Zero(t, buf.Len())

	logger.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNoOpLogger(t *testing.T) {
	var logger Logger = NewNoOpLogger()
	assert.NotPanics(t, func() {
		logger.Debug("x")
		logger.Info("x")
		logger.Warn("x", F("k", 1))
		logger.Error("x")
	})
}
