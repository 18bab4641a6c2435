package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: JSONFormat, Out: &buf})
	require.NoError(t, err)

	logger.Debug().Str("component", "test").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "test", line["component"])
	assert.Contains(t, line, "time")
}

func TestNewLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "WARN", Format: JSONFormat, Out: &buf})
	require.NoError(t, err)

	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Out: &buf})
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger.Info().Msg("block sealed")
	assert.Contains(t, buf.String(), "block sealed")
}

func TestNewInvalid(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}
