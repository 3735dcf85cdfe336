package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: FormatJSON, Out: &buf})
	require.NoError(t, err)

	Component(logger, "pipeline").WithField("channel_id", "UC1").Info("channel fetched")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "channel fetched", entry["msg"])
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "UC1", entry["channel_id"])
}

func TestNew_DefaultLevelHidesInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Out: &buf})
	require.NoError(t, err)

	logger.Info("noise")
	assert.Empty(t, buf.String(), "default level should keep CLI output quiet")

	logger.Warn("something off")
	assert.Contains(t, buf.String(), "something off")
}

func TestNew_RejectsBadOptions(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestComponent_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		Component(nil, "x").Error("dropped")
	})
}
