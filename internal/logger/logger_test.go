package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json config", config: &Config{Level: "debug", Format: "json", Output: &bytes.Buffer{}}},
		{name: "console config", config: &Config{Level: "info", Format: "console", Output: &bytes.Buffer{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "json", Output: buf})

	l.Infof("test %s", "message")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "test message", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_LevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "warn", Format: "json", Output: buf})

	l.Infof("dropped")
	l.DebugWith("dropped too", map[string]interface{}{"k": "v"})
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "debug", Format: "json", Output: buf})

	child := l.With().Str("component", "httpx").Int("attempt", 2).Err(nil).Logger()
	child.DebugWith("request sent", map[string]interface{}{"status": 200})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "httpx", entry["component"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, float64(200), entry["status"])
	assert.NotContains(t, entry, "error")
}

func TestLogger_ErrorWith(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "json", Output: buf})

	l.ErrorWith("upload failed", errors.New("boom"), map[string]interface{}{"path": "/a.txt"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "/a.txt", entry["path"])
}

func TestContextRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := l.WithContext(context.Background())
	FromContext(ctx).Warn("from context")
	assert.Contains(t, buf.String(), "from context")

	assert.NotNil(t, FromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.Disabled, ParseLevel("off"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}
