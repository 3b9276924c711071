package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncWriter struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (w *syncWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestConsoleProvider(t *testing.T) {
	w := &syncWriter{}
	factory := NewLoggingBuilder().
		AddConsole(ZapLoggerOptions{Output: w}).
		Build()

	logger := factory.CreateLogger("Test")
	logger.Info("Hello", F("key", "val"))

	out := w.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "Test")
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, `"key": "val"`)
}

func TestJsonProvider(t *testing.T) {
	w := &syncWriter{}
	factory := NewLoggingBuilder().AddJson(w).Build()

	factory.CreateLogger("Test").
		WithFields(F("component", "widget")).
		Warn("pool exhausted", F("max", 1))

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(w.String())), &data))
	assert.Equal(t, "WARN", data["level"])
	assert.Equal(t, "Test", data["category"])
	assert.Equal(t, "pool exhausted", data["msg"])
	assert.Equal(t, "widget", data["component"])
	assert.EqualValues(t, 1, data["max"])
}

func TestMinimumLevel(t *testing.T) {
	w := &syncWriter{}
	factory := NewLoggingBuilder().
		SetMinimumLevel(LogLevelWarn).
		AddJson(w).
		Build()

	logger := factory.CreateLogger("Test")
	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Error("kept")

	lines := strings.Split(strings.TrimSpace(w.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "kept")

	factory.SetMinimumLevel(LogLevelTrace)
	factory.CreateLogger("Test").Trace("now visible")
	assert.Contains(t, w.String(), "TRACE")
}

func TestWithCategory(t *testing.T) {
	w := &syncWriter{}
	logger := NewLoggingBuilder().AddJson(w).Build().CreateLogger("first")

	logger.WithCategory("second").Info("moved")

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(w.String())), &data))
	assert.Equal(t, "second", data["category"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"trace", LogLevelTrace},
		{"DEBUG", LogLevelDebug},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"bogus", LogLevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNop(t *testing.T) {
	logger := NewNop()
	logger.Error("nothing happens", Err(assert.AnError))
	logger.WithFields(F("a", 1)).WithCategory("x").Info("still nothing")
}
