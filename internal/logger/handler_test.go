package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestPrettyHandler(t *testing.T) {
	t.Parallel()

	t.Run("filters below configured level", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(&buf, "warn", "text")

		log.Info("dropped")
		log.Warn("kept", "ip", "10.0.0.1")

		require.NotContains(t, buf.String(), "dropped")
		require.Contains(t, buf.String(), "kept")
		require.Contains(t, buf.String(), "ip")
		require.Contains(t, buf.String(), "10.0.0.1")
	})

	t.Run("groups prefix keys", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(NewPrettyHandler(&buf, nil)).WithGroup("ratelimit").With("class", "login")

		log.Info("blocked", "seconds", 300)

		out := buf.String()
		require.Contains(t, out, "ratelimit.class")
		require.Contains(t, out, "ratelimit.seconds")
	})
}

func TestJSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "info", "json")
	log.Info("login", "result", "success")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "login", decoded["msg"])
	require.Equal(t, "success", decoded["result"])
}
