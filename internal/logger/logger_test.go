package logger

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json format logs expected fields", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, zerolog.InfoLevel, "json")

		log.Info().Str("key", "value").Msg("json_test")

		require.Contains(t, buf.String(), `"message":"json_test"`)
		require.Contains(t, buf.String(), `"key":"value"`)
		require.Contains(t, buf.String(), `"time":`)
	})

	t.Run("console format logs human readable output", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, zerolog.DebugLevel, "console")

		log.Debug().Str("env", "test").Msg("console_log")

		out := stripANSI(buf.String())
		require.Contains(t, out, "console_log")
		require.Contains(t, out, "env=test")
	})

	t.Run("level filters lower events", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, zerolog.WarnLevel, "json")

		log.Info().Msg("dropped")
		log.Warn().Msg("kept")

		require.NotContains(t, buf.String(), "dropped")
		require.Contains(t, buf.String(), "kept")
	})
}

// stripANSI removes ANSI escape sequences (used in console logs)
func stripANSI(input string) string {
	re := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	return re.ReplaceAllString(input, "")
}
