package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-ai/internal/config"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, closer := New(config.LogConfig{Level: "warn", File: path, MaxSizeMB: 1}, true)

	log.Info().Msg("hidden")
	log.Warn().Str("session_id", "s1").Msg("visible")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, "s1", entry["session_id"])
	assert.Equal(t, "warn", entry["level"])
}

func TestNewFallsBackToInfo(t *testing.T) {
	log, closer := New(config.LogConfig{Level: "chatty"}, false)
	defer closer.Close()
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
