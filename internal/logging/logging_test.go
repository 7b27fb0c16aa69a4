package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/allbin/go-serial-exchange/internal/config"
)

func TestSetupJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "serialx.log")

	log, err := Setup(config.LogConfig{
		Level:   "info",
		Format:  "json",
		Outputs: []string{path},
	})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("exchange complete", zap.String("device", "simulated://A"), zap.Int("attempts", 1))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "exchange complete", entry["msg"])
	assert.Equal(t, "simulated://A", entry["device"])
	assert.EqualValues(t, 1, entry["attempts"])
}

func TestSetupRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.log")

	log, err := Setup(config.LogConfig{
		Level:    "warning",
		Format:   "console",
		Outputs:  []string{path},
		Rotation: config.RotationConfig{Enable: true, MaxSizeMB: 1},
	})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("exchange failed")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "exchange failed")
	assert.NotContains(t, string(data), "hidden")
}

func TestSetupInvalidLevel(t *testing.T) {
	_, err := Setup(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNormalizeLevel(t *testing.T) {
	assert.Equal(t, "warn", normalizeLevel(" WARNING "))
	assert.Equal(t, "info", normalizeLevel(""))
	assert.Equal(t, "debug", normalizeLevel("debug"))
}
