// ABOUTME: Tests for logger setup
// ABOUTME: Covers levels, formats and file outputs
package logging

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/mp3stream/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zap.DebugLevel, false},
		{"INFO", zap.InfoLevel, false},
		{"", zap.InfoLevel, false},
		{"warning", zap.WarnLevel, false},
		{"error", zap.ErrorLevel, false},
		{"chatty", zap.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if tt.wantErr {
			require.Error(t, err, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		require.Equal(t, tt.want, got, tt.name)
	}
}

func TestSetupWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, err := Setup(config.LogConfig{Level: "info", Format: "json", Outputs: []string{path}})
	require.NoError(t, err)
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	logger.Debug("hidden")
	logger.Info("stream complete", zap.String("request", "a.mp3"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "stream complete", entry["msg"])
	require.Equal(t, "a.mp3", entry["request"])
}

func TestSetupRedirectsStdLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "std.log")

	logger, err := Setup(config.LogConfig{Level: "info", Format: "console", Outputs: []string{path}})
	require.NoError(t, err)
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	log.Printf("from the standard logger")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "from the standard logger")
}

func TestSetupRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.log")

	logger, err := Setup(config.LogConfig{
		Level:    "debug",
		Outputs:  []string{path},
		Rotation: config.RotationConfig{Enable: true, MaxSizeMB: 1},
	})
	require.NoError(t, err)
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	logger.Debug("rotating")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "rotating")
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	_, err := Setup(config.LogConfig{Level: "verbose"})
	require.Error(t, err)
}
