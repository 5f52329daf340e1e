package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 30*time.Second, cfg.Monitor.Duration)
	assert.Equal(t, 10, cfg.Monitor.MinReports)
	assert.Equal(t, float64(-100), cfg.Monitor.FloorDBFS)
	assert.Equal(t, float64(-1), cfg.Monitor.ClipDBFS)
	assert.Equal(t, []string{"L"}, cfg.Monitor.Channels)
	assert.Equal(t, uint(14), cfg.Capture.Shift)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ValidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jarvis.yaml")
	yamlContent := `
serial:
  port: "COM4"
monitor:
  duration: 1m
  floor_dbfs: -90
  channels: [L, R]
  require_wifi: true
capture:
  data: sd.bin
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "COM4", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate, "missing baud rate should default")
	assert.Equal(t, time.Minute, cfg.Monitor.Duration)
	assert.Equal(t, float64(-90), cfg.Monitor.FloorDBFS)
	assert.Equal(t, float64(-1), cfg.Monitor.ClipDBFS)
	assert.Equal(t, []string{"L", "R"}, cfg.Monitor.Channels)
	assert.True(t, cfg.Monitor.RequireWiFi)
	assert.Equal(t, "sd.bin", cfg.Capture.Data)
	assert.Equal(t, "digital_0.bin", cfg.Capture.BCLK)
}

func TestLoad_ExplicitZeroClip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jarvis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("monitor:\n  clip_dbfs: 0\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, float64(0), cfg.Monitor.ClipDBFS)
	assert.Equal(t, float64(-100), cfg.Monitor.FloorDBFS)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed yaml", content: "serial: [port"},
		{name: "floor above clip", content: "monitor:\n  floor_dbfs: -3\n  clip_dbfs: -6\n"},
		{name: "bad channel", content: "monitor:\n  channels: [X]\n"},
		{name: "shift out of range", content: "capture:\n  shift: 40\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jarvis.yaml")
	cfg := Default()
	cfg.Serial.Port = "/dev/cu.usbmodem1101"
	cfg.Monitor.Duration = 45 * time.Second
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "duration: 45s")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
