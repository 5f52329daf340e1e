// Package config loads the host tool settings from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the jarvisctl configuration.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Monitor MonitorConfig `yaml:"monitor"`
	Capture CaptureConfig `yaml:"capture"`
}

// SerialConfig selects the board's USB serial port.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MonitorConfig holds the pass criteria for a self-test run.
type MonitorConfig struct {
	// Duration to listen for level reports after the board starts.
	Duration time.Duration `yaml:"duration"`
	// MinReports is the number of level reports needed for a verdict.
	MinReports int `yaml:"min_reports"`
	// FloorDBFS: a channel whose loudest report is at or below this is dead.
	FloorDBFS float64 `yaml:"floor_dbfs"`
	// ClipDBFS: a channel whose quietest report is at or above this is saturated.
	ClipDBFS float64 `yaml:"clip_dbfs"`
	// Channels that must carry signal: "L", "R" or both.
	Channels []string `yaml:"channels"`
	// RequireWiFi fails the run when the board did not associate.
	RequireWiFi bool `yaml:"require_wifi"`
}

// CaptureConfig names the Saleae binary export files of an I2S capture.
type CaptureConfig struct {
	BCLK  string `yaml:"bclk"`
	LRCLK string `yaml:"lrclk"`
	Data  string `yaml:"data"`
	Shift uint   `yaml:"shift"`
}

// Default returns a configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Monitor: MonitorConfig{
			Duration:    30 * time.Second,
			MinReports:  10,
			FloorDBFS:   -100,
			ClipDBFS:    -1,
			Channels:    []string{"L"},
			RequireWiFi: false,
		},
		Capture: CaptureConfig{
			BCLK:  "digital_0.bin",
			LRCLK: "digital_1.bin",
			Data:  "digital_2.bin",
			Shift: 14,
		},
	}
}

// Load reads filename. A missing file yields the defaults and missing
// fields are filled in from Default. Thresholds keep explicit zeros since
// 0 dBFS is a valid clip level.
func Load(filename string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ensureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to filename.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the thresholds make sense.
func (c *Config) Validate() error {
	if c.Monitor.FloorDBFS >= c.Monitor.ClipDBFS {
		return fmt.Errorf("floor_dbfs (%v) must be below clip_dbfs (%v)", c.Monitor.FloorDBFS, c.Monitor.ClipDBFS)
	}
	for _, ch := range c.Monitor.Channels {
		if ch != "L" && ch != "R" {
			return fmt.Errorf("invalid channel %q, expected L or R", ch)
		}
	}
	if c.Capture.Shift > 31 {
		return fmt.Errorf("capture shift %d out of range", c.Capture.Shift)
	}
	return nil
}

func (c *Config) ensureDefaults() {
	def := Default()
	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Monitor.Duration == 0 {
		c.Monitor.Duration = def.Monitor.Duration
	}
	if c.Monitor.MinReports == 0 {
		c.Monitor.MinReports = def.Monitor.MinReports
	}
	if c.Capture.BCLK == "" {
		c.Capture.BCLK = def.Capture.BCLK
	}
	if c.Capture.LRCLK == "" {
		c.Capture.LRCLK = def.Capture.LRCLK
	}
	if c.Capture.Data == "" {
		c.Capture.Data = def.Capture.Data
	}
	if c.Capture.Shift == 0 {
		c.Capture.Shift = def.Capture.Shift
	}
}
