package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"sysdash/internal/metrics"
)

const (
	defaultPort = 8150

	envPort = "SYSDASH_PORT"
)

// Config holds startup settings. The tick interval and history length are
// only starting values: both stay adjustable at runtime through the API.
type Config struct {
	Port                  int    `yaml:"port"`
	UpdateIntervalSeconds int    `yaml:"update_interval_seconds"`
	HistoryLength         int    `yaml:"history_length"`
	CPUWindowMillis       int    `yaml:"cpu_window_ms"`
	LogFile               string `yaml:"log_file"`
}

// Default returns the built-in settings, matching the original dashboard's
// slider defaults.
func Default() *Config {
	return &Config{
		Port:                  defaultPort,
		UpdateIntervalSeconds: metrics.DefaultIntervalSeconds,
		HistoryLength:         metrics.DefaultHistory,
		CPUWindowMillis:       int(metrics.DefaultCPUWindow / time.Millisecond),
	}
}

// Load reads the YAML config at path, filling gaps with defaults and clamping
// out-of-range values. A missing file is not an error; the defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			cfg.clamp()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyEnv()
	cfg.clamp()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if raw := os.Getenv(envPort); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil {
			c.Port = port
		}
	}
}

func (c *Config) clamp() {
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = defaultPort
	}
	c.UpdateIntervalSeconds = metrics.ClampIntervalSeconds(c.UpdateIntervalSeconds)
	c.HistoryLength = metrics.ClampHistory(c.HistoryLength)
	if c.CPUWindowMillis <= 0 {
		c.CPUWindowMillis = int(metrics.DefaultCPUWindow / time.Millisecond)
	}
}

// CPUWindow returns the blocking CPU sampling window as a duration.
func (c *Config) CPUWindow() time.Duration {
	return time.Duration(c.CPUWindowMillis) * time.Millisecond
}
