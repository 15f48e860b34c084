// File path: internal/oms/config.go
package oms

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	SnapshotPath string `json:"snapshot_path"`
	APIBaseURL   string `json:"api_base_url"`
	APIKey       string `json:"api_key"`
	Timezone     string `json:"timezone"`

	Timeout       time.Duration `json:"-"`
	TimeoutString string        `json:"timeout"`
}

func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.SnapshotPath) != "" {
		result.SnapshotPath = strings.TrimSpace(override.SnapshotPath)
	}
	if strings.TrimSpace(override.APIBaseURL) != "" {
		result.APIBaseURL = strings.TrimSpace(override.APIBaseURL)
	}
	if strings.TrimSpace(override.APIKey) != "" {
		result.APIKey = override.APIKey
	}
	if strings.TrimSpace(override.Timezone) != "" {
		result.Timezone = strings.TrimSpace(override.Timezone)
	}
	if override.Timeout > 0 {
		result.Timeout = override.Timeout
	}
	if strings.TrimSpace(override.TimeoutString) != "" {
		result.TimeoutString = strings.TrimSpace(override.TimeoutString)
	}
	return result
}

func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("ORDERDESK_OMS_CONFIG_FILE")); path != "" {
		fileCfg, err := loadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	cfg = cfg.Merge(loadConfigEnv())
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.SnapshotPath) == "" {
		c.SnapshotPath = filepath.Join("data", "orders.json")
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = "America/New_York"
	}
	if c.Timeout <= 0 {
		if c.TimeoutString != "" {
			if parsed, err := time.ParseDuration(c.TimeoutString); err == nil {
				c.Timeout = parsed
			}
		}
		if c.Timeout <= 0 {
			c.Timeout = 15 * time.Second
		}
	}
}

// Location resolves the configured business timezone, falling back to UTC when
// the zone database does not know the name.
func (c Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read oms config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse oms config: %w", err)
	}
	return cfg, nil
}

func loadConfigEnv() Config {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("ORDERDESK_SNAPSHOT")); path != "" {
		cfg.SnapshotPath = path
	}
	if base := strings.TrimSpace(os.Getenv("OMS_API_URL")); base != "" {
		cfg.APIBaseURL = base
	}
	if key := strings.TrimSpace(os.Getenv("OMS_API_KEY")); key != "" {
		cfg.APIKey = key
	}
	if tz := strings.TrimSpace(os.Getenv("ORDERDESK_TIMEZONE")); tz != "" {
		cfg.Timezone = tz
	}
	if timeout := strings.TrimSpace(os.Getenv("OMS_TIMEOUT")); timeout != "" {
		cfg.TimeoutString = timeout
		if parsed, err := time.ParseDuration(timeout); err == nil {
			cfg.Timeout = parsed
		}
	}
	return cfg
}
