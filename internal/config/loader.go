package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load loads configuration from the specified file path. Files ending in
// .toml are decoded as TOML, everything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if isTOML(path) {
		if _, err := toml.Decode(string(data), &config); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyDefaults(&config)

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &config, nil
}

// Save writes the configuration atomically: a temp file in the same
// directory is renamed over path
func Save(path string, c *Config) error {
	if err := Validate(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(c); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		data = []byte(sb.String())
	} else {
		var err error
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		data = append(data, '\n')
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// applyDefaults sets default values for optional fields
func applyDefaults(c *Config) {
	if len(c.Servers) == 0 {
		c.Servers = append([]string(nil), DefaultServers...)
	}
	if c.Port == 0 {
		c.Port = 123
	}
	if c.LocalPort == nil {
		port := 12300
		c.LocalPort = &port
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = 1000
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}

	// Monitor defaults
	if c.Monitor == nil {
		c.Monitor = &Monitor{}
	}
	if c.Monitor.CheckIntervalSeconds == 0 {
		c.Monitor.CheckIntervalSeconds = 300
	}
	if c.Monitor.MaxOffsetMs == 0 {
		c.Monitor.MaxOffsetMs = 5000
	}
	if c.Monitor.Reference == nil {
		c.Monitor.Reference = &Reference{}
	}
	if c.Monitor.Reference.Enabled && len(c.Monitor.Reference.Servers) == 0 {
		c.Monitor.Reference.Servers = []string{"pool.ntp.org"}
	}
	if c.Monitor.Reference.TimeoutSeconds == 0 {
		c.Monitor.Reference.TimeoutSeconds = 5
	}

	// Log defaults
	if c.Log == nil {
		c.Log = &Log{}
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
