package config

import (
	"time"

	"github.com/alexwitherspoon/clock/internal/ntp"
	"github.com/alexwitherspoon/clock/internal/timehealth"
)

// CurrentVersion is the only config version this build reads
const CurrentVersion = 1

// Config represents the root configuration structure
type Config struct {
	Version     int      `json:"version" toml:"version"`                   // Config version, current: 1
	Servers     []string `json:"servers,omitempty" toml:"servers"`         // NTP servers queried by check-ntp
	Port        int      `json:"port,omitempty" toml:"port"`               // Remote port, default 123
	LocalPort   *int     `json:"local_port,omitempty" toml:"local_port"`   // Source port, default 12300, 0 = ephemeral
	TimeoutMs   int      `json:"timeout_ms,omitempty" toml:"timeout_ms"`   // Per-server read timeout, default 1000
	Concurrency int      `json:"concurrency,omitempty" toml:"concurrency"` // Parallel exchanges, default 1
	Monitor     *Monitor `json:"monitor,omitempty" toml:"monitor"`         // Settings for the watch command
	Log         *Log     `json:"log,omitempty" toml:"log"`                 // Logging
}

// Monitor configures periodic time health checks
type Monitor struct {
	CheckIntervalSeconds int        `json:"check_interval_seconds,omitempty" toml:"check_interval_seconds"` // Default: 300
	MaxOffsetMs          int        `json:"max_offset_ms,omitempty" toml:"max_offset_ms"`                   // Default: 5000
	Reference            *Reference `json:"reference,omitempty" toml:"reference"`                           // Independent cross-check
	Listen               string     `json:"listen,omitempty" toml:"listen"`                                 // Status HTTP address for watch, empty disables
}

// Reference configures the independent SNTP cross-check
type Reference struct {
	Enabled        bool     `json:"enabled,omitempty" toml:"enabled"`
	Servers        []string `json:"servers,omitempty" toml:"servers"`                 // Default: pool.ntp.org
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" toml:"timeout_seconds"` // Default: 5
}

// Log configures the logger
type Log struct {
	Level  string `json:"level,omitempty" toml:"level"`   // debug, info, warn, error
	Format string `json:"format,omitempty" toml:"format"` // text, json
}

// DefaultServers is the reference list of public time servers
var DefaultServers = []string{
	"time.nist.gov",
	"time.apple.com",
	"time.euro.apple.com",
	"time.google.com",
	"time2.google.com",
}

// Default returns a complete configuration with every default applied
func Default() *Config {
	c := &Config{Version: CurrentVersion}
	applyDefaults(c)
	return c
}

// GetLocalPort returns the UDP source port
func (c *Config) GetLocalPort() int {
	if c.LocalPort == nil {
		return ntp.DefaultLocalPort
	}
	return *c.LocalPort
}

// Timeout returns the per-exchange timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Aggregator returns the settings for a consensus check
func (c *Config) Aggregator() ntp.Config {
	return ntp.Config{
		Servers:     c.Servers,
		Port:        c.Port,
		LocalPort:   c.GetLocalPort(),
		Timeout:     c.Timeout(),
		Concurrency: c.Concurrency,
	}
}

// TimeHealth returns the settings for the watch command
func (c *Config) TimeHealth() timehealth.Config {
	m := c.Monitor
	if m == nil {
		m = &Monitor{}
	}
	cfg := timehealth.Config{
		CheckInterval: time.Duration(m.CheckIntervalSeconds) * time.Second,
		MaxOffset:     time.Duration(m.MaxOffsetMs) * time.Millisecond,
	}
	if m.Reference != nil && m.Reference.Enabled {
		cfg.ReferenceServers = m.Reference.Servers
		cfg.ReferenceTimeout = time.Duration(m.Reference.TimeoutSeconds) * time.Second
	}
	return cfg
}
