package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate validates the configuration
func Validate(c *Config) error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d", c.Version)
	}

	if len(c.Servers) == 0 {
		return fmt.Errorf("at least one server is required")
	}
	seen := make(map[string]bool)
	for i, s := range c.Servers {
		if err := validateHost(s); err != nil {
			return fmt.Errorf("servers[%d]: %w", i, err)
		}
		if seen[s] {
			return fmt.Errorf("servers[%d]: duplicate server: %s", i, s)
		}
		seen[s] = true
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	localPort := c.GetLocalPort()
	if localPort < 0 || localPort > 65535 {
		return fmt.Errorf("local_port must be between 0 and 65535")
	}
	if c.TimeoutMs < 1 {
		return fmt.Errorf("timeout_ms must be positive")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	// Parallel exchanges cannot share one fixed source port
	if c.Concurrency > 1 && localPort != 0 {
		return fmt.Errorf("local_port must be 0 when concurrency is greater than 1")
	}

	if m := c.Monitor; m != nil {
		if m.CheckIntervalSeconds < 1 {
			return fmt.Errorf("monitor.check_interval_seconds must be positive")
		}
		if m.MaxOffsetMs < 1 {
			return fmt.Errorf("monitor.max_offset_ms must be positive")
		}
		if r := m.Reference; r != nil && r.Enabled {
			if len(r.Servers) == 0 {
				return fmt.Errorf("monitor.reference.servers is required when enabled")
			}
			for i, s := range r.Servers {
				if err := validateHost(s); err != nil {
					return fmt.Errorf("monitor.reference.servers[%d]: %w", i, err)
				}
			}
			if r.TimeoutSeconds < 1 {
				return fmt.Errorf("monitor.reference.timeout_seconds must be positive")
			}
		}
		if m.Listen != "" {
			if _, _, err := net.SplitHostPort(m.Listen); err != nil {
				return fmt.Errorf("monitor.listen: %w", err)
			}
		}
	}

	if l := c.Log; l != nil {
		switch strings.ToLower(l.Level) {
		case "", "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("log.level must be 'debug', 'info', 'warn', or 'error'")
		}
		switch strings.ToLower(l.Format) {
		case "", "text", "json":
		default:
			return fmt.Errorf("log.format must be 'text' or 'json'")
		}
	}

	return nil
}

// validateHost checks a server name or address. The port comes from the
// port setting, so host:port forms are rejected.
func validateHost(host string) error {
	if host == "" {
		return fmt.Errorf("host is required")
	}
	if strings.ContainsAny(host, " \t/") {
		return fmt.Errorf("invalid host %q", host)
	}
	if strings.Count(host, ":") == 1 {
		return fmt.Errorf("host %q must not include a port", host)
	}
	return nil
}
