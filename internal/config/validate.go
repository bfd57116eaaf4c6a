package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Streaming.Validate(); err != nil {
		return fmt.Errorf("streaming config: %w", err)
	}

	if c.Metrics.Enabled && c.Metrics.Port == c.Server.HTTPPort {
		return fmt.Errorf("metrics port %d collides with server http_port", c.Metrics.Port)
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if s.HTTPPort < 1 || s.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", s.HTTPPort)
	}

	if !s.EnableHTTP3 {
		return nil
	}

	if s.HTTP3Port < 1 || s.HTTP3Port > 65535 {
		return fmt.Errorf("invalid HTTP3 port: %d", s.HTTP3Port)
	}

	if s.TLSCertFile == "" {
		return fmt.Errorf("TLS certificate file is required for HTTP/3")
	}

	if s.TLSKeyFile == "" {
		return fmt.Errorf("TLS key file is required for HTTP/3")
	}

	// Check if certificate files exist
	if _, err := os.Stat(s.TLSCertFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS certificate file not found: %s", s.TLSCertFile)
	}

	if _, err := os.Stat(s.TLSKeyFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS key file not found: %s", s.TLSKeyFile)
	}

	return nil
}

func (r *RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	if len(r.Addresses) == 0 {
		return fmt.Errorf("at least one Redis address is required")
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid Redis database number: %d", r.DB)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if r.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}

	if r.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns cannot be negative")
	}

	if r.MinIdleConns > r.PoolSize {
		return fmt.Errorf("min_idle_conns cannot be greater than pool_size")
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", m.Port)
		}

		if m.Path == "" {
			return fmt.Errorf("metrics path cannot be empty")
		}
	}

	return nil
}

func (s *StreamingConfig) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", u.Scheme)
	}

	if !strings.Contains(s.NamePattern, "%d") {
		return fmt.Errorf("name_pattern must contain %%d")
	}

	if !strings.Contains(s.SlotPattern, "%d") {
		return fmt.Errorf("slot_pattern must contain %%d")
	}

	if s.SlotDir == "" {
		return fmt.Errorf("slot_dir cannot be empty")
	}

	if s.RotationWidth < 1 {
		return fmt.Errorf("rotation_width must be at least 1")
	}

	if s.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive")
	}

	if s.TickBurst < 1 {
		return fmt.Errorf("tick_burst must be at least 1")
	}

	switch s.Transport {
	case "http":
	case "http3":
		if u.Scheme != "https" {
			return fmt.Errorf("http3 transport requires an https base_url")
		}
	default:
		return fmt.Errorf("transport must be 'http' or 'http3', got %q", s.Transport)
	}

	if s.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout cannot be negative")
	}

	if s.MaxFrameBytes <= 0 {
		return fmt.Errorf("max_frame_bytes must be positive")
	}

	if s.MaxPoints <= 0 {
		return fmt.Errorf("max_points must be positive")
	}

	return nil
}
