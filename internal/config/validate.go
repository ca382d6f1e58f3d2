package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

func (c *Config) Validate() error {
	if err := c.Discord.Validate(); err != nil {
		return fmt.Errorf("discord config: %w", err)
	}

	if err := c.Hosting.Validate(); err != nil {
		return fmt.Errorf("hosting config: %w", err)
	}

	if err := c.Dashboard.Validate(); err != nil {
		return fmt.Errorf("dashboard config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	return nil
}

// validateOffline checks the sections used without a chat connection.
func (c *Config) validateOffline() error {
	if err := c.Hosting.Validate(); err != nil {
		return fmt.Errorf("hosting config: %w", err)
	}
	if err := c.Dashboard.Validate(); err != nil {
		return fmt.Errorf("dashboard config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (d *DiscordConfig) Validate() error {
	if strings.TrimSpace(d.Token) == "" {
		return fmt.Errorf("bot token is required (set DISCORD_TOKEN)")
	}

	name := d.CommandName
	if len(name) < 1 || len(name) > 32 || strings.ToLower(name) != name || strings.ContainsAny(name, " \t") {
		return fmt.Errorf("invalid command name: %q", name)
	}

	if d.StatusText == "" {
		return fmt.Errorf("status_text cannot be empty")
	}

	return nil
}

func (h *HostingConfig) Validate() error {
	if strings.TrimSpace(h.Token) == "" {
		return fmt.Errorf("api token is required (set DISCLOUD_TOKEN)")
	}

	if err := validateHTTPURL(h.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}

	if h.DashboardURL != "" {
		if err := validateHTTPURL(h.DashboardURL); err != nil {
			return fmt.Errorf("dashboard_url: %w", err)
		}
	}

	if h.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	if h.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if h.MaxRetries > 0 && h.RetryBaseDelay <= 0 {
		return fmt.Errorf("retry_base_delay must be positive when retries are enabled")
	}

	return nil
}

func (d *DashboardConfig) Validate() error {
	if d.IdleTimeout < time.Minute {
		return fmt.Errorf("idle_timeout must be at least 1m, got %s", d.IdleTimeout)
	}

	if d.RestartDelay < 0 {
		return fmt.Errorf("restart_delay cannot be negative")
	}

	if d.MaxUploadSize <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}

	if d.JanitorInterval <= 0 {
		return fmt.Errorf("janitor_interval must be positive")
	}

	if d.JanitorInterval > d.IdleTimeout {
		return fmt.Errorf("janitor_interval (%s) cannot exceed idle_timeout (%s)", d.JanitorInterval, d.IdleTimeout)
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

func (s *ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}

	if s.ReadTimeout <= 0 || s.WriteTimeout <= 0 {
		return fmt.Errorf("read_timeout and write_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.Path == "" {
			return fmt.Errorf("metrics path cannot be empty")
		}
		if !strings.HasPrefix(m.Path, "/") {
			return fmt.Errorf("metrics path must start with '/': %s", m.Path)
		}
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host: %q", raw)
	}
	return nil
}
