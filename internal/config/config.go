package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const envPrefix = "HOSTPANEL"

type Config struct {
	Discord   DiscordConfig   `mapstructure:"discord"`
	Hosting   HostingConfig   `mapstructure:"hosting"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type DiscordConfig struct {
	Token       string `mapstructure:"token"`
	GuildID     string `mapstructure:"guild_id"` // empty registers global commands
	StatusText  string `mapstructure:"status_text"`
	CommandName string `mapstructure:"command_name"`
}

type HostingConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	Timeout        time.Duration `mapstructure:"timeout"` // 0 keeps the transport default
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	DashboardURL   string        `mapstructure:"dashboard_url"`
}

type DashboardConfig struct {
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RestartDelay    time.Duration `mapstructure:"restart_delay"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size"` // bytes
	RestrictToOwner bool          `mapstructure:"restrict_to_owner"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`   // json or text
	Output     string `mapstructure:"output"`   // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	DebugEndpoints  bool          `mapstructure:"debug_endpoints"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configPath (optional), applies HOSTPANEL_* and the legacy
// DISCORD_TOKEN / DISCLOUD_TOKEN overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// LoadOffline is Load for commands that only talk to the hosting API: the
// Discord section is not required.
func LoadOffline(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateOffline(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Watch re-reads configPath whenever it changes on disk and hands every
// valid result to onChange. Invalid edits go to onError and are otherwise
// ignored, so the running config stays in place.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	if configPath == "" {
		return errors.New("no config file to watch")
	}
	v, err := newViper(configPath)
	if err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names the bot has always been deployed with.
	_ = v.BindEnv("discord.token", envPrefix+"_DISCORD_TOKEN", "DISCORD_TOKEN")
	_ = v.BindEnv("hosting.token", envPrefix+"_HOSTING_TOKEN", "DISCLOUD_TOKEN")

	setDefaults(v)

	if configPath == "" {
		return v, nil
	}
	v.SetConfigFile(configPath)
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return v, nil
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return v, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Discord defaults
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("discord.status_text", "Hosting Dashboard")
	v.SetDefault("discord.command_name", "panel")

	// Hosting defaults
	v.SetDefault("hosting.base_url", "https://api.discloud.app/v2")
	v.SetDefault("hosting.timeout", "30s")
	v.SetDefault("hosting.max_retries", 2)
	v.SetDefault("hosting.retry_base_delay", "500ms")
	v.SetDefault("hosting.dashboard_url", "https://discloud.com/dashboard")

	// Dashboard defaults
	v.SetDefault("dashboard.idle_timeout", "10m")
	v.SetDefault("dashboard.restart_delay", "2s")
	v.SetDefault("dashboard.max_upload_size", 100*1024*1024)
	v.SetDefault("dashboard.restrict_to_owner", true)
	v.SetDefault("dashboard.janitor_interval", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Ops server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.debug_endpoints", false)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
