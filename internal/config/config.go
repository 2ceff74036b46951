// Package config provides configuration management for iptv-checker using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/Jelikton/iptv-checker/pkg/duration"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "IPTVCHECK"

// Default configuration values.
const (
	defaultManifestPath    = "channels.m3u"
	defaultCacheFile       = "channels.json"
	defaultGuideTimeout    = 30 * time.Second
	defaultGuideMaxSize    = "75MB"
	defaultProbeTimeout    = 5 * time.Second
	defaultMaxConcurrency  = 20
	defaultServerPort      = 8089
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultPrefsFile       = "config.json"
	defaultDatabaseDSN     = "iptv-checker.db"
)

// Config holds all configuration for the application.
type Config struct {
	Playlist PlaylistConfig `mapstructure:"playlist"`
	Guide    GuideConfig    `mapstructure:"guide"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PlaylistConfig locates the manifest and its JSON cache.
type PlaylistConfig struct {
	ManifestPath string `mapstructure:"manifest_path"`
	// CacheFile is relative to storage.base_dir.
	CacheFile string `mapstructure:"cache_file"`
}

// GuideConfig holds program guide fetch settings.
type GuideConfig struct {
	// URL overrides the guide URL announced by the manifest header.
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxSize caps the decompressed guide document.
	// Supports human-readable values like "75MB" or raw byte counts.
	MaxSize ByteSize `mapstructure:"max_size"`
}

// ProbeConfig holds reachability probing settings.
type ProbeConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	// RateLimit is the maximum number of probes started per second (0 = unlimited).
	RateLimit int `mapstructure:"rate_limit"`
	// Schedule is a cron expression for probe rounds started by the server.
	// Empty disables scheduled rounds.
	Schedule string `mapstructure:"schedule"`
}

// HTTPConfig holds outbound HTTP client settings.
type HTTPConfig struct {
	// UserAgent defaults to iptv-checker/<version> when empty.
	UserAgent string `mapstructure:"user_agent"`
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	BaseDir   string `mapstructure:"base_dir"`
	PrefsFile string `mapstructure:"prefs_file"`
}

// DatabaseConfig holds probe history database configuration.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Driver   string `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
	// HistoryLimit is the number of rounds kept; older rounds are pruned (0 = keep all).
	HistoryLimit int `mapstructure:"history_limit"`
}

// ServerConfig holds status API server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Example: IPTVCHECK_PROBE_TIMEOUT=10s.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("iptv-checker")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.iptv-checker")
	}

	BindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return Decode(v)
}

// BindEnv enables IPTVCHECK_* environment overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		durationHook(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// durationHook decodes strings with pkg/duration so values such as "1d"
// are accepted alongside Go duration syntax.
func durationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeFor[time.Duration]()
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != durationType {
			return data, nil
		}
		return duration.Parse(data.(string))
	}
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("playlist.manifest_path", defaultManifestPath)
	v.SetDefault("playlist.cache_file", defaultCacheFile)

	v.SetDefault("guide.url", "")
	v.SetDefault("guide.timeout", defaultGuideTimeout)
	v.SetDefault("guide.max_size", defaultGuideMaxSize)

	v.SetDefault("probe.timeout", defaultProbeTimeout)
	v.SetDefault("probe.max_concurrency", defaultMaxConcurrency)
	v.SetDefault("probe.rate_limit", 0)
	v.SetDefault("probe.schedule", "")

	v.SetDefault("http.user_agent", "")

	v.SetDefault("storage.base_dir", ".")
	v.SetDefault("storage.prefs_file", defaultPrefsFile)

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", defaultDatabaseDSN)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.history_limit", 100)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Playlist.ManifestPath == "" {
		return fmt.Errorf("playlist.manifest_path is required")
	}
	if c.Playlist.CacheFile == "" {
		return fmt.Errorf("playlist.cache_file is required")
	}

	if c.Guide.Timeout <= 0 {
		return fmt.Errorf("guide.timeout must be positive")
	}
	if c.Guide.MaxSize <= 0 {
		return fmt.Errorf("guide.max_size must be positive")
	}

	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive")
	}
	if c.Probe.MaxConcurrency < 1 {
		return fmt.Errorf("probe.max_concurrency must be at least 1")
	}
	if c.Probe.RateLimit < 0 {
		return fmt.Errorf("probe.rate_limit must not be negative")
	}
	if c.Probe.Schedule != "" {
		if _, err := cron.ParseStandard(c.Probe.Schedule); err != nil {
			return fmt.Errorf("probe.schedule: %w", err)
		}
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Storage.PrefsFile == "" {
		return fmt.Errorf("storage.prefs_file is required")
	}

	if c.Database.Enabled {
		validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
		if !validDrivers[c.Database.Driver] {
			return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
		}
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required")
		}
	}

	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
