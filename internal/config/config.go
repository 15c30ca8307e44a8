// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Checkers CheckersConfig `yaml:"checkers" mapstructure:"checkers"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Audit    AuditConfig    `yaml:"audit" mapstructure:"audit"`
	Health   HealthConfig   `yaml:"health" mapstructure:"health"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig configures the PostGIS-backed relational store.
type DatabaseConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures the redis result cache.
type CacheConfig struct {
	URL            string `yaml:"url" mapstructure:"url"`
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	DefaultTTLSecs int    `yaml:"default_ttl_secs" mapstructure:"default_ttl_secs"`
}

// GeocodeConfig configures address resolution providers.
type GeocodeConfig struct {
	NominatimBaseURL string  `yaml:"nominatim_base_url" mapstructure:"nominatim_base_url"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimitRPS     float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	LocationIQKey    string  `yaml:"locationiq_key" mapstructure:"locationiq_key"`
	LocationIQURL    string  `yaml:"locationiq_url" mapstructure:"locationiq_url"`
	CacheTTLDays     int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
}

// CheckerConfig overrides a single checker's defaults.
type CheckerConfig struct {
	Enabled     *bool `yaml:"enabled" mapstructure:"enabled"`
	TimeoutMs   int   `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	CacheTTLSec int   `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// CheckersConfig holds per-checker overrides keyed by checker name, plus
// shared spatial parameters.
type CheckersConfig struct {
	Overrides           map[string]CheckerConfig `yaml:"overrides" mapstructure:"overrides"`
	FireBufferMeters    float64                  `yaml:"fire_buffer_meters" mapstructure:"fire_buffer_meters"`
	WaterBufferMeters   float64                  `yaml:"water_buffer_meters" mapstructure:"water_buffer_meters"`
	EmbargoBufferMeters float64                  `yaml:"embargo_buffer_meters" mapstructure:"embargo_buffer_meters"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	APIVersion         string   `yaml:"api_version" mapstructure:"api_version"`
	RequestSlackSecs   int      `yaml:"request_slack_secs" mapstructure:"request_slack_secs"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" mapstructure:"cors_allowed_origins"`
}

// AuditConfig configures audit persistence.
type AuditConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// FreshnessThreshold classifies a source's staleness in hours.
type FreshnessThreshold struct {
	WarningHours int `yaml:"warning_hours" mapstructure:"warning_hours"`
	StaleHours   int `yaml:"stale_hours" mapstructure:"stale_hours"`
}

// HealthConfig configures the freshness monitor.
type HealthConfig struct {
	// Thresholds by update cadence; sources declare their cadence in the
	// sources metadata table.
	Thresholds        map[string]FreshnessThreshold `yaml:"thresholds" mapstructure:"thresholds"`
	CheckIntervalSecs int                           `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RequestTimeout derives the overall request deadline slack.
func (c ServerConfig) RequestSlack() time.Duration {
	if c.RequestSlackSecs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.RequestSlackSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AGROCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.url", "redis://localhost:6379/0")
	v.SetDefault("cache.default_ttl_secs", 3600)
	v.SetDefault("geocode.nominatim_base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "agrocheck/1.0 (compliance@agrotrace.io)")
	v.SetDefault("geocode.rate_limit_rps", 1.0)
	v.SetDefault("geocode.timeout_secs", 5)
	v.SetDefault("geocode.locationiq_url", "https://us1.locationiq.com/v1")
	v.SetDefault("geocode.cache_ttl_days", 365)
	v.SetDefault("checkers.fire_buffer_meters", 10000.0)
	v.SetDefault("checkers.water_buffer_meters", 5000.0)
	v.SetDefault("checkers.embargo_buffer_meters", 5000.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_version", "1.0.0")
	v.SetDefault("server.request_slack_secs", 2)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("audit.driver", "postgres")
	v.SetDefault("audit.sqlite_path", "agrocheck_audit.db")
	v.SetDefault("health.check_interval_secs", 300)
	v.SetDefault("health.thresholds", map[string]FreshnessThreshold{
		"daily":   {WarningHours: 48, StaleHours: 96},
		"weekly":  {WarningHours: 168, StaleHours: 336},
		"monthly": {WarningHours: 720, StaleHours: 1440},
	})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
