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
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the building dataset backend.
type StoreConfig struct {
	Driver         string            `yaml:"driver" mapstructure:"driver"`
	Path           string            `yaml:"path" mapstructure:"path"`
	Layer          string            `yaml:"layer" mapstructure:"layer"`
	DatabaseURL    string            `yaml:"database_url" mapstructure:"database_url"`
	Table          string            `yaml:"table" mapstructure:"table"`
	GeometryColumn string            `yaml:"geometry_column" mapstructure:"geometry_column"`
	SRID           int               `yaml:"srid" mapstructure:"srid"`
	MaxConns       int32             `yaml:"max_conns" mapstructure:"max_conns"`
	TimeoutSecs    int               `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FieldAliases   map[string]string `yaml:"field_aliases" mapstructure:"field_aliases"`
}

// Timeout returns the store read timeout.
func (c StoreConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// GeocodeConfig configures address resolution.
type GeocodeConfig struct {
	Providers    []string `yaml:"providers" mapstructure:"providers"`
	UserAgent    string   `yaml:"user_agent" mapstructure:"user_agent"`
	NominatimURL string   `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	BANURL       string   `yaml:"ban_url" mapstructure:"ban_url"`
	BANMinScore  float64  `yaml:"ban_min_score" mapstructure:"ban_min_score"`
	NominatimRPS float64  `yaml:"nominatim_rps" mapstructure:"nominatim_rps"`
	BANRPS       float64  `yaml:"ban_rps" mapstructure:"ban_rps"`
	TimeoutSecs  int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts  int      `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// Timeout returns the per-request geocoding timeout.
func (c GeocodeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins      []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BDNB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "gpkg")
	v.SetDefault("store.path", "data/bnb_export.gpkg")
	v.SetDefault("store.table", "bnb_export")
	v.SetDefault("store.geometry_column", "geometry")
	v.SetDefault("store.srid", 2154)
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.timeout_secs", 30)
	v.SetDefault("store.database_url", "")
	v.SetDefault("geocode.providers", []string{"nominatim", "ban"})
	v.SetDefault("geocode.user_agent", "bdnb-api")
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.ban_url", "https://api-adresse.data.gouv.fr/search/")
	v.SetDefault("geocode.ban_min_score", 0.5)
	v.SetDefault("geocode.nominatim_rps", 1.0)
	v.SetDefault("geocode.ban_rps", 50.0)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.max_attempts", 1)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 10)
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

// Validate checks the settings needed by mode: "serve" for the HTTP server,
// "query" for one-shot CLI queries.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve", "query":
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	switch strings.ToLower(c.Store.Driver) {
	case "gpkg", "geopackage", "shapefile", "shp":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required")
		}
	case "postgis", "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		problems = append(problems, "store.driver must be one of gpkg, postgis, shapefile")
	}
	if c.Store.TimeoutSecs < 0 {
		problems = append(problems, "store.timeout_secs must not be negative")
	}

	for _, p := range c.Geocode.Providers {
		switch p {
		case "nominatim", "ban":
		default:
			problems = append(problems, "geocode.providers: unknown provider "+p)
		}
	}
	if c.Geocode.NominatimRPS < 0 || c.Geocode.BANRPS < 0 {
		problems = append(problems, "geocode rate limits must not be negative")
	}
	if c.Geocode.MaxAttempts < 0 {
		problems = append(problems, "geocode.max_attempts must not be negative")
	}
	if c.Geocode.BANMinScore < 0 || c.Geocode.BANMinScore > 1 {
		problems = append(problems, "geocode.ban_min_score must be between 0 and 1")
	}

	if mode == "serve" && (c.Server.Port < 1 || c.Server.Port > 65535) {
		problems = append(problems, "server.port must be between 1 and 65535")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
