package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Loader  LoaderConfig  `yaml:"loader" mapstructure:"loader"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DatasetConfig configures the dataset backend.
type DatasetConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LoaderConfig configures snapshot ingestion.
type LoaderConfig struct {
	Manifest    string `yaml:"manifest" mapstructure:"manifest"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
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
	v.SetEnvPrefix("DIVISIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.driver", "sqlite")
	v.SetDefault("dataset.path", "divisions.db")
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("loader.temp_dir", "/tmp/divisions")
	v.SetDefault("loader.user_agent", "divisions-cli snapshot loader")
	v.SetDefault("loader.timeout_secs", 300)
	v.SetDefault("loader.concurrency", 4)
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

// Validate checks that the fields required by the given mode are present and
// sane. Modes: "query" (read-only CLI commands), "serve", "load".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Dataset.Driver {
	case "sqlite":
		if c.Dataset.Path == "" {
			problems = append(problems, "dataset.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Dataset.DatabaseURL == "" {
			problems = append(problems, "dataset.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "dataset.driver must be sqlite or postgres")
	}

	if c.Cache.MaxEntries < 0 {
		problems = append(problems, "cache.max_entries must be >= 0")
	}

	switch mode {
	case "query":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
		if c.Server.RateLimit < 0 {
			problems = append(problems, "server.rate_limit must be >= 0")
		}
	case "load":
		if c.Dataset.Driver != "sqlite" {
			problems = append(problems, "snapshot loading requires the sqlite driver")
		}
		if c.Loader.Manifest == "" {
			problems = append(problems, "loader.manifest is required")
		}
		if c.Loader.Concurrency < 1 || c.Loader.Concurrency > 16 {
			problems = append(problems, "loader.concurrency must be between 1 and 16")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
