// Package config loads application configuration from file and
// environment and initializes the global logger.
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
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Crawl   CrawlConfig   `yaml:"crawl" mapstructure:"crawl"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// HTTPConfig configures the outbound fetcher.
type HTTPConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RatePerHost float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
}

// CrawlConfig configures the cause list crawl.
type CrawlConfig struct {
	BaseURL          string   `yaml:"base_url" mapstructure:"base_url"`
	Lookback         int      `yaml:"lookback" mapstructure:"lookback"`
	Offset           int      `yaml:"offset" mapstructure:"offset"`
	CourtConcurrency int      `yaml:"court_concurrency" mapstructure:"court_concurrency"`
	BenchConcurrency int      `yaml:"bench_concurrency" mapstructure:"bench_concurrency"`
	Courts           []string `yaml:"courts" mapstructure:"courts"`
	Kind             string   `yaml:"kind" mapstructure:"kind"`
}

// EnrichConfig configures the case detail pass.
type EnrichConfig struct {
	BaseURL          string   `yaml:"base_url" mapstructure:"base_url"`
	Limit            int      `yaml:"limit" mapstructure:"limit"`
	CourtConcurrency int      `yaml:"court_concurrency" mapstructure:"court_concurrency"`
	Courts           []string `yaml:"courts" mapstructure:"courts"`
}

// SourcesConfig points at an optional court registry override file.
type SourcesConfig struct {
	Overrides string `yaml:"overrides" mapstructure:"overrides"`
}

// ServerConfig configures the status/metrics HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("CAUSELIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "causelist.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("http.user_agent", "causelist/1.0")
	v.SetDefault("http.timeout_secs", 60)
	v.SetDefault("http.max_attempts", 4)
	v.SetDefault("http.rate_per_host", 2.0)
	v.SetDefault("http.burst", 2)
	v.SetDefault("crawl.base_url", "https://supremecourt.gov.np")
	v.SetDefault("crawl.lookback", 30)
	v.SetDefault("crawl.offset", 2)
	v.SetDefault("crawl.court_concurrency", 4)
	v.SetDefault("crawl.bench_concurrency", 4)
	v.SetDefault("crawl.kind", "high")
	v.SetDefault("enrich.base_url", "https://supremecourt.gov.np")
	v.SetDefault("enrich.limit", 200)
	v.SetDefault("enrich.court_concurrency", 2)

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

// Validate checks the settings a command is about to rely on.
func (c *Config) Validate() error {
	var errs []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	if c.Crawl.BaseURL == "" {
		errs = append(errs, "crawl.base_url must not be empty")
	}
	if c.Crawl.Lookback <= 0 {
		errs = append(errs, "crawl.lookback must be > 0")
	}
	if c.Crawl.Offset < 0 {
		errs = append(errs, "crawl.offset must be >= 0")
	}
	if c.HTTP.RatePerHost <= 0 {
		errs = append(errs, "http.rate_per_host must be > 0")
	}
	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
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
