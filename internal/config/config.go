// Package config loads application settings and sets up logging.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shpitdev/zuno-lead-enrichment/pkg/blob"
	"github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/worker"
)

// Config holds the full application configuration.
type Config struct {
	Gemini   GeminiConfig   `yaml:"gemini" mapstructure:"gemini"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
}

// GeminiConfig holds Gemini API credentials and model selection.
type GeminiConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PipelineConfig tunes each enrichment call. Zero values mean one unbounded attempt.
type PipelineConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// StoreConfig configures the workspace storage backend.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	Dir           string `yaml:"dir" mapstructure:"dir"`
	SQLitePath    string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ExportConfig controls how exported timestamps are rendered.
type ExportConfig struct {
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// Load reads configuration from an optional .env file, an optional config file and the
// environment, in increasing precedence. When file is empty config.yaml is searched for
// in the working directory and $HOME/.zuno.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.zuno")
	}

	v.SetEnvPrefix("ZUNO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("gemini.api_key", "ZUNO_GEMINI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Every key needs a default for AutomaticEnv to see it during Unmarshal.
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("pipeline.request_timeout", "0s")
	v.SetDefault("pipeline.max_retries", 0)
	v.SetDefault("pipeline.rate_limit_rps", 0)
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dir", defaultDataDir())
	v.SetDefault("store.sqlite_path", "")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "zuno:")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("export.timezone", "Local")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can act on.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Driver) {
	case "file", "sqlite", "redis":
	default:
		return eris.Errorf("config: store.driver must be file, sqlite or redis, got %q", c.Store.Driver)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return eris.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Pipeline.MaxRetries < 0 {
		return eris.New("config: pipeline.max_retries must not be negative")
	}
	if c.Pipeline.RequestTimeout < 0 {
		return eris.New("config: pipeline.request_timeout must not be negative")
	}
	if _, err := c.Export.Location(); err != nil {
		return err
	}
	return nil
}

// WorkerOptions maps the pipeline settings onto the sequential worker.
func (p PipelineConfig) WorkerOptions() worker.Options {
	return worker.Options{
		MaxRetries:        p.MaxRetries,
		RequestTimeout:    p.RequestTimeout,
		RateLimitRPS:      p.RateLimitRPS,
		BackoffInitial:    500 * time.Millisecond,
		BackoffMax:        10 * time.Second,
		BackoffJitterFrac: 0.2,
	}
}

func (s StoreConfig) BlobConfig() blob.Config {
	return blob.Config{
		Driver:        s.Driver,
		Dir:           s.Dir,
		SQLitePath:    s.SQLitePath,
		RedisAddr:     s.RedisAddr,
		RedisPassword: s.RedisPassword,
		RedisDB:       s.RedisDB,
		RedisPrefix:   s.RedisPrefix,
	}
}

// Location resolves the export timezone. Empty and "Local" both mean the host zone.
func (e ExportConfig) Location() (*time.Location, error) {
	if e.Timezone == "" || e.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: export.timezone %q", e.Timezone)
	}
	return loc, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zuno"
	}
	return filepath.Join(home, ".zuno")
}

// InitLogger initializes the global zap logger and returns it.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return logger, nil
}
