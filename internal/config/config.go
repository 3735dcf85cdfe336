// Package config loads subfeed settings from flags, SUBFEED_* environment
// variables, .env files and an optional subfeed.yaml in the config
// directory, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/gauthierbraillon/subfeed/internal/state"
)

const (
	EnvPrefix = "SUBFEED"
	FileName  = "subfeed"
)

// Keys, shared by flags, environment variables and the config file.
const (
	KeyAPIKey               = "api_key"
	KeyClientID             = "client_id"
	KeyAPIBaseURL           = "api_base_url"
	KeyConfigDir            = "config_dir"
	KeyStateBackend         = "state_backend"
	KeyRedisURL             = "redis_url"
	KeySQLitePath           = "sqlite_path"
	KeyWindowDays           = "window_days"
	KeyPageSize             = "page_size"
	KeyItemsPerChannel      = "items_per_channel"
	KeyConcurrency          = "concurrency"
	KeyRequestsPerSecond    = "requests_per_second"
	KeySubscriptionCacheTTL = "subscription_cache_ttl"
	KeyCallbackPort         = "callback_port"
	KeyLogLevel             = "log_level"
	KeyLogFormat            = "log_format"
)

type Config struct {
	APIKey               string        `mapstructure:"api_key"`
	ClientID             string        `mapstructure:"client_id"`
	APIBaseURL           string        `mapstructure:"api_base_url"`
	ConfigDir            string        `mapstructure:"config_dir"`
	StateBackend         string        `mapstructure:"state_backend"`
	RedisURL             string        `mapstructure:"redis_url"`
	SQLitePath           string        `mapstructure:"sqlite_path"`
	WindowDays           int           `mapstructure:"window_days"`
	PageSize             int           `mapstructure:"page_size"`
	ItemsPerChannel      int64         `mapstructure:"items_per_channel"`
	Concurrency          int           `mapstructure:"concurrency"`
	RequestsPerSecond    float64       `mapstructure:"requests_per_second"`
	SubscriptionCacheTTL time.Duration `mapstructure:"subscription_cache_ttl"`
	CallbackPort         int           `mapstructure:"callback_port"`
	LogLevel             string        `mapstructure:"log_level"`
	LogFormat            string        `mapstructure:"log_format"`
}

// DefaultConfigDir returns ~/.config/subfeed.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".subfeed")
	}
	return filepath.Join(home, ".config", "subfeed")
}

// NewViper returns a viper instance with every key defaulted and bound to
// its SUBFEED_* variable.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyAPIKey, "")
	v.SetDefault(KeyClientID, "")
	v.SetDefault(KeyAPIBaseURL, "https://www.googleapis.com")
	v.SetDefault(KeyConfigDir, "")
	v.SetDefault(KeyStateBackend, state.BackendFile)
	v.SetDefault(KeyRedisURL, "")
	v.SetDefault(KeySQLitePath, "")
	v.SetDefault(KeyWindowDays, 7)
	v.SetDefault(KeyPageSize, 50)
	v.SetDefault(KeyItemsPerChannel, 2)
	v.SetDefault(KeyConcurrency, 1)
	v.SetDefault(KeyRequestsPerSecond, 0)
	v.SetDefault(KeySubscriptionCacheTTL, "0s")
	v.SetDefault(KeyCallbackPort, 8080)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
	return v
}

// Load reads .env files and the config file into v and decodes the result.
// A missing .env or config file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	dir := v.GetString(KeyConfigDir)
	if dir == "" {
		dir = DefaultConfigDir()
		v.Set(KeyConfigDir, dir)
	}
	if err := loadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(cfg.ConfigDir, "subfeed.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings no run could work with.
func (c *Config) Validate() error {
	var problems []string

	switch c.StateBackend {
	case state.BackendFile, state.BackendSQLite, state.BackendMemory:
	case state.BackendRedis:
		if c.RedisURL == "" {
			problems = append(problems, "redis_url is required for the redis state backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("state_backend %q must be file, sqlite, redis or memory", c.StateBackend))
	}

	if c.APIBaseURL == "" {
		problems = append(problems, "api_base_url must not be empty")
	}
	if c.WindowDays < 1 {
		problems = append(problems, "window_days must be at least 1")
	}
	if c.PageSize < 1 {
		problems = append(problems, "page_size must be at least 1")
	}
	if c.ItemsPerChannel < 1 || c.ItemsPerChannel > 50 {
		problems = append(problems, "items_per_channel must be between 1 and 50")
	}
	if c.Concurrency < 1 {
		problems = append(problems, "concurrency must be at least 1")
	}
	if c.RequestsPerSecond < 0 {
		problems = append(problems, "requests_per_second must not be negative")
	}
	if c.SubscriptionCacheTTL < 0 {
		problems = append(problems, "subscription_cache_ttl must not be negative")
	}
	if c.CallbackPort < 0 || c.CallbackPort > 65535 {
		problems = append(problems, "callback_port must be between 0 and 65535")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("log_level %q is not a valid level", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("log_format %q must be text or json", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// StateOptions maps the config onto state.Open options.
func (c *Config) StateOptions() state.Options {
	return state.Options{
		Backend:    c.StateBackend,
		Dir:        c.ConfigDir,
		SQLitePath: c.SQLitePath,
		RedisURL:   c.RedisURL,
	}
}
