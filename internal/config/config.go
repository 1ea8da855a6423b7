// Package config loads the daemon configuration from an optional YAML file,
// .env files and NEGMARKET_* environment variables, in that order of
// increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	TCP     TCPConfig     `yaml:"tcp"`
	Market  MarketConfig  `yaml:"market"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig governs the HTTP API.
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TCPConfig governs the line-protocol console.
type TCPConfig struct {
	Port       int  `yaml:"port"`
	DisableTLS bool `yaml:"disable_tls"`
	MaxConns   int  `yaml:"max_conns"`
}

// MarketConfig shapes the seeded session.
type MarketConfig struct {
	CatalogSize         int           `yaml:"catalog_size"`
	Seed                int64         `yaml:"seed"`
	StartingCredits     int64         `yaml:"starting_credits"`
	DefaultPriceCeiling int64         `yaml:"default_price_ceiling"`
	UploadDelay         time.Duration `yaml:"upload_delay"`
	NotificationTTL     time.Duration `yaml:"notification_ttl"`
	Locale              string        `yaml:"locale"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

const (
	defaultHTTPPort        = 7002
	defaultTCPPort         = 7001
	defaultMaxConns        = 100
	defaultShutdownTimeout = 10 * time.Second
	defaultCatalogSize     = 30
	defaultStartingCredits = 25000
	defaultPriceCeiling    = 50000
	defaultUploadDelay     = 2000 * time.Millisecond
	defaultNotificationTTL = 3000 * time.Millisecond
	defaultLocale          = "en"
	defaultLoggingLevel    = "info"
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Port: defaultHTTPPort, ShutdownTimeout: defaultShutdownTimeout},
		TCP:  TCPConfig{Port: defaultTCPPort, MaxConns: defaultMaxConns},
		Market: MarketConfig{
			CatalogSize:         defaultCatalogSize,
			StartingCredits:     defaultStartingCredits,
			DefaultPriceCeiling: defaultPriceCeiling,
			UploadDelay:         defaultUploadDelay,
			NotificationTTL:     defaultNotificationTTL,
			Locale:              defaultLocale,
		},
		Logging: LoggingConfig{Level: defaultLoggingLevel},
	}
}

// Load reads path (a missing file is not an error), loads .env files and
// applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := loadEnvFiles(); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadEnvFiles loads ENV_FILE if set, otherwise .env.local then .env.
// Variables already in the environment are never overwritten.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var err error
	set := func(e error) {
		if err == nil {
			err = e
		}
	}

	set(envInt("NEGMARKET_HTTP_PORT", &cfg.HTTP.Port))
	set(envDuration("NEGMARKET_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout))
	set(envInt("NEGMARKET_PORT", &cfg.TCP.Port))
	set(envBool("NEGMARKET_DISABLE_TLS", &cfg.TCP.DisableTLS))
	set(envInt("NEGMARKET_MAX_CONNS", &cfg.TCP.MaxConns))
	set(envInt("NEGMARKET_CATALOG_SIZE", &cfg.Market.CatalogSize))
	set(envInt64("NEGMARKET_SEED", &cfg.Market.Seed))
	set(envInt64("NEGMARKET_STARTING_CREDITS", &cfg.Market.StartingCredits))
	set(envInt64("NEGMARKET_PRICE_CEILING", &cfg.Market.DefaultPriceCeiling))
	set(envDuration("NEGMARKET_UPLOAD_DELAY", &cfg.Market.UploadDelay))
	set(envDuration("NEGMARKET_NOTIFICATION_TTL", &cfg.Market.NotificationTTL))
	envString("NEGMARKET_LOCALE", &cfg.Market.Locale)
	envString("NEGMARKET_LOG_LEVEL", &cfg.Logging.Level)
	set(envBool("NEGMARKET_LOG_DEVELOPMENT", &cfg.Logging.Development))

	return err
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	for name, port := range map[string]int{"http.port": c.HTTP.Port, "tcp.port": c.TCP.Port} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%s %d is out of range", name, port)
		}
	}
	if c.TCP.MaxConns <= 0 {
		return fmt.Errorf("tcp.max_conns must be positive, got %d", c.TCP.MaxConns)
	}
	if c.Market.CatalogSize < 1 {
		return fmt.Errorf("market.catalog_size must be at least 1, got %d", c.Market.CatalogSize)
	}
	if c.Market.StartingCredits < 0 {
		return fmt.Errorf("market.starting_credits must not be negative, got %d", c.Market.StartingCredits)
	}
	if c.Market.UploadDelay < 0 {
		return fmt.Errorf("market.upload_delay must not be negative, got %s", c.Market.UploadDelay)
	}
	if c.Market.NotificationTTL <= 0 {
		return fmt.Errorf("market.notification_ttl must be positive, got %s", c.Market.NotificationTTL)
	}
	return nil
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
