package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Environment       string `mapstructure:"PCS_ENVIRONMENT"`
	ServerName        string `mapstructure:"PCS_SERVER_NAME"`
	ServerAddress     string `mapstructure:"PCS_SERVER_BIND_ADDR"`
	ServerReadTimeout int16  `mapstructure:"PCS_SERVER_READ_TIMEOUT"`
	LogFormat         string `mapstructure:"PCS_LOG_FORMAT"` // text or json
	LogLevel          string `mapstructure:"PCS_LOG_LEVEL"`  // debug, info, warn, error
	RateLimitMax      int    `mapstructure:"PCS_RATE_LIMIT_MAX"`
	RateLimitWindow   int    `mapstructure:"PCS_RATE_LIMIT_WINDOW"`

	DbHost           string `mapstructure:"PCS_DB_HOST"`
	DbPort           int16  `mapstructure:"PCS_DB_PORT"`
	DbSSLMode        string `mapstructure:"PCS_DB_SSL"`
	DbUser           string `mapstructure:"PCS_DB_USER"`
	DbPassword       string `mapstructure:"PCS_DB_PASSWORD"`
	DbDatabaseName   string `mapstructure:"PCS_DB_DATABASE"`
	DbMaxConnections int    `mapstructure:"PCS_DB_MAX_CONNECTIONS"`

	// Redis
	RedisHost     string `mapstructure:"PCS_REDIS_HOST"`
	RedisPort     int16  `mapstructure:"PCS_REDIS_PORT"`
	RedisDb       int    `mapstructure:"PCS_REDIS_DB"`
	RedisUser     string `mapstructure:"PCS_REDIS_USER"`
	RedisPass     string `mapstructure:"PCS_REDIS_PASS"`
	RedisCacheTTL int    `mapstructure:"PCS_REDIS_CACHE_TTL"` // seconds

	OtlpEndpoint   string `mapstructure:"PCS_OTLP_ENDPOINT"`
	JaegerEndpoint string `mapstructure:"PCS_JAEGER_ENDPOINT"`

	// API authentication. Comma-separated list of accepted bearer tokens.
	APITokens string `mapstructure:"PCS_API_TOKENS"`

	// Serper search provider configuration
	SerperAPIKey    string `mapstructure:"PCS_SERPER_API_KEY"`
	SerperBaseURL   string `mapstructure:"PCS_SERPER_BASE_URL"`
	SerperTimeout   int    `mapstructure:"PCS_SERPER_TIMEOUT"` // seconds
	ResolveWorkers  int    `mapstructure:"PCS_RESOLVE_WORKERS"`
	PopulateDelayMs int    `mapstructure:"PCS_POPULATE_DELAY_MS"`
}

// DefaultConfig generates a config with sane defaults.
// See: The example .env file in the package docs for default values.
func DefaultConfig() Config {
	return Config{
		Environment:       "local",
		ServerAddress:     "0.0.0.0:3001",
		ServerReadTimeout: 60,
		LogFormat:         "text",
		LogLevel:          "info",
		RateLimitMax:      100,
		RateLimitWindow:   30,

		DbHost:           "localhost",
		DbPort:           5432,
		DbSSLMode:        "disable",
		DbUser:           "postgres",
		DbPassword:       "postgres",
		DbDatabaseName:   "catalog",
		DbMaxConnections: 100,

		// Redis
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisDb:       0,
		RedisUser:     "redis",
		RedisPass:     "redis",
		RedisCacheTTL: 300,

		OtlpEndpoint:   "localhost:4317",
		JaegerEndpoint: "http://localhost:14268/api/traces",

		APITokens: "",

		// Serper defaults
		SerperAPIKey:    "",
		SerperBaseURL:   "https://google.serper.dev",
		SerperTimeout:   15,
		ResolveWorkers:  4,
		PopulateDelayMs: 1500,
	}
}

// LoadConfig will attempt to load a configuration from the default file location and fallback to environment variables.
func LoadConfig() (Config, error) {
	envFile := os.Getenv("PCS_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	var cfg Config
	var err error

	if _, err = os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		cfg, err = ConfigFromEnvironment()
	} else {
		// Load configuration
		cfg, err = ConfigFromFile(envFile)
	}

	return cfg, err
}

// ConfigFromEnvironment will look for the specified configuration from environment variables
// See package docs for a list of available environment variables.
func ConfigFromEnvironment() (config Config, err error) {
	// Set defaults
	config = DefaultConfig()
	viper.SetDefault("PCS_ENVIRONMENT", config.Environment)
	viper.SetDefault("PCS_SERVER_BIND_ADDR", config.ServerAddress)
	viper.SetDefault("PCS_SERVER_READ_TIMEOUT", config.ServerReadTimeout)
	viper.SetDefault("PCS_LOG_LEVEL", config.LogLevel)
	viper.SetDefault("PCS_LOG_FORMAT", config.LogFormat)
	viper.SetDefault("PCS_RATE_LIMIT_MAX", config.RateLimitMax)
	viper.SetDefault("PCS_RATE_LIMIT_WINDOW", config.RateLimitWindow)
	viper.SetDefault("PCS_DB_HOST", config.DbHost)
	viper.SetDefault("PCS_DB_PORT", config.DbPort)
	viper.SetDefault("PCS_DB_SSL", config.DbSSLMode)
	viper.SetDefault("PCS_DB_USER", config.DbUser)
	viper.SetDefault("PCS_DB_PASSWORD", config.DbPassword)
	viper.SetDefault("PCS_DB_DATABASE", config.DbDatabaseName)
	viper.SetDefault("PCS_DB_MAX_CONNECTIONS", config.DbMaxConnections)
	viper.SetDefault("PCS_OTLP_ENDPOINT", config.OtlpEndpoint)
	viper.SetDefault("PCS_JAEGER_ENDPOINT", config.JaegerEndpoint)
	viper.SetDefault("PCS_REDIS_HOST", config.RedisHost)
	viper.SetDefault("PCS_REDIS_PORT", config.RedisPort)
	viper.SetDefault("PCS_REDIS_USER", config.RedisUser)
	viper.SetDefault("PCS_REDIS_PASS", config.RedisPass)
	viper.SetDefault("PCS_REDIS_DB", config.RedisDb)
	viper.SetDefault("PCS_REDIS_CACHE_TTL", config.RedisCacheTTL)
	viper.SetDefault("PCS_API_TOKENS", config.APITokens)
	viper.SetDefault("PCS_SERPER_API_KEY", config.SerperAPIKey)
	viper.SetDefault("PCS_SERPER_BASE_URL", config.SerperBaseURL)
	viper.SetDefault("PCS_SERPER_TIMEOUT", config.SerperTimeout)
	viper.SetDefault("PCS_RESOLVE_WORKERS", config.ResolveWorkers)
	viper.SetDefault("PCS_POPULATE_DELAY_MS", config.PopulateDelayMs)

	// Override config values with environment variables
	viper.AutomaticEnv()
	err = viper.Unmarshal(&config)
	return
}

// ConfigFromFile will look for the specified configuration file in the current directory and initialize
// a Config from it. Values provided by environment variables will override ones found in
// the file. See package docs for a list of available environment variables.
func ConfigFromFile(f string) (config Config, err error) {
	if config, err = ConfigFromEnvironment(); err != nil {
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigFile(f)
	viper.SetConfigType("env")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)

	return
}

// Fiber initializes and returns a Fiber config based on server config values.
// See https://docs.gofiber.io/api/fiber#config
func (c Config) Fiber() fiber.Config {
	// Return Fiber configuration.
	return fiber.Config{
		ReadTimeout: time.Second * time.Duration(c.ServerReadTimeout),
		BodyLimit:   1 * 1024 * 1024, // 1MB, term batches are small
	}
}

// DbConnectionString generates a connection string for the database based on config values.
func (c Config) DbConnectionString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s", c.DbUser, url.QueryEscape(c.DbPassword), c.DbHost, c.DbPort, c.DbDatabaseName, c.DbSSLMode)
}

// RedisAddr generates the address for the Redis client based on config values.
func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// CacheTTL returns the Redis cache TTL as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.RedisCacheTTL) * time.Second
}

// GetSlogLevel converts the string log level to slog.Level.
func (c Config) GetSlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo // default fallback
	}
}

// GetAPITokens parses the comma-separated list of accepted bearer tokens.
func (c Config) GetAPITokens() []string {
	if c.APITokens == "" {
		return []string{}
	}

	parts := strings.Split(c.APITokens, ",")
	tokens := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tokens = append(tokens, part)
	}

	return tokens
}

// GetSerperConfig converts config values to the Serper client configuration struct.
func (c Config) GetSerperConfig() SerperConfig {
	return SerperConfig{
		APIKey:  c.SerperAPIKey,
		BaseURL: c.SerperBaseURL,
		Timeout: time.Duration(c.SerperTimeout) * time.Second,
	}
}

// SerperConfig holds Serper search API client configuration
type SerperConfig struct {
	APIKey  string
	BaseURL string // overridable for pointing at a stub server
	Timeout time.Duration
}
