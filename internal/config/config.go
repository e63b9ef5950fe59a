package config

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	SentryDSN string `mapstructure:"sentry_dsn"`
	Store     struct {
		Provider      string `mapstructure:"provider"` // "redis" or "memory"
		RedisAddress  string `mapstructure:"redis_address"`
		RedisPassword string `mapstructure:"redis_password"`
		RedisDB       int    `mapstructure:"redis_db"`
	} `mapstructure:"store"`
	Cache struct {
		Namespace       string `mapstructure:"namespace"`
		MaxSize         int64  `mapstructure:"max_size"`         // bytes
		CleanupInterval string `mapstructure:"cleanup_interval"` // Go duration string like "6h"
	} `mapstructure:"cache"`
	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Address string `mapstructure:"address"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"metrics"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variable support
	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.BindEnv("log_level", "LOG_LEVEL")

	// Set defaults
	viper.SetDefault("store.provider", "redis")
	viper.SetDefault("store.redis_address", "localhost:6379")
	viper.SetDefault("store.redis_db", 0)
	viper.SetDefault("cache.namespace", "querycache")
	viper.SetDefault("cache.max_size", int64(50<<20))
	viper.SetDefault("cache.cleanup_interval", "6h")
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.address", "localhost")
	viper.SetDefault("metrics.port", 9090)

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// NewLogger builds the process logger with the configured level. Callers
// inject it where needed; there is no package-global logger.
func NewLogger(cfg *Config) zerolog.Logger {
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:     os.Stdout,
		NoColor: false,
	}).With().Timestamp().Logger()

	level := zerolog.InfoLevel
	if cfg.LogLevel != "" {
		if parsedLevel, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			level = parsedLevel
		} else {
			logger.Warn().Str("invalid_level", cfg.LogLevel).Msg("Invalid log level, using default 'info'")
		}
	}
	return logger.Level(level)
}
