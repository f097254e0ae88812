// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	APIBaseURL        string        `mapstructure:"API_BASE_URL"`
	ChannelURL        string        `mapstructure:"CHANNEL_URL"`
	AuthToken         string        `mapstructure:"AUTH_TOKEN"`
	HTTPTimeout       time.Duration `mapstructure:"HTTP_TIMEOUT"`
	ReconnectMinDelay time.Duration `mapstructure:"RECONNECT_MIN_DELAY"`
	ReconnectMaxDelay time.Duration `mapstructure:"RECONNECT_MAX_DELAY"`
	Env               string        `mapstructure:"APP_ENV"`

	// Simulator settings, only read by cmd/simserver.
	SimPort      string `mapstructure:"SIM_PORT"`
	SimDBPath    string `mapstructure:"SIM_DB_PATH"`
	SimRedisURL  string `mapstructure:"SIM_REDIS_URL"`
	SimJWTSecret string `mapstructure:"SIM_JWT_SECRET"`
	SimSeedUsers int    `mapstructure:"SIM_SEED_USERS"`

	TracingEnabled bool   `mapstructure:"TRACING_ENABLED"`
	TracingExport  string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint   string `mapstructure:"OTLP_ENDPOINT"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The config file is optional; env vars and defaults cover local runs.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("API_BASE_URL", "http://localhost:8360/api")
	viper.SetDefault("CHANNEL_URL", "ws://localhost:8360/channel")
	viper.SetDefault("AUTH_TOKEN", "")
	viper.SetDefault("HTTP_TIMEOUT", "10s")
	viper.SetDefault("RECONNECT_MIN_DELAY", "500ms")
	viper.SetDefault("RECONNECT_MAX_DELAY", "30s")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("SIM_PORT", "8360")
	viper.SetDefault("SIM_DB_PATH", "file::memory:?cache=shared")
	viper.SetDefault("SIM_REDIS_URL", "redis://localhost:6379")
	viper.SetDefault("SIM_JWT_SECRET", "local-development-only-secret")
	viper.SetDefault("SIM_SEED_USERS", 40)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	if c.ChannelURL == "" {
		return errors.New("CHANNEL_URL is required")
	}
	if c.ReconnectMinDelay <= 0 || c.ReconnectMaxDelay < c.ReconnectMinDelay {
		return errors.New("reconnect delays must be positive and MAX >= MIN")
	}

	isProduction := c.Env == "production" || c.Env == "prod"
	if isProduction {
		if c.SimJWTSecret == "local-development-only-secret" {
			return errors.New("SIM_JWT_SECRET must be changed from the default value in production")
		}
		if c.AuthToken == "" {
			log.Println("WARNING: AUTH_TOKEN is empty; the client will only reach public endpoints.")
		}
	}

	return nil
}
