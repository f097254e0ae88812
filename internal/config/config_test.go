package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			APIBaseURL:        "http://localhost:8360/api",
			ChannelURL:        "ws://localhost:8360/channel",
			ReconnectMinDelay: 500 * time.Millisecond,
			ReconnectMaxDelay: 30 * time.Second,
			SimJWTSecret:      "local-development-only-secret",
			Env:               "development",
		}
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"Valid development config", func(c *Config) {}, false},
		{"Missing API base URL", func(c *Config) { c.APIBaseURL = "" }, true},
		{"Missing channel URL", func(c *Config) { c.ChannelURL = "" }, true},
		{"Zero min reconnect delay", func(c *Config) { c.ReconnectMinDelay = 0 }, true},
		{"Max reconnect below min", func(c *Config) { c.ReconnectMaxDelay = 100 * time.Millisecond }, true},
		{"Production with default secret", func(c *Config) { c.Env = "production" }, true},
		{"Prod with default secret", func(c *Config) { c.Env = "prod" }, true},
		{"Production with real secret", func(c *Config) {
			c.Env = "production"
			c.SimJWTSecret = "rotated-production-secret"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer viper.Reset()
	os.Setenv("APP_ENV", "development")

	c, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "http://localhost:8360/api", c.APIBaseURL)
	assert.Equal(t, "ws://localhost:8360/channel", c.ChannelURL)
	assert.Equal(t, 10*time.Second, c.HTTPTimeout)
	assert.Equal(t, 500*time.Millisecond, c.ReconnectMinDelay)
	assert.Equal(t, "8360", c.SimPort)
	assert.Equal(t, "redis://localhost:6379", c.SimRedisURL)
}
