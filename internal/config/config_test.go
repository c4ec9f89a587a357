package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:               "5000",
		Env:                "production",
		SessionSecret:      "a-very-long-session-secret-for-production-use",
		GoogleClientID:     "client",
		GoogleClientSecret: "secret",
		MaxUploadMB:        10,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid production", func(*Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing secret", func(c *Config) { c.SessionSecret = "" }, true},
		{"default secret in production", func(c *Config) { c.SessionSecret = DefaultSessionSecret }, true},
		{"short secret in production", func(c *Config) { c.SessionSecret = "short" }, true},
		{"production without oauth", func(c *Config) { c.GoogleClientID = "" }, true},
		{"zero upload limit", func(c *Config) { c.MaxUploadMB = 0 }, true},
		{"development default secret", func(c *Config) {
			c.Env = "development"
			c.SessionSecret = DefaultSessionSecret
			c.GoogleClientID = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
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

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "test")
	t.Setenv("PORT", "9090")
	t.Setenv("FLASK_SECRET_KEY", "legacy-secret")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("BLOB_API_URL", "https://blob.example.com/")
	t.Setenv("UPSTREAM_TIMEOUT_SECONDS", "7")

	c, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, "test", c.Env)
	assert.Equal(t, "legacy-secret", c.SessionSecret)
	assert.True(t, c.AssistantConfigured())
	assert.False(t, c.BlobConfigured())
	assert.Equal(t, "https://blob.example.com", c.BlobAPIURL)
	assert.Equal(t, "gemini-2.0-flash", c.GeminiModel)
	assert.Equal(t, "vlog.db", c.SQLitePath)
	assert.Equal(t, 7*time.Second, c.UpstreamTimeout())
}

func TestConfig_UpstreamTimeoutDefault(t *testing.T) {
	c := &Config{}
	assert.Equal(t, 30*time.Second, c.UpstreamTimeout())
}
