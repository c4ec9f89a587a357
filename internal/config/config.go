// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultSessionSecret is the development-only fallback secret.
const DefaultSessionSecret = "travel_secret_123"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"APP_ENV"`

	SessionSecret          string `mapstructure:"SESSION_SECRET"`
	GoogleClientID         string `mapstructure:"GOOGLE_OAUTH_CLIENT_ID"`
	GoogleClientSecret     string `mapstructure:"GOOGLE_OAUTH_CLIENT_SECRET"`
	OAuthRedirectURL       string `mapstructure:"OAUTH_REDIRECT_URL"`
	OAuthInsecureTransport bool   `mapstructure:"OAUTH_INSECURE_TRANSPORT"`
	// Overrides for the provider endpoints, used against emulators.
	GoogleAuthURL  string `mapstructure:"GOOGLE_AUTH_URL"`
	GoogleTokenURL string `mapstructure:"GOOGLE_TOKEN_URL"`
	GoogleAPIURL   string `mapstructure:"GOOGLE_API_URL"`

	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"GEMINI_MODEL"`
	GeminiAPIURL string `mapstructure:"GEMINI_API_URL"`

	PostgresURL      string `mapstructure:"POSTGRES_URL"`
	SQLitePath       string `mapstructure:"SQLITE_PATH"`
	DBMaxOpenConns   int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns   int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	BlobToken   string `mapstructure:"BLOB_READ_WRITE_TOKEN"`
	BlobAPIURL  string `mapstructure:"BLOB_API_URL"`
	UploadDir   string `mapstructure:"UPLOAD_DIR"`
	MaxUploadMB int    `mapstructure:"MAX_UPLOAD_MB"`

	UpstreamTimeoutSeconds int `mapstructure:"UPSTREAM_TIMEOUT_SECONDS"`

	RedisURL     string `mapstructure:"REDIS_URL"`
	FeatureFlags string `mapstructure:"FEATURE_FLAGS"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config.%s.yml: %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	// Older deployments set FLASK_SECRET_KEY; keep accepting it.
	if err := viper.BindEnv("SESSION_SECRET", "SESSION_SECRET", "FLASK_SECRET_KEY"); err != nil {
		return nil, fmt.Errorf("bind SESSION_SECRET: %w", err)
	}

	viper.SetDefault("PORT", "5000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("SESSION_SECRET", DefaultSessionSecret)
	viper.SetDefault("GOOGLE_OAUTH_CLIENT_ID", "")
	viper.SetDefault("GOOGLE_OAUTH_CLIENT_SECRET", "")
	viper.SetDefault("OAUTH_REDIRECT_URL", "http://127.0.0.1:5000/login/google/authorized")
	viper.SetDefault("OAUTH_INSECURE_TRANSPORT", true)
	viper.SetDefault("GOOGLE_AUTH_URL", "")
	viper.SetDefault("GOOGLE_TOKEN_URL", "")
	viper.SetDefault("GOOGLE_API_URL", "")
	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	viper.SetDefault("GEMINI_API_URL", "https://generativelanguage.googleapis.com")
	viper.SetDefault("POSTGRES_URL", "")
	viper.SetDefault("SQLITE_PATH", "vlog.db")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("BLOB_READ_WRITE_TOKEN", "")
	viper.SetDefault("BLOB_API_URL", "https://blob.vercel-storage.com")
	viper.SetDefault("UPLOAD_DIR", "/tmp/uploads")
	viper.SetDefault("MAX_UPLOAD_MB", 10)
	viper.SetDefault("UPSTREAM_TIMEOUT_SECONDS", 30)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.PostgresURL = strings.TrimSpace(c.PostgresURL)
	c.BlobAPIURL = strings.TrimRight(strings.TrimSpace(c.BlobAPIURL), "/")
	c.GeminiAPIURL = strings.TrimRight(strings.TrimSpace(c.GeminiAPIURL), "/")
	c.TracingExporter = strings.ToLower(strings.TrimSpace(c.TracingExporter))
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// OAuthConfigured reports whether Google login can be offered.
func (c *Config) OAuthConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// AssistantConfigured reports whether an AI credential is present.
func (c *Config) AssistantConfigured() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != ""
}

// BlobConfigured reports whether uploads go to the managed blob store.
func (c *Config) BlobConfigured() bool {
	return strings.TrimSpace(c.BlobToken) != ""
}

// UpstreamTimeout is the timeout applied to blob store and assistant calls.
func (c *Config) UpstreamTimeout() time.Duration {
	if c.UpstreamTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}

	if c.IsProduction() {
		if c.SessionSecret == DefaultSessionSecret {
			return errors.New("SESSION_SECRET must be changed from the default value in production")
		}
		if len(c.SessionSecret) < 32 {
			return errors.New("SESSION_SECRET must be at least 32 characters in production")
		}
		if !c.OAuthConfigured() {
			return errors.New("GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET are required in production")
		}
		if c.OAuthInsecureTransport {
			log.Println("WARNING: OAUTH_INSECURE_TRANSPORT is enabled in production. Session cookies will not be marked Secure.")
		}
		return nil
	}

	if c.SessionSecret == DefaultSessionSecret {
		log.Println("WARNING: SESSION_SECRET uses the development default. Set a strong secret before deploying.")
	}
	return nil
}
