// Package config loads settings from an optional .env file and the
// environment using Viper and exposes them through getter interfaces.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	StorageConfig
	SecurityConfig
	OIDCConfig
	BootstrapConfig
}

// values is the flat set of settings Viper unmarshals into.
type values struct {
	Port     string `mapstructure:"PORT"`
	AppName  string `mapstructure:"APP_NAME"`
	Env      string `mapstructure:"ENV"`
	BaseURL  string `mapstructure:"BASE_URL"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	SessionStore string `mapstructure:"SESSION_STORE"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	RedisURL     string `mapstructure:"REDIS_URL"`

	FrameOptions       string `mapstructure:"FRAME_OPTIONS"`
	AllowedReferers    string `mapstructure:"FRAME_ALLOWED_REFERERS"`
	ExposeCacheHeaders bool   `mapstructure:"EXPOSE_CACHE_HEADERS"`

	OIDCIssuer       string `mapstructure:"OIDC_ISSUER"`
	OIDCClientID     string `mapstructure:"OIDC_CLIENT_ID"`
	OIDCClientSecret string `mapstructure:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL  string `mapstructure:"OIDC_REDIRECT_URL"`

	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`
}

type mainConfig struct {
	v values
}

var _ Config = mainConfig{}

// Load reads .env from the working directory (if present) and the environment.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile reads the given env file (if present) then the environment.
// Environment variables override the file.
func LoadFile(path string) (Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing file is fine

	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_NAME", "Embed Auth")
	v.SetDefault("ENV", "DEV")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SESSION_STORE", StoreMemory)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("FRAME_OPTIONS", "SAMEORIGIN")
	v.SetDefault("FRAME_ALLOWED_REFERERS", "")
	v.SetDefault("EXPOSE_CACHE_HEADERS", false)
	v.SetDefault("OIDC_ISSUER", "")
	v.SetDefault("OIDC_CLIENT_ID", "")
	v.SetDefault("OIDC_CLIENT_SECRET", "")
	v.SetDefault("OIDC_REDIRECT_URL", "")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")

	var cfg mainConfig
	if err := v.Unmarshal(&cfg.v); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c mainConfig) validate() error {
	switch c.GetSessionStore() {
	case StoreMemory:
	case StorePostgres:
		if c.v.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when SESSION_STORE=postgres")
		}
	case StoreRedis:
		if c.v.RedisURL == "" {
			return errors.New("config: REDIS_URL must be set when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("config: SESSION_STORE must be one of memory, postgres, redis, got %q", c.v.SessionStore)
	}

	switch c.GetFrameOptions() {
	case "DENY", "SAMEORIGIN":
	default:
		return fmt.Errorf("config: FRAME_OPTIONS must be DENY or SAMEORIGIN, got %q", c.v.FrameOptions)
	}

	if (c.v.OIDCIssuer == "") != (c.v.OIDCClientID == "") {
		return errors.New("config: OIDC_ISSUER and OIDC_CLIENT_ID must be set together")
	}
	if (c.v.AdminEmail == "") != (c.v.AdminPassword == "") {
		return errors.New("config: ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

func normalise(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
