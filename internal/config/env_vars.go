package config

import "strings"

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
	IsDev() bool
}

// GetPort returns the listen address, always with a leading colon.
func (c mainConfig) GetPort() string {
	port := strings.TrimSpace(c.v.Port)
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (c mainConfig) GetAppName() string {
	return c.v.AppName
}

func (c mainConfig) GetEnv() string {
	if c.v.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(c.v.Env)
}

func (c mainConfig) IsDev() bool {
	return c.GetEnv() == "DEV"
}

// GetBaseURL returns the externally visible URL without a trailing slash.
func (c mainConfig) GetBaseURL() string {
	return strings.TrimRight(c.v.BaseURL, "/")
}

func (c mainConfig) GetLogLevel() string {
	return normalise(c.v.LogLevel)
}
