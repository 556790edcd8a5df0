package config

import "strings"

type SecurityConfig interface {
	GetFrameOptions() string
	GetInitialAllowedReferers() string
	GetExposeCacheHeaders() bool
}

// GetFrameOptions is the X-Frame-Options value sent on every response.
func (c mainConfig) GetFrameOptions() string {
	if v := strings.ToUpper(strings.TrimSpace(c.v.FrameOptions)); v != "" {
		return v
	}
	return "SAMEORIGIN"
}

// GetInitialAllowedReferers returns the seed allow-list, one pattern per line.
// The environment value is whitespace separated.
func (c mainConfig) GetInitialAllowedReferers() string {
	return strings.Join(strings.Fields(c.v.AllowedReferers), "\n")
}

// GetExposeCacheHeaders reports whether cache metadata is sent as response
// headers. Always on in DEV.
func (c mainConfig) GetExposeCacheHeaders() bool {
	return c.v.ExposeCacheHeaders || c.IsDev()
}
