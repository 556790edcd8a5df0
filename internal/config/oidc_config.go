package config

type OIDCConfig interface {
	OIDCEnabled() bool
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCRedirectURL() string
}

type BootstrapConfig interface {
	GetAdminEmail() string
	GetAdminPassword() string
}

func (c mainConfig) OIDCEnabled() bool {
	return c.v.OIDCIssuer != "" && c.v.OIDCClientID != ""
}

func (c mainConfig) GetOIDCIssuer() string {
	return c.v.OIDCIssuer
}

func (c mainConfig) GetOIDCClientID() string {
	return c.v.OIDCClientID
}

func (c mainConfig) GetOIDCClientSecret() string {
	return c.v.OIDCClientSecret
}

// GetOIDCRedirectURL defaults to the callback route under the base URL.
func (c mainConfig) GetOIDCRedirectURL() string {
	if c.v.OIDCRedirectURL != "" {
		return c.v.OIDCRedirectURL
	}
	return c.GetBaseURL() + "/callback"
}

func (c mainConfig) GetAdminEmail() string {
	return c.v.AdminEmail
}

func (c mainConfig) GetAdminPassword() string {
	return c.v.AdminPassword
}
