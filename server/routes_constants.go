package server

// Route path constants
const (
	// Login
	RouteLogin     = "/login"
	RouteAuthLogin = "/auth/login"
	RouteOIDCLogin = "/auth/oidc/login"
	RouteCallback  = "/callback"

	// Token-authenticated pages
	RouteUserPage = "/users/{id}"
	RouteUserData = "/users/{id}/data"
	RouteJourney  = "/journey"

	// Administration
	RouteAdminFrameReferers = "/admin/frame-referers"

	RouteHealth = "/health"
)

// CSRF form identifiers.
const (
	formUserData      = "user-data"
	formFrameReferers = "frame-referers"
)
