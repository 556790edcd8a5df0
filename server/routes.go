package server

import (
	"net/http"

	"github.com/jrsteele09/go-embed-auth/auth"
	"github.com/jrsteele09/go-embed-auth/users"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageUIHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare()...))
	if s.oidcEnabled {
		s.RegisterRouteHandler("GET "+RouteOIDCLogin, ChainMiddleware(s.OIDCLoginHandler(), s.HTMLMiddleWare()...))
		s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...))
		s.RegisterRouteHandler("POST "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...)) // For form_post response mode
	}

	// Embedded pages, authenticated by URL parameter tokens
	requireSession := s.RequirePrincipal(auth.SessionTokens.ParamName)
	requireJourney := s.RequirePrincipal(auth.JourneyTokens.ParamName)
	s.RegisterRouteHandler("GET "+RouteUserPage, ChainMiddleware(s.UserPageHandler(), s.HTMLMiddleWare(requireSession)...))
	s.RegisterRouteHandler("POST "+RouteUserData, ChainMiddleware(s.UserDataHandler(), s.HTMLMiddleWare(requireSession)...))
	s.RegisterRouteHandler("GET "+RouteJourney, ChainMiddleware(s.JourneyHandler(), s.HTMLMiddleWare(requireJourney)...))

	// Admin routes
	requireAdmin := []func(next http.HandlerFunc) http.HandlerFunc{s.RequirePrincipal(), s.RequireRole(users.RoleAdministrator)}
	s.RegisterRouteHandler("GET "+RouteAdminFrameReferers, ChainMiddleware(s.FrameReferersGetHandler(), s.HTMLMiddleWare(requireAdmin...)...))
	s.RegisterRouteHandler("POST "+RouteAdminFrameReferers, ChainMiddleware(s.FrameReferersPostHandler(), s.HTMLMiddleWare(requireAdmin...)...))
}
