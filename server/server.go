// Package server serves the login pages, the token-authenticated embedded
// pages and the frame allow-list administration.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-embed-auth/auth"
	"github.com/jrsteele09/go-embed-auth/frame"
	"github.com/jrsteele09/go-embed-auth/internal/cachemeta"
	"github.com/jrsteele09/go-embed-auth/internal/config"
	"github.com/jrsteele09/go-embed-auth/paramsession"
	"github.com/jrsteele09/go-embed-auth/server/authflowrepo"
	"github.com/jrsteele09/go-embed-auth/users"
)

type OidcConfig struct {
	OidcProvider *oidc.Provider
	OAuth2Config *oauth2.Config
	OidcVerifier *oidc.IDTokenVerifier
}

// Repos are the stores the server reads and writes.
type Repos struct {
	Sessions paramsession.Repo
	Users    users.UserRepo
	Frame    frame.Store
}

// Login flows and the token each one issues.
const (
	FlowSession = "session"
	FlowJourney = "journey"
)

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	handler   http.Handler
	routes    []string
	config    config.Config
	repos     Repos
	authState authflowrepo.Repo
	log       zerolog.Logger

	chain       *auth.Chain
	issuers     map[string]*auth.Issuer
	framePolicy *frame.Policy
	cacheReg    *cachemeta.Registry

	oidc        *OidcConfig
	oidcLock    sync.Mutex
	oidcEnabled bool
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithOidcConfig skips discovery against the configured issuer.
func WithOidcConfig(c OidcConfig) Option {
	return func(s *Server) {
		s.oidc = &c
	}
}

func New(cfg config.Config, repos Repos, authStateRepo authflowrepo.Repo, opts ...Option) (*Server, error) {
	if repos.Sessions == nil || repos.Users == nil || repos.Frame == nil {
		return nil, fmt.Errorf("[Server New] sessions, users and frame stores are required")
	}
	if authStateRepo == nil {
		authStateRepo = authflowrepo.NewInMemoryRepo()
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		repos:     repos,
		authState: authStateRepo,
		log:       zerolog.Nop(),
		issuers:   make(map[string]*auth.Issuer),
		cacheReg:  cachemeta.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.oidcEnabled = s.oidc != nil || cfg.OIDCEnabled()

	flows := map[string]auth.ProviderConfig{
		FlowSession: auth.SessionTokens,
		FlowJourney: auth.JourneyTokens,
	}
	providers := make([]auth.Provider, 0, len(flows))
	for _, flow := range []string{FlowSession, FlowJourney} {
		pc := flows[flow]
		provider, err := auth.NewURLParamProvider(pc, repos.Sessions, repos.Users, nil, auth.WithLogger(s.log))
		if err != nil {
			return nil, fmt.Errorf("[Server New] %s provider: %w", flow, err)
		}
		providers = append(providers, provider)

		issuer, err := auth.NewIssuer(pc, repos.Sessions, auth.WithIssuerLogger(s.log))
		if err != nil {
			return nil, fmt.Errorf("[Server New] %s issuer: %w", flow, err)
		}
		s.issuers[flow] = issuer
	}
	s.chain = auth.NewChain(s.log, providers...)
	s.framePolicy = frame.NewPolicy(repos.Frame, frame.WithLogger(s.log))
	frame.RegisterCacheContext(s.cacheReg)

	if _, err := s.InitialiseSystem(context.Background()); err != nil {
		return nil, fmt.Errorf("[Server New] Failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.handler = ChainMiddleware(s.mux.ServeHTTP, s.ResponseMiddleWare()...)
	s.logRoutes()

	return s, nil
}

// ServeHTTP runs every request, including the mux's own 404 and 405
// responses, through the response middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	s.log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

