package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-embed-auth/server/authflowrepo"
)

// getOidcConfig discovers the configured issuer once and caches the result.
func (s *Server) getOidcConfig(ctx context.Context) (*OidcConfig, error) {
	s.oidcLock.Lock()
	defer s.oidcLock.Unlock()

	if s.oidc != nil {
		return s.oidc, nil
	}
	if !s.oidcEnabled {
		return nil, fmt.Errorf("OIDC is not configured")
	}

	provider, err := oidc.NewProvider(ctx, s.config.GetOIDCIssuer())
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	clientID := s.config.GetOIDCClientID()
	s.oidc = &OidcConfig{
		OidcProvider: provider,
		OAuth2Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: s.config.GetOIDCClientSecret(),
			Endpoint:     provider.Endpoint(),
			RedirectURL:  s.config.GetOIDCRedirectURL(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		OidcVerifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}
	return s.oidc, nil
}

// OIDCLoginHandler starts an authorization code flow with PKCE against the
// configured identity provider (GET /auth/oidc/login).
func (s *Server) OIDCLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oidcConfig, err := s.getOidcConfig(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("OIDC login unavailable")
			http.Error(w, "Single sign-on is unavailable", http.StatusServiceUnavailable)
			return
		}

		state := generateRandomString(32)
		nonce := generateRandomString(16)
		verifier := oauth2.GenerateVerifier()

		err = s.authState.Upsert(state, &authflowrepo.AuthFlowState{
			Flow:         parseFlow(r.URL.Query().Get("flow")),
			CodeVerifier: verifier,
			Nonce:        nonce,
			ReturnURL:    localPath(r.URL.Query().Get("return")),
			CreatedAt:    time.Now(),
		})
		if err != nil {
			s.log.Error().Err(err).Msg("failed to store auth flow state")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		authURL := oidcConfig.OAuth2Config.AuthCodeURL(state,
			oauth2.S256ChallengeOption(verifier),
			oidc.Nonce(nonce),
		)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// OAuthCallbackHandler completes the OIDC flow. The verified email must
// belong to an active directory user; that user is then issued a token.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue covers both query params and form_post response mode
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")
		errorDesc := r.FormValue("error_description")

		if errorParam != "" {
			s.log.Info().Str("error", errorParam).Str("description", errorDesc).Msg("authorization failed at identity provider")
			redirectWithError(w, r, RouteLogin, "Sign-in was cancelled or refused", nil)
			return
		}
		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		authState, err := s.authState.Take(state)
		if err != nil {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		oidcConfig, err := s.getOidcConfig(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("OIDC callback without provider")
			http.Error(w, "Single sign-on is unavailable", http.StatusServiceUnavailable)
			return
		}

		oauth2Token, err := oidcConfig.OAuth2Config.Exchange(r.Context(), code, oauth2.VerifierOption(authState.CodeVerifier))
		if err != nil {
			s.log.Error().Err(err).Msg("token exchange failed")
			http.Error(w, "Token exchange failed", http.StatusBadGateway)
			return
		}

		rawIDToken, ok := oauth2Token.Extra("id_token").(string)
		if !ok {
			http.Error(w, "No ID token in response", http.StatusBadGateway)
			return
		}

		idToken, err := oidcConfig.OidcVerifier.Verify(r.Context(), rawIDToken)
		if err != nil {
			s.log.Warn().Err(err).Msg("ID token verification failed")
			http.Error(w, "ID token verification failed", http.StatusUnauthorized)
			return
		}

		var claims struct {
			Nonce         string `json:"nonce"`
			Sub           string `json:"sub"`
			Email         string `json:"email"`
			EmailVerified *bool  `json:"email_verified"`
		}
		if err := idToken.Claims(&claims); err != nil {
			http.Error(w, "Failed to extract claims", http.StatusBadGateway)
			return
		}

		// Validate nonce to prevent replay attacks
		if claims.Nonce != authState.Nonce {
			http.Error(w, "Invalid nonce", http.StatusUnauthorized)
			return
		}
		// A missing email_verified claim counts as unverified.
		if claims.Email == "" || claims.EmailVerified == nil || !*claims.EmailVerified {
			redirectWithError(w, r, RouteLogin, "Your identity provider did not supply a verified email", nil)
			return
		}

		user, err := s.repos.Users.GetByEmail(r.Context(), claims.Email)
		if err != nil {
			s.log.Error().Err(err).Msg("user lookup failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if !user.Active() {
			s.log.Info().Str("sub", claims.Sub).Str("email", claims.Email).Msg("no active user for OIDC identity")
			redirectWithError(w, r, RouteLogin, "No active account for "+claims.Email, nil)
			return
		}

		s.issueAndRedirect(w, r, authState.Flow, user, authState.ReturnURL)
	}
}
