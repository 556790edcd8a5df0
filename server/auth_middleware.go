package server

import (
	"net/http"
	"slices"

	"github.com/jrsteele09/go-embed-auth/auth"
	"github.com/jrsteele09/go-embed-auth/users"
)

// RequirePrincipal rejects anonymous requests with 403. When providers are
// given the principal must have been authenticated by one of them.
func (s *Server) RequirePrincipal(providers ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if len(providers) > 0 && !slices.Contains(providers, p.Provider) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next(w, r)
		}
	}
}

// RequireRole rejects requests whose principal lacks role.
func (s *Server) RequireRole(role users.RoleType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok || !p.HasRole(role) {
				s.log.Debug().Str("path", r.URL.Path).Str("role", string(role)).Msg("role required")
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next(w, r)
		}
	}
}
