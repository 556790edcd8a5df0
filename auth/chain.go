package auth

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	apperrors "github.com/jrsteele09/go-embed-auth/internal/errors"
)

// Chain tries providers in order. The first principal wins.
type Chain struct {
	providers []Provider
	log       zerolog.Logger
}

func NewChain(log zerolog.Logger, providers ...Provider) *Chain {
	return &Chain{providers: providers, log: log}
}

// Resolve returns the principal for r, or nil when no provider accepts it.
// r should already carry a lookup memo.
func (c *Chain) Resolve(r *http.Request) (*Principal, error) {
	for _, p := range c.providers {
		if !p.Applies(r) {
			continue
		}
		principal, err := p.Authenticate(r)
		if err != nil {
			return nil, err
		}
		if principal != nil {
			return principal, nil
		}
	}
	return nil, nil
}

// Middleware attaches the resolved principal to the request context. Store
// faults end the request with 500; every other outcome continues, either
// authenticated or anonymous.
func (c *Chain) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = WithLookupMemo(r)

		principal, err := c.Resolve(r)
		if err != nil {
			c.log.Error().Err(err).
				Bool("store_unavailable", errors.Is(err, apperrors.ErrStoreUnavailable)).
				Str("path", r.URL.Path).
				Msg("authentication failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if principal != nil {
			r = r.WithContext(WithPrincipal(r.Context(), principal))
		}
		next.ServeHTTP(w, r)
	})
}
