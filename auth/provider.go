// Package auth authenticates requests from capability tokens carried as URL
// query parameters and issues those tokens after an interactive login.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	apperrors "github.com/jrsteele09/go-embed-auth/internal/errors"
	"github.com/jrsteele09/go-embed-auth/internal/csrf"
	"github.com/jrsteele09/go-embed-auth/paramsession"
	"github.com/jrsteele09/go-embed-auth/users"
)

// ProviderConfig binds a URL parameter name to the record kind it reads.
type ProviderConfig struct {
	ParamName string
	Kind      paramsession.Kind
}

var (
	// SessionTokens authenticates embedded iframe sessions.
	SessionTokens = ProviderConfig{ParamName: "iSession", Kind: paramsession.KindIframeSession}

	// JourneyTokens authenticates multi-step journeys.
	JourneyTokens = ProviderConfig{ParamName: "iJourney", Kind: paramsession.KindJourney}
)

// Provider decides whether it recognises a request and, if so, who made it.
type Provider interface {
	// Applies has no side effects.
	Applies(r *http.Request) bool

	// Authenticate returns (nil, nil) when the request is not authenticated
	// by this provider. A non-nil error means a backing store failed.
	Authenticate(r *http.Request) (*Principal, error)
}

// URLParamProvider authenticates requests carrying a "<public_id>:<secret>"
// token in a configured query parameter.
type URLParamProvider struct {
	cfg   ProviderConfig
	repo  paramsession.Repo
	dir   users.Directory
	seeds csrf.SeedSink
	log   zerolog.Logger
}

var _ Provider = (*URLParamProvider)(nil)

// ProviderOption configures a URLParamProvider.
type ProviderOption func(*URLParamProvider)

// WithLogger sets the provider's logger. The default discards output.
func WithLogger(l zerolog.Logger) ProviderOption {
	return func(p *URLParamProvider) {
		p.log = l
	}
}

// NewURLParamProvider creates a provider for cfg. A nil seeds sink defaults
// to csrf.ContextSink.
func NewURLParamProvider(cfg ProviderConfig, repo paramsession.Repo, dir users.Directory, seeds csrf.SeedSink, opts ...ProviderOption) (*URLParamProvider, error) {
	if cfg.ParamName == "" || cfg.Kind == "" {
		return nil, errors.New("[NewURLParamProvider] param name and kind are required")
	}
	if repo == nil {
		return nil, errors.New("[NewURLParamProvider] session repo is required")
	}
	if dir == nil {
		return nil, errors.New("[NewURLParamProvider] user directory is required")
	}
	if seeds == nil {
		seeds = csrf.ContextSink{}
	}

	p := &URLParamProvider{
		cfg:   cfg,
		repo:  repo,
		dir:   dir,
		seeds: seeds,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With().Str("provider", cfg.ParamName).Logger()
	return p, nil
}

func (p *URLParamProvider) Config() ProviderConfig {
	return p.cfg
}

// Applies reports whether the request carries a token matching a stored
// record. A store fault also reports true so that Authenticate gets the
// chance to surface it.
func (p *URLParamProvider) Applies(r *http.Request) bool {
	if !r.URL.Query().Has(p.cfg.ParamName) {
		return false
	}
	_, err := p.lookup(r)
	if err == nil {
		return true
	}
	if errors.Is(err, apperrors.ErrStoreUnavailable) {
		p.log.Warn().Err(err).Msg("session lookup failed")
		return true
	}
	return false
}

func (p *URLParamProvider) Authenticate(r *http.Request) (*Principal, error) {
	ctx := r.Context()

	rec, err := p.lookup(r)
	if err != nil {
		if errors.Is(err, apperrors.ErrStoreUnavailable) {
			return nil, err
		}
		return p.reject(err)
	}
	if !rec.HasOwner() {
		return p.reject(ErrOwnerMissing)
	}

	user, err := p.dir.GetByID(ctx, rec.OwnerID)
	if err != nil {
		return nil, storeFault(err, "[URLParamProvider Authenticate] user lookup")
	}
	if !user.Active() {
		return p.reject(ErrOwnerInactive)
	}

	stored, err := p.dir.RolesFor(ctx, rec.OwnerID)
	if err != nil {
		return nil, storeFault(err, "[URLParamProvider Authenticate] role lookup")
	}
	roles := make([]users.RoleType, 0, len(stored)+1)
	roles = append(roles, users.RoleAuthenticated)
	for _, role := range stored {
		if role != users.RoleAuthenticated {
			roles = append(roles, role)
		}
	}

	p.seeds.SetCSRFSeed(r, rec.Secret)
	p.log.Debug().Object("session", rec).Msg("authenticated from url parameter")

	identity := *user
	identity.PasswordHash = ""
	return &Principal{
		User:     identity,
		Roles:    roles,
		Provider: p.cfg.ParamName,
		Session:  newSessionHandle(p.repo, rec),
	}, nil
}

func (p *URLParamProvider) reject(reason error) (*Principal, error) {
	p.log.Debug().Err(reason).Msg("url parameter not accepted")
	return nil, nil
}

// lookup decodes the token and returns the matching record. All failures
// other than store faults are one of the package sentinels or
// paramsession.ErrMalformedToken.
func (p *URLParamProvider) lookup(r *http.Request) (*paramsession.Record, error) {
	wire := r.URL.Query().Get(p.cfg.ParamName)
	key := memoKey{kind: p.cfg.Kind, token: wire}

	memo := memoFrom(r.Context())
	if memo != nil {
		if res, ok := memo.get(key); ok {
			return res.rec, res.err
		}
	}

	rec, err := p.find(r, wire)
	if memo != nil && !errors.Is(err, apperrors.ErrStoreUnavailable) {
		memo.put(key, lookupResult{rec: rec, err: err})
	}
	return rec, err
}

func (p *URLParamProvider) find(r *http.Request, wire string) (*paramsession.Record, error) {
	publicID, secret, err := paramsession.Decode(wire)
	if err != nil {
		return nil, err
	}

	rec, err := p.repo.FindByPublicID(r.Context(), p.cfg.Kind, publicID)
	if err != nil {
		return nil, storeFault(err, "[URLParamProvider lookup]")
	}
	if rec == nil {
		return nil, ErrTokenNotFound
	}
	if subtle.ConstantTimeCompare([]byte(rec.Secret), []byte(secret)) != 1 {
		return nil, ErrSecretMismatch
	}
	return rec, nil
}

// storeFault makes sure err carries ErrStoreUnavailable.
func storeFault(err error, op string) error {
	if errors.Is(err, apperrors.ErrStoreUnavailable) {
		return errors.Wrap(err, op)
	}
	return apperrors.Unavailable(err, op)
}
