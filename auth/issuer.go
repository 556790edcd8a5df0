package auth

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-embed-auth/paramsession"
)

// Issuer mints a new record for a freshly logged-in user and appends its
// token to the post-login redirect.
type Issuer struct {
	cfg  ProviderConfig
	repo paramsession.Repo
	log  zerolog.Logger
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

func WithIssuerLogger(l zerolog.Logger) IssuerOption {
	return func(i *Issuer) {
		i.log = l
	}
}

func NewIssuer(cfg ProviderConfig, repo paramsession.Repo, opts ...IssuerOption) (*Issuer, error) {
	if cfg.ParamName == "" || cfg.Kind == "" {
		return nil, errors.New("[NewIssuer] param name and kind are required")
	}
	if repo == nil {
		return nil, errors.New("[NewIssuer] session repo is required")
	}
	i := &Issuer{cfg: cfg, repo: repo, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *Issuer) Config() ProviderConfig {
	return i.cfg
}

// Issue creates one record owned by ownerID and returns destination with the
// token parameter merged into its query. Existing parameters are kept; an
// existing token parameter is replaced.
func (i *Issuer) Issue(ctx context.Context, ownerID, destination string) (string, *paramsession.Record, error) {
	if ownerID == "" {
		return "", nil, ErrOwnerMissing
	}
	if destination == "" {
		destination = "/"
	}
	u, err := url.Parse(destination)
	if err != nil {
		return "", nil, errors.Wrapf(ErrInvalidDestination, "[Issuer Issue] %q: %v", destination, err)
	}

	rec, err := paramsession.New(i.cfg.Kind, ownerID)
	if err != nil {
		return "", nil, errors.Wrap(err, "[Issuer Issue]")
	}
	if err := i.repo.Create(ctx, rec); err != nil {
		return "", nil, errors.Wrap(err, "[Issuer Issue] failed to store session")
	}

	q := u.Query()
	q.Set(i.cfg.ParamName, rec.Token())
	u.RawQuery = q.Encode()

	i.log.Info().Object("session", rec).Msg("issued url parameter session")
	return u.String(), rec, nil
}
