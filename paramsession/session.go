// Package paramsession holds the server-side records that URL parameter
// tokens point at. A record binds a public identifier and a secret to the
// principal that owns it, plus an opaque data payload.
package paramsession

import (
	"crypto/rand"
	"encoding/base64"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Kind identifies the record family a token belongs to. Each family is
// served by its own URL parameter.
type Kind string

const (
	KindIframeSession Kind = "iframe_session"
	KindJourney       Kind = "journey"
)

// secretLength is the number of random bytes behind every secret.
const secretLength = 32

// Record is a persisted parameter session.
type Record struct {
	ID        int64          // Storage-internal sequence key
	Kind      Kind           // Record family
	PublicID  string         // First half of the wire token
	Secret    string         // Second half of the wire token, immutable
	OwnerID   string         // Owning principal; empty authenticates nobody
	Data      map[string]any // Opaque session payload
	CreatedAt time.Time
	ChangedAt time.Time
}

// New creates an unsaved record owned by ownerID with a fresh public id and
// secret. Secrets are only ever produced here.
func New(kind Kind, ownerID string) (*Record, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, errors.Wrap(err, "[paramsession New] failed to generate secret")
	}

	now := time.Now().UTC()
	return &Record{
		Kind:      kind,
		PublicID:  uuid.NewString(),
		Secret:    secret,
		OwnerID:   ownerID,
		Data:      map[string]any{},
		CreatedAt: now,
		ChangedAt: now,
	}, nil
}

// HasOwner reports whether the record has been assigned to a principal.
func (r *Record) HasOwner() bool {
	return r != nil && r.OwnerID != ""
}

// Token renders the wire token for this record.
func (r *Record) Token() string {
	return Encode(r.PublicID, r.Secret)
}

// Clone returns a deep-enough copy for handing records across goroutines:
// the data map is copied, its values are shared.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Data = maps.Clone(r.Data)
	if c.Data == nil {
		c.Data = map[string]any{}
	}
	return &c
}

// String never includes the secret.
func (r *Record) String() string {
	return string(r.Kind) + ":" + r.PublicID
}

// MarshalZerologObject logs the record without its secret.
func (r *Record) MarshalZerologObject(e *zerolog.Event) {
	e.Str("kind", string(r.Kind)).
		Str("public_id", r.PublicID).
		Str("owner_id", r.OwnerID)
}

func generateSecret() (string, error) {
	b := make([]byte, secretLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
