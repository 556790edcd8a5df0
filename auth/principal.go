package auth

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/jrsteele09/go-embed-auth/paramsession"
	"github.com/jrsteele09/go-embed-auth/users"
)

// Principal is an authenticated identity for the current request.
type Principal struct {
	User     users.User       // Directory identity at authentication time, without the password hash
	Roles    []users.RoleType // Always starts with RoleAuthenticated
	Provider string           // Name of the URL parameter that authenticated the request
	Session  *SessionHandle   // The record the token pointed at
}

func (p *Principal) ID() string {
	return p.User.ID
}

func (p *Principal) HasRole(role users.RoleType) bool {
	return p != nil && slices.Contains(p.Roles, role)
}

type principalKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal attached by Chain, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// SessionHandle lets request handlers read and write the data payload of the
// record that authenticated them.
type SessionHandle struct {
	mu   sync.RWMutex
	repo paramsession.Repo
	rec  *paramsession.Record
}

func newSessionHandle(repo paramsession.Repo, rec *paramsession.Record) *SessionHandle {
	return &SessionHandle{repo: repo, rec: rec.Clone()}
}

// Record returns a copy of the record.
func (h *SessionHandle) Record() *paramsession.Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rec.Clone()
}

// Data returns a copy of the data payload.
func (h *SessionHandle) Data() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return maps.Clone(h.rec.Data)
}

// Update replaces the data payload in the store and in the handle.
func (h *SessionHandle) Update(ctx context.Context, data map[string]any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	updated, err := h.repo.UpdateData(ctx, h.rec.Kind, h.rec.PublicID, data)
	if err != nil {
		return err
	}
	h.rec = updated.Clone()
	return nil
}
