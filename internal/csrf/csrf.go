// Package csrf derives per-request anti-forgery tokens from a seed that an
// authentication provider supplies for the request.
package csrf

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"sync"

	"github.com/zeebo/blake3"
)

// FieldName is the form field carrying the token.
const FieldName = "form_token"

const keyContext = "go-embed-auth csrf v1"

// Bag holds the seed for a single request.
type Bag struct {
	mu  sync.RWMutex
	key []byte
}

// SetSeed replaces the seed. An empty seed clears the bag.
func (b *Bag) SetSeed(seed string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if seed == "" {
		b.key = nil
		return
	}
	key := make([]byte, 32)
	blake3.DeriveKey(keyContext, []byte(seed), key)
	b.key = key
}

// Seeded reports whether a seed has been set.
func (b *Bag) Seeded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.key != nil
}

func (b *Bag) token(formID string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.key == nil {
		return ""
	}
	hasher, err := blake3.NewKeyed(b.key)
	if err != nil {
		// The key is always 32 bytes from DeriveKey.
		panic("csrf: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write([]byte(formID))
	return hex.EncodeToString(hasher.Sum(nil))
}

type bagKey struct{}

// WithBag returns a context carrying a fresh bag.
func WithBag(ctx context.Context) (context.Context, *Bag) {
	b := &Bag{}
	return context.WithValue(ctx, bagKey{}, b), b
}

// BagFrom returns the request's bag, or nil if Middleware did not run.
func BagFrom(ctx context.Context) *Bag {
	b, _ := ctx.Value(bagKey{}).(*Bag)
	return b
}

// Middleware attaches an empty bag to every request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := WithBag(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SeedSink receives the anti-forgery seed for a request.
type SeedSink interface {
	SetCSRFSeed(r *http.Request, seed string)
}

// ContextSink writes seeds into the request's bag.
type ContextSink struct{}

func (ContextSink) SetCSRFSeed(r *http.Request, seed string) {
	if b := BagFrom(r.Context()); b != nil {
		b.SetSeed(seed)
	}
}

// Token returns the token for formID, or "" when the request has no seed.
func Token(ctx context.Context, formID string) string {
	b := BagFrom(ctx)
	if b == nil {
		return ""
	}
	return b.token(formID)
}

// Valid reports whether token was minted for formID under this request's seed.
func Valid(ctx context.Context, formID, token string) bool {
	want := Token(ctx, formID)
	if want == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 1
}
