package auth

import (
	"context"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-embed-auth/paramsession"
)

type memoKey struct {
	kind  paramsession.Kind
	token string
}

type lookupResult struct {
	rec *paramsession.Record
	err error
}

// lookupMemo remembers token lookups for one request. Store faults are never
// stored so a retry within the request hits the backend again.
type lookupMemo struct {
	mu      sync.Mutex
	entries map[memoKey]lookupResult
}

func (m *lookupMemo) get(k memoKey) (lookupResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.entries[k]
	if ok {
		res.rec = res.rec.Clone()
	}
	return res, ok
}

func (m *lookupMemo) put(k memoKey, res lookupResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res.rec = res.rec.Clone()
	m.entries[k] = res
}

type memoCtxKey struct{}

// WithLookupMemo returns r with a fresh lookup memo, so Applies followed by
// Authenticate on the same request reads the store once. Requests that
// already carry a memo are returned unchanged.
func WithLookupMemo(r *http.Request) *http.Request {
	if memoFrom(r.Context()) != nil {
		return r
	}
	m := &lookupMemo{entries: map[memoKey]lookupResult{}}
	return r.WithContext(context.WithValue(r.Context(), memoCtxKey{}, m))
}

func memoFrom(ctx context.Context) *lookupMemo {
	m, _ := ctx.Value(memoCtxKey{}).(*lookupMemo)
	return m
}
