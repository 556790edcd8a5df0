// Package cachemeta records which request properties (contexts) and which
// configuration (tags) a response depends on, so a cache in front of the
// server can vary and invalidate correctly.
package cachemeta

import (
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
)

const (
	HeaderContexts = "X-Cache-Contexts"
	HeaderTags     = "X-Cache-Tags"
	HeaderKey      = "X-Cache-Key"
)

// Metadata is the set of cache contexts and tags attached to one response.
type Metadata struct {
	mu       sync.Mutex
	contexts map[string]struct{}
	tags     map[string]struct{}
}

func NewMetadata() *Metadata {
	return &Metadata{
		contexts: map[string]struct{}{},
		tags:     map[string]struct{}{},
	}
}

func (m *Metadata) AddContexts(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range names {
		m.contexts[n] = struct{}{}
	}
}

func (m *Metadata) AddTags(tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tags {
		m.tags[t] = struct{}{}
	}
}

// Contexts returns the contexts in sorted order.
func (m *Metadata) Contexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.contexts)
}

// Tags returns the tags in sorted order.
func (m *Metadata) Tags() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.tags)
}

func (m *Metadata) HasContext(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.contexts[name]
	return ok
}

func (m *Metadata) HasTag(tag string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tags[tag]
	return ok
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Cacheable is implemented by response writers that carry cache metadata.
type Cacheable interface {
	CacheMetadata() *Metadata
}

// From finds the metadata carried by w, looking through wrappers that
// expose Unwrap.
func From(w http.ResponseWriter) (*Metadata, bool) {
	for w != nil {
		if c, ok := w.(Cacheable); ok {
			return c.CacheMetadata(), true
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return nil, false
		}
		w = u.Unwrap()
	}
	return nil, false
}

// ContextFunc renders the value of a cache context for a request.
type ContextFunc func(r *http.Request) string

// Registry maps context names to the functions computing their values.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]ContextFunc
}

func NewRegistry() *Registry {
	return &Registry{funcs: map[string]ContextFunc{}}
}

// Register adds or replaces the function for name.
func (reg *Registry) Register(name string, fn ContextFunc) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.funcs[name] = fn
}

// Value computes one context for r. Unknown contexts render as "".
func (reg *Registry) Value(r *http.Request, name string) string {
	reg.mu.RLock()
	fn, ok := reg.funcs[name]
	reg.mu.RUnlock()
	if !ok {
		return ""
	}
	return fn(r)
}

// Key renders the variance key for r, e.g. "referer=trusted.example.com".
// Contexts are sorted so the key does not depend on insertion order.
func (reg *Registry) Key(r *http.Request, contexts []string) string {
	names := slices.Clone(contexts)
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+reg.Value(r, name))
	}
	return strings.Join(parts, ";")
}
