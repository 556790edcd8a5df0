package frame

import (
	"context"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-embed-auth/internal/cachemeta"
)

// Policy removes the frame-deny header when the referer host matches any
// allow-list pattern. Patterns are not anchored for the administrator.
type Policy struct {
	store Store
	log   zerolog.Logger

	// compiled is the allow-list as last read from the store.
	compiled atomic.Pointer[compiledList]
}

// compiledList holds the valid patterns of one stored allow-list.
type compiledList struct {
	patterns  string
	updatedAt time.Time
	res       []*regexp.Regexp
}

type PolicyOption func(*Policy)

func WithLogger(l zerolog.Logger) PolicyOption {
	return func(p *Policy) {
		p.log = l
	}
}

func NewPolicy(store Store, opts ...PolicyOption) *Policy {
	p := &Policy{store: store, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Allows reports whether host may embed responses. An empty host or an
// empty allow-list never allows.
func (p *Policy) Allows(ctx context.Context, host string) (bool, error) {
	list, err := p.store.Get(ctx)
	if err != nil {
		return false, err
	}
	if host == "" {
		return false, nil
	}
	for _, re := range p.compile(list).res {
		if re.MatchString(host) {
			return true, nil
		}
	}
	return false, nil
}

// compile returns the compiled form of list, rebuilding it only when the
// stored list has changed. Invalid patterns are logged and skipped.
func (p *Policy) compile(list AllowList) *compiledList {
	if c := p.compiled.Load(); c != nil && c.updatedAt.Equal(list.UpdatedAt) && c.patterns == list.Patterns {
		return c
	}

	c := &compiledList{patterns: list.Patterns, updatedAt: list.UpdatedAt}
	for _, pattern := range list.Lines() {
		re, err := regexp.Compile(pattern)
		if err != nil {
			p.log.Warn().Err(err).Str("pattern", pattern).Msg("skipping invalid frame referer pattern")
			continue
		}
		c.res = append(c.res, re)
	}
	p.compiled.Store(c)
	return c
}

// Middleware declares the referer cache context on cache-aware responses and
// strips the frame-deny header when the referer is allowed. The decision is
// made before the handler runs and applied when headers are written.
func (p *Policy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta, cacheable := cachemeta.From(w)
		if cacheable {
			meta.AddContexts(CacheContextReferer)
		}
		if r.Header.Get("Referer") == "" {
			next.ServeHTTP(w, r)
			return
		}
		if cacheable {
			meta.AddTags(CacheTag)
		}

		host := RefererHost(r)
		allowed, err := p.Allows(r.Context(), host)
		if err != nil {
			p.log.Error().Err(err).Str("referer_host", host).Msg("frame allow-list unavailable, keeping frame-deny header")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			next.ServeHTTP(w, r)
			return
		}

		p.log.Debug().Str("referer_host", host).Msg("allowing framing")
		sw := &stripWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if !sw.wroteHeader {
			// Nothing written; the server sends the current headers as-is.
			w.Header().Del(HeaderFrameOptions)
		}
	})
}

// stripWriter deletes the frame-deny header just before headers are sent.
type stripWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *stripWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.Header().Del(HeaderFrameOptions)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *stripWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *stripWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
