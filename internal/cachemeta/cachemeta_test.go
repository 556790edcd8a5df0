package cachemeta_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-embed-auth/internal/cachemeta"
)

type wrapper struct {
	http.ResponseWriter
}

func (w wrapper) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func setupTestFixture(t *testing.T) *cachemeta.Registry {
	t.Helper()
	reg := cachemeta.NewRegistry()
	reg.Register("lang", func(r *http.Request) string { return r.URL.Query().Get("lang") })
	reg.Register("method", func(r *http.Request) string { return r.Method })
	return reg
}

func TestRegistryKey(t *testing.T) {
	reg := setupTestFixture(t)
	r := httptest.NewRequest(http.MethodGet, "/?lang=en", nil)

	require.Equal(t, "lang=en;method=GET", reg.Key(r, []string{"method", "lang"}))
	require.Equal(t, "unknown=", reg.Key(r, []string{"unknown"}))
	require.Equal(t, "", reg.Key(r, nil))
}

func TestFrom(t *testing.T) {
	reg := setupTestFixture(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := cachemeta.From(httptest.NewRecorder())
	require.False(t, ok)

	cw := cachemeta.NewWriter(httptest.NewRecorder(), r, reg, false)
	meta, ok := cachemeta.From(wrapper{cw})
	require.True(t, ok)
	require.Same(t, cw.CacheMetadata(), meta)
}

func TestMiddleware(t *testing.T) {
	reg := setupTestFixture(t)
	handler := func(w http.ResponseWriter, r *http.Request) {
		meta, ok := cachemeta.From(w)
		require.True(t, ok)
		meta.AddContexts("lang")
		meta.AddTags("config:b", "config:a")
		meta.AddTags("config:a")
		_, _ = w.Write([]byte("ok"))
	}

	t.Run("exposes metadata", func(t *testing.T) {
		rr := httptest.NewRecorder()
		cachemeta.Middleware(reg, true)(http.HandlerFunc(handler)).
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?lang=fr", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, "lang", rr.Header().Get(cachemeta.HeaderContexts))
		require.Equal(t, "lang=fr", rr.Header().Get(cachemeta.HeaderKey))
		require.Equal(t, "config:a config:b", rr.Header().Get(cachemeta.HeaderTags))
	})

	t.Run("hidden by default", func(t *testing.T) {
		rr := httptest.NewRecorder()
		cachemeta.Middleware(reg, false)(http.HandlerFunc(handler)).
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?lang=fr", nil))

		require.Empty(t, rr.Header().Get(cachemeta.HeaderContexts))
		require.Empty(t, rr.Header().Get(cachemeta.HeaderTags))
	})
}

func TestMetadataConcurrent(t *testing.T) {
	meta := cachemeta.NewMetadata()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			meta.AddContexts("referer")
			meta.AddTags("config:x")
			_ = meta.Contexts()
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	require.True(t, meta.HasContext("referer"))
	require.True(t, meta.HasTag("config:x"))
}
