package frame_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-embed-auth/frame"
	"github.com/jrsteele09/go-embed-auth/internal/cachemeta"
)

type failingStore struct{}

func (failingStore) Get(context.Context) (frame.AllowList, error) {
	return frame.AllowList{}, errors.New("settings unavailable")
}

func (failingStore) Set(context.Context, string) error {
	return errors.New("settings unavailable")
}

type testFixture struct {
	store   *frame.MemoryStore
	policy  *frame.Policy
	handler http.Handler
}

// setupTestFixture builds the same stack the server uses: cache metadata,
// then the frame-deny header, then the policy.
func setupTestFixture(t *testing.T, patterns string) *testFixture {
	t.Helper()

	store := frame.NewMemoryStore(patterns)
	policy := frame.NewPolicy(store)
	return &testFixture{
		store:   store,
		policy:  policy,
		handler: buildStack(policy, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("page"))
		})),
	}
}

func buildStack(policy *frame.Policy, h http.Handler) http.Handler {
	reg := cachemeta.NewRegistry()
	frame.RegisterCacheContext(reg)

	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(frame.HeaderFrameOptions, "SAMEORIGIN")
			next.ServeHTTP(w, r)
		})
	}
	return cachemeta.Middleware(reg, true)(deny(policy.Middleware(h)))
}

func (f *testFixture) serve(referer string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	if referer != "" {
		r.Header.Set("Referer", referer)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, r)
	return rr
}

func TestPolicyMiddleware(t *testing.T) {
	t.Run("matching referer drops the header", func(t *testing.T) {
		f := setupTestFixture(t, `^trusted\.example\.com$`)
		rr := f.serve("https://trusted.example.com/page")

		require.Equal(t, http.StatusOK, rr.Code)
		require.Empty(t, rr.Header().Get(frame.HeaderFrameOptions))
		require.Equal(t, "referer", rr.Header().Get(cachemeta.HeaderContexts))
		require.Equal(t, "referer=trusted.example.com", rr.Header().Get(cachemeta.HeaderKey))
		require.Equal(t, frame.CacheTag, rr.Header().Get(cachemeta.HeaderTags))
	})

	t.Run("other referer keeps the header", func(t *testing.T) {
		f := setupTestFixture(t, `^trusted\.example\.com$`)
		rr := f.serve("https://evil.com")

		require.Equal(t, "SAMEORIGIN", rr.Header().Get(frame.HeaderFrameOptions))
		require.Equal(t, frame.CacheTag, rr.Header().Get(cachemeta.HeaderTags))
	})

	t.Run("no referer keeps the header with an empty variance key", func(t *testing.T) {
		f := setupTestFixture(t, `^trusted\.example\.com$`)
		rr := f.serve("")

		require.Equal(t, "SAMEORIGIN", rr.Header().Get(frame.HeaderFrameOptions))
		require.Equal(t, "referer", rr.Header().Get(cachemeta.HeaderContexts))
		require.Equal(t, "referer=", rr.Header().Get(cachemeta.HeaderKey))
		require.Empty(t, rr.Header().Get(cachemeta.HeaderTags))
	})

	t.Run("empty allow-list keeps the header", func(t *testing.T) {
		f := setupTestFixture(t, "")
		rr := f.serve("https://trusted.example.com/page")
		require.Equal(t, "SAMEORIGIN", rr.Header().Get(frame.HeaderFrameOptions))

		f = setupTestFixture(t, "\r\n\n  \r")
		rr = f.serve("https://trusted.example.com/page")
		require.Equal(t, "SAMEORIGIN", rr.Header().Get(frame.HeaderFrameOptions))
	})

	t.Run("referer paths on the same host share a variance key", func(t *testing.T) {
		f := setupTestFixture(t, `^trusted\.example\.com$`)
		a := f.serve("https://Trusted.Example.com/a?x=1")
		b := f.serve("https://trusted.example.com:8443/b")
		require.Equal(t, a.Header().Get(cachemeta.HeaderKey), b.Header().Get(cachemeta.HeaderKey))
		require.Empty(t, a.Header().Get(frame.HeaderFrameOptions))
		require.Empty(t, b.Header().Get(frame.HeaderFrameOptions))
	})

	t.Run("any line may match", func(t *testing.T) {
		f := setupTestFixture(t, "^a\\.example$\r\n^b\\.example$\n\n^c\\.example$")
		for _, host := range []string{"a.example", "b.example", "c.example"} {
			rr := f.serve("https://" + host + "/")
			require.Empty(t, rr.Header().Get(frame.HeaderFrameOptions), host)
		}
		rr := f.serve("https://d.example/")
		require.Equal(t, "SAMEORIGIN", rr.Header().Get(frame.HeaderFrameOptions))
	})

	t.Run("patterns are unanchored", func(t *testing.T) {
		f := setupTestFixture(t, `example\.com`)
		rr := f.serve("https://evil-example.com.attacker.net/")
		require.Empty(t, rr.Header().Get(frame.HeaderFrameOptions))
	})

	t.Run("invalid patterns are skipped", func(t *testing.T) {
		f := setupTestFixture(t, "([unclosed\n^trusted\\.example\\.com$")
		rr := f.serve("https://trusted.example.com/")
		require.Empty(t, rr.Header().Get(frame.HeaderFrameOptions))

		rr = f.serve("https://other.example.com/")
		require.Equal(t, "SAMEORIGIN", rr.Header().Get(frame.HeaderFrameOptions))
	})

	t.Run("allow-list changes apply to the next request", func(t *testing.T) {
		f := setupTestFixture(t, "")
		require.Equal(t, "SAMEORIGIN", f.serve("https://late.example/").Header().Get(frame.HeaderFrameOptions))

		require.NoError(t, f.store.Set(context.Background(), `^late\.example$`))
		require.Empty(t, f.serve("https://late.example/").Header().Get(frame.HeaderFrameOptions))
	})

	t.Run("store failure keeps the header", func(t *testing.T) {
		policy := frame.NewPolicy(failingStore{})
		h := buildStack(policy, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Referer", "https://trusted.example.com/")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)

		require.Equal(t, http.StatusNoContent, rr.Code)
		require.Equal(t, "SAMEORIGIN", rr.Header().Get(frame.HeaderFrameOptions))
	})

	t.Run("handler that writes nothing", func(t *testing.T) {
		policy := frame.NewPolicy(frame.NewMemoryStore(`^trusted\.example\.com$`))
		h := policy.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Referer", "https://trusted.example.com/")
		rr := httptest.NewRecorder()
		rr.Header().Set(frame.HeaderFrameOptions, "DENY")
		h.ServeHTTP(rr, r)

		require.Empty(t, rr.Header().Get(frame.HeaderFrameOptions))
	})
}

func TestAllows(t *testing.T) {
	ctx := context.Background()
	policy := frame.NewPolicy(frame.NewMemoryStore(`^trusted\.example\.com$` + "\n" + `.*`))

	ok, err := policy.Allows(ctx, "trusted.example.com")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = policy.Allows(ctx, "")
	require.NoError(t, err)
	require.False(t, ok, "a referer without a host never matches")

	_, err = frame.NewPolicy(failingStore{}).Allows(ctx, "trusted.example.com")
	require.Error(t, err)
}

func TestPolicyConcurrent(t *testing.T) {
	f := setupTestFixture(t, `^trusted\.example\.com$`+"\n"+`([bad`)

	var wg sync.WaitGroup
	results := make(chan string, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			referer := "https://trusted.example.com/"
			if i%2 == 1 {
				referer = "https://evil.com/"
			}
			results <- referer + "|" + f.serve(referer).Header().Get(frame.HeaderFrameOptions)
		}(i)
	}
	wg.Wait()
	close(results)

	for res := range results {
		switch res {
		case "https://trusted.example.com/|", "https://evil.com/|SAMEORIGIN":
		default:
			t.Fatalf("unexpected result %q", res)
		}
	}
}
