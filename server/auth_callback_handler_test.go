package server_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-embed-auth/frame"
	fakesessionrepo "github.com/jrsteele09/go-embed-auth/paramsession/repofake"
	"github.com/jrsteele09/go-embed-auth/server"
	"github.com/jrsteele09/go-embed-auth/server/authflowrepo"
	"github.com/jrsteele09/go-embed-auth/users"
	fakeuserrepo "github.com/jrsteele09/go-embed-auth/users/repofake"
)

const (
	testIssuer   = "https://idp.example"
	testClientID = "embed"
)

// testIdentityProvider is a token endpoint that signs whatever ID token
// claims the test hands it.
type testIdentityProvider struct {
	server *httptest.Server
	key    *rsa.PrivateKey
	signer jose.Signer

	mu           sync.Mutex
	claims       map[string]any
	codeVerifier string
}

func newTestIdentityProvider(t *testing.T) *testIdentityProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(t, err)

	idp := &testIdentityProvider{key: key, signer: signer}
	idp.server = httptest.NewServer(http.HandlerFunc(idp.token))
	t.Cleanup(idp.server.Close)
	return idp
}

func (p *testIdentityProvider) token(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.codeVerifier = r.PostForm.Get("code_verifier")

	payload, err := json.Marshal(p.claims)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	signed, err := p.signer.Sign(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rawIDToken, err := signed.CompactSerialize()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "access-token",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     rawIDToken,
	})
}

func (p *testIdentityProvider) setClaims(claims map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claims = claims
}

func (p *testIdentityProvider) lastCodeVerifier() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.codeVerifier
}

func idTokenClaims(nonce, email string, emailVerified any) map[string]any {
	now := time.Now()
	claims := map[string]any{
		"iss":   testIssuer,
		"sub":   "idp-user-1",
		"aud":   testClientID,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"nonce": nonce,
		"email": email,
	}
	if emailVerified != nil {
		claims["email_verified"] = emailVerified
	}
	return claims
}

func TestOIDCFlow(t *testing.T) {
	tokenEndpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer tokenEndpoint.Close()

	cfg := loadConfig(t, nil)
	states := authflowrepo.NewInMemoryRepo()
	s, err := server.New(cfg, server.Repos{
		Sessions: fakesessionrepo.NewFakeSessionRepo(),
		Users:    fakeuserrepo.NewFakeUserRepo(),
		Frame:    frame.NewMemoryStore(""),
	}, states, server.WithOidcConfig(server.OidcConfig{
		OAuth2Config: &oauth2.Config{
			ClientID:    "embed",
			RedirectURL: "http://localhost:8080/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://idp.example/authorize",
				TokenURL: tokenEndpoint.URL,
			},
			Scopes: []string{"openid", "email"},
		},
	}))
	require.NoError(t, err)

	serve := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := serve(server.RouteOIDCLogin + "?flow=journey&return=" + url.QueryEscape("/journey?step=3"))
	require.Equal(t, http.StatusFound, rec.Code)

	authURL, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "idp.example", authURL.Host)
	q := authURL.Query()
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("code_challenge"))
	require.NotEmpty(t, q.Get("nonce"))

	state := q.Get("state")
	stored, err := states.Get(state)
	require.NoError(t, err)
	require.Equal(t, server.FlowJourney, stored.Flow)
	require.Equal(t, "/journey?step=3", stored.ReturnURL)
	require.NotEmpty(t, stored.CodeVerifier)

	t.Run("failed exchange", func(t *testing.T) {
		rec := serve(server.RouteCallback + "?state=" + url.QueryEscape(state) + "&code=abc")
		require.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("state is redeemed once", func(t *testing.T) {
		rec := serve(server.RouteCallback + "?state=" + url.QueryEscape(state) + "&code=abc")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing code", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, serve(server.RouteCallback+"?state=x").Code)
	})

	t.Run("provider error goes back to login", func(t *testing.T) {
		rec := serve(server.RouteCallback + "?error=access_denied&state=x")
		require.Equal(t, http.StatusSeeOther, rec.Code)
		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		require.Equal(t, server.RouteLogin, loc.Path)
		require.NotEmpty(t, loc.Query().Get("error"))
	})

	t.Run("login page links to single sign-on", func(t *testing.T) {
		rec := serve(server.RouteLogin)
		require.Contains(t, rec.Body.String(), server.RouteOIDCLogin)
	})

	t.Run("unconfigured server has no single sign-on routes", func(t *testing.T) {
		plain, err := server.New(loadConfig(t, nil), server.Repos{
			Sessions: fakesessionrepo.NewFakeSessionRepo(),
			Users:    fakeuserrepo.NewFakeUserRepo(),
			Frame:    frame.NewMemoryStore(""),
		}, nil)
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		plain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, server.RouteOIDCLogin, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestOIDCCallback(t *testing.T) {
	idp := newTestIdentityProvider(t)
	sessions := fakesessionrepo.NewFakeSessionRepo()
	userRepo := fakeuserrepo.NewFakeUserRepo()
	states := authflowrepo.NewInMemoryRepo()

	member := &users.User{Email: memberEmail, Username: "Member One"}
	require.NoError(t, userRepo.Upsert(context.Background(), member))
	require.NoError(t, userRepo.Upsert(context.Background(), &users.User{Email: blockedEmail, Blocked: true}))

	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{idp.key.Public()}}
	s, err := server.New(loadConfig(t, nil), server.Repos{
		Sessions: sessions,
		Users:    userRepo,
		Frame:    frame.NewMemoryStore(""),
	}, states, server.WithOidcConfig(server.OidcConfig{
		OAuth2Config: &oauth2.Config{
			ClientID:    testClientID,
			RedirectURL: "http://localhost:8080/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:  testIssuer + "/authorize",
				TokenURL: idp.server.URL,
			},
			Scopes: []string{oidc.ScopeOpenID, "email"},
		},
		OidcVerifier: oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: testClientID}),
	}))
	require.NoError(t, err)

	serve := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	// begin starts a login and returns the state and nonce sent to the provider.
	begin := func(t *testing.T, query string) (string, string) {
		t.Helper()
		rec := serve(server.RouteOIDCLogin + query)
		require.Equal(t, http.StatusFound, rec.Code)
		authURL, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		return authURL.Query().Get("state"), authURL.Query().Get("nonce")
	}

	callback := func(state string) *httptest.ResponseRecorder {
		return serve(server.RouteCallback + "?code=auth-code&state=" + url.QueryEscape(state))
	}

	requireBackAtLogin := func(t *testing.T, rec *httptest.ResponseRecorder) {
		t.Helper()
		require.Equal(t, http.StatusSeeOther, rec.Code)
		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		require.Equal(t, server.RouteLogin, loc.Path)
		require.NotEmpty(t, loc.Query().Get("error"))
	}

	t.Run("verified email issues a session token", func(t *testing.T) {
		state, nonce := begin(t, "")
		stored, err := states.Get(state)
		require.NoError(t, err)
		idp.setClaims(idTokenClaims(nonce, memberEmail, true))

		rec := callback(state)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, stored.CodeVerifier, idp.lastCodeVerifier())

		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "/users/"+member.ID, loc.Path)
		require.NotEmpty(t, loc.Query().Get("iSession"))
		require.Equal(t, 1, sessions.Len())

		page := serve(loc.String())
		require.Equal(t, http.StatusOK, page.Code)
	})

	t.Run("journey flow keeps the return path", func(t *testing.T) {
		state, nonce := begin(t, "?flow=journey&return="+url.QueryEscape("/journey?step=3"))
		idp.setClaims(idTokenClaims(nonce, memberEmail, true))

		rec := callback(state)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "/journey", loc.Path)
		require.Equal(t, "3", loc.Query().Get("step"))
		require.NotEmpty(t, loc.Query().Get("iJourney"))
	})

	t.Run("rejected identities issue nothing", func(t *testing.T) {
		tests := []struct {
			name          string
			email         string
			emailVerified any
		}{
			{"missing email_verified", memberEmail, nil},
			{"unverified email", memberEmail, false},
			{"missing email", "", true},
			{"unknown user", "nobody@example.com", true},
			{"blocked user", blockedEmail, true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				before := sessions.Len()
				state, nonce := begin(t, "")
				idp.setClaims(idTokenClaims(nonce, tt.email, tt.emailVerified))

				requireBackAtLogin(t, callback(state))
				require.Equal(t, before, sessions.Len())
			})
		}
	})

	t.Run("nonce mismatch", func(t *testing.T) {
		before := sessions.Len()
		state, _ := begin(t, "")
		idp.setClaims(idTokenClaims("another-nonce", memberEmail, true))

		rec := callback(state)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, before, sessions.Len())
	})

	t.Run("token from another issuer", func(t *testing.T) {
		state, nonce := begin(t, "")
		claims := idTokenClaims(nonce, memberEmail, true)
		claims["iss"] = "https://other-idp.example"
		idp.setClaims(claims)

		rec := callback(state)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
