package authcore_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ac "github.com/panyam/authcore"
	"github.com/panyam/authcore/appleid"
)

type testServer struct {
	*testEnv
	handler *ac.Handler
	routes  http.Handler
}

func setupServer(t *testing.T, caps ac.Capabilities, configure func(*ac.Handler)) *testServer {
	t.Helper()
	env := setupService(t, caps)
	h := ac.NewHandler(env.svc)
	h.Logger = discardLogger()
	if configure != nil {
		configure(h)
	}
	return &testServer{testEnv: env, handler: h, routes: h.Routes()}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	switch b := body.(type) {
	case nil:
		reader = strings.NewReader("")
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.routes.ServeHTTP(rec, req)
	return rec
}

type authBody struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      ac.PublicUser `json:"user"`
}

type errBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHTTPRegisterLoginMe(t *testing.T) {
	s := setupServer(t, ac.Capabilities{}, nil)

	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "a@x.com", "password": "hunter22", "name": "Alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[authBody](t, rec)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "Alice", reg.User.Name)
	assert.NotContains(t, rec.Body.String(), "hunter22")
	assert.NotContains(t, rec.Body.String(), "$2a$")

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "A@X.com", "password": "hunter22"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[authBody](t, rec)
	assert.Equal(t, reg.User.ID, login.User.ID)

	rec = s.do(t, http.MethodGet, "/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[ac.PublicUser](t, rec)
	assert.Equal(t, reg.User.ID, me.ID)
	assert.Equal(t, "a@x.com", me.Email)

	rec = s.do(t, http.MethodPatch, "/auth/me", login.Token, map[string]string{"name": "Al"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Al", decode[ac.PublicUser](t, rec).Name)
}

func TestHTTPErrors(t *testing.T) {
	s := setupServer(t, ac.Capabilities{}, nil)
	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "a@x.com", "password": "hunter22"})
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		body     any
		wantCode int
		wantErr  string
	}{
		{"duplicate", http.MethodPost, "/auth/register", "", map[string]string{"email": "a@x.com", "password": "hunter22"}, http.StatusConflict, ac.ErrCodeDuplicateAccount},
		{"bad email", http.MethodPost, "/auth/register", "", map[string]string{"email": "nope", "password": "hunter22"}, http.StatusBadRequest, ac.ErrCodeInvalidInput},
		{"short password", http.MethodPost, "/auth/register", "", map[string]string{"email": "b@x.com", "password": "123"}, http.StatusBadRequest, ac.ErrCodeInvalidInput},
		{"malformed json", http.MethodPost, "/auth/register", "", "{not json", http.StatusBadRequest, ac.ErrCodeInvalidInput},
		{"wrong password", http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong-pw"}, http.StatusUnauthorized, ac.ErrCodeInvalidCredentials},
		{"unknown email", http.MethodPost, "/auth/login", "", map[string]string{"email": "z@x.com", "password": "hunter22"}, http.StatusUnauthorized, ac.ErrCodeInvalidCredentials},
		{"me without token", http.MethodGet, "/auth/me", "", nil, http.StatusUnauthorized, ac.ErrCodeInvalidToken},
		{"me with bad token", http.MethodGet, "/auth/me", "garbage", nil, http.StatusUnauthorized, ac.ErrCodeInvalidToken},
		{"disabled google", http.MethodGet, "/auth/google", "", nil, http.StatusNotFound, "not_found"},
		{"disabled apple", http.MethodPost, "/auth/apple", "", map[string]string{"idToken": "x"}, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			body := decode[errBody](t, rec)
			assert.Equal(t, tt.wantErr, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}

	// Wrong password and unknown email look the same on the wire
	a := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong-pw"})
	b := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "z@x.com", "password": "hunter22"})
	assert.Equal(t, a.Body.String(), b.Body.String())
}

func TestHTTPFormLogin(t *testing.T) {
	s := setupServer(t, ac.Capabilities{}, nil)

	form := url.Values{"email": {"form@x.com"}, "password": {"hunter22"}, "name": {"Form"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.routes.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	form.Del("name")
	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	s.routes.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "form@x.com", decode[authBody](t, rec).User.Email)
}

func TestHTTPHealth(t *testing.T) {
	s := setupServer(t, ac.NewCapabilities(false, true), nil)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Status    string        `json:"status"`
		Providers []ac.Provider `json:"providers"`
	}](t, rec)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, []ac.Provider{ac.ProviderLocal, ac.ProviderApple}, body.Providers)
}

// stubFlow stands in for the Google redirect flow and completes the login
// with a fixed profile
type stubFlow struct {
	h       *ac.Handler
	profile ac.ProviderProfile
}

func (f *stubFlow) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.Trim(r.URL.Path, "/") != "callback" {
		http.NotFound(w, r)
		return
	}
	f.h.HandleProviderLogin(ac.ProviderGoogle, f.profile, w, r)
}

func TestHTTPGoogleCallback(t *testing.T) {
	var flow *stubFlow
	s := setupServer(t, ac.NewCapabilities(true, false), func(h *ac.Handler) {
		flow = &stubFlow{h: h, profile: ac.ProviderProfile{ProviderID: "g-1", Email: "g@x.com", DisplayName: "G"}}
		h.GoogleFlow = flow
	})

	rec := s.do(t, http.MethodGet, "/auth/google/callback?code=abc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[authBody](t, rec)
	assert.Equal(t, ac.ProviderGoogle, first.User.Provider)

	rec = s.do(t, http.MethodGet, "/auth/google/callback?code=def", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.User.ID, decode[authBody](t, rec).User.ID)

	// Password login for a provider account fails like any bad credential
	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "g@x.com", "password": "anything"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPGoogleUnknownPaths(t *testing.T) {
	s := setupServer(t, ac.NewCapabilities(true, false), func(h *ac.Handler) {
		h.GoogleFlow = &stubFlow{h: h, profile: ac.ProviderProfile{ProviderID: "g-1", Email: "g@x.com"}}
	})

	for _, path := range []string{"/auth/googlex", "/auth/google/other", "/auth/google/callback/extra"} {
		rec := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "not_found", decode[errBody](t, rec).Code, path)
	}
}

func TestHTTPAppleLogin(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	s := setupServer(t, ac.NewCapabilities(false, true), func(h *ac.Handler) {
		h.AppleVerifier = &appleid.Verifier{
			ClientID: "com.example.app",
			Keys:     &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}},
		}
	})

	sign := func(claims jwt.MapClaims) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = "kid-1"
		signed, err := tok.SignedString(key)
		require.NoError(t, err)
		return signed
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":            appleid.Issuer,
		"aud":            "com.example.app",
		"sub":            "apple-sub-1",
		"email":          "Apple@X.com",
		"email_verified": "true",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}

	rec := s.do(t, http.MethodPost, "/auth/apple", "", map[string]string{"idToken": sign(claims), "name": " Ann "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[authBody](t, rec)
	assert.Equal(t, ac.ProviderApple, first.User.Provider)
	assert.Equal(t, "apple@x.com", first.User.Email)
	assert.Equal(t, "Ann", first.User.Name)

	rec = s.do(t, http.MethodPost, "/auth/apple", "", map[string]string{"idToken": sign(claims)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.User.ID, decode[authBody](t, rec).User.ID)

	// A long name from the client is cut rather than failing the login
	claims["sub"] = "apple-sub-2"
	claims["email"] = "apple2@x.com"
	rec = s.do(t, http.MethodPost, "/auth/apple", "", map[string]string{"idToken": sign(claims), "name": strings.Repeat("n", 150)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, strings.Repeat("n", ac.MaxDisplayNameLength), decode[authBody](t, rec).User.Name)

	claims["aud"] = "com.other.app"
	rec = s.do(t, http.MethodPost, "/auth/apple", "", map[string]string{"idToken": sign(claims)})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/apple", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fixedVerifier struct {
	profile *ac.ProviderProfile
	err     error
}

func (v fixedVerifier) VerifyIdentityToken(context.Context, string) (*ac.ProviderProfile, error) {
	return v.profile, v.err
}

func TestHTTPAppleVerifierMissing(t *testing.T) {
	// Enabled by capability but nothing to verify with: the route stays unmounted
	s := setupServer(t, ac.NewCapabilities(false, true), nil)
	rec := s.do(t, http.MethodPost, "/auth/apple", "", map[string]string{"idToken": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s = setupServer(t, ac.NewCapabilities(false, true), func(h *ac.Handler) {
		h.AppleVerifier = fixedVerifier{err: ac.ErrInvalidToken}
	})
	rec = s.do(t, http.MethodPost, "/auth/apple", "", map[string]string{"idToken": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPCORS(t *testing.T) {
	s := setupServer(t, ac.Capabilities{}, func(h *ac.Handler) {
		h.AllowedOrigins = []string{"https://app.example.com", " https://*.example.org "}
	})

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type, Authorization")
		rec := httptest.NewRecorder()
		s.routes.ServeHTTP(rec, req)
		return rec
	}

	t.Run("allowed origin", func(t *testing.T) {
		rec := preflight("https://app.example.com")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.MethodPost, rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "300", rec.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("wildcard origin", func(t *testing.T) {
		rec := preflight("https://web.example.org")
		assert.Equal(t, "https://web.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		rec := preflight("https://evil.example.net")
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("simple request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		s.routes.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disabled without origins", func(t *testing.T) {
		plain := setupServer(t, ac.Capabilities{}, nil)
		req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		plain.routes.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
