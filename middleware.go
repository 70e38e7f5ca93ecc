package authcore

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

type claimsKey struct{}

// Middleware authenticates requests carrying access tokens
type Middleware struct {
	Tokens *TokenIssuer

	// Header holding the token, defaults to Authorization
	AuthTokenHeaderName string

	// Optional cookie checked when the header is absent
	AuthTokenCookieName string

	Logger *slog.Logger
}

// ContextWithClaims stores verified claims in a context
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by the middleware, or nil
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}

// ExtractClaims verifies a token if one is present and stores its claims.
// Requests without a valid token pass through unauthenticated.
func (m *Middleware) ExtractClaims(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, err := m.verifyRequest(r); err == nil {
			r = r.WithContext(ContextWithClaims(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}

// EnsureClaims rejects requests without a valid token with a 401
func (m *Middleware) EnsureClaims(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.verifyRequest(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
			writeJSON(w, HTTPStatus(err), errorBody{Error: PublicMessage(err), Code: ErrorCode(err)})
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

func (m *Middleware) verifyRequest(r *http.Request) (*Claims, error) {
	token := m.tokenFromRequest(r)
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims, err := m.Tokens.Verify(token)
	if err != nil {
		m.logger().Debug("rejected access token", "path", r.URL.Path, "error", err)
		return nil, err
	}
	return claims, nil
}

func (m *Middleware) tokenFromRequest(r *http.Request) string {
	headerName := m.AuthTokenHeaderName
	if headerName == "" {
		headerName = "Authorization"
	}
	if token := BearerToken(r.Header.Get(headerName)); token != "" {
		return token
	}
	if m.AuthTokenCookieName != "" {
		if cookie, err := r.Cookie(m.AuthTokenCookieName); err == nil {
			return cookie.Value
		}
	}
	return ""
}

func (m *Middleware) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
