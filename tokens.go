package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTokenLifetime is how long an access token stays valid unless configured otherwise
const DefaultAccessTokenLifetime = 7 * 24 * time.Hour

// MinSecretLength is the shortest HMAC secret the issuer accepts
const MinSecretLength = 16

// Claims are carried inside every access token
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AccountID returns the subject of the token
func (c *Claims) AccountID() string { return c.Subject }

// TokenConfig configures a TokenIssuer
type TokenConfig struct {
	// Secret signs and verifies tokens. Supplied by the deployment, never embedded.
	Secret []byte

	// Lifetime of issued tokens. Defaults to DefaultAccessTokenLifetime.
	Lifetime time.Duration

	// Issuer claim. Checked on verify when set.
	Issuer string

	// SigningAlg is HS256, HS384 or HS512 (defaults to HS256)
	SigningAlg string

	// Now overrides the clock, mostly for tests
	Now func() time.Time
}

// TokenIssuer signs and verifies stateless access tokens.
//
// Tokens are not recorded anywhere, so an issued token stays valid until it
// expires; there is no revocation.
type TokenIssuer struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	method   jwt.SigningMethod
	now      func() time.Time
}

// NewTokenIssuer validates the config and builds an issuer
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	lifetime := cfg.Lifetime
	if lifetime == 0 {
		lifetime = DefaultAccessTokenLifetime
	}

	var method jwt.SigningMethod
	switch cfg.SigningAlg {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.SigningAlg)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &TokenIssuer{
		secret:   secret,
		lifetime: lifetime,
		issuer:   cfg.Issuer,
		method:   method,
		now:      now,
	}, nil
}

// Lifetime returns the configured token lifetime
func (t *TokenIssuer) Lifetime() time.Duration { return t.lifetime }

// Issue mints a token for an account
func (t *TokenIssuer) Issue(accountID, email string) (string, time.Time, error) {
	if accountID == "" {
		return "", time.Time{}, fmt.Errorf("%w: token subject is required", ErrInvalidInput)
	}

	now := t.now()
	expiresAt := now.Add(t.lifetime)
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature, expiry and issuer of a token and returns its claims.
// Every failure wraps ErrInvalidToken.
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithTimeFunc(t.now),
		// Reject non-canonical base64 so no two encodings share a signature
		jwt.WithStrictDecoding(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: token validation failed", ErrInvalidToken)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
