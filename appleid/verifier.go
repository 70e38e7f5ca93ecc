// Package appleid verifies Sign in with Apple identity tokens.
//
// The client (web or native) obtains an id_token from Apple and posts it to
// the server. The token is an RS256 JWT signed with one of Apple's published
// keys, issued by https://appleid.apple.com for the app's client id.
package appleid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/panyam/authcore"
)

const (
	// Issuer is the iss claim of every Apple identity token
	Issuer = "https://appleid.apple.com"

	// KeysURL is where Apple publishes the keys signing its identity tokens
	KeysURL = "https://appleid.apple.com/auth/keys"
)

// IdentityClaims are the claims of an Apple identity token
type IdentityClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`

	// Apple has sent this both as a JSON bool and as the string "true"
	EmailVerified any `json:"email_verified,omitempty"`

	IsPrivateEmail any `json:"is_private_email,omitempty"`
}

// Verified reports whether Apple vouches for the email
func (c *IdentityClaims) Verified() bool {
	return truthy(c.EmailVerified)
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	default:
		return false
	}
}

// Verifier checks Apple identity tokens for one client id
type Verifier struct {
	ClientID string

	// Keys checks token signatures. NewVerifier uses Apple's published key
	// set, fetched on first use and refetched when a token names an unknown kid.
	Keys oidc.KeySet

	Now    func() time.Time
	Logger *slog.Logger
}

// NewVerifier creates a verifier backed by Apple's remote key set.
// ctx bounds the lifetime of key fetches.
func NewVerifier(ctx context.Context, clientID string) *Verifier {
	return &Verifier{
		ClientID: clientID,
		Keys:     oidc.NewRemoteKeySet(ctx, KeysURL),
	}
}

// segments decodes strictly, so a signature has exactly one accepted encoding
var segments = jwt.NewParser(jwt.WithStrictDecoding())

func checkSegments(raw string) error {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return errors.New("token must have three segments")
	}
	for _, part := range parts {
		if _, err := segments.DecodeSegment(part); err != nil {
			return fmt.Errorf("malformed segment: %w", err)
		}
	}
	return nil
}

// Verify checks the signature, issuer, audience and expiry of the token.
// Failures wrap authcore.ErrInvalidToken.
func (v *Verifier) Verify(ctx context.Context, rawIDToken string) (*IdentityClaims, error) {
	if rawIDToken == "" {
		return nil, fmt.Errorf("%w: empty identity token", authcore.ErrInvalidToken)
	}
	if err := checkSegments(rawIDToken); err != nil {
		return nil, fmt.Errorf("%w: %v", authcore.ErrInvalidToken, err)
	}

	verifier := oidc.NewVerifier(Issuer, v.Keys, &oidc.Config{
		ClientID:             v.ClientID,
		SupportedSigningAlgs: []string{oidc.RS256},
		Now:                  v.Now,
	})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		v.logger().Debug("apple identity token rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", authcore.ErrInvalidToken, err)
	}

	claims := &IdentityClaims{}
	if err := idToken.Claims(claims); err != nil {
		return nil, fmt.Errorf("%w: failed to decode claims: %v", authcore.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", authcore.ErrInvalidToken)
	}
	return claims, nil
}

// VerifyIdentityToken verifies the token and maps it onto a provider profile
func (v *Verifier) VerifyIdentityToken(ctx context.Context, idToken string) (*authcore.ProviderProfile, error) {
	claims, err := v.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: identity token carries no email", authcore.ErrInvalidToken)
	}
	if claims.EmailVerified != nil && !claims.Verified() {
		return nil, fmt.Errorf("%w: apple email is not verified", authcore.ErrInvalidToken)
	}
	return &authcore.ProviderProfile{
		ProviderID: claims.Subject,
		Email:      claims.Email,
	}, nil
}

func (v *Verifier) logger() *slog.Logger {
	if v.Logger == nil {
		return slog.Default()
	}
	return v.Logger
}
