// Package grpc authenticates gRPC calls with authcore access tokens carried
// in the "authorization" metadata entry.
//
// Applications embedding authcore install the interceptors on their own
// servers:
//
//	srv := grpc.NewServer(
//	    grpc.UnaryInterceptor(authgrpc.UnaryAuthInterceptor(authgrpc.DefaultInterceptorConfig(tokens))),
//	    grpc.StreamInterceptor(authgrpc.StreamAuthInterceptor(authgrpc.DefaultInterceptorConfig(tokens))),
//	)
package grpc

import (
	"context"
	"strings"

	"github.com/panyam/authcore"
	"google.golang.org/grpc/metadata"
)

// DefaultMetadataKeyAuthorization is the metadata key holding "Bearer <token>"
const DefaultMetadataKeyAuthorization = "authorization"

// Config holds the metadata key configuration for auth context.
type Config struct {
	// MetadataKeyAuthorization defaults to "authorization"
	MetadataKeyAuthorization string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{MetadataKeyAuthorization: DefaultMetadataKeyAuthorization}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
}

// TokenFromIncomingContext returns the bearer token of an incoming call, or ""
func TokenFromIncomingContext(ctx context.Context, config *Config) string {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(config.MetadataKeyAuthorization) {
		if token := authcore.BearerToken(v); token != "" {
			return token
		}
	}
	return ""
}

// TokenToOutgoingContext attaches a bearer token to an outgoing call
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAuthorization, "Bearer "+strings.TrimSpace(token))
}

// ClaimsFromContext returns the claims the interceptor verified, or nil
func ClaimsFromContext(ctx context.Context) *authcore.Claims {
	return authcore.ClaimsFromContext(ctx)
}

// AccountIDFromContext returns the authenticated account id, or ""
func AccountIDFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.AccountID()
	}
	return ""
}

// IsAuthenticated returns true if the call carried a valid token
func IsAuthenticated(ctx context.Context) bool {
	return ClaimsFromContext(ctx) != nil
}
