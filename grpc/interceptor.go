package grpc

import (
	"context"
	"log/slog"

	"github.com/panyam/authcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	// Config holds the metadata key configuration.
	*Config

	// Tokens verifies the bearer tokens
	Tokens *authcore.TokenIssuer

	// RequireAuth when true rejects unauthenticated requests.
	// When false, requests proceed but ClaimsFromContext returns nil.
	RequireAuth bool

	// PublicMethods is a set of method names that don't require auth.
	// Keys should be full method names like "/package.Service/Method".
	PublicMethods map[string]bool

	Logger *slog.Logger
}

// DefaultInterceptorConfig returns a config that requires auth for all methods.
func DefaultInterceptorConfig(tokens *authcore.TokenIssuer) *InterceptorConfig {
	return &InterceptorConfig{
		Config:        DefaultConfig(),
		Tokens:        tokens,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
}

// NewPublicMethodsConfig creates a config with the specified public methods.
func NewPublicMethodsConfig(tokens *authcore.TokenIssuer, publicMethods ...string) *InterceptorConfig {
	config := DefaultInterceptorConfig(tokens)
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that allows unauthenticated requests.
func OptionalAuthConfig(tokens *authcore.TokenIssuer) *InterceptorConfig {
	config := DefaultInterceptorConfig(tokens)
	config.RequireAuth = false
	return config
}

func (c *InterceptorConfig) ensureDefaults() {
	if c.Config == nil {
		c.Config = DefaultConfig()
	}
	c.Config.EnsureDefaults()
	if c.PublicMethods == nil {
		c.PublicMethods = make(map[string]bool)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that verifies bearer tokens.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	config.ensureDefaults()

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := authenticate(ctx, info.FullMethod, config)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns a gRPC stream interceptor that verifies bearer tokens.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	config.ensureDefaults()

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticate(ss.Context(), info.FullMethod, config)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: ctx})
	}
}

// authenticate verifies the call's token and returns a context carrying its claims.
// Invalid tokens are rejected even on public methods.
func authenticate(ctx context.Context, method string, config *InterceptorConfig) (context.Context, error) {
	token := TokenFromIncomingContext(ctx, config.Config)
	if token == "" {
		if config.RequireAuth && !config.PublicMethods[method] {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		return ctx, nil
	}

	claims, err := config.Tokens.Verify(token)
	if err != nil {
		config.Logger.Debug("rejected grpc token", "method", method, "error", err)
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}
	return authcore.ContextWithClaims(ctx, claims), nil
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context { return s.ctx }
