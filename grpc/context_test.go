package grpc

import (
	"context"
	"testing"

	"github.com/panyam/authcore"
	"google.golang.org/grpc/metadata"
)

func TestEnsureDefaults(t *testing.T) {
	config := &Config{}
	config.EnsureDefaults()
	if config.MetadataKeyAuthorization != DefaultMetadataKeyAuthorization {
		t.Errorf("expected %q, got %q", DefaultMetadataKeyAuthorization, config.MetadataKeyAuthorization)
	}
}

func TestTokenFromIncomingContext(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		config *Config
		want   string
	}{
		{"no metadata", context.Background(), nil, ""},
		{"bearer", metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer abc")), nil, "abc"},
		{"lowercase scheme", metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "bearer abc")), nil, "abc"},
		{"wrong scheme", metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic abc")), nil, ""},
		{"custom key", metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-token", "Bearer xyz")), &Config{MetadataKeyAuthorization: "x-token"}, "xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenFromIncomingContext(tt.ctx, tt.config); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTokenToOutgoingContext(t *testing.T) {
	ctx := TokenToOutgoingContext(context.Background(), "tok123")
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	values := md.Get(DefaultMetadataKeyAuthorization)
	if len(values) != 1 || values[0] != "Bearer tok123" {
		t.Errorf("unexpected metadata: %v", values)
	}
}

func TestIsAuthenticated(t *testing.T) {
	if IsAuthenticated(context.Background()) {
		t.Error("expected unauthenticated context")
	}
	ctx := authcore.ContextWithClaims(context.Background(), &authcore.Claims{Email: "a@example.com"})
	if !IsAuthenticated(ctx) {
		t.Error("expected authenticated context")
	}
}
