package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/panyam/authcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func testIssuer(t *testing.T) *authcore.TokenIssuer {
	t.Helper()
	issuer, err := authcore.NewTokenIssuer(authcore.TokenConfig{
		Secret:   []byte("grpc-test-secret-0123456789"),
		Lifetime: time.Hour,
		Issuer:   "authcore-test",
	})
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}
	return issuer
}

func withToken(token string) context.Context {
	md := metadata.Pairs(DefaultMetadataKeyAuthorization, "Bearer "+token)
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestDefaultInterceptorConfig(t *testing.T) {
	config := DefaultInterceptorConfig(nil)
	if !config.RequireAuth {
		t.Error("expected RequireAuth to be true by default")
	}
	if config.PublicMethods == nil {
		t.Error("expected PublicMethods to be initialized")
	}
	if config.Config == nil {
		t.Error("expected Config to be initialized")
	}
}

func TestNewPublicMethodsConfig(t *testing.T) {
	config := NewPublicMethodsConfig(nil, "/pkg.Svc/Method1", "/pkg.Svc/Method2")
	if !config.RequireAuth {
		t.Error("expected RequireAuth to be true")
	}
	if !config.PublicMethods["/pkg.Svc/Method1"] || !config.PublicMethods["/pkg.Svc/Method2"] {
		t.Error("expected Method1 and Method2 to be public")
	}
	if config.PublicMethods["/pkg.Svc/Method3"] {
		t.Error("expected Method3 to not be public")
	}
}

func TestUnaryAuthInterceptor(t *testing.T) {
	issuer := testIssuer(t)
	valid, _, err := issuer.Issue("acct-1", "a@example.com")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	other, _ := authcore.NewTokenIssuer(authcore.TokenConfig{Secret: []byte("some-other-secret-987654321"), Issuer: "authcore-test"})
	forged, _, _ := other.Issue("acct-1", "a@example.com")

	tests := []struct {
		name        string
		config      *InterceptorConfig
		ctx         context.Context
		method      string
		wantCode    codes.Code
		wantAccount string
	}{
		{"no token", DefaultInterceptorConfig(issuer), context.Background(), "/pkg.Svc/Method", codes.Unauthenticated, ""},
		{"valid token", DefaultInterceptorConfig(issuer), withToken(valid), "/pkg.Svc/Method", codes.OK, "acct-1"},
		{"forged token", DefaultInterceptorConfig(issuer), withToken(forged), "/pkg.Svc/Method", codes.Unauthenticated, ""},
		{"garbage token", DefaultInterceptorConfig(issuer), withToken("garbage"), "/pkg.Svc/Method", codes.Unauthenticated, ""},
		{"public method without token", NewPublicMethodsConfig(issuer, "/pkg.Svc/Public"), context.Background(), "/pkg.Svc/Public", codes.OK, ""},
		{"public method with token", NewPublicMethodsConfig(issuer, "/pkg.Svc/Public"), withToken(valid), "/pkg.Svc/Public", codes.OK, "acct-1"},
		{"public method with bad token", NewPublicMethodsConfig(issuer, "/pkg.Svc/Public"), withToken(forged), "/pkg.Svc/Public", codes.Unauthenticated, ""},
		{"optional auth without token", OptionalAuthConfig(issuer), context.Background(), "/pkg.Svc/Method", codes.OK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interceptor := UnaryAuthInterceptor(tt.config)
			info := &grpc.UnaryServerInfo{FullMethod: tt.method}

			var gotAccount string
			handlerCalled := false
			_, err := interceptor(tt.ctx, nil, info, func(ctx context.Context, req any) (any, error) {
				handlerCalled = true
				gotAccount = AccountIDFromContext(ctx)
				return "result", nil
			})

			if got := status.Code(err); got != tt.wantCode {
				t.Fatalf("expected code %v, got %v (%v)", tt.wantCode, got, err)
			}
			if tt.wantCode != codes.OK {
				if handlerCalled {
					t.Error("handler should not be called")
				}
				return
			}
			if gotAccount != tt.wantAccount {
				t.Errorf("expected account %q, got %q", tt.wantAccount, gotAccount)
			}
		})
	}
}

// mockServerStream implements grpc.ServerStream for testing
type mockServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (m *mockServerStream) Context() context.Context { return m.ctx }

func TestStreamAuthInterceptor(t *testing.T) {
	issuer := testIssuer(t)
	token, _, _ := issuer.Issue("acct-9", "s@example.com")
	interceptor := StreamAuthInterceptor(DefaultInterceptorConfig(issuer))
	info := &grpc.StreamServerInfo{FullMethod: "/pkg.Svc/Stream"}

	t.Run("rejects without token", func(t *testing.T) {
		err := interceptor(nil, &mockServerStream{ctx: context.Background()}, info, func(srv any, ss grpc.ServerStream) error {
			t.Error("handler should not be called")
			return nil
		})
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("expected Unauthenticated, got %v", err)
		}
	})

	t.Run("claims visible on the wrapped stream", func(t *testing.T) {
		var claims *authcore.Claims
		err := interceptor(nil, &mockServerStream{ctx: withToken(token)}, info, func(srv any, ss grpc.ServerStream) error {
			claims = ClaimsFromContext(ss.Context())
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if claims == nil || claims.AccountID() != "acct-9" || claims.Email != "s@example.com" {
			t.Errorf("unexpected claims: %+v", claims)
		}
	})
}
