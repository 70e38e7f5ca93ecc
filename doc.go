// Package authcore is the authentication core of a small account service.
//
// It registers local accounts with email and password, logs users in with
// either a password or a federated provider (Google, Sign in with Apple),
// and issues stateless signed access tokens that identify the account.
//
// # Architecture
//
// CredentialHasher: turns passwords into self-contained bcrypt digests and
// checks them.
//
// AccountStore: the durable record of accounts. Stores enforce email and
// (provider, providerId) uniqueness atomically. Implementations live in the
// stores package (file system), stores/gorm (SQL) and stores/gae (Cloud Datastore).
//
// TokenIssuer: mints and verifies HMAC signed JWTs that carry the account id.
// Tokens are never recorded, so they stay valid until they expire.
//
// Service: orchestrates registration and login on top of the three
// components above. Provider specific verification (OAuth code exchange,
// identity token signatures) happens before the Service is called; see the
// oauth2 and appleid packages.
//
// # Basic Usage
//
//	tokens, err := authcore.NewTokenIssuer(authcore.TokenConfig{
//	    Secret:   []byte(os.Getenv("AUTH_JWT_SECRET")),
//	    Lifetime: 7 * 24 * time.Hour,
//	})
//	svc := authcore.NewService(
//	    stores.NewFSAccountStore("/path/to/storage"),
//	    authcore.NewBcryptHasher(authcore.DefaultHashCost),
//	    tokens,
//	    authcore.WithCapabilities(authcore.NewCapabilities(false, true)),
//	)
//
//	h := authcore.NewHandler(svc)
//	h.AppleVerifier = appleid.NewVerifier(ctx, "com.example.app")
//	h.AllowedOrigins = []string{"https://app.example.com"}
//	http.ListenAndServe(":26000", h.Routes())
//
// # gRPC
//
// The grpc package holds unary and stream interceptors that verify the same
// access tokens from call metadata. It is meant for applications embedding
// authcore next to their own gRPC services; cmd/authserver serves HTTP only.
//
// # Errors
//
// Every failure the core reports wraps one of ErrDuplicateAccount,
// ErrInvalidCredentials, ErrAccountNotFound, ErrInvalidToken, ErrInvalidInput
// or ErrProviderDisabled. Login failures never reveal whether an email exists.
//
// # Security
//
// Password digests never leave the store: callers only ever see PublicUser.
// Logins for unknown emails still pay for a bcrypt comparison.
package authcore
