package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// AuthResult is returned by every successful authentication
type AuthResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      PublicUser `json:"user"`
}

// Service orchestrates registration and login on top of a store, a hasher and a token issuer.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	store        AccountStore
	hasher       CredentialHasher
	tokens       *TokenIssuer
	capabilities Capabilities
	logger       *slog.Logger

	// Compared against when no usable digest exists so that missing accounts
	// cost the same as wrong passwords.
	dummyOnce   sync.Once
	dummyDigest string
}

// ServiceOption customizes a Service
type ServiceOption func(*Service)

// WithLogger sets the logger used by the service
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCapabilities sets the enabled federated providers
func WithCapabilities(c Capabilities) ServiceOption {
	return func(s *Service) {
		s.capabilities = c
	}
}

// NewService wires the service. Without WithCapabilities only local accounts are accepted.
func NewService(store AccountStore, hasher CredentialHasher, tokens *TokenIssuer, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capabilities returns the provider flags the service was built with
func (s *Service) Capabilities() Capabilities { return s.capabilities }

// Tokens returns the issuer used for minting and verifying tokens
func (s *Service) Tokens() *TokenIssuer { return s.tokens }

// Register creates a local account and logs it in
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := Validate(in); err != nil {
		return nil, err
	}

	// Fast path for the common duplicate. The store still has the final say.
	if _, err := s.store.FindByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrDuplicateAccount)
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	account, err := s.store.Create(ctx, &Account{
		Email:        in.Email,
		PasswordHash: digest,
		DisplayName:  in.Name,
		Provider:     ProviderLocal,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("registered local account", "account_id", account.ID)
	return s.issue(account)
}

// LoginLocal authenticates with email and password.
// Unknown emails, provider-only accounts and wrong passwords all fail with ErrInvalidCredentials.
func (s *Service) LoginLocal(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := Validate(in); err != nil {
		return nil, err
	}

	account, err := s.store.FindByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if account == nil || !account.HasPassword() {
		s.hasher.Verify(in.Password, s.dummy())
		s.logger.Debug("local login rejected", "reason", "no usable password")
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(in.Password, account.PasswordHash) {
		s.logger.Debug("local login rejected", "account_id", account.ID, "reason", "password mismatch")
		return nil, ErrInvalidCredentials
	}
	return s.issue(account)
}

// LoginWithProvider resolves a verified provider identity to an account,
// creating the account on first sight. Repeated logins with the same
// (provider, providerId) always land on the same account.
func (s *Service) LoginWithProvider(ctx context.Context, provider Provider, profile ProviderProfile) (*AuthResult, error) {
	if !provider.IsFederated() {
		return nil, fmt.Errorf("%w: %q is not a federated provider", ErrInvalidInput, provider)
	}
	if !s.capabilities.Enabled(provider) {
		return nil, fmt.Errorf("%w: %s", ErrProviderDisabled, provider)
	}
	profile.Email = NormalizeEmail(profile.Email)
	// Over-long provider names are cut, not rejected
	profile.DisplayName = ClampDisplayName(profile.DisplayName)
	if err := Validate(profile); err != nil {
		return nil, err
	}

	account, err := s.store.FindByProviderIdentity(ctx, provider, profile.ProviderID)
	if err == nil {
		return s.issue(account)
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to look up provider identity: %w", err)
	}

	// An email owned by another account is not merged into this identity
	account, err = s.store.Create(ctx, &Account{
		Email:           profile.Email,
		DisplayName:     profile.DisplayName,
		ProfileImageURL: profile.ProfileImageURL,
		Provider:        provider,
		ProviderID:      profile.ProviderID,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			s.logger.Warn("provider login collided with an existing account", "provider", provider)
			return nil, err
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("created provider account", "account_id", account.ID, "provider", provider)
	return s.issue(account)
}

// CurrentUser materializes the account behind an already verified token
func (s *Service) CurrentUser(ctx context.Context, accountID string) (*PublicUser, error) {
	if accountID == "" {
		return nil, ErrAccountNotFound
	}
	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	user := account.Public()
	return &user, nil
}

// Authenticate verifies a token and returns the account it names
func (s *Service) Authenticate(ctx context.Context, token string) (*PublicUser, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return s.CurrentUser(ctx, claims.Subject)
}

// UpdateProfile changes the user-visible profile of an account
func (s *Service) UpdateProfile(ctx context.Context, accountID string, in ProfileUpdate) (*PublicUser, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	account, err := s.store.Update(ctx, accountID, AccountUpdate{
		DisplayName:     in.DisplayName,
		ProfileImageURL: in.ProfileImageURL,
	})
	if err != nil {
		return nil, err
	}
	user := account.Public()
	return &user, nil
}

// DeleteAccount removes an account. This is an administrative operation;
// login flows never delete accounts.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) (*PublicUser, error) {
	account, err := s.store.Delete(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("deleted account", "account_id", account.ID)
	user := account.Public()
	return &user, nil
}

func (s *Service) issue(account *Account) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(account.ID, account.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      account.Public(),
	}, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("authcore-timing-equalizer")
		if err != nil {
			s.logger.Warn("failed to compute dummy digest", "error", err)
			return
		}
		s.dummyDigest = digest
	})
	return s.dummyDigest
}
