package stores

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panyam/authcore"
)

// FSAccountStore keeps accounts as JSON files:
//
//	<root>/accounts/<id>.json
//	<root>/emails/<sha256(email)>.json          -> account id
//	<root>/identities/<sha256(provider:id)>.json -> account id
//
// Index files make the unique lookups a single read. All writes go through
// one mutex, so a process must not share its directory with another.
type FSAccountStore struct {
	StoragePath string

	mu  sync.RWMutex
	now func() time.Time
}

type fsIndexEntry struct {
	AccountID string `json:"account_id"`
	Key       string `json:"key"`
}

func NewFSAccountStore(storagePath string) *FSAccountStore {
	return &FSAccountStore{StoragePath: storagePath, now: time.Now}
}

func (s *FSAccountStore) accountPath(id string) string {
	return filepath.Join(s.StoragePath, "accounts", filepath.Base(id)+".json")
}

func (s *FSAccountStore) emailPath(email string) string {
	return filepath.Join(s.StoragePath, "emails", hashKey(authcore.NormalizeEmail(email))+".json")
}

func (s *FSAccountStore) identityPath(provider authcore.Provider, providerID string) string {
	return filepath.Join(s.StoragePath, "identities", hashKey(authcore.IdentityKey(provider, providerID))+".json")
}

// hashKey makes arbitrary keys safe to use as file names
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (s *FSAccountStore) Create(ctx context.Context, account *authcore.Account) (*authcore.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := account.Clone()
	out.Email = authcore.NormalizeEmail(out.Email)
	if err := out.CheckInvariants(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	emailPath := s.emailPath(out.Email)
	if exists(emailPath) {
		return nil, fmt.Errorf("%w: email already registered", authcore.ErrDuplicateAccount)
	}
	var identityPath string
	if out.Provider.IsFederated() {
		identityPath = s.identityPath(out.Provider, out.ProviderID)
		if exists(identityPath) {
			return nil, fmt.Errorf("%w: provider identity already linked", authcore.ErrDuplicateAccount)
		}
	}

	now := s.now().UTC()
	out.ID = uuid.NewString()
	out.CreatedAt = now
	out.UpdatedAt = now

	if err := s.writeAccount(out); err != nil {
		return nil, err
	}
	if err := writeJSON(emailPath, fsIndexEntry{AccountID: out.ID, Key: out.Email}); err != nil {
		os.Remove(s.accountPath(out.ID))
		return nil, err
	}
	if identityPath != "" {
		if err := writeJSON(identityPath, fsIndexEntry{AccountID: out.ID, Key: authcore.IdentityKey(out.Provider, out.ProviderID)}); err != nil {
			os.Remove(emailPath)
			os.Remove(s.accountPath(out.ID))
			return nil, err
		}
	}
	return out.Clone(), nil
}

func (s *FSAccountStore) FindByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveIndex(s.emailPath(email))
}

func (s *FSAccountStore) FindByProviderIdentity(ctx context.Context, provider authcore.Provider, providerID string) (*authcore.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !provider.IsFederated() || providerID == "" {
		return nil, authcore.ErrAccountNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveIndex(s.identityPath(provider, providerID))
}

func (s *FSAccountStore) FindByID(ctx context.Context, id string) (*authcore.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readAccount(id)
}

func (s *FSAccountStore) Update(ctx context.Context, id string, update authcore.AccountUpdate) (*authcore.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.readAccount(id)
	if err != nil {
		return nil, err
	}
	oldEmail := account.Email
	update.Apply(account, s.now().UTC())

	emailChanged := account.Email != oldEmail
	if emailChanged {
		if account.Email == "" {
			return nil, fmt.Errorf("%w: email is required", authcore.ErrInvalidInput)
		}
		if exists(s.emailPath(account.Email)) {
			return nil, fmt.Errorf("%w: email already registered", authcore.ErrDuplicateAccount)
		}
		if err := writeJSON(s.emailPath(account.Email), fsIndexEntry{AccountID: account.ID, Key: account.Email}); err != nil {
			return nil, err
		}
	}
	if err := s.writeAccount(account); err != nil {
		if emailChanged {
			os.Remove(s.emailPath(account.Email))
		}
		return nil, err
	}
	if emailChanged {
		os.Remove(s.emailPath(oldEmail))
	}
	return account, nil
}

func (s *FSAccountStore) Delete(ctx context.Context, id string) (*authcore.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.readAccount(id)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(s.accountPath(id)); err != nil {
		return nil, fmt.Errorf("failed to delete account: %w", err)
	}
	os.Remove(s.emailPath(account.Email))
	if account.Provider.IsFederated() {
		os.Remove(s.identityPath(account.Provider, account.ProviderID))
	}
	return account, nil
}

func (s *FSAccountStore) resolveIndex(path string) (*authcore.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, authcore.ErrAccountNotFound
		}
		return nil, err
	}
	var entry fsIndexEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt index %s: %w", filepath.Base(path), err)
	}
	return s.readAccount(entry.AccountID)
}

// fsAccount is the on-disk form; unlike Account it keeps the password digest
type fsAccount struct {
	ID              string            `json:"id"`
	Email           string            `json:"email"`
	PasswordHash    string            `json:"password_hash,omitempty"`
	DisplayName     string            `json:"name,omitempty"`
	ProfileImageURL string            `json:"profile_image,omitempty"`
	Provider        authcore.Provider `json:"provider"`
	ProviderID      string            `json:"provider_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (s *FSAccountStore) readAccount(id string) (*authcore.Account, error) {
	if id == "" {
		return nil, authcore.ErrAccountNotFound
	}
	data, err := os.ReadFile(s.accountPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, authcore.ErrAccountNotFound
		}
		return nil, err
	}
	var rec fsAccount
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &authcore.Account{
		ID:              rec.ID,
		Email:           rec.Email,
		PasswordHash:    rec.PasswordHash,
		DisplayName:     rec.DisplayName,
		ProfileImageURL: rec.ProfileImageURL,
		Provider:        rec.Provider,
		ProviderID:      rec.ProviderID,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}, nil
}

func (s *FSAccountStore) writeAccount(a *authcore.Account) error {
	return writeJSON(s.accountPath(a.ID), fsAccount{
		ID:              a.ID,
		Email:           a.Email,
		PasswordHash:    a.PasswordHash,
		DisplayName:     a.DisplayName,
		ProfileImageURL: a.ProfileImageURL,
		Provider:        a.Provider,
		ProviderID:      a.ProviderID,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	})
}
