//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"

	"github.com/panyam/authcore"
)

// Kind constants for Datastore entities
const (
	KindAccount         = "Account"
	KindAccountEmail    = "AccountEmail"
	KindAccountIdentity = "AccountIdentity"
)

// Contended marker writes are retried; losers then see the winner's marker
const maxTxAttempts = 10

// errMarkerTaken aborts a transaction whose unique marker already exists
var errMarkerTaken = errors.New("marker taken")

// AccountStore implements authcore.AccountStore using Google Cloud Datastore.
// Every lookup is a key lookup, so reads are strongly consistent.
type AccountStore struct {
	client    *datastore.Client
	namespace string
	now       func() time.Time
}

// NewAccountStore creates a new Datastore-backed AccountStore
func NewAccountStore(client *datastore.Client, namespace string) *AccountStore {
	return &AccountStore{
		client:    client,
		namespace: namespace,
		now:       time.Now,
	}
}

func (s *AccountStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *AccountStore) emailKey(email string) *datastore.Key {
	return s.namespacedKey(KindAccountEmail, authcore.NormalizeEmail(email))
}

func (s *AccountStore) identityKey(provider authcore.Provider, providerID string) *datastore.Key {
	return s.namespacedKey(KindAccountIdentity, authcore.IdentityKey(provider, providerID))
}

// claim fails with errMarkerTaken if the marker exists
func claim(tx *datastore.Transaction, key *datastore.Key) error {
	var existing MarkerEntity
	err := tx.Get(key, &existing)
	switch {
	case err == nil:
		return errMarkerTaken
	case errors.Is(err, datastore.ErrNoSuchEntity):
		return nil
	default:
		return err
	}
}

func (s *AccountStore) Create(ctx context.Context, account *authcore.Account) (*authcore.Account, error) {
	out := account.Clone()
	out.Email = authcore.NormalizeEmail(out.Email)
	if err := out.CheckInvariants(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out.ID = uuid.NewString()
	out.CreatedAt = now
	out.UpdatedAt = now

	accountKey := s.namespacedKey(KindAccount, out.ID)
	keys := []*datastore.Key{accountKey, s.emailKey(out.Email)}
	entities := []any{
		AccountToEntity(out, accountKey),
		&MarkerEntity{AccountID: out.ID, CreatedAt: now},
	}
	if out.Provider.IsFederated() {
		keys = append(keys, s.identityKey(out.Provider, out.ProviderID))
		entities = append(entities, &MarkerEntity{AccountID: out.ID, CreatedAt: now})
	}

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		for _, markerKey := range keys[1:] {
			if err := claim(tx, markerKey); err != nil {
				return err
			}
		}
		_, err := tx.PutMulti(keys, entities)
		return err
	}, datastore.MaxAttempts(maxTxAttempts))
	if err != nil {
		if errors.Is(err, errMarkerTaken) {
			return nil, fmt.Errorf("%w: email or provider identity already registered", authcore.ErrDuplicateAccount)
		}
		return nil, err
	}
	return out, nil
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	return s.resolveMarker(ctx, s.emailKey(email))
}

func (s *AccountStore) FindByProviderIdentity(ctx context.Context, provider authcore.Provider, providerID string) (*authcore.Account, error) {
	if !provider.IsFederated() || providerID == "" {
		return nil, authcore.ErrAccountNotFound
	}
	return s.resolveMarker(ctx, s.identityKey(provider, providerID))
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (*authcore.Account, error) {
	if id == "" {
		return nil, authcore.ErrAccountNotFound
	}
	var entity AccountEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindAccount, id), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, authcore.ErrAccountNotFound
		}
		return nil, err
	}
	return entity.ToAccount(), nil
}

func (s *AccountStore) resolveMarker(ctx context.Context, key *datastore.Key) (*authcore.Account, error) {
	var marker MarkerEntity
	if err := s.client.Get(ctx, key, &marker); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, authcore.ErrAccountNotFound
		}
		return nil, err
	}
	return s.FindByID(ctx, marker.AccountID)
}

func (s *AccountStore) Update(ctx context.Context, id string, update authcore.AccountUpdate) (*authcore.Account, error) {
	var out *authcore.Account
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		accountKey := s.namespacedKey(KindAccount, id)
		var entity AccountEntity
		if err := tx.Get(accountKey, &entity); err != nil {
			return err
		}
		account := entity.ToAccount()
		oldEmail := account.Email
		update.Apply(account, s.now().UTC())

		if account.Email != oldEmail {
			if account.Email == "" {
				return fmt.Errorf("%w: email is required", authcore.ErrInvalidInput)
			}
			newKey := s.emailKey(account.Email)
			if err := claim(tx, newKey); err != nil {
				return err
			}
			if err := tx.Delete(s.emailKey(oldEmail)); err != nil {
				return err
			}
			if _, err := tx.Put(newKey, &MarkerEntity{AccountID: account.ID, CreatedAt: account.UpdatedAt}); err != nil {
				return err
			}
		}
		if _, err := tx.Put(accountKey, AccountToEntity(account, accountKey)); err != nil {
			return err
		}
		out = account
		return nil
	}, datastore.MaxAttempts(maxTxAttempts))
	if err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

func (s *AccountStore) Delete(ctx context.Context, id string) (*authcore.Account, error) {
	var out *authcore.Account
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		accountKey := s.namespacedKey(KindAccount, id)
		var entity AccountEntity
		if err := tx.Get(accountKey, &entity); err != nil {
			return err
		}
		account := entity.ToAccount()

		keys := []*datastore.Key{accountKey, s.emailKey(account.Email)}
		if account.Provider.IsFederated() {
			keys = append(keys, s.identityKey(account.Provider, account.ProviderID))
		}
		if err := tx.DeleteMulti(keys); err != nil {
			return err
		}
		out = account
		return nil
	}, datastore.MaxAttempts(maxTxAttempts))
	if err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

func translateError(err error) error {
	switch {
	case errors.Is(err, datastore.ErrNoSuchEntity):
		return authcore.ErrAccountNotFound
	case errors.Is(err, errMarkerTaken):
		return fmt.Errorf("%w: email already registered", authcore.ErrDuplicateAccount)
	default:
		return err
	}
}
