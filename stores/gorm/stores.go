//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panyam/authcore"
)

// AutoMigrate runs database migrations for the account table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountModel{})
}

// AccountStore implements authcore.AccountStore using GORM
type AccountStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db, now: time.Now}
}

func (s *AccountStore) Create(ctx context.Context, account *authcore.Account) (*authcore.Account, error) {
	in := account.Clone()
	in.Email = authcore.NormalizeEmail(in.Email)
	if err := in.CheckInvariants(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	in.ID = uuid.NewString()
	in.CreatedAt = now
	in.UpdatedAt = now

	model := FromAccount(in)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	return s.first(ctx, "email = ?", authcore.NormalizeEmail(email))
}

func (s *AccountStore) FindByProviderIdentity(ctx context.Context, provider authcore.Provider, providerID string) (*authcore.Account, error) {
	if !provider.IsFederated() || providerID == "" {
		return nil, authcore.ErrAccountNotFound
	}
	return s.first(ctx, "provider = ? AND provider_id = ?", string(provider), providerID)
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (*authcore.Account, error) {
	if id == "" {
		return nil, authcore.ErrAccountNotFound
	}
	return s.first(ctx, "id = ?", id)
}

func (s *AccountStore) Update(ctx context.Context, id string, update authcore.AccountUpdate) (*authcore.Account, error) {
	var out *authcore.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model AccountModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return translateError(err)
		}
		account := model.ToAccount()
		update.Apply(account, s.now().UTC())
		if account.Email == "" {
			return fmt.Errorf("%w: email is required", authcore.ErrInvalidInput)
		}

		updated := FromAccount(account)
		if err := tx.Save(updated).Error; err != nil {
			return translateError(err)
		}
		out = updated.ToAccount()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AccountStore) Delete(ctx context.Context, id string) (*authcore.Account, error) {
	var out *authcore.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model AccountModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return translateError(err)
		}
		if err := tx.Delete(&model).Error; err != nil {
			return err
		}
		out = model.ToAccount()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AccountStore) first(ctx context.Context, query string, args ...any) (*authcore.Account, error) {
	var model AccountModel
	if err := s.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToAccount(), nil
}

// translateError maps driver errors onto authcore error kinds. Dialects that
// do not implement gorm's error translation are matched on their messages.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return authcore.ErrAccountNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return fmt.Errorf("%w: %v", authcore.ErrDuplicateAccount, err)
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") || // postgres
		strings.Contains(msg, "Duplicate entry") // mysql
}
