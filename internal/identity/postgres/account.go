package postgres

import (
	"context"
	"errors"
	"time"

	identityDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/identity"
	"github.com/frahmantamala/securemind/internal/identity"
	"gorm.io/gorm"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) identity.Repository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *identityDatamodel.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*identityDatamodel.Account, error) {
	var account identityDatamodel.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*identityDatamodel.Account, error) {
	var account identityDatamodel.Account
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&identityDatamodel.Account{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) BumpSessionVersion(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&identityDatamodel.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"session_version":    gorm.Expr("session_version + 1"),
			"tokens_valid_after": at,
			"updated_at":         at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&identityDatamodel.Account{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}
