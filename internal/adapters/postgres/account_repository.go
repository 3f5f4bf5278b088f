package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/domain"
	"gorm.io/gorm"
)

type accountRepository struct {
	db *gorm.DB
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	var rec accountModel
	if err := r.db.WithContext(ctx).Where("lower(email) = ?", domain.NormalizeEmail(email)).Take(&rec).Error; err != nil {
		return domain.Account{}, mapReadError(err)
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) FindByID(ctx context.Context, accountID uuid.UUID) (domain.Account, error) {
	var rec accountModel
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&rec).Error; err != nil {
		return domain.Account{}, mapReadError(err)
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) Insert(ctx context.Context, account domain.Account) (domain.Account, error) {
	rec := accountModel{
		AccountID:    account.ID,
		FullName:     account.FullName,
		Email:        domain.NormalizeEmail(account.Email),
		PasswordHash: account.PasswordHash,
		CreatedAt:    account.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Account{}, fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		return domain.Account{}, err
	}
	return toDomainAccount(rec), nil
}
