package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type refreshSessionRepository struct {
	db *gorm.DB
}

func (r *refreshSessionRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (domain.RefreshSession, error) {
	var rec refreshSessionModel
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&rec).Error; err != nil {
		return domain.RefreshSession{}, mapReadError(err)
	}
	return toDomainRefreshSession(rec), nil
}

func (r *refreshSessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (domain.RefreshSession, error) {
	var rec refreshSessionModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Take(&rec).Error; err != nil {
		return domain.RefreshSession{}, mapReadError(err)
	}
	return toDomainRefreshSession(rec), nil
}

func (r *refreshSessionRepository) Upsert(ctx context.Context, session domain.RefreshSession) error {
	rec := refreshSessionModel{
		AccountID: session.AccountID,
		TokenHash: session.TokenHash,
		IssuedAt:  session.IssuedAt,
		UpdatedAt: session.UpdatedAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token_hash", "issued_at", "updated_at"}),
		}).
		Create(&rec).Error
}

func (r *refreshSessionRepository) Rotate(ctx context.Context, accountID uuid.UUID, oldHash, newHash string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&refreshSessionModel{}).
		Where("account_id = ?", accountID).
		Where("token_hash = ?", oldHash).
		Updates(map[string]any{
			"token_hash": newHash,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *refreshSessionRepository) Delete(ctx context.Context, accountID uuid.UUID, tokenHash string) error {
	res := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Where("token_hash = ?", tokenHash).
		Delete(&refreshSessionModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
