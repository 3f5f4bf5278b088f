package postgres

import (
	"errors"

	"github.com/viralforge/identity-service/internal/domain"
	"gorm.io/gorm"
)

func toDomainAccount(row accountModel) domain.Account {
	return domain.Account{
		ID:           row.AccountID,
		FullName:     row.FullName,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
	}
}

func toDomainRole(row roleModel) domain.Role {
	return domain.Role{ID: row.RoleID, Name: row.Name, CreatedAt: row.CreatedAt}
}

func toDomainAccountRole(row accountRoleModel) domain.AccountRole {
	return domain.AccountRole{AccountID: row.AccountID, RoleID: row.RoleID, CreatedAt: row.CreatedAt}
}

func toDomainRefreshSession(row refreshSessionModel) domain.RefreshSession {
	return domain.RefreshSession{
		AccountID: row.AccountID,
		TokenHash: row.TokenHash,
		IssuedAt:  row.IssuedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// mapReadError turns a missing row into domain.ErrNotFound.
func mapReadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
