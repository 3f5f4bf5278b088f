package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type roleRepository struct {
	db *gorm.DB
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (domain.Role, error) {
	var rec roleModel
	if err := r.db.WithContext(ctx).Where("name = ?", name).Take(&rec).Error; err != nil {
		return domain.Role{}, mapReadError(err)
	}
	return toDomainRole(rec), nil
}

func (r *roleRepository) FindByID(ctx context.Context, roleID uuid.UUID) (domain.Role, error) {
	var rec roleModel
	if err := r.db.WithContext(ctx).Where("role_id = ?", roleID).Take(&rec).Error; err != nil {
		return domain.Role{}, mapReadError(err)
	}
	return toDomainRole(rec), nil
}

// InsertIfAbsent relies on ON CONFLICT DO NOTHING so a lost race does not abort
// the surrounding transaction; zero affected rows means another writer owns the name.
func (r *roleRepository) InsertIfAbsent(ctx context.Context, role domain.Role) (domain.Role, error) {
	rec := roleModel{
		RoleID:    role.ID,
		Name:      role.Name,
		CreatedAt: role.CreatedAt,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rec)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return domain.Role{}, fmt.Errorf("%w: role %q already exists", domain.ErrConflict, role.Name)
		}
		return domain.Role{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Role{}, fmt.Errorf("%w: role %q already exists", domain.ErrConflict, role.Name)
	}
	return toDomainRole(rec), nil
}

type accountRoleRepository struct {
	db *gorm.DB
}

func (r *accountRoleRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (domain.AccountRole, error) {
	var rec accountRoleModel
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&rec).Error; err != nil {
		return domain.AccountRole{}, mapReadError(err)
	}
	return toDomainAccountRole(rec), nil
}

func (r *accountRoleRepository) Insert(ctx context.Context, assignment domain.AccountRole) (domain.AccountRole, error) {
	rec := accountRoleModel{
		AccountID: assignment.AccountID,
		RoleID:    assignment.RoleID,
		CreatedAt: assignment.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.AccountRole{}, fmt.Errorf("%w: account %s already has a role", domain.ErrConflict, assignment.AccountID)
		}
		return domain.AccountRole{}, err
	}
	return toDomainAccountRole(rec), nil
}
