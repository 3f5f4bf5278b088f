package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/domain"
)

type roleRepository struct {
	s  *store
	tx *txView
}

func (r *roleRepository) FindByName(_ context.Context, name string) (domain.Role, error) {
	if r.tx != nil {
		if id, ok := r.tx.roleNames[name]; ok {
			return r.tx.roles[id], nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.roleNames[name]
	if !ok {
		return domain.Role{}, domain.ErrNotFound
	}
	return r.s.roles[id], nil
}

func (r *roleRepository) FindByID(_ context.Context, roleID uuid.UUID) (domain.Role, error) {
	if r.tx != nil {
		if role, ok := r.tx.roles[roleID]; ok {
			return role, nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	role, ok := r.s.roles[roleID]
	if !ok {
		return domain.Role{}, domain.ErrNotFound
	}
	return role, nil
}

func (r *roleRepository) InsertIfAbsent(ctx context.Context, role domain.Role) (domain.Role, error) {
	if r.tx == nil {
		var out domain.Role
		err := r.s.withinTx(ctx, func(ctx context.Context, tx *txView) error {
			var err error
			out, err = (&roleRepository{s: r.s, tx: tx}).InsertIfAbsent(ctx, role)
			return err
		})
		return out, err
	}

	if _, err := r.FindByName(ctx, role.Name); err == nil {
		return domain.Role{}, fmt.Errorf("%w: role %q already exists", domain.ErrConflict, role.Name)
	}
	r.tx.roles[role.ID] = role
	r.tx.roleNames[role.Name] = role.ID
	return role, nil
}

type accountRoleRepository struct {
	s  *store
	tx *txView
}

func (r *accountRoleRepository) FindByAccountID(_ context.Context, accountID uuid.UUID) (domain.AccountRole, error) {
	if r.tx != nil {
		if assignment, ok := r.tx.accountRoles[accountID]; ok {
			return assignment, nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	assignment, ok := r.s.accountRoles[accountID]
	if !ok {
		return domain.AccountRole{}, domain.ErrNotFound
	}
	return assignment, nil
}

func (r *accountRoleRepository) Insert(ctx context.Context, assignment domain.AccountRole) (domain.AccountRole, error) {
	if r.tx == nil {
		var out domain.AccountRole
		err := r.s.withinTx(ctx, func(ctx context.Context, tx *txView) error {
			var err error
			out, err = (&accountRoleRepository{s: r.s, tx: tx}).Insert(ctx, assignment)
			return err
		})
		return out, err
	}

	if _, err := r.FindByAccountID(ctx, assignment.AccountID); err == nil {
		return domain.AccountRole{}, fmt.Errorf("%w: account %s already has a role", domain.ErrConflict, assignment.AccountID)
	}
	r.tx.accountRoles[assignment.AccountID] = assignment
	return assignment, nil
}
