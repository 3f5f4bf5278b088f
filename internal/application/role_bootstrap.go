package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/domain"
	"github.com/viralforge/identity-service/internal/ports"
)

// BootstrapRole decides the role of a newly registered account.
//
// The first registrant on a system without an "Admin" role creates it and becomes
// administrator. Afterwards every account gets the shared "User" role, which is
// created on first use. Role creation relies on the store's unique name constraint:
// a writer that loses the race re-reads the winner's row and never becomes admin.
func BootstrapRole(ctx context.Context, roles ports.RoleRepository, now time.Time) (domain.Role, error) {
	admin, created, err := ensureRole(ctx, roles, domain.RoleAdmin, now)
	if err != nil {
		return domain.Role{}, err
	}
	if created {
		return admin, nil
	}

	user, _, err := ensureRole(ctx, roles, domain.RoleUser, now)
	if err != nil {
		return domain.Role{}, err
	}
	return user, nil
}

// ensureRole returns the named role, creating it when absent. created is true only
// for the caller whose insert won.
func ensureRole(ctx context.Context, roles ports.RoleRepository, name string, now time.Time) (role domain.Role, created bool, err error) {
	role, err = roles.FindByName(ctx, name)
	if err == nil {
		return role, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Role{}, false, fmt.Errorf("find role %q: %w", name, err)
	}

	role, err = roles.InsertIfAbsent(ctx, domain.Role{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: now,
	})
	if err == nil {
		return role, true, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return domain.Role{}, false, fmt.Errorf("create role %q: %w", name, err)
	}

	role, err = roles.FindByName(ctx, name)
	if err != nil {
		return domain.Role{}, false, fmt.Errorf("re-read role %q after conflict: %w", name, err)
	}
	return role, false, nil
}
