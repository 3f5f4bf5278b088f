package postgres

import (
	"context"

	"github.com/viralforge/identity-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Accounts     ports.AccountRepository
	Roles        ports.RoleRepository
	AccountRoles ports.AccountRoleRepository
	Sessions     ports.RefreshSessionRepository
	Outbox       ports.OutboxRepository
	UnitOfWork   ports.UnitOfWork
}

func NewRepositories(db *gorm.DB) Repositories {
	stores := txStores(db)
	return Repositories{
		Accounts:     stores.Accounts,
		Roles:        stores.Roles,
		AccountRoles: stores.AccountRoles,
		Sessions:     &refreshSessionRepository{db: db},
		Outbox:       stores.Outbox,
		UnitOfWork:   &unitOfWork{db: db},
	}
}

func txStores(db *gorm.DB) ports.TxStores {
	return ports.TxStores{
		Accounts:     &accountRepository{db: db},
		Roles:        &roleRepository{db: db},
		AccountRoles: &accountRoleRepository{db: db},
		Outbox:       &outboxRepository{db: db},
	}
}

type unitOfWork struct {
	db *gorm.DB
}

// WithinTx runs fn in one database transaction; any error from fn rolls it back.
func (u *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, stores ports.TxStores) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, txStores(tx))
	})
}
