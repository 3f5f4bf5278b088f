package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/domain"
)

type accountRepository struct {
	s  *store
	tx *txView
}

func (r *accountRepository) FindByEmail(_ context.Context, email string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if r.tx != nil {
		if id, ok := r.tx.emails[email]; ok {
			return r.tx.accounts[id], nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.emails[email]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return r.s.accounts[id], nil
}

func (r *accountRepository) FindByID(_ context.Context, accountID uuid.UUID) (domain.Account, error) {
	if r.tx != nil {
		if account, ok := r.tx.accounts[accountID]; ok {
			return account, nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	account, ok := r.s.accounts[accountID]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return account, nil
}

func (r *accountRepository) Insert(ctx context.Context, account domain.Account) (domain.Account, error) {
	if r.tx == nil {
		var out domain.Account
		err := r.s.withinTx(ctx, func(ctx context.Context, tx *txView) error {
			var err error
			out, err = (&accountRepository{s: r.s, tx: tx}).Insert(ctx, account)
			return err
		})
		return out, err
	}

	email := domain.NormalizeEmail(account.Email)
	if _, err := r.FindByEmail(ctx, email); err == nil {
		return domain.Account{}, fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}
	if _, err := r.FindByID(ctx, account.ID); err == nil {
		return domain.Account{}, fmt.Errorf("%w: account %s already exists", domain.ErrConflict, account.ID)
	}
	r.tx.accounts[account.ID] = account
	r.tx.emails[email] = account.ID
	return account, nil
}
