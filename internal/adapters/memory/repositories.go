// Package memory keeps the identity stores in process. It backs local runs with
// storage.driver=memory and the adapter tests; state is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/domain"
	"github.com/viralforge/identity-service/internal/ports"
)

type Repositories struct {
	Accounts     ports.AccountRepository
	Roles        ports.RoleRepository
	AccountRoles ports.AccountRoleRepository
	Sessions     ports.RefreshSessionRepository
	Outbox       ports.OutboxRepository
	UnitOfWork   ports.UnitOfWork
}

func NewRepositories() Repositories {
	s := &store{
		accounts:      map[uuid.UUID]domain.Account{},
		emails:        map[string]uuid.UUID{},
		roles:         map[uuid.UUID]domain.Role{},
		roleNames:     map[string]uuid.UUID{},
		accountRoles:  map[uuid.UUID]domain.AccountRole{},
		sessions:      map[uuid.UUID]domain.RefreshSession{},
		sessionTokens: map[string]uuid.UUID{},
		outbox:        map[uuid.UUID]*ports.OutboxRecord{},
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
	return Repositories{
		Accounts:     &accountRepository{s: s},
		Roles:        &roleRepository{s: s},
		AccountRoles: &accountRoleRepository{s: s},
		Sessions:     &refreshSessionRepository{s: s},
		Outbox:       &outboxRepository{s: s},
		UnitOfWork:   &unitOfWork{s: s},
	}
}

type store struct {
	// txMu serializes units of work. Writes to transactional tables outside
	// WithinTx run as single-statement units and take it too.
	txMu sync.Mutex
	mu   sync.RWMutex

	accounts      map[uuid.UUID]domain.Account
	emails        map[string]uuid.UUID
	roles         map[uuid.UUID]domain.Role
	roleNames     map[string]uuid.UUID
	accountRoles  map[uuid.UUID]domain.AccountRole
	sessions      map[uuid.UUID]domain.RefreshSession
	sessionTokens map[string]uuid.UUID
	outbox        map[uuid.UUID]*ports.OutboxRecord
	outboxOrder   []uuid.UUID

	nowFn func() time.Time
}

// txView buffers writes until the unit of work commits.
type txView struct {
	accounts     map[uuid.UUID]domain.Account
	emails       map[string]uuid.UUID
	roles        map[uuid.UUID]domain.Role
	roleNames    map[string]uuid.UUID
	accountRoles map[uuid.UUID]domain.AccountRole
	outbox       []ports.OutboxRecord
}

func newTxView() *txView {
	return &txView{
		accounts:     map[uuid.UUID]domain.Account{},
		emails:       map[string]uuid.UUID{},
		roles:        map[uuid.UUID]domain.Role{},
		roleNames:    map[string]uuid.UUID{},
		accountRoles: map[uuid.UUID]domain.AccountRole{},
	}
}

func (s *store) withinTx(ctx context.Context, fn func(ctx context.Context, tx *txView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := newTxView()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *store) commit(tx *txView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, account := range tx.accounts {
		s.accounts[id] = account
	}
	for email, id := range tx.emails {
		s.emails[email] = id
	}
	for id, role := range tx.roles {
		s.roles[id] = role
	}
	for name, id := range tx.roleNames {
		s.roleNames[name] = id
	}
	for id, assignment := range tx.accountRoles {
		s.accountRoles[id] = assignment
	}
	for i := range tx.outbox {
		rec := tx.outbox[i]
		s.outbox[rec.OutboxID] = &rec
		s.outboxOrder = append(s.outboxOrder, rec.OutboxID)
	}
}

type unitOfWork struct {
	s *store
}

// WithinTx runs fn against buffered stores and publishes its writes only when fn succeeds.
// fn must use the stores it is given; the top-level repositories would deadlock.
func (u *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, stores ports.TxStores) error) error {
	return u.s.withinTx(ctx, func(ctx context.Context, tx *txView) error {
		return fn(ctx, ports.TxStores{
			Accounts:     &accountRepository{s: u.s, tx: tx},
			Roles:        &roleRepository{s: u.s, tx: tx},
			AccountRoles: &accountRoleRepository{s: u.s, tx: tx},
			Outbox:       &outboxRepository{s: u.s, tx: tx},
		})
	})
}
