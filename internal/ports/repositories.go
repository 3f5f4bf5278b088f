package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/domain"
)

// AccountRepository is the Account Directory. Email lookups use the normalized form.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.Account, error)
	FindByID(ctx context.Context, accountID uuid.UUID) (domain.Account, error)
	// Insert returns domain.ErrConflict when the email is already registered.
	Insert(ctx context.Context, account domain.Account) (domain.Account, error)
}

type RoleRepository interface {
	FindByName(ctx context.Context, name string) (domain.Role, error)
	FindByID(ctx context.Context, roleID uuid.UUID) (domain.Role, error)
	// InsertIfAbsent creates the role atomically and returns domain.ErrConflict
	// when a role with the same name already exists.
	InsertIfAbsent(ctx context.Context, role domain.Role) (domain.Role, error)
}

type AccountRoleRepository interface {
	FindByAccountID(ctx context.Context, accountID uuid.UUID) (domain.AccountRole, error)
	Insert(ctx context.Context, assignment domain.AccountRole) (domain.AccountRole, error)
}

// RefreshSessionRepository stores at most one session per account.
type RefreshSessionRepository interface {
	FindByAccountID(ctx context.Context, accountID uuid.UUID) (domain.RefreshSession, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (domain.RefreshSession, error)
	// Upsert inserts the session or overwrites the token of the existing row.
	Upsert(ctx context.Context, session domain.RefreshSession) error
	// Rotate swaps oldHash for newHash only if the row still holds oldHash.
	// It returns domain.ErrNotFound when the compare fails.
	Rotate(ctx context.Context, accountID uuid.UUID, oldHash, newHash string, at time.Time) error
	Delete(ctx context.Context, accountID uuid.UUID, tokenHash string) error
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}

// TxStores are the repositories bound to one unit of work.
type TxStores struct {
	Accounts     AccountRepository
	Roles        RoleRepository
	AccountRoles AccountRoleRepository
	Outbox       OutboxRepository
}

// UnitOfWork runs fn atomically. Returning an error from fn rolls back every write made through stores.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error
}
