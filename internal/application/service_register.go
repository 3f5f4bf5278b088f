package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/domain"
	"github.com/viralforge/identity-service/internal/ports"
)

type accountRegisteredEvent struct {
	AccountID    string    `json:"account_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Register creates an account and assigns its bootstrap role. It never issues tokens.
func (s *Service) Register(ctx context.Context, req RegisterRequest) Result {
	const operation = "register"
	account, role, err := s.register(ctx, req)
	if err != nil {
		return s.fail(ctx, operation, err)
	}
	s.succeed(ctx, operation, "account_id", account.ID.String(), "role", role.Name)
	return Result{OK: true, Message: MsgAccountCreated}
}

func (s *Service) register(ctx context.Context, req RegisterRequest) (domain.Account, domain.Role, error) {
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return domain.Account{}, domain.Role{}, reject(MsgModelEmpty, fmt.Errorf("%w: full name, email and password are required", domain.ErrInvalidInput))
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.Account{}, domain.Role{}, reject(MsgInvalidEmail, err)
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		return domain.Account{}, domain.Role{}, reject(MsgPasswordMismatch, fmt.Errorf("%w: password confirmation does not match", domain.ErrInvalidInput))
	}

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return domain.Account{}, domain.Role{}, reject(MsgAlreadyRegistered, fmt.Errorf("%w: email already registered", domain.ErrConflict))
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Account{}, domain.Role{}, fmt.Errorf("find account by email: %w", err)
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		return domain.Account{}, domain.Role{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	account := domain.Account{
		ID:           uuid.New(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: digest,
		CreatedAt:    now,
	}

	var role domain.Role
	err = s.uow.WithinTx(ctx, func(ctx context.Context, stores ports.TxStores) error {
		created, err := stores.Accounts.Insert(ctx, account)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return reject(MsgAlreadyRegistered, err)
			}
			return fmt.Errorf("insert account: %w", err)
		}
		account = created

		role, err = BootstrapRole(ctx, stores.Roles, now)
		if err != nil {
			return err
		}
		if _, err := stores.AccountRoles.Insert(ctx, domain.AccountRole{
			AccountID: account.ID,
			RoleID:    role.ID,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("assign role: %w", err)
		}

		payload, err := json.Marshal(accountRegisteredEvent{
			AccountID:    account.ID.String(),
			Email:        account.Email,
			FullName:     account.FullName,
			Role:         role.Name,
			RegisteredAt: now,
		})
		if err != nil {
			return fmt.Errorf("encode registration event: %w", err)
		}
		if err := stores.Outbox.Enqueue(ctx, ports.OutboxEvent{
			EventID:      uuid.New(),
			EventType:    domain.EventAccountRegistered,
			PartitionKey: account.ID.String(),
			Payload:      payload,
			OccurredAt:   now,
		}); err != nil {
			return fmt.Errorf("enqueue registration event: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Account{}, domain.Role{}, err
	}
	return account, role, nil
}
