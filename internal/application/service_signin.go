package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/domain"
)

// SignIn verifies credentials and opens (or replaces) the account's refresh session.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) Result {
	const operation = "sign_in"
	account, tokens, err := s.signIn(ctx, req)
	if err != nil {
		return s.fail(ctx, operation, err)
	}
	s.succeed(ctx, operation, "account_id", account.ID.String())
	return Result{
		OK:           true,
		Message:      MsgLoginSuccess,
		AccessToken:  tokens.access,
		RefreshToken: tokens.refresh,
	}
}

func (s *Service) signIn(ctx context.Context, req SignInRequest) (domain.Account, issuedTokens, error) {
	email := domain.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return domain.Account{}, issuedTokens{}, reject(MsgModelEmpty, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput))
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if s.cfg.UnifyCredentialFailures {
				return domain.Account{}, issuedTokens{}, reject(MsgInvalidCredentials, fmt.Errorf("%w: unknown email", domain.ErrInvalidCredentials))
			}
			return domain.Account{}, issuedTokens{}, reject(MsgUserNotFound, fmt.Errorf("account lookup: %w", err))
		}
		return domain.Account{}, issuedTokens{}, fmt.Errorf("find account by email: %w", err)
	}

	ok, err := s.hasher.Verify(req.Password, account.PasswordHash)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedDigest) {
			return domain.Account{}, issuedTokens{}, fmt.Errorf("%w: stored digest of account %s: %w", domain.ErrIntegrity, account.ID, err)
		}
		return domain.Account{}, issuedTokens{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return domain.Account{}, issuedTokens{}, reject(MsgInvalidCredentials, fmt.Errorf("%w: password mismatch", domain.ErrInvalidCredentials))
	}

	role, err := s.resolveRole(ctx, account.ID)
	if err != nil {
		return domain.Account{}, issuedTokens{}, err
	}
	tokens, err := s.issueTokens(account, role)
	if err != nil {
		return domain.Account{}, issuedTokens{}, err
	}

	now := s.nowFn()
	if err := s.sessions.Upsert(ctx, domain.RefreshSession{
		AccountID: account.ID,
		TokenHash: hashToken(tokens.refresh),
		IssuedAt:  now,
		UpdatedAt: now,
	}); err != nil {
		return domain.Account{}, issuedTokens{}, fmt.Errorf("store refresh session: %w", err)
	}
	return account, tokens, nil
}

// resolveRole reads the single role assigned to accountID. A missing assignment or
// role row means registration invariants were broken and is reported as integrity failure.
func (s *Service) resolveRole(ctx context.Context, accountID uuid.UUID) (domain.Role, error) {
	assignment, err := s.accountRoles.FindByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Role{}, reject(MsgRoleNotFound, fmt.Errorf("%w: account %s has no role assignment", domain.ErrIntegrity, accountID))
		}
		return domain.Role{}, fmt.Errorf("find role assignment: %w", err)
	}

	role, err := s.roles.FindByID(ctx, assignment.RoleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Role{}, reject(MsgRoleNotFound, fmt.Errorf("%w: role %s assigned to account %s does not exist", domain.ErrIntegrity, assignment.RoleID, accountID))
		}
		return domain.Role{}, fmt.Errorf("find role: %w", err)
	}
	return role, nil
}
