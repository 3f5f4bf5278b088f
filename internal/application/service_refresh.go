package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/viralforge/identity-service/internal/domain"
)

// RefreshSession exchanges a refresh token for a new token pair. The presented
// token is invalidated by the rotation; reusing it fails.
func (s *Service) RefreshSession(ctx context.Context, req RefreshRequest) Result {
	const operation = "refresh_session"
	account, tokens, err := s.refresh(ctx, req)
	if err != nil {
		return s.fail(ctx, operation, err)
	}
	s.succeed(ctx, operation, "account_id", account.ID.String())
	return Result{
		OK:           true,
		Message:      MsgTokenRefreshed,
		AccessToken:  tokens.access,
		RefreshToken: tokens.refresh,
	}
}

func (s *Service) refresh(ctx context.Context, req RefreshRequest) (domain.Account, issuedTokens, error) {
	raw := req.RefreshToken
	if raw == "" {
		return domain.Account{}, issuedTokens{}, reject(MsgModelEmpty, fmt.Errorf("%w: refresh token is required", domain.ErrInvalidInput))
	}
	presentedHash := hashToken(raw)

	session, err := s.sessions.FindByTokenHash(ctx, presentedHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Account{}, issuedTokens{}, reject(MsgInvalidRefreshToken, fmt.Errorf("refresh session lookup: %w", err))
		}
		return domain.Account{}, issuedTokens{}, fmt.Errorf("find refresh session: %w", err)
	}
	if session.Expired(s.nowFn(), s.cfg.RefreshSessionTTL) {
		return domain.Account{}, issuedTokens{}, reject(MsgRefreshExpired, fmt.Errorf("%w: account %s", domain.ErrRefreshExpired, session.AccountID))
	}

	account, err := s.accounts.FindByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Account{}, issuedTokens{}, reject(MsgUserNotFound, fmt.Errorf("%w: refresh session references missing account %s", domain.ErrIntegrity, session.AccountID))
		}
		return domain.Account{}, issuedTokens{}, fmt.Errorf("find account by id: %w", err)
	}

	role, err := s.resolveRole(ctx, account.ID)
	if err != nil {
		return domain.Account{}, issuedTokens{}, err
	}
	tokens, err := s.issueTokens(account, role)
	if err != nil {
		return domain.Account{}, issuedTokens{}, err
	}

	if err := s.sessions.Rotate(ctx, account.ID, presentedHash, hashToken(tokens.refresh), s.nowFn()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Account{}, issuedTokens{}, reject(MsgInvalidRefreshToken, fmt.Errorf("refresh token already rotated: %w", err))
		}
		return domain.Account{}, issuedTokens{}, fmt.Errorf("rotate refresh session: %w", err)
	}
	return account, tokens, nil
}

// Revoke ends the refresh session that holds the presented token.
func (s *Service) Revoke(ctx context.Context, req RevokeRequest) Result {
	const operation = "revoke_session"
	raw := req.RefreshToken
	if raw == "" {
		return s.fail(ctx, operation, reject(MsgModelEmpty, fmt.Errorf("%w: refresh token is required", domain.ErrInvalidInput)))
	}
	tokenHash := hashToken(raw)

	session, err := s.sessions.FindByTokenHash(ctx, tokenHash)
	if err == nil {
		err = s.sessions.Delete(ctx, session.AccountID, tokenHash)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.fail(ctx, operation, reject(MsgInvalidRefreshToken, fmt.Errorf("revoke refresh session: %w", err)))
		}
		return s.fail(ctx, operation, fmt.Errorf("revoke refresh session: %w", err))
	}
	s.succeed(ctx, operation, "account_id", session.AccountID.String())
	return Result{OK: true, Message: MsgSignedOut}
}
