package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/domain"
)

type refreshSessionRepository struct {
	s *store
}

func (r *refreshSessionRepository) FindByAccountID(_ context.Context, accountID uuid.UUID) (domain.RefreshSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	session, ok := r.s.sessions[accountID]
	if !ok {
		return domain.RefreshSession{}, domain.ErrNotFound
	}
	return session, nil
}

func (r *refreshSessionRepository) FindByTokenHash(_ context.Context, tokenHash string) (domain.RefreshSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	accountID, ok := r.s.sessionTokens[tokenHash]
	if !ok {
		return domain.RefreshSession{}, domain.ErrNotFound
	}
	return r.s.sessions[accountID], nil
}

func (r *refreshSessionRepository) Upsert(_ context.Context, session domain.RefreshSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if owner, ok := r.s.sessionTokens[session.TokenHash]; ok && owner != session.AccountID {
		return fmt.Errorf("%w: refresh token already bound", domain.ErrConflict)
	}
	if existing, ok := r.s.sessions[session.AccountID]; ok {
		delete(r.s.sessionTokens, existing.TokenHash)
	}
	r.s.sessions[session.AccountID] = session
	r.s.sessionTokens[session.TokenHash] = session.AccountID
	return nil
}

func (r *refreshSessionRepository) Rotate(_ context.Context, accountID uuid.UUID, oldHash, newHash string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[accountID]
	if !ok || session.TokenHash != oldHash {
		return domain.ErrNotFound
	}
	if _, taken := r.s.sessionTokens[newHash]; taken {
		return fmt.Errorf("%w: refresh token already bound", domain.ErrConflict)
	}
	delete(r.s.sessionTokens, oldHash)
	session.TokenHash = newHash
	session.UpdatedAt = at
	r.s.sessions[accountID] = session
	r.s.sessionTokens[newHash] = accountID
	return nil
}

func (r *refreshSessionRepository) Delete(_ context.Context, accountID uuid.UUID, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[accountID]
	if !ok || session.TokenHash != tokenHash {
		return domain.ErrNotFound
	}
	delete(r.s.sessions, accountID)
	delete(r.s.sessionTokens, tokenHash)
	return nil
}
