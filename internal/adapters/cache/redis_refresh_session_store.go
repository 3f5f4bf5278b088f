package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/viralforge/identity-service/internal/domain"
)

const (
	refreshAccountKeyPrefix = "identity:refresh:account:"
	refreshTokenKeyPrefix   = "identity:refresh:token:"

	fieldTokenHash = "token_hash"
	fieldIssuedAt  = "issued_at"
	fieldUpdatedAt = "updated_at"
)

// upsertSessionLua overwrites the account's session unconditionally and drops
// the index entry of the token it replaces.
//
//	KEYS[1] account hash, KEYS[2] token index
//	ARGV token_hash, issued_at, updated_at, ttl_ms, token key prefix, account id
var upsertSessionLua = redis.NewScript(`
local previous = redis.call('HGET', KEYS[1], 'token_hash')
if previous and previous ~= ARGV[1] then
  redis.call('DEL', ARGV[5] .. previous)
end
redis.call('HSET', KEYS[1], 'token_hash', ARGV[1], 'issued_at', ARGV[2], 'updated_at', ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
  redis.call('SET', KEYS[2], ARGV[6], 'PX', ttl)
  redis.call('PEXPIRE', KEYS[1], ttl)
else
  redis.call('SET', KEYS[2], ARGV[6])
end
return 1
`)

// RedisRefreshSessionStore keeps one hash per account plus a token-fingerprint
// index. Sign-in writes are last-writer-wins; rotation and deletion run under
// WATCH on the account key so only one caller can consume a given token.
type RedisRefreshSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRefreshSessionStore builds the store. A positive ttl also expires the keys.
func NewRedisRefreshSessionStore(client *redis.Client, ttl time.Duration) *RedisRefreshSessionStore {
	return &RedisRefreshSessionStore{client: client, ttl: ttl}
}

func accountKey(accountID uuid.UUID) string { return refreshAccountKeyPrefix + accountID.String() }

func tokenKey(tokenHash string) string { return refreshTokenKeyPrefix + tokenHash }

func (s *RedisRefreshSessionStore) FindByAccountID(ctx context.Context, accountID uuid.UUID) (domain.RefreshSession, error) {
	fields, err := s.client.HGetAll(ctx, accountKey(accountID)).Result()
	if err != nil {
		return domain.RefreshSession{}, err
	}
	return decodeSession(accountID, fields)
}

func (s *RedisRefreshSessionStore) FindByTokenHash(ctx context.Context, tokenHash string) (domain.RefreshSession, error) {
	rawID, err := s.client.Get(ctx, tokenKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.RefreshSession{}, domain.ErrNotFound
		}
		return domain.RefreshSession{}, err
	}
	accountID, err := uuid.Parse(rawID)
	if err != nil {
		return domain.RefreshSession{}, fmt.Errorf("parse indexed account id: %w", err)
	}
	session, err := s.FindByAccountID(ctx, accountID)
	if err != nil {
		return domain.RefreshSession{}, err
	}
	// the index can briefly outlive a rotation
	if session.TokenHash != tokenHash {
		return domain.RefreshSession{}, domain.ErrNotFound
	}
	return session, nil
}

func (s *RedisRefreshSessionStore) Upsert(ctx context.Context, session domain.RefreshSession) error {
	_, err := upsertSessionLua.Run(ctx, s.client,
		[]string{accountKey(session.AccountID), tokenKey(session.TokenHash)},
		session.TokenHash,
		session.IssuedAt.UTC().Format(time.RFC3339Nano),
		session.UpdatedAt.UTC().Format(time.RFC3339Nano),
		s.ttl.Milliseconds(),
		refreshTokenKeyPrefix,
		session.AccountID.String(),
	).Result()
	if err != nil {
		return fmt.Errorf("upsert refresh session: %w", err)
	}
	return nil
}

func (s *RedisRefreshSessionStore) Rotate(ctx context.Context, accountID uuid.UUID, oldHash, newHash string, at time.Time) error {
	key := accountKey(accountID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		current, err := decodeSession(accountID, fields)
		if err != nil {
			return err
		}
		if current.TokenHash != oldHash {
			return domain.ErrNotFound
		}
		current.TokenHash = newHash
		current.UpdatedAt = at
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, tokenKey(oldHash))
			s.writeSession(ctx, pipe, current)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrNotFound
	}
	return err
}

func (s *RedisRefreshSessionStore) Delete(ctx context.Context, accountID uuid.UUID, tokenHash string) error {
	key := accountKey(accountID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldTokenHash).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrNotFound
			}
			return err
		}
		if current != tokenHash {
			return domain.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key, tokenKey(tokenHash))
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrNotFound
	}
	return err
}

func (s *RedisRefreshSessionStore) writeSession(ctx context.Context, pipe redis.Pipeliner, session domain.RefreshSession) {
	key := accountKey(session.AccountID)
	pipe.HSet(ctx, key,
		fieldTokenHash, session.TokenHash,
		fieldIssuedAt, session.IssuedAt.UTC().Format(time.RFC3339Nano),
		fieldUpdatedAt, session.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	pipe.Set(ctx, tokenKey(session.TokenHash), session.AccountID.String(), s.ttl)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

func decodeSession(accountID uuid.UUID, fields map[string]string) (domain.RefreshSession, error) {
	tokenHash := fields[fieldTokenHash]
	if tokenHash == "" {
		return domain.RefreshSession{}, domain.ErrNotFound
	}
	issuedAt, err := time.Parse(time.RFC3339Nano, fields[fieldIssuedAt])
	if err != nil {
		return domain.RefreshSession{}, fmt.Errorf("parse issued_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt])
	if err != nil {
		return domain.RefreshSession{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return domain.RefreshSession{
		AccountID: accountID,
		TokenHash: tokenHash,
		IssuedAt:  issuedAt,
		UpdatedAt: updatedAt,
	}, nil
}
