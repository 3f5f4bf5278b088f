package memory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-service/internal/ports"
)

type outboxRepository struct {
	s  *store
	tx *txView
}

func (r *outboxRepository) Enqueue(ctx context.Context, event ports.OutboxEvent) error {
	if r.tx == nil {
		return r.s.withinTx(ctx, func(ctx context.Context, tx *txView) error {
			return (&outboxRepository{s: r.s, tx: tx}).Enqueue(ctx, event)
		})
	}
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	r.tx.outbox = append(r.tx.outbox, ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      append([]byte(nil), payload...),
		CreatedAt:    event.OccurredAt,
	})
	return nil
}

func (r *outboxRepository) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	if claimToken == "" {
		return nil, errors.New("claim token is required")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.nowFn()
	out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range r.s.outboxOrder {
		if len(out) == limit {
			break
		}
		rec := r.s.outbox[id]
		if rec.PublishedAt != nil || rec.DeadLetteredAt != nil {
			continue
		}
		if rec.ClaimUntil != nil && !rec.ClaimUntil.Before(now) {
			continue
		}
		token, until := claimToken, claimUntil
		rec.ClaimToken = &token
		rec.ClaimUntil = &until
		out = append(out, *rec)
	}
	return out, nil
}

func (r *outboxRepository) MarkPublished(_ context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	r.releaseClaim(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		rec.PublishedAt = &at
	})
	return nil
}

func (r *outboxRepository) MarkFailed(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	r.releaseClaim(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		rec.RetryCount++
		rec.LastError = &errMsg
		rec.LastErrorAt = &at
	})
	return nil
}

func (r *outboxRepository) MarkDeadLettered(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	r.releaseClaim(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		rec.RetryCount++
		rec.LastError = &errMsg
		rec.LastErrorAt = &at
		rec.DeadLetteredAt = &at
	})
	return nil
}

// releaseClaim applies update only while claimToken still owns the record.
func (r *outboxRepository) releaseClaim(outboxID uuid.UUID, claimToken string, update func(rec *ports.OutboxRecord)) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.outbox[outboxID]
	if !ok || rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
		return
	}
	update(rec)
	rec.ClaimToken = nil
	rec.ClaimUntil = nil
}
