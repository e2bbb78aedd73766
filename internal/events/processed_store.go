// Package events tracks inbound chat messages that were already handled, so
// webhook redeliveries and queue retries reply to a patient at most once.
package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ProcessedStore is the Postgres-backed dedupe ledger keyed by the chat
// platform's message id.
type ProcessedStore struct {
	pool rowExecer
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowExecer) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// MarkProcessed claims a message id. It returns false when the id was claimed
// before, in which case the caller must drop the message instead of replying.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, messageID string) (bool, error) {
	query := `
		INSERT INTO processed_events (event_id, processed_at)
		VALUES ($1, now())
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, messageID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
