package storage

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/decorstudio/platform/libs/db"
	"github.com/decorstudio/platform/services/billing-service/internal/model"
)

// Queries runs the billing SQL against a pool or a transaction.
type Queries struct {
	db db.DBTX
}

func New(conn db.DBTX) *Queries {
	return &Queries{db: conn}
}

type Store struct {
	*Queries
	pool db.Beginner
}

func NewStore(pool db.Beginner) *Store {
	return &Store{Queries: New(pool), pool: pool}
}

// Tx runs fn in a read-committed transaction. Callers take row locks with
// the ...ForUpdate queries, always quote before installments.
func (s *Store) Tx(ctx context.Context, fn func(*Queries) error) error {
	return db.InTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(New(tx))
	})
}

// InsertProviderEvent records a webhook delivery and reports false when the
// event was already recorded.
func (q *Queries) InsertProviderEvent(ctx context.Context, evt model.ProviderEvent) (bool, error) {
	var payload any = map[string]any{}
	if len(evt.Payload) > 0 {
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			return false, err
		}
	}

	tag, err := q.db.Exec(ctx, `
		INSERT INTO provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, evt.Provider, evt.ProviderEventID, evt.EventType, payload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
