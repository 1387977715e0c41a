package outbox

import (
	"context"

	"github.com/decorstudio/platform/libs/db"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Insert(ctx context.Context, q db.DBTX, rec Record) error {
	_, err := q.Exec(ctx, `
		INSERT INTO notification_outbox (event_id, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`, rec.EventID, rec.AggregateID, rec.EventType, string(rec.Payload), rec.Traceparent, rec.Tracestate)
	return err
}

// FetchUnpublished locks the oldest pending rows; concurrent publishers
// skip each other's batches.
func (r *Repository) FetchUnpublished(ctx context.Context, q db.DBTX, limit int) ([]Record, error) {
	rows, err := q.Query(ctx, `
		SELECT id, event_id::text, aggregate_id, event_type, payload::text, traceparent, tracestate, created_at
		FROM notification_outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			payload string
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.AggregateID, &rec.EventType, &payload, &rec.Traceparent, &rec.Tracestate, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Payload = []byte(payload)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repository) MarkPublished(ctx context.Context, q db.DBTX, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		UPDATE notification_outbox
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}
