package storage

import (
	"context"

	"github.com/decorstudio/platform/libs/db"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Delivery is one row of the delivery log, keyed by notification id.
type Delivery struct {
	MessageID string
	Kind      string
	Recipient string
	Subject   string
	Status    string
	Attempts  int
	LastError string
}

type Repository struct {
	db db.DBTX
}

func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

// Record upserts d. Attempts accumulate across redeliveries.
func (r *Repository) Record(ctx context.Context, d Delivery) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO notification_deliveries (message_id, kind, recipient, subject, status, attempts, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) DO UPDATE
		SET status = EXCLUDED.status,
		    attempts = notification_deliveries.attempts + EXCLUDED.attempts,
		    last_error = EXCLUDED.last_error,
		    updated_at = now()
	`, d.MessageID, d.Kind, d.Recipient, d.Subject, d.Status, d.Attempts, d.LastError)
	return err
}

// Sent reports whether messageID was already delivered.
func (r *Repository) Sent(ctx context.Context, messageID string) (bool, error) {
	var sent bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notification_deliveries WHERE message_id = $1 AND status = 'sent'
		)
	`, messageID).Scan(&sent)
	return sent, err
}
