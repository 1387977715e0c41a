package booking

import (
	"context"

	"github.com/decorstudio/platform/services/booking-service/internal/storage"
)

// PgStore adapts the Postgres repository to Store.
type PgStore struct {
	*storage.Store
}

func NewPgStore(s *storage.Store) PgStore {
	return PgStore{Store: s}
}

func (s PgStore) Serializable(ctx context.Context, fn func(Tx) error) error {
	return s.Store.Serializable(ctx, func(q *storage.Queries) error {
		return fn(q)
	})
}
