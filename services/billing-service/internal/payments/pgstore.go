package payments

import (
	"context"

	"github.com/decorstudio/platform/services/billing-service/internal/storage"
)

// PgStore adapts the Postgres repository to Store.
type PgStore struct {
	*storage.Store
}

func NewPgStore(s *storage.Store) PgStore {
	return PgStore{Store: s}
}

func (s PgStore) Tx(ctx context.Context, fn func(Queries) error) error {
	return s.Store.Tx(ctx, func(q *storage.Queries) error {
		return fn(q)
	})
}
