package leave

import (
	"context"

	"github.com/jackc/pgx/v5"

	"staffdesk/internal/platform/db"
	"staffdesk/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
	tx db.TxBeginner
}

// NewStore binds the store to a pool; pools both query and open transactions.
func NewStore(pool interface {
	querier.Querier
	db.TxBeginner
}) *Store {
	return &Store{DB: pool, tx: pool}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx StoreAPI) error) error {
	if s.tx == nil {
		return fn(s)
	}
	return db.WithTx(ctx, s.tx, func(tx pgx.Tx) error {
		return fn(&Store{DB: tx})
	})
}
