package performance

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"staffdesk/internal/platform/db"
	"staffdesk/internal/platform/querier"
)

const uniqueViolation = "23505"

type Store struct {
	DB querier.Querier
	tx db.TxBeginner
}

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

func (s *Store) Checkpoint(ctx context.Context, name string, fn func() error) error {
	return db.Checkpoint(ctx, s.DB, name, fn)
}

// pooled reports whether the store queries through a pool, which allows
// concurrent reads on separate connections.
func (s *Store) pooled() bool {
	return s.tx != nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
