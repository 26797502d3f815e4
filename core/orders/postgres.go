package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// PostgresStore persists the journal so idempotency keys survive
// restarts and status history is queryable.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Reserve(ctx context.Context, idemKey string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (idem_key, status, created_at, updated_at) VALUES ($1, $2, $3, $3)`,
		idemKey, StatusCreated, now,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) Record(ctx context.Context, o Order) error {
	if o.Status == "" {
		o.Status = StatusCreated
	}
	o.UpdatedAt = time.Now().UTC()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO orders (idem_key, trx_id, user_id, sku, product, destination, amount, status, created_at, updated_at)
		VALUES (:idem_key, :trx_id, :user_id, :sku, :product, :destination, :amount, :status, :updated_at, :updated_at)
		ON CONFLICT (idem_key) DO UPDATE SET
			trx_id      = EXCLUDED.trx_id,
			user_id     = EXCLUDED.user_id,
			sku         = EXCLUDED.sku,
			product     = EXCLUDED.product,
			destination = EXCLUDED.destination,
			amount      = EXCLUDED.amount,
			status      = EXCLUDED.status,
			updated_at  = EXCLUDED.updated_at`,
		o,
	)
	return err
}

func (s *PostgresStore) RecordStatus(ctx context.Context, trxID string, status Status) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE trx_id = $3`,
		status, now, trxID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (idem_key, trx_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (idem_key) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		"trx:"+trxID, trxID, status, now,
	)
	return err
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM orders`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}
