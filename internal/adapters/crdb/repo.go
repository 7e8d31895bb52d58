package crdb

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NewPool opens a pgx pool with the shopspring decimal codec registered, so
// NUMERIC columns scan straight into decimal.Decimal.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) InsertEntry(ctx context.Context, e *domain.QueueEntry) error {
	cart, err := json.Marshal(e.Cart)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO payment_queue (id, user_id, cart_data, total_amount, status, error_message, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.UserID, cart, e.TotalAmount, e.Status, e.ErrorMessage, e.CreatedAt, e.ProcessedAt)
	return err
}

func (r *Repository) GetEntry(ctx context.Context, entryID uuid.UUID) (*domain.QueueEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, cart_data, total_amount, status, error_message, created_at, processed_at
		FROM payment_queue WHERE id = $1
	`, entryID)
	return scanEntry(row)
}

// UpdateEntry persists status, error message and processed time. The write
// is conditional on the stored status still allowing the transition, so a
// stale worker cannot revert a terminal entry.
func (r *Repository) UpdateEntry(ctx context.Context, e *domain.QueueEntry) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE payment_queue
		SET status = $2, error_message = $3, processed_at = $4
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED')
	`, e.ID, e.Status, e.ErrorMessage, e.ProcessedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *Repository) ListEntriesByStatus(ctx context.Context, status domain.QueueStatus) ([]domain.QueueEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, cart_data, total_amount, status, error_message, created_at, processed_at
		FROM payment_queue WHERE status = $1 ORDER BY created_at ASC
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *Repository) ListEntriesByUser(ctx context.Context, userID uuid.UUID) ([]domain.QueueEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, cart_data, total_amount, status, error_message, created_at, processed_at
		FROM payment_queue WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntry(row pgx.Row) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	var cart []byte
	err := row.Scan(&e.ID, &e.UserID, &cart, &e.TotalAmount, &e.Status, &e.ErrorMessage, &e.CreatedAt, &e.ProcessedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cart, &e.Cart); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEntries(rows pgx.Rows) ([]domain.QueueEntry, error) {
	var entries []domain.QueueEntry
	for rows.Next() {
		var e domain.QueueEntry
		var cart []byte
		if err := rows.Scan(&e.ID, &e.UserID, &cart, &e.TotalAmount, &e.Status, &e.ErrorMessage, &e.CreatedAt, &e.ProcessedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(cart, &e.Cart); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
