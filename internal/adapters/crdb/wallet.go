package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
	"github.com/shopspring/decimal"
)

// Ledger implements wallet.Ledger. Per-user linearizability comes from a
// FOR UPDATE lock on the wallet row: concurrent holds against one user
// serialize on that row. A partial unique index on correlation_id where
// status = 'PENDING' enforces at most one active hold per correlation id.
type Ledger struct {
	repo *Repository
}

func NewLedger(repo *Repository) *Ledger {
	return &Ledger{repo: repo}
}

func (l *Ledger) Hold(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, correlationID string) (uuid.UUID, error) {
	if amount.Sign() <= 0 {
		return uuid.Nil, errors.Wrapf(domain.ErrInvalidInput, "hold amount %s", amount)
	}

	holdID := uuid.New()
	err := l.repo.WithTx(ctx, func(tx pgx.Tx) error {
		var balance decimal.Decimal
		err := tx.QueryRow(ctx, `
			SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE
		`, userID).Scan(&balance)
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		var held decimal.Decimal
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(amount), 0) FROM fund_holds
			WHERE user_id = $1 AND status = 'PENDING'
		`, userID).Scan(&held)
		if err != nil {
			return err
		}

		if balance.Sub(held).LessThan(amount) {
			return errors.Wrapf(domain.ErrInsufficientBalance,
				"spendable %s, requested %s", balance.Sub(held), amount)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO fund_holds (id, user_id, correlation_id, amount, status, created_at)
			VALUES ($1, $2, $3, $4, 'PENDING', $5)
		`, holdID, userID, correlationID, amount, time.Now())
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == UniqueViolationCode {
			return errors.Wrapf(domain.ErrDuplicateHold, "correlation %s", correlationID)
		}
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	return holdID, nil
}

func (l *Ledger) Release(ctx context.Context, userID uuid.UUID, correlationID string) error {
	result, err := l.repo.pool.Exec(ctx, `
		UPDATE fund_holds SET status = 'RELEASED'
		WHERE user_id = $1 AND correlation_id = $2 AND status = 'PENDING'
	`, userID, correlationID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (l *Ledger) ActiveHolds(ctx context.Context, userID uuid.UUID) ([]domain.FundHold, error) {
	rows, err := l.repo.pool.Query(ctx, `
		SELECT id, user_id, correlation_id, amount, status, created_at
		FROM fund_holds WHERE user_id = $1 AND status = 'PENDING'
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []domain.FundHold
	for rows.Next() {
		var h domain.FundHold
		if err := rows.Scan(&h.ID, &h.UserID, &h.CorrelationID, &h.Amount, &h.Status, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

// CreateWallet seeds a wallet row; used by operational tooling and tests.
func (l *Ledger) CreateWallet(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	_, err := l.repo.pool.Exec(ctx, `
		INSERT INTO wallets (user_id, balance) VALUES ($1, $2)
	`, userID, balance)
	return err
}

// Spendable is the balance minus the sum of PENDING holds.
func (l *Ledger) Spendable(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var spendable decimal.Decimal
	err := l.repo.pool.QueryRow(ctx, `
		SELECT w.balance - COALESCE(SUM(h.amount), 0)
		FROM wallets w
		LEFT JOIN fund_holds h ON h.user_id = w.user_id AND h.status = 'PENDING'
		WHERE w.user_id = $1
		GROUP BY w.balance
	`, userID).Scan(&spendable)
	if err == pgx.ErrNoRows {
		return decimal.Zero, domain.ErrNotFound
	}
	return spendable, err
}
