// Package wallet declares the fund-ledger collaborator. Hold and release
// must be linearizable per user; the crdb adapter provides that with a
// per-user row lock.
package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
	"github.com/shopspring/decimal"
)

type Ledger interface {
	// Hold places a PENDING hold for amount against the user's spendable
	// balance, tagged with the correlation id. Fails with
	// domain.ErrInsufficientBalance if spendable < amount and with
	// domain.ErrDuplicateHold if a PENDING hold for the correlation id
	// already exists.
	Hold(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, correlationID string) (uuid.UUID, error)

	// Release flips the user's PENDING hold for the correlation id to
	// RELEASED, restoring spendable balance.
	Release(ctx context.Context, userID uuid.UUID, correlationID string) error

	// ActiveHolds lists the user's PENDING holds.
	ActiveHolds(ctx context.Context, userID uuid.UUID) ([]domain.FundHold, error)
}
