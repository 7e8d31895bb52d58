package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
)

func (r *Repository) SelectEligible(ctx context.Context, productID uuid.UUID, limit int) ([]domain.InventoryUnit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, seller_id, shop_id, stall_id, locked, locked_by, locked_at, consumed, payload, created_at
		FROM inventory_units
		WHERE product_id = $1 AND NOT locked AND NOT consumed
		ORDER BY created_at ASC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []domain.InventoryUnit
	for rows.Next() {
		var u domain.InventoryUnit
		if err := rows.Scan(&u.ID, &u.ProductID, &u.SellerID, &u.ShopID, &u.StallID,
			&u.Locked, &u.LockedBy, &u.LockedAt, &u.Consumed, &u.Payload, &u.CreatedAt); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// LockUnit flips locked only when the unit is still eligible. Zero rows
// affected means something else grabbed it despite the product lease.
func (r *Repository) LockUnit(ctx context.Context, unitID uuid.UUID, lockedBy string, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE inventory_units
		SET locked = true, locked_by = $2, locked_at = $3
		WHERE id = $1 AND NOT locked AND NOT consumed
	`, unitID, lockedBy, at)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *Repository) UnlockUnit(ctx context.Context, unitID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE inventory_units
		SET locked = false, locked_by = '', locked_at = NULL
		WHERE id = $1 AND locked AND NOT consumed
	`, unitID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// ConsumeUnit marks delivery. Consumption requires the unit to be locked:
// only a holder of the reservation may consume.
func (r *Repository) ConsumeUnit(ctx context.Context, unitID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE inventory_units
		SET consumed = true
		WHERE id = $1 AND locked AND NOT consumed
	`, unitID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// InsertUnit stocks a unit. Stocking happens at seller onboarding, outside
// the pipeline; this exists for operational tooling and tests.
func (r *Repository) InsertUnit(ctx context.Context, u domain.InventoryUnit) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inventory_units (id, product_id, seller_id, shop_id, stall_id, locked, locked_by, locked_at, consumed, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.ProductID, u.SellerID, u.ShopID, u.StallID, u.Locked, u.LockedBy, u.LockedAt, u.Consumed, u.Payload, u.CreatedAt)
	return err
}
