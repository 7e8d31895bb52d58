package inventory

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
)

// Legacy single-unit locking API. Earlier call sites lock one unit per
// product; every method below routes through Reserve so both paths share
// one implementation of the eligibility invariant.

// LockOne locks the single oldest eligible unit of a product. Out-of-stock
// and lease-timeout failures stay distinguishable through errors.Is.
func (s *Service) LockOne(ctx context.Context, productID uuid.UUID, requesterID string) (domain.InventoryUnit, error) {
	res, err := s.Reserve(ctx, map[uuid.UUID]int{productID: 1}, requesterID)
	if err != nil {
		return domain.InventoryUnit{}, err
	}
	return res.Units[0], nil
}

// LockMany locks one unit per listed product; a product listed twice gets
// two units. Partial success is rolled back before returning.
func (s *Service) LockMany(ctx context.Context, productIDs []uuid.UUID, requesterID string) ([]domain.InventoryUnit, error) {
	if len(productIDs) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "no products")
	}
	quantities := make(map[uuid.UUID]int, len(productIDs))
	for _, p := range productIDs {
		quantities[p]++
	}
	res, err := s.Reserve(ctx, quantities, requesterID)
	if err != nil {
		return nil, err
	}
	return res.Units, nil
}

// UnlockOne releases a single unit back into stock.
func (s *Service) UnlockOne(ctx context.Context, unitID uuid.UUID) error {
	return s.store.UnlockUnit(ctx, unitID)
}

// UnlockMany releases a batch, continuing past individual failures and
// returning the first error encountered.
func (s *Service) UnlockMany(ctx context.Context, unitIDs []uuid.UUID) error {
	var firstErr error
	for _, id := range unitIDs {
		if err := s.store.UnlockUnit(ctx, id); err != nil {
			s.logger.WithField("unit_id", id.String()).Error("failed to unlock unit", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
