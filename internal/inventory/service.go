// Package inventory reserves saleable units against concurrent buyers. All
// call sites, including the legacy one-unit-per-product API, go through the
// same quantity-parameterized reservation so the locked-xor-available
// invariant lives in exactly one place.
package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
	"github.com/robertarktes/payment-fulfillment/internal/lock"
	"github.com/robertarktes/payment-fulfillment/internal/observability"
)

// Store is the durable-store surface the service needs. Conditional writes
// return domain.ErrConflict when the unit is no longer in the expected state.
type Store interface {
	// SelectEligible returns up to limit unlocked, unconsumed units for the
	// product, oldest first.
	SelectEligible(ctx context.Context, productID uuid.UUID, limit int) ([]domain.InventoryUnit, error)
	LockUnit(ctx context.Context, unitID uuid.UUID, lockedBy string, at time.Time) error
	UnlockUnit(ctx context.Context, unitID uuid.UUID) error
	ConsumeUnit(ctx context.Context, unitID uuid.UUID) error
}

// Reservation holds the units locked by one successful Reserve call.
type Reservation struct {
	Units []domain.InventoryUnit
}

// TotalUnits is the number of units locked across all products.
func (r *Reservation) TotalUnits() int {
	return len(r.Units)
}

type Service struct {
	store        Store
	locks        lock.Manager
	leaseTimeout time.Duration
	logger       observability.Logger
}

func NewService(store Store, locks lock.Manager, leaseTimeout time.Duration, logger observability.Logger) *Service {
	return &Service{store: store, locks: locks, leaseTimeout: leaseTimeout, logger: logger}
}

func productLeaseKey(productID uuid.UUID) string {
	return "warehouse:lock:" + productID.String()
}

// Reserve locks exactly quantities[p] eligible units for every product p,
// oldest-created first, all-or-nothing. On any shortfall or lease timeout
// every unit locked so far is released and the error reports which product
// fell short. Products are visited in sorted id order so two carts sharing
// products never deadlock on each other's leases.
func (s *Service) Reserve(ctx context.Context, quantities map[uuid.UUID]int, requesterID string) (*Reservation, error) {
	products := make([]uuid.UUID, 0, len(quantities))
	for p, n := range quantities {
		if n <= 0 {
			return nil, errors.Wrapf(domain.ErrInvalidInput, "quantity %d for product %s", n, p)
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].String() < products[j].String() })

	res := &Reservation{}
	for _, productID := range products {
		locked, err := s.reserveProduct(ctx, productID, quantities[productID], requesterID)
		if err != nil {
			s.Release(ctx, res.Units)
			return nil, err
		}
		res.Units = append(res.Units, locked...)
	}
	return res, nil
}

func (s *Service) reserveProduct(ctx context.Context, productID uuid.UUID, quantity int, requesterID string) ([]domain.InventoryUnit, error) {
	lease := s.locks.Obtain(productLeaseKey(productID))
	ok, err := lease.TryAcquire(ctx, s.leaseTimeout)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(domain.ErrLockTimeout, "product %s", productID)
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			s.logger.WithField("product_id", productID.String()).Error("failed to release product lease", err)
		}
	}()

	candidates, err := s.store.SelectEligible(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}
	if len(candidates) < quantity {
		return nil, errors.Wrapf(domain.ErrOutOfStock,
			"product %s: requested %d, available %d", productID, quantity, len(candidates))
	}
	candidates = candidates[:quantity]

	now := time.Now()
	locked := make([]domain.InventoryUnit, 0, quantity)
	for _, unit := range candidates {
		if err := s.store.LockUnit(ctx, unit.ID, requesterID, now); err != nil {
			// A unit slipping away under the lease means the store and
			// lease disagree; back out this product too.
			s.Release(ctx, locked)
			return nil, err
		}
		unit.Locked = true
		unit.LockedBy = requesterID
		unit.LockedAt = &now
		locked = append(locked, unit)
	}
	return locked, nil
}

// Release unlocks units best-effort. Individual failures are logged and do
// not stop the rest of the batch.
func (s *Service) Release(ctx context.Context, units []domain.InventoryUnit) {
	for _, unit := range units {
		if err := s.store.UnlockUnit(ctx, unit.ID); err != nil {
			s.logger.WithField("unit_id", unit.ID.String()).Error("failed to unlock unit", err)
			observability.CompensationFailures.Inc()
		}
	}
}

// MarkDelivered flips the consumed flag. Consumption is final: a consumed
// unit is never unlocked back into stock.
func (s *Service) MarkDelivered(ctx context.Context, unitID uuid.UUID) error {
	return s.store.ConsumeUnit(ctx, unitID)
}
