// Package queue drives queued payments through hold funds, reserve
// inventory, create orders and deliver, with compensation when any step
// fails. Exactly-once processing rests on two leases: a single global poll
// lease serializing worker replicas and a short per-entry lease closing the
// race where two workers pick up the same entry.
package queue

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
	"github.com/robertarktes/payment-fulfillment/internal/inventory"
	"github.com/robertarktes/payment-fulfillment/internal/lock"
	"github.com/robertarktes/payment-fulfillment/internal/observability"
	"github.com/robertarktes/payment-fulfillment/internal/order"
	"github.com/robertarktes/payment-fulfillment/internal/wallet"
	"github.com/shopspring/decimal"
)

const (
	globalLeaseKey = "payment-queue:process"
	entryLeaseKey  = "payment:process:"
)

type Store interface {
	InsertEntry(ctx context.Context, e *domain.QueueEntry) error
	GetEntry(ctx context.Context, entryID uuid.UUID) (*domain.QueueEntry, error)
	UpdateEntry(ctx context.Context, e *domain.QueueEntry) error
	// ListEntriesByStatus returns entries oldest-first.
	ListEntriesByStatus(ctx context.Context, status domain.QueueStatus) ([]domain.QueueEntry, error)
	ListEntriesByUser(ctx context.Context, userID uuid.UUID) ([]domain.QueueEntry, error)
}

// EventSink records pipeline events for out-of-process consumers. Emission
// is best-effort; failures are logged, never fatal to the entry.
type EventSink interface {
	Emit(ctx context.Context, eventType string, aggregateID uuid.UUID, payload map[string]interface{}) error
}

// Auditor records facts an operator needs for out-of-band reconciliation,
// in particular compensation failures.
type Auditor interface {
	LogEvent(ctx context.Context, action string, userID uuid.UUID, data map[string]interface{}) error
}

// Reserver is the inventory surface the processor consumes; satisfied by
// *inventory.Service.
type Reserver interface {
	Reserve(ctx context.Context, quantities map[uuid.UUID]int, requesterID string) (*inventory.Reservation, error)
	Release(ctx context.Context, units []domain.InventoryUnit)
	MarkDelivered(ctx context.Context, unitID uuid.UUID) error
}

type Timeouts struct {
	Global time.Duration
	Entry  time.Duration
}

type Processor struct {
	store    Store
	ledger   wallet.Ledger
	inv      Reserver
	orders   *order.Builder
	locks    lock.Manager
	events   EventSink
	audit    Auditor
	timeouts Timeouts
	logger   observability.Logger
}

func NewProcessor(
	store Store,
	ledger wallet.Ledger,
	inv Reserver,
	orders *order.Builder,
	locks lock.Manager,
	events EventSink,
	audit Auditor,
	timeouts Timeouts,
	logger observability.Logger,
) *Processor {
	return &Processor{
		store:    store,
		ledger:   ledger,
		inv:      inv,
		orders:   orders,
		locks:    locks,
		events:   events,
		audit:    audit,
		timeouts: timeouts,
		logger:   logger,
	}
}

// Enqueue persists a new PENDING entry. The caller has already pre-checked
// balance and approximate stock; this only records the request.
func (p *Processor) Enqueue(ctx context.Context, userID uuid.UUID, cart []domain.CartItem, totalAmount decimal.Decimal) (uuid.UUID, error) {
	if len(cart) == 0 {
		return uuid.Nil, errors.Wrap(domain.ErrInvalidInput, "empty cart")
	}
	entry := domain.NewQueueEntry(userID, cart, totalAmount)
	if err := p.store.InsertEntry(ctx, &entry); err != nil {
		return uuid.Nil, err
	}
	p.logger.WithField("entry_id", entry.ID.String()).Info("payment enqueued")
	return entry.ID, nil
}

// Run polls for pending entries until the context is cancelled.
func (p *Processor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProcessPending(ctx); err != nil {
				p.logger.Error("queue poll failed", err)
			}
		}
	}
}

// ProcessPending runs one poll cycle: win the global lease or return
// immediately, then walk PENDING entries oldest-first. Returns how many
// entries reached a terminal state this cycle.
func (p *Processor) ProcessPending(ctx context.Context) (int, error) {
	lease := p.locks.Obtain(globalLeaseKey)
	ok, err := lease.TryAcquire(ctx, p.timeouts.Global)
	if err != nil {
		return 0, err
	}
	if !ok {
		// Another replica is polling; contention is normal backpressure.
		observability.LeaseTimeouts.WithLabelValues("global").Inc()
		return 0, nil
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			p.logger.Error("failed to release poll lease", err)
		}
	}()

	pending, err := p.store.ListEntriesByStatus(ctx, domain.QueuePending)
	if err != nil {
		return 0, err
	}
	observability.QueueDepth.Set(float64(len(pending)))

	processed := 0
	for i := range pending {
		done, err := p.processEntry(ctx, pending[i].ID)
		if err != nil {
			// processEntry converts entry failures to FAILED itself; an
			// error here is infrastructural. Keep going regardless.
			p.logger.WithField("entry_id", pending[i].ID.String()).Error("entry processing error", err)
		}
		if done {
			processed++
		}
	}
	return processed, nil
}

// processEntry drives one entry to a terminal state under its own lease.
// Returns true when the entry reached COMPLETED or FAILED in this call.
func (p *Processor) processEntry(ctx context.Context, entryID uuid.UUID) (bool, error) {
	lease := p.locks.Obtain(entryLeaseKey + entryID.String())
	ok, err := lease.TryAcquire(ctx, p.timeouts.Entry)
	if err != nil {
		return false, err
	}
	if !ok {
		// Entry stays PENDING and is retried next cycle.
		observability.LeaseTimeouts.WithLabelValues("entry").Inc()
		return false, nil
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			p.logger.WithField("entry_id", entryID.String()).Error("failed to release entry lease", err)
		}
	}()

	// Re-read under the lease: another worker may have finished this entry
	// between the scan and the acquire.
	entry, err := p.store.GetEntry(ctx, entryID)
	if err != nil {
		return false, err
	}
	if entry.Status != domain.QueuePending {
		return false, nil
	}

	start := time.Now()
	defer func() {
		observability.ProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	if err := entry.Transition(domain.QueueProcessing); err != nil {
		return false, err
	}
	now := time.Now()
	entry.ProcessedAt = &now
	if err := p.store.UpdateEntry(ctx, entry); err != nil {
		return false, err
	}

	orderCode := domain.NewOrderCode()
	if err := p.fulfill(ctx, entry, orderCode); err != nil {
		p.failEntry(ctx, entry, orderCode, err)
		return true, nil
	}

	if err := entry.Transition(domain.QueueCompleted); err != nil {
		return false, err
	}
	if err := p.store.UpdateEntry(ctx, entry); err != nil {
		return false, err
	}
	observability.EntriesProcessed.WithLabelValues("completed").Inc()
	p.emit(ctx, "payment.completed", entry.ID, map[string]interface{}{
		"entry_id":   entry.ID,
		"user_id":    entry.UserID,
		"order_code": orderCode,
		"total":      entry.TotalAmount.String(),
	})
	p.logger.WithField("entry_id", entry.ID.String()).Info("payment completed")
	return true, nil
}

// fulfill runs the hold -> reserve -> order -> deliver saga for one entry.
func (p *Processor) fulfill(ctx context.Context, entry *domain.QueueEntry, orderCode string) error {
	quantities := entry.Quantities()
	prices := entry.UnitPrices()
	requested := 0
	for _, n := range quantities {
		requested += n
	}

	var (
		holdPlaced bool
		res        *inventory.Reservation
		created    []*domain.Order
	)

	onCompErr := func(stepName string, err error) {
		p.logger.WithField("entry_id", entry.ID.String()).
			WithField("step", stepName).
			Error("compensation failed, needs reconciliation", err)
		if p.audit != nil {
			_ = p.audit.LogEvent(ctx, "compensation.failed", entry.UserID, map[string]interface{}{
				"entry_id": entry.ID,
				"step":     stepName,
				"error":    err.Error(),
			})
		}
	}

	steps := []step{
		{
			name: "hold-funds",
			run: func(ctx context.Context) error {
				_, err := p.ledger.Hold(ctx, entry.UserID, entry.TotalAmount, orderCode)
				if err == nil {
					holdPlaced = true
				}
				return err
			},
			compensate: func(ctx context.Context) error {
				if !holdPlaced {
					return nil
				}
				return p.ledger.Release(ctx, entry.UserID, orderCode)
			},
		},
		{
			name: "reserve-units",
			run: func(ctx context.Context) error {
				r, err := p.inv.Reserve(ctx, quantities, entry.UserID.String())
				if err != nil {
					if errors.Is(err, domain.ErrOutOfStock) {
						observability.ReservationShortfalls.Inc()
					}
					return err
				}
				res = r
				observability.UnitsReserved.Add(float64(r.TotalUnits()))
				return nil
			},
			compensate: func(ctx context.Context) error {
				if res != nil {
					p.inv.Release(ctx, res.Units)
				}
				return nil
			},
		},
		{
			// Defensive recheck against disagreement between the two
			// coexisting locking paths. Mismatch is an internal bug and
			// must read differently from "no stock".
			name: "verify-reserved-count",
			run: func(ctx context.Context) error {
				if res.TotalUnits() != requested {
					return errors.Wrapf(domain.ErrReservationMismatch,
						"requested %d, reserved %d", requested, res.TotalUnits())
				}
				return nil
			},
		},
		{
			name: "create-orders",
			run: func(ctx context.Context) error {
				for _, unit := range res.Units {
					o, err := p.orders.CreateOrder(ctx, order.CreateParams{
						BuyerID:         entry.UserID,
						SellerID:        unit.SellerID,
						ShopID:          unit.ShopID,
						StallID:         unit.StallID,
						ProductID:       unit.ProductID,
						InventoryUnitID: unit.ID,
						Quantity:        1,
						UnitPrice:       prices[unit.ProductID],
						PaymentMethod:   "WALLET",
						Notes:           "queued cart payment",
						OrderCode:       orderCode,
					})
					if err != nil {
						return err
					}
					created = append(created, o)
					p.emit(ctx, "order.created", o.ID, map[string]interface{}{
						"order_id":   o.ID,
						"order_code": o.OrderCode,
						"buyer_id":   o.BuyerID,
						"seller_id":  o.SellerID,
					})
				}
				return nil
			},
			compensate: func(ctx context.Context) error {
				var firstErr error
				for _, o := range created {
					if err := p.orders.UpdateStatus(ctx, o.ID, domain.OrderCancelled); err != nil && firstErr == nil {
						firstErr = err
					}
				}
				return firstErr
			},
		},
		{
			name: "deliver-units",
			run: func(ctx context.Context) error {
				for _, unit := range res.Units {
					if err := p.inv.MarkDelivered(ctx, unit.ID); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}

	return runSaga(ctx, steps, onCompErr)
}

// failEntry records the terminal FAILED state. The hold and units were
// already compensated by the saga; this only persists the outcome.
func (p *Processor) failEntry(ctx context.Context, entry *domain.QueueEntry, orderCode string, cause error) {
	entry.ErrorMessage = cause.Error()
	if err := entry.Transition(domain.QueueFailed); err != nil {
		p.logger.WithField("entry_id", entry.ID.String()).Error("cannot mark entry failed", err)
		return
	}
	if err := p.store.UpdateEntry(ctx, entry); err != nil {
		p.logger.WithField("entry_id", entry.ID.String()).Error("failed to persist FAILED entry", err)
		return
	}
	observability.EntriesProcessed.WithLabelValues("failed").Inc()
	p.emit(ctx, "payment.failed", entry.ID, map[string]interface{}{
		"entry_id":   entry.ID,
		"user_id":    entry.UserID,
		"order_code": orderCode,
		"reason":     cause.Error(),
	})
	p.logger.WithField("entry_id", entry.ID.String()).Warn("payment failed: ", cause.Error())
}

func (p *Processor) emit(ctx context.Context, eventType string, aggregateID uuid.UUID, payload map[string]interface{}) {
	if p.events == nil {
		return
	}
	if err := p.events.Emit(ctx, eventType, aggregateID, payload); err != nil {
		p.logger.WithField("event_type", eventType).Error("failed to record event", err)
	}
}

// GetStatus returns the entry for operational inspection.
func (p *Processor) GetStatus(ctx context.Context, entryID uuid.UUID) (*domain.QueueEntry, error) {
	return p.store.GetEntry(ctx, entryID)
}

// ListByUser returns all of a user's entries, any status.
func (p *Processor) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.QueueEntry, error) {
	return p.store.ListEntriesByUser(ctx, userID)
}

// ListActiveHolds exposes the user's PENDING fund holds.
func (p *Processor) ListActiveHolds(ctx context.Context, userID uuid.UUID) ([]domain.FundHold, error) {
	return p.ledger.ActiveHolds(ctx, userID)
}
