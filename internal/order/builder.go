// Package order builds and persists orders. It performs no locking: all
// exclusivity over the referenced inventory unit was established by the
// caller before CreateOrder runs.
package order

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
	"github.com/robertarktes/payment-fulfillment/internal/observability"
	"github.com/shopspring/decimal"
)

type Store interface {
	InsertOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	// UpdateOrderStatus overwrites the status only when the transition is
	// legal; the builder checks legality before calling.
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) error
	ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]domain.Order, error)
	ListOrdersByCode(ctx context.Context, orderCode string) ([]domain.Order, error)
}

// RateSource resolves a stall's commission rate in percent.
type RateSource interface {
	CommissionRate(ctx context.Context, stallID uuid.UUID) (decimal.Decimal, error)
}

type CreateParams struct {
	BuyerID         uuid.UUID
	SellerID        uuid.UUID
	ShopID          uuid.UUID
	StallID         uuid.UUID
	ProductID       uuid.UUID
	InventoryUnitID uuid.UUID
	Quantity        int
	UnitPrice       decimal.Decimal
	PaymentMethod   string
	Notes           string
	// OrderCode groups multiple units from one checkout. Empty means
	// generate a fresh one.
	OrderCode string
}

type Builder struct {
	store  Store
	rates  RateSource
	logger observability.Logger
}

func NewBuilder(store Store, rates RateSource, logger observability.Logger) *Builder {
	return &Builder{store: store, rates: rates, logger: logger}
}

// CreateOrder computes the commission split and inserts a single PENDING
// order. A missing or failing rate lookup falls back to the default rate
// rather than blocking checkout.
func (b *Builder) CreateOrder(ctx context.Context, p CreateParams) (*domain.Order, error) {
	if p.Quantity <= 0 {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "quantity %d", p.Quantity)
	}

	rate := b.commissionRate(ctx, p.StallID)
	total, commission, seller := domain.CommissionSplit(p.UnitPrice, p.Quantity, rate)

	code := p.OrderCode
	if code == "" {
		code = domain.NewOrderCode()
	}

	o := &domain.Order{
		ID:               uuid.New(),
		BuyerID:          p.BuyerID,
		SellerID:         p.SellerID,
		ShopID:           p.ShopID,
		StallID:          p.StallID,
		ProductID:        p.ProductID,
		InventoryUnitID:  p.InventoryUnitID,
		Quantity:         p.Quantity,
		UnitPrice:        p.UnitPrice,
		TotalAmount:      total,
		CommissionRate:   rate,
		CommissionAmount: commission,
		SellerAmount:     seller,
		Status:           domain.OrderPending,
		PaymentMethod:    p.PaymentMethod,
		OrderCode:        code,
		Notes:            p.Notes,
		CreatedAt:        time.Now(),
	}

	if err := b.store.InsertOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (b *Builder) commissionRate(ctx context.Context, stallID uuid.UUID) decimal.Decimal {
	rate, err := b.rates.CommissionRate(ctx, stallID)
	if err != nil {
		b.logger.WithField("stall_id", stallID.String()).Warn("commission rate lookup failed, using default", err)
		return domain.DefaultCommissionRate
	}
	return rate
}

// UpdateStatus moves an order through its status table. Illegal moves are
// rejected with domain.ErrIllegalTransition.
func (b *Builder) UpdateStatus(ctx context.Context, orderID uuid.UUID, next domain.OrderStatus) error {
	o, err := b.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !domain.CanTransitionOrder(o.Status, next) {
		return errors.Wrapf(domain.ErrIllegalTransition, "order %s: %s -> %s", orderID, o.Status, next)
	}
	return b.store.UpdateOrderStatus(ctx, orderID, next)
}

func (b *Builder) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return b.store.GetOrder(ctx, orderID)
}

func (b *Builder) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]domain.Order, error) {
	return b.store.ListOrdersByBuyer(ctx, buyerID)
}

func (b *Builder) ListByCode(ctx context.Context, orderCode string) ([]domain.Order, error) {
	return b.store.ListOrdersByCode(ctx, orderCode)
}
