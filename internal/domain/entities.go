package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is one line of a checkout cart. The same product may appear on
// several lines; the processor aggregates quantities before reserving.
type CartItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// QueueEntry is a queued payment request. Entries are never deleted; they
// form the audit trail of every checkout attempt.
type QueueEntry struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Cart         []CartItem
	TotalAmount  decimal.Decimal
	Status       QueueStatus
	ErrorMessage string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

func NewQueueEntry(userID uuid.UUID, cart []CartItem, totalAmount decimal.Decimal) QueueEntry {
	return QueueEntry{
		ID:          uuid.New(),
		UserID:      userID,
		Cart:        cart,
		TotalAmount: totalAmount,
		Status:      QueuePending,
		CreatedAt:   time.Now(),
	}
}

// Quantities collapses the cart into per-product totals.
func (e QueueEntry) Quantities() map[uuid.UUID]int {
	q := make(map[uuid.UUID]int, len(e.Cart))
	for _, item := range e.Cart {
		q[item.ProductID] += item.Quantity
	}
	return q
}

// UnitPrices maps each product to its cart unit price.
func (e QueueEntry) UnitPrices() map[uuid.UUID]decimal.Decimal {
	p := make(map[uuid.UUID]decimal.Decimal, len(e.Cart))
	for _, item := range e.Cart {
		if _, ok := p[item.ProductID]; !ok {
			p[item.ProductID] = item.UnitPrice
		}
	}
	return p
}

// FundHold is a provisional reservation of funds against a user's balance.
// At most one PENDING hold exists per correlation id.
type FundHold struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	CorrelationID string
	Amount        decimal.Decimal
	Status        HoldStatus
	CreatedAt     time.Time
}

// InventoryUnit is one saleable item instance. It is eligible for
// reservation iff it is neither locked nor consumed.
type InventoryUnit struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	SellerID  uuid.UUID
	ShopID    uuid.UUID
	StallID   uuid.UUID
	Locked    bool
	LockedBy  string
	LockedAt  *time.Time
	Consumed  bool
	Payload   string
	CreatedAt time.Time
}

func (u InventoryUnit) Eligible() bool {
	return !u.Locked && !u.Consumed
}

// Order records the sale of exactly one inventory unit. Immutable except
// for status.
type Order struct {
	ID               uuid.UUID
	BuyerID          uuid.UUID
	SellerID         uuid.UUID
	ShopID           uuid.UUID
	StallID          uuid.UUID
	ProductID        uuid.UUID
	InventoryUnitID  uuid.UUID
	Quantity         int
	UnitPrice        decimal.Decimal
	TotalAmount      decimal.Decimal
	CommissionRate   decimal.Decimal
	CommissionAmount decimal.Decimal
	SellerAmount     decimal.Decimal
	Status           OrderStatus
	PaymentMethod    string
	OrderCode        string
	Notes            string
	CreatedAt        time.Time
}
