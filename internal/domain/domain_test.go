package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
	"github.com/shopspring/decimal"
)

func TestQueueEntryTransitions(t *testing.T) {
	entry := domain.NewQueueEntry(uuid.New(), nil, decimal.Zero)

	if err := entry.Transition(domain.QueueCompleted); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("PENDING -> COMPLETED should be illegal, got %v", err)
	}
	if err := entry.Transition(domain.QueueProcessing); err != nil {
		t.Fatalf("PENDING -> PROCESSING: %v", err)
	}
	if err := entry.Transition(domain.QueueFailed); err != nil {
		t.Fatalf("PROCESSING -> FAILED: %v", err)
	}
	if !entry.Terminal() {
		t.Error("FAILED entry should be terminal")
	}
	if err := entry.Transition(domain.QueuePending); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("terminal entry must never revert, got %v", err)
	}
}

func TestFundHoldTransitions(t *testing.T) {
	hold := domain.FundHold{ID: uuid.New(), Status: domain.HoldPending}
	if err := hold.Transition(domain.HoldReleased); err != nil {
		t.Fatalf("PENDING -> RELEASED: %v", err)
	}
	if err := hold.Transition(domain.HoldCaptured); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Errorf("RELEASED -> CAPTURED should be illegal, got %v", err)
	}
}

func TestOrderTransitions(t *testing.T) {
	cases := []struct {
		from, to domain.OrderStatus
		ok       bool
	}{
		{domain.OrderPending, domain.OrderCompleted, true},
		{domain.OrderPending, domain.OrderCancelled, true},
		{domain.OrderCompleted, domain.OrderRefunded, true},
		{domain.OrderPending, domain.OrderRefunded, false},
		{domain.OrderCancelled, domain.OrderCompleted, false},
		{domain.OrderRefunded, domain.OrderPending, false},
	}
	for _, c := range cases {
		if got := domain.CanTransitionOrder(c.from, c.to); got != c.ok {
			t.Errorf("CanTransitionOrder(%s, %s) = %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestCommissionSplit(t *testing.T) {
	price := decimal.RequireFromString("150000")
	total, commission, seller := domain.CommissionSplit(price, 2, domain.DefaultCommissionRate)

	if !total.Equal(decimal.RequireFromString("300000")) {
		t.Errorf("total = %s, want 300000", total)
	}
	if !commission.Equal(decimal.RequireFromString("15000")) {
		t.Errorf("commission = %s, want 15000", commission)
	}
	if !seller.Equal(decimal.RequireFromString("285000")) {
		t.Errorf("seller = %s, want 285000", seller)
	}
	if !seller.Add(commission).Equal(total) {
		t.Error("seller + commission must equal total")
	}
}

func TestCommissionSplitRounding(t *testing.T) {
	// A rate producing a repeating fraction still reconciles exactly.
	price := decimal.RequireFromString("99.99")
	total, commission, seller := domain.CommissionSplit(price, 1, decimal.RequireFromString("3.33"))

	if commission.Exponent() < -2 {
		t.Errorf("commission %s not rounded to scale 2", commission)
	}
	if !seller.Add(commission).Equal(total) {
		t.Errorf("seller %s + commission %s != total %s", seller, commission, total)
	}
}

func TestQuantitiesAggregatesDuplicateLines(t *testing.T) {
	productA := uuid.New()
	productB := uuid.New()
	entry := domain.QueueEntry{Cart: []domain.CartItem{
		{ProductID: productA, Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
		{ProductID: productB, Quantity: 1, UnitPrice: decimal.NewFromInt(20)},
		{ProductID: productA, Quantity: 3, UnitPrice: decimal.NewFromInt(10)},
	}}

	q := entry.Quantities()
	if q[productA] != 5 || q[productB] != 1 {
		t.Errorf("quantities = %v, want {A:5 B:1}", q)
	}
}

func TestNewOrderCodeFormat(t *testing.T) {
	code := domain.NewOrderCode()
	if !strings.HasPrefix(code, "ORD_") {
		t.Errorf("order code %q missing prefix", code)
	}
	parts := strings.Split(code, "_")
	if len(parts) != 3 || len(parts[2]) != 8 {
		t.Errorf("order code %q not ORD_<millis>_<8 chars>", code)
	}
	if code == domain.NewOrderCode() {
		t.Error("order codes should not collide")
	}
}
