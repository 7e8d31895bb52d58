package domain

import "github.com/cockroachdb/errors"

type QueueStatus string

const (
	QueuePending    QueueStatus = "PENDING"
	QueueProcessing QueueStatus = "PROCESSING"
	QueueCompleted  QueueStatus = "COMPLETED"
	QueueFailed     QueueStatus = "FAILED"
)

var queueTransitions = map[QueueStatus][]QueueStatus{
	QueuePending:    {QueueProcessing},
	QueueProcessing: {QueueCompleted, QueueFailed},
}

// Transition advances the entry status. Statuses only move forward:
// PENDING -> PROCESSING -> {COMPLETED|FAILED}.
func (e *QueueEntry) Transition(next QueueStatus) error {
	for _, allowed := range queueTransitions[e.Status] {
		if allowed == next {
			e.Status = next
			return nil
		}
	}
	return errors.Wrapf(ErrIllegalTransition, "queue entry %s: %s -> %s", e.ID, e.Status, next)
}

// Terminal reports whether the entry will never be processed again.
func (e QueueEntry) Terminal() bool {
	return e.Status == QueueCompleted || e.Status == QueueFailed
}

type HoldStatus string

const (
	HoldPending  HoldStatus = "PENDING"
	HoldReleased HoldStatus = "RELEASED"
	HoldCaptured HoldStatus = "CAPTURED"
)

func (h *FundHold) Transition(next HoldStatus) error {
	if h.Status == HoldPending && (next == HoldReleased || next == HoldCaptured) {
		h.Status = next
		return nil
	}
	return errors.Wrapf(ErrIllegalTransition, "fund hold %s: %s -> %s", h.ID, h.Status, next)
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRefunded  OrderStatus = "REFUNDED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderCompleted, OrderCancelled},
	OrderCompleted: {OrderRefunded},
}

func (o *Order) Transition(next OrderStatus) error {
	for _, allowed := range orderTransitions[o.Status] {
		if allowed == next {
			o.Status = next
			return nil
		}
	}
	return errors.Wrapf(ErrIllegalTransition, "order %s: %s -> %s", o.ID, o.Status, next)
}

// CanTransitionOrder reports whether from -> to is a legal order status move.
func CanTransitionOrder(from, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
