package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EntriesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_entries_processed_total",
			Help: "Queue entries driven to a terminal state, by outcome",
		},
		[]string{"outcome"},
	)

	LeaseTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_lease_timeouts_total",
			Help: "Leases not acquired within their timeout, by scope",
		},
		[]string{"scope"},
	)

	UnitsReserved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fulfillment_units_reserved_total",
			Help: "Inventory units successfully locked",
		},
	)

	ReservationShortfalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fulfillment_reservation_shortfalls_total",
			Help: "Reservation attempts rejected for insufficient stock",
		},
	)

	CompensationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fulfillment_compensation_failures_total",
			Help: "Rollback actions that themselves failed and need reconciliation",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fulfillment_queue_depth",
			Help: "PENDING entries seen at the start of the last poll",
		},
	)

	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fulfillment_entry_processing_seconds",
			Help:    "Duration of per-entry processing",
			Buckets: prometheus.DefBuckets,
		},
	)
)
