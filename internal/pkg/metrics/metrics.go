// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ReservationConflicts 记录乐观并发写入冲突的次数（重试前）
	ReservationConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vertex_reservation_version_conflicts_total",
		Help: "Number of optimistic-concurrency conflicts observed on ledger writes.",
	})

	// ReservationsCreated 记录成功创建的 Pending 预留数
	ReservationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vertex_reservations_created_total",
		Help: "Number of stock reservations successfully created.",
	})

	// CheckoutOutcomes 按终态统计结算结果
	CheckoutOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vertex_checkout_outcomes_total",
		Help: "Checkout saga outcomes by terminal state.",
	}, []string{"outcome"})

	// SweptReservations 记录 Sweeper 回收的过期预留数
	SweptReservations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vertex_swept_reservations_total",
		Help: "Number of expired pending reservations released by the sweeper.",
	})
)

func init() {
	prometheus.MustRegister(
		ReservationConflicts,
		ReservationsCreated,
		CheckoutOutcomes,
		SweptReservations,
	)
}
