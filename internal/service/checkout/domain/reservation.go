// internal/service/checkout/domain/reservation.go
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReservationStatus 定义了预留的生命周期状态。
// 状态流转单向，进入终态后不允许再变更。
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"   // 已预占，等待提交或释放
	ReservationCommitted ReservationStatus = "COMMITTED" // 已转为永久扣减
	ReservationReleased  ReservationStatus = "RELEASED"  // 已退回可用池
	// ReservationExpired 是观测视图中的派生状态：Pending 且已过期、
	// 尚未被 Sweeper 回收的预留。存储中不出现该值。
	ReservationExpired ReservationStatus = "EXPIRED"
)

// Reservation 是一次结算尝试对某个 SKU 的临时占用。
// 行只追加不删除，终态行保留作审计。
type Reservation struct {
	ID            string
	CorrelationID string
	SKU           string
	Quantity      int
	Status        ReservationStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// NewReservation 创建一条 Pending 预留。
func NewReservation(correlationID, sku string, quantity int, ttl time.Duration) *Reservation {
	now := time.Now()
	return &Reservation{
		ID:            uuid.New().String(),
		CorrelationID: correlationID,
		SKU:           sku,
		Quantity:      quantity,
		Status:        ReservationPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
}

// IsTerminal 判断预留是否已到达终态。
func (r *Reservation) IsTerminal() bool {
	return r.Status == ReservationCommitted || r.Status == ReservationReleased
}

// IsExpired 判断一条 Pending 预留在给定时刻是否已过期。
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationPending && now.After(r.ExpiresAt)
}

// MarkCommitted 将预留置为 COMMITTED。
func (r *Reservation) MarkCommitted() error {
	if r.Status != ReservationPending {
		return errors.New("only pending reservations can be committed")
	}
	r.Status = ReservationCommitted
	return nil
}

// MarkReleased 将预留置为 RELEASED。
func (r *Reservation) MarkReleased() error {
	if r.Status != ReservationPending {
		return errors.New("only pending reservations can be released")
	}
	r.Status = ReservationReleased
	return nil
}

// EffectiveStatus 返回观测视角下的状态：过期未回收的 Pending 显示为 EXPIRED。
func (r *Reservation) EffectiveStatus(now time.Time) ReservationStatus {
	if r.IsExpired(now) {
		return ReservationExpired
	}
	return r.Status
}
