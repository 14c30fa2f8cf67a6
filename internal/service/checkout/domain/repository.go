// internal/service/checkout/domain/repository.go
package domain

import (
	"context"
	"time"
)

// LedgerStore 定义了库存台账和预留行的持久化接口。
// 它位于领域层，由基础设施层实现。
//
// 三个 Apply* 写入共享同一份契约：传入的 item 携带读取时刻的 Version，
// 实现必须把写入条件在该版本上（compare-and-swap），版本不匹配时返回
// ErrVersionConflict 且不产生任何副作用。预留行的状态翻转必须带
// status = PENDING 守卫，守卫失败返回 ErrAlreadyTerminal 并回滚整个写入。
type LedgerStore interface {
	// GetItem 读取某个 SKU 的台账行（含版本号）。
	GetItem(ctx context.Context, sku string) (*InventoryItem, error)

	// UpsertItem 登记或重置台账行。目录供给流程使用，不参与结算路径。
	UpsertItem(ctx context.Context, item *InventoryItem) error

	// ApplyReserve 在一次不可分割的写入中落库预占后的台账行并插入 Pending 预留。
	ApplyReserve(ctx context.Context, item *InventoryItem, res *Reservation) error

	// ApplyCommit 落库扣减后的台账行并把预留翻转为 COMMITTED。
	ApplyCommit(ctx context.Context, item *InventoryItem, res *Reservation) error

	// ApplyRelease 落库释放后的台账行并把预留翻转为 RELEASED。
	ApplyRelease(ctx context.Context, item *InventoryItem, res *Reservation) error

	// ReservationsByCorrelation 返回某次结算尝试的全部预留行。
	ReservationsByCorrelation(ctx context.Context, correlationID string) ([]*Reservation, error)

	// ExpiredPending 返回 expiresAt 早于 cutoff 的 Pending 预留，最多 limit 条。
	ExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*Reservation, error)
}

// OrderStore 定义了订单的只追加持久化接口。
type OrderStore interface {
	// Append 持久化一条终态订单。同一 correlationId 只允许写入一次。
	Append(ctx context.Context, order *Order) error

	// FindByCorrelation 按 correlationId 查找订单，不存在时返回 nil。
	FindByCorrelation(ctx context.Context, correlationID string) (*Order, error)
}
