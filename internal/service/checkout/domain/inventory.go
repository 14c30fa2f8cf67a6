// internal/service/checkout/domain/inventory.go
package domain

import "time"

// InventoryItem 是某个 SKU 的库存台账行，可用量的唯一事实来源。
// totalQuantity/reservedQuantity 只允许 ReservationManager 通过
// 版本校验的写入原语修改，其他组件一律只读。
type InventoryItem struct {
	SKU              string
	TotalQuantity    int
	ReservedQuantity int
	// Version 是乐观并发令牌，每次成功写入后由存储层自增
	Version   int64
	UpdatedAt time.Time
}

// Available 返回当前可被预留的数量。
func (i *InventoryItem) Available() int {
	return i.TotalQuantity - i.ReservedQuantity
}

// ApplyReserve 在内存中执行预占：检查可用量并增加 reservedQuantity。
// 只改内存副本，是否落库由版本校验的写入决定。
func (i *InventoryItem) ApplyReserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i.Available() < quantity {
		return &InsufficientStockError{SKU: i.SKU, Requested: quantity, Available: i.Available()}
	}
	i.ReservedQuantity += quantity
	return nil
}

// ApplyCommit 把预占转为永久扣减：totalQuantity 和 reservedQuantity 同时减少。
func (i *InventoryItem) ApplyCommit(quantity int) {
	i.TotalQuantity -= quantity
	i.ReservedQuantity -= quantity
}

// ApplyRelease 把预占退回可用池：只减少 reservedQuantity。
func (i *InventoryItem) ApplyRelease(quantity int) {
	i.ReservedQuantity -= quantity
}
