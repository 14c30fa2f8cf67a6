// internal/service/checkout/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuantity 预留数量必须为正数
	ErrInvalidQuantity = errors.New("reservation quantity must be positive")

	// ErrItemNotFound SKU 未在台账中登记
	ErrItemNotFound = errors.New("inventory item not found")

	// ErrVersionConflict 版本号比对失败，写入未生效。
	// 只在存储层和 ReservationManager 的重试循环之间流转，不会暴露给调用方。
	ErrVersionConflict = errors.New("inventory item version conflict")

	// ErrReservationConflict 乐观并发重试次数耗尽。
	// 对调用方来说是可重试错误，与库存不足是两种语义。
	ErrReservationConflict = errors.New("reservation conflict: retry budget exhausted")

	// ErrAlreadyTerminal 该 correlationId 下的预留都已到达终态。
	// 幂等信号，调用方应视为成功。
	ErrAlreadyTerminal = errors.New("reservations already in terminal state")

	// ErrUnknownCorrelation Commit/Release 在 Reserve 之前被调用，属于集成错误
	ErrUnknownCorrelation = errors.New("unknown correlation id")

	// ErrPaymentOutcomeUnknown 扣款调用超时或被取消，网关可能已经扣款成功。
	// 不能当作拒绝处理：不补偿、不落库终态订单，预留保持 Pending
	// 由 Sweeper 回收，对账由下游人工或任务完成。
	ErrPaymentOutcomeUnknown = errors.New("payment outcome unknown")
)

// InsufficientStockError 表示库存不足，携带当前可用量供调用方调整购物车。
type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for sku %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
}

// PaymentDeclinedError 表示支付网关拒绝了扣款。
// 编排器抛出它时，补偿（释放库存）已经执行完毕。
type PaymentDeclinedError struct {
	Reason string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Reason)
}
