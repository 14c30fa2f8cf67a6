// internal/service/checkout/domain/state.go
package domain

// State 定义了结算 Saga 的生命周期状态。
type State string

const (
	StateStarted          State = "STARTED"
	StateReservingStock   State = "RESERVING_STOCK"
	StateReserved         State = "RESERVED"
	StateStockUnavailable State = "STOCK_UNAVAILABLE" // 终态，未尝试支付
	StateCharging         State = "CHARGING"
	StatePaid             State = "PAID"
	StateCommitting       State = "COMMITTING"
	StateCompleted        State = "COMPLETED" // 终态
	StatePaymentDeclined  State = "PAYMENT_DECLINED"
	StateReleasingStock   State = "RELEASING_STOCK"
	StateFailed           State = "FAILED" // 终态
)

// Outcome 是 StartCheckout 暴露给调用方的终态结果。
type Outcome string

const (
	OutcomeCompleted        Outcome = "COMPLETED"
	OutcomeStockUnavailable Outcome = "STOCK_UNAVAILABLE"
	OutcomePaymentDeclined  Outcome = "PAYMENT_DECLINED"
)
