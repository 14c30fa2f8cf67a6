// internal/service/checkout/domain/port/payment.go
package port

import "context"

// ChargeResult 是支付网关的应答。
type ChargeResult struct {
	Succeeded   bool
	ProviderRef string // 成功时的网关流水号
	Reason      string // 拒绝或失败的原因
}

// PaymentGateway 是支付网关的出站端口。
// Charge 是一次同步调用，超时由调用方通过 ctx 控制。
type PaymentGateway interface {
	Charge(ctx context.Context, amount float64, currency, token string) (*ChargeResult, error)
}
