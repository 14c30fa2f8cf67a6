// internal/service/checkout/application/dto.go
package application

import "vertex/internal/service/checkout/domain"

// CheckoutRequest 是发起结算用例的输入数据。
// Lines 是购物车在结算时刻的不可变快照。
type CheckoutRequest struct {
	CustomerID   string            `json:"customerId"`
	Lines        []domain.CartLine `json:"lines"`
	PaymentToken string            `json:"paymentToken"`
}

// CheckoutResult 是结算用例的输出数据。
// Order 只在产生了订单记录的终态（COMPLETED / PAYMENT_DECLINED）下非空。
type CheckoutResult struct {
	Outcome       domain.Outcome `json:"outcome"`
	CorrelationID string         `json:"correlationId"`
	Order         *domain.Order  `json:"order,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}
