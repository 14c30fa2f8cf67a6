// internal/service/checkout/domain/event.go
package domain

import "time"

// CheckoutOutcomeEvent 是结算到达终态后发布的事件。
// 下游（通知、对账）据此消费，事件在订单终态写入之后发出。
type CheckoutOutcomeEvent struct {
	CorrelationID string    `json:"correlationId"`
	OrderID       string    `json:"orderId,omitempty"`
	CustomerID    string    `json:"customerId"`
	Outcome       Outcome   `json:"outcome"`
	Total         float64   `json:"total"`
	Reason        string    `json:"reason,omitempty"`
	At            time.Time `json:"at"`
}
