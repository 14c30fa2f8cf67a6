// internal/service/checkout/domain/order.go
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// OrderStatus 定义了订单的终态。
type OrderStatus string

const (
	OrderCreated OrderStatus = "CREATED" // 已创建，尚未写入终态
	OrderPaid    OrderStatus = "PAID"    // 支付成功，库存已永久扣减
	OrderFailed  OrderStatus = "FAILED"  // 支付被拒，库存已释放，留作审计
)

// CartLine 是预留时刻捕获的购物车行快照。
// 单价在预留时锁定，之后不再读目录。
type CartLine struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

// Order 是一次结算尝试的最终记录，每个 correlationId 至多一条，只追加。
type Order struct {
	ID            string
	CustomerID    string
	CorrelationID string
	Lines         []CartLine
	Total         float64
	Status        OrderStatus
	ProviderRef   string // 支付网关返回的流水号
	FailureReason string
	CreatedAt     time.Time
}

// NewOrder 从捕获的行快照创建订单，总价按快照单价计算。
func NewOrder(customerID, correlationID string, lines []CartLine) (*Order, error) {
	if customerID == "" || correlationID == "" || len(lines) == 0 {
		return nil, errors.New("cannot create order with empty required fields")
	}

	var total float64
	for _, line := range lines {
		total += line.UnitPrice * float64(line.Quantity)
	}

	return &Order{
		ID:            uuid.New().String(),
		CustomerID:    customerID,
		CorrelationID: correlationID,
		Lines:         lines,
		Total:         total,
		Status:        OrderCreated,
		CreatedAt:     time.Now(),
	}, nil
}

// MarkPaid 将订单置为 PAID 并记录网关流水号。
func (o *Order) MarkPaid(providerRef string) error {
	if o.Status != OrderCreated {
		return errors.New("only created orders can be marked as paid")
	}
	o.Status = OrderPaid
	o.ProviderRef = providerRef
	return nil
}

// MarkFailed 将订单置为 FAILED 并记录失败原因。
func (o *Order) MarkFailed(reason string) error {
	if o.Status != OrderCreated {
		return errors.New("only created orders can be marked as failed")
	}
	o.Status = OrderFailed
	o.FailureReason = reason
	return nil
}
