// internal/service/checkout/domain/port/events.go
package port

import (
	"context"

	"vertex/internal/service/checkout/domain"
)

// CheckoutEventProducer 是结算终态事件的出站端口。
type CheckoutEventProducer interface {
	Publish(ctx context.Context, event *domain.CheckoutOutcomeEvent) error
}
