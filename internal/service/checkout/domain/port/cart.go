// internal/service/checkout/domain/port/cart.go
package port

import (
	"context"

	"vertex/internal/service/checkout/domain"
)

// CartProvider 是购物车服务的出站端口。
// 返回结算时刻的不可变快照，核心不会向购物车回写。
type CartProvider interface {
	Snapshot(ctx context.Context, customerID string) ([]domain.CartLine, error)
}
