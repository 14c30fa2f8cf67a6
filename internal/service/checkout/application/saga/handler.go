// internal/service/checkout/application/saga/handler.go
package saga

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"vertex/internal/pkg/logger"
	checkout "vertex/internal/service/checkout"
	"vertex/internal/service/checkout/domain"
	"vertex/internal/service/checkout/domain/port"
)

// CheckoutContext 在 Saga 流程中传递上下文数据。
// 每次结算尝试独享一个实例，correlationId 在整条链上保持不变。
type CheckoutContext struct {
	Ctx           context.Context
	CorrelationID string
	CustomerID    string
	Lines         []domain.CartLine
	PaymentToken  string
	Currency      string
	Tracer        trace.Tracer

	// 依赖注入：台账操作与出站端口
	Manager        *checkout.ReservationManager
	Gateway        port.PaymentGateway
	PaymentTimeout time.Duration

	// 流程产出
	State       domain.State
	Total       float64
	ProviderRef string

	// 补偿栈：后注册的先执行
	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

// AddCompensation 把补偿动作压入栈顶。
func (c *CheckoutContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

// TriggerCompensation 逆序执行所有已注册的补偿动作。
func (c *CheckoutContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	if len(c.compensations) > 0 {
		c.State = domain.StateReleasingStock
	}
	logger.Ctx(ctx).Info().
		Str("correlation_id", c.CorrelationID).
		Int("compensations", len(c.compensations)).
		Msg("executing compensation functions")
	for _, comp := range c.compensations {
		comp(ctx)
	}
	c.compensations = nil
}

// Handler 是 Saga 链上单个步骤的抽象。
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(checkoutCtx *CheckoutContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(checkoutCtx *CheckoutContext) error {
	if h.next != nil {
		return h.next.Handle(checkoutCtx)
	}
	return nil
}
