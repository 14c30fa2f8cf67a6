// internal/service/checkout/application/saga/handler_test.go
package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"vertex/internal/service/checkout/domain"
	"vertex/internal/service/checkout/domain/port"
)

type hangingGateway struct{}

func (g *hangingGateway) Charge(ctx context.Context, _ float64, _, _ string) (*port.ChargeResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// 网关在超时预算内没有应答时，扣款可能已经成功，不能当作拒绝处理。
func TestChargeTimeoutYieldsUnknownOutcome(t *testing.T) {
	checkoutCtx := &CheckoutContext{
		Ctx:            context.Background(),
		CorrelationID:  "corr-1",
		CustomerID:     "cust-1",
		Lines:          []domain.CartLine{{SKU: "sku-a", UnitPrice: 2, Quantity: 3}},
		PaymentToken:   "tok-1",
		Currency:       "CNY",
		Tracer:         otel.Tracer("test"),
		Gateway:        &hangingGateway{},
		PaymentTimeout: 10 * time.Millisecond,
	}

	err := new(ChargePaymentHandler).Handle(checkoutCtx)
	require.ErrorIs(t, err, domain.ErrPaymentOutcomeUnknown)

	var declined *domain.PaymentDeclinedError
	assert.False(t, errors.As(err, &declined), "timeout must not be reported as a decline")
	assert.Equal(t, domain.StateFailed, checkoutCtx.State)
}

func TestTriggerCompensationRunsInReverseOrder(t *testing.T) {
	checkoutCtx := &CheckoutContext{CorrelationID: "corr-1", State: domain.StateCharging}

	var ran []string
	var stateDuring domain.State
	checkoutCtx.AddCompensation(func(ctx context.Context) { ran = append(ran, "reserve") })
	checkoutCtx.AddCompensation(func(ctx context.Context) {
		stateDuring = checkoutCtx.State
		ran = append(ran, "charge")
	})

	checkoutCtx.TriggerCompensation(context.Background())

	assert.Equal(t, []string{"charge", "reserve"}, ran)
	assert.Equal(t, domain.StateReleasingStock, stateDuring)

	// 再次触发不会重复执行
	checkoutCtx.TriggerCompensation(context.Background())
	assert.Len(t, ran, 2)
}
