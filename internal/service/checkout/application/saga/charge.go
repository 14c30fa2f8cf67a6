// internal/service/checkout/application/saga/charge.go
package saga

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"vertex/internal/service/checkout/domain"
)

// ChargePaymentHandler 负责调用外部支付网关。
// 总价按预留时刻捕获的行快照计算，价格在此锁定，不再回读目录。
type ChargePaymentHandler struct {
	NextHandler
}

func (h *ChargePaymentHandler) Handle(checkoutCtx *CheckoutContext) error {
	ctx, span := checkoutCtx.Tracer.Start(checkoutCtx.Ctx, "saga.ChargePayment")
	defer span.End()

	checkoutCtx.State = domain.StateCharging

	var total float64
	for _, line := range checkoutCtx.Lines {
		total += line.UnitPrice * float64(line.Quantity)
	}
	checkoutCtx.Total = total

	span.SetAttributes(
		attribute.Float64("payment.amount", total),
		attribute.String("payment.currency", checkoutCtx.Currency),
	)

	// 支付是唯一的长尾外部依赖，必须有自己的超时预算
	chargeCtx, cancel := context.WithTimeout(ctx, checkoutCtx.PaymentTimeout)
	defer cancel()

	result, err := checkoutCtx.Gateway.Charge(chargeCtx, total, checkoutCtx.Currency, checkoutCtx.PaymentToken)
	if err != nil {
		span.RecordError(err)

		// 超时或取消拿不到明确结果：网关可能已经扣款成功，
		// 不能断言拒绝。预留保持 Pending，交给 Sweeper 回收。
		if chargeCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			span.SetStatus(codes.Error, "payment outcome unknown")
			checkoutCtx.State = domain.StateFailed
			return fmt.Errorf("%w: %v", domain.ErrPaymentOutcomeUnknown, err)
		}

		// 网关明确报错（连接被拒等）意味着扣款没有发生，按拒绝处理
		span.SetStatus(codes.Error, "payment gateway call failed")
		checkoutCtx.State = domain.StatePaymentDeclined
		return &domain.PaymentDeclinedError{Reason: fmt.Sprintf("gateway error: %v", err)}
	}

	if !result.Succeeded {
		span.AddEvent("payment declined by gateway")
		span.SetStatus(codes.Error, "payment declined")
		checkoutCtx.State = domain.StatePaymentDeclined
		return &domain.PaymentDeclinedError{Reason: result.Reason}
	}

	checkoutCtx.State = domain.StatePaid
	checkoutCtx.ProviderRef = result.ProviderRef
	span.AddEvent("payment authorized")

	return h.executeNext(checkoutCtx)
}
