// internal/service/checkout/application/saga/commit.go
package saga

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"vertex/internal/pkg/logger"
	"vertex/internal/service/checkout/domain"
)

// CommitReservationHandler 负责把预占转为永久扣减。
// 支付成功之后执行，是 Saga 的最后一个台账步骤。
type CommitReservationHandler struct {
	NextHandler
}

func (h *CommitReservationHandler) Handle(checkoutCtx *CheckoutContext) error {
	ctx, span := checkoutCtx.Tracer.Start(checkoutCtx.Ctx, "saga.CommitReservation")
	defer span.End()

	checkoutCtx.State = domain.StateCommitting
	span.SetAttributes(attribute.String("correlation.id", checkoutCtx.CorrelationID))

	err := checkoutCtx.Manager.Commit(ctx, checkoutCtx.CorrelationID)
	if errors.Is(err, domain.ErrAlreadyTerminal) {
		// 钱已经扣了但预留在支付期间被 Sweeper 回收：库存已回池。
		// 这是需要人工对账的资损场景，记严重错误但不中断订单落库。
		span.RecordError(err)
		logger.Ctx(ctx).Error().
			Str("correlation_id", checkoutCtx.CorrelationID).
			Msg("CRITICAL: payment captured but reservations were reclaimed before commit, manual reconciliation required")
	} else if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reservation commit failed")
		return err
	}

	checkoutCtx.State = domain.StateCompleted
	span.AddEvent("reservations committed")

	return h.executeNext(checkoutCtx)
}
