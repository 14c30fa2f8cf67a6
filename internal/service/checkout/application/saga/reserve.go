// internal/service/checkout/application/saga/reserve.go
package saga

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"vertex/internal/pkg/logger"
	"vertex/internal/service/checkout/domain"
)

// ReserveStockHandler 负责库存预占步骤。
// 逐行调用 Reserve；任何一行失败都会通过补偿释放之前已预占的行，
// 调用方绝不会看到"半预留"的购物车。
type ReserveStockHandler struct {
	NextHandler
}

func (h *ReserveStockHandler) Handle(checkoutCtx *CheckoutContext) error {
	ctx, span := checkoutCtx.Tracer.Start(checkoutCtx.Ctx, "saga.ReserveStock")
	defer span.End()

	checkoutCtx.State = domain.StateReservingStock
	span.SetAttributes(attribute.Int("lines", len(checkoutCtx.Lines)))

	compensationRegistered := false
	registerRelease := func() {
		if compensationRegistered {
			return
		}
		compensationRegistered = true
		correlationID := checkoutCtx.CorrelationID
		checkoutCtx.AddCompensation(func(compCtx context.Context) {
			compCtx, compSpan := checkoutCtx.Tracer.Start(compCtx, "saga.compensation.ReleaseStock")
			defer compSpan.End()

			err := checkoutCtx.Manager.Release(compCtx, correlationID)
			if err != nil && !errors.Is(err, domain.ErrAlreadyTerminal) {
				// 补偿失败需要记录严重错误，后续由 Sweeper 兜底回收
				compSpan.RecordError(err)
				logger.Ctx(compCtx).Error().Err(err).
					Str("correlation_id", correlationID).
					Msg("stock release compensation failed, sweeper will reclaim")
			}
		})
	}

	for _, line := range checkoutCtx.Lines {
		_, err := checkoutCtx.Manager.Reserve(ctx, checkoutCtx.CorrelationID, line.SKU, line.Quantity)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stock reservation failed")
			checkoutCtx.State = domain.StateStockUnavailable
			// 重试耗尽的冲突对调用方等价于库存不足：换一个 correlationId 重来
			return err
		}
		registerRelease()
	}

	checkoutCtx.State = domain.StateReserved
	span.AddEvent("all lines reserved")

	return h.executeNext(checkoutCtx)
}
