// internal/service/checkout/application/service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vertex/internal/pkg/logger"
	"vertex/internal/pkg/metrics"
	checkout "vertex/internal/service/checkout"
	"vertex/internal/service/checkout/application/saga"
	"vertex/internal/service/checkout/domain"
	"vertex/internal/service/checkout/domain/port"
)

// CheckoutService 是结算 Saga 的编排器，也是核心对外的唯一入口。
// 它只负责流程编排：预留、扣款、提交/补偿、订单落库、事件发布。
type CheckoutService struct {
	manager  *checkout.ReservationManager
	orders   domain.OrderStore
	gateway  port.PaymentGateway
	producer port.CheckoutEventProducer
	tracer   trace.Tracer

	checkoutTimeout time.Duration
	paymentTimeout  time.Duration
	currency        string
}

func NewCheckoutService(manager *checkout.ReservationManager, orders domain.OrderStore, gateway port.PaymentGateway, producer port.CheckoutEventProducer, tracer trace.Tracer, checkoutTimeout, paymentTimeout time.Duration, currency string) *CheckoutService {
	return &CheckoutService{
		manager: manager, orders: orders,
		gateway: gateway, producer: producer, tracer: tracer,
		checkoutTimeout: checkoutTimeout, paymentTimeout: paymentTimeout,
		currency: currency,
	}
}

// StartCheckout 驱动一次完整的结算尝试。
//
// 三种业务终态都在补偿完成之后才返回，调用方永远不需要自己清理：
//   - COMPLETED: 库存已永久扣减，返回 PAID 订单
//   - STOCK_UNAVAILABLE: 已预占的行全部释放，未尝试支付
//   - PAYMENT_DECLINED: 库存已释放，落库 FAILED 订单留作审计
//
// Saga 总超时到期时立即向调用方返回错误且不做补偿，残留的 Pending
// 预留由 Sweeper 兜底回收。
func (s *CheckoutService) StartCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.StartCheckout")
	defer span.End()

	if err := validateRequest(req); err != nil {
		span.RecordError(err)
		return nil, err
	}

	// 1. 为本次结算尝试生成全新的 correlationId
	correlationID := uuid.New().String()
	span.SetAttributes(
		attribute.String("correlation.id", correlationID),
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("cart.lines", len(req.Lines)),
	)

	// 2. 整个 Saga 共享一个超时预算
	processingCtx, cancel := context.WithTimeout(ctx, s.checkoutTimeout)
	defer cancel()

	checkoutCtx := &saga.CheckoutContext{
		Ctx:            processingCtx,
		CorrelationID:  correlationID,
		CustomerID:     req.CustomerID,
		Lines:          req.Lines,
		PaymentToken:   req.PaymentToken,
		Currency:       s.currency,
		Tracer:         s.tracer,
		Manager:        s.manager,
		Gateway:        s.gateway,
		PaymentTimeout: s.paymentTimeout,
		State:          domain.StateStarted,
	}

	logger.Ctx(processingCtx).Info().
		Str("correlation_id", correlationID).
		Str("customer_id", req.CustomerID).
		Msg("starting checkout saga")

	err := s.buildChain().Handle(checkoutCtx)
	if err != nil {
		return s.handleFailure(ctx, processingCtx, checkoutCtx, err, span)
	}

	// 3. 流程成功：落库 PAID 订单并发布终态事件
	order, err := domain.NewOrder(req.CustomerID, correlationID, req.Lines)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := order.MarkPaid(checkoutCtx.ProviderRef); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.orders.Append(ctx, order); err != nil {
		// 库存已扣、钱已收，订单没写进去：只能记严重错误交给对账
		span.RecordError(err, trace.WithAttributes(attribute.Bool("critical.error", true)))
		span.SetStatus(codes.Error, "failed to append paid order")
		logger.Ctx(ctx).Error().Err(err).
			Str("correlation_id", correlationID).
			Msg("CRITICAL: stock committed and payment captured but order append failed")
		return nil, err
	}

	s.publishOutcome(ctx, &domain.CheckoutOutcomeEvent{
		CorrelationID: correlationID,
		OrderID:       order.ID,
		CustomerID:    req.CustomerID,
		Outcome:       domain.OutcomeCompleted,
		Total:         order.Total,
		At:            time.Now(),
	})
	metrics.CheckoutOutcomes.WithLabelValues(string(domain.OutcomeCompleted)).Inc()

	logger.Ctx(ctx).Info().
		Str("correlation_id", correlationID).
		Str("order_id", order.ID).
		Msg("checkout completed")
	span.AddEvent("checkout completed")

	return &CheckoutResult{
		Outcome:       domain.OutcomeCompleted,
		CorrelationID: correlationID,
		Order:         order,
	}, nil
}

// handleFailure 把链上的错误翻译成业务终态，补偿在这里统一触发。
func (s *CheckoutService) handleFailure(ctx, processingCtx context.Context, checkoutCtx *saga.CheckoutContext, err error, span trace.Span) (*CheckoutResult, error) {
	span.RecordError(err)

	// Saga 总超时：不补偿，残留的 Pending 预留交给 Sweeper
	if processingCtx.Err() != nil {
		span.SetStatus(codes.Error, "checkout timed out")
		logger.Ctx(ctx).Warn().Err(err).
			Str("correlation_id", checkoutCtx.CorrelationID).
			Msg("checkout timed out, leaving reservations for the sweeper")
		return nil, fmt.Errorf("checkout %s timed out: %w", checkoutCtx.CorrelationID, processingCtx.Err())
	}

	// 扣款结果未知（网关超时/取消）：扣款可能已经成功，
	// 既不补偿也不落库终态订单，预留保持 Pending 交给 Sweeper
	if errors.Is(err, domain.ErrPaymentOutcomeUnknown) {
		span.SetStatus(codes.Error, "payment outcome unknown")
		logger.Ctx(ctx).Warn().Err(err).
			Str("correlation_id", checkoutCtx.CorrelationID).
			Msg("payment outcome unknown, leaving reservations for the sweeper")
		return nil, err
	}

	// 补偿在向调用方返回之前执行完毕
	checkoutCtx.TriggerCompensation(ctx)

	var insufficient *domain.InsufficientStockError
	if errors.As(err, &insufficient) || errors.Is(err, domain.ErrReservationConflict) {
		metrics.CheckoutOutcomes.WithLabelValues(string(domain.OutcomeStockUnavailable)).Inc()
		s.publishOutcome(ctx, &domain.CheckoutOutcomeEvent{
			CorrelationID: checkoutCtx.CorrelationID,
			CustomerID:    checkoutCtx.CustomerID,
			Outcome:       domain.OutcomeStockUnavailable,
			Reason:        err.Error(),
			At:            time.Now(),
		})
		logger.Ctx(ctx).Info().
			Str("correlation_id", checkoutCtx.CorrelationID).
			Msg("checkout rejected: stock unavailable")
		return &CheckoutResult{
			Outcome:       domain.OutcomeStockUnavailable,
			CorrelationID: checkoutCtx.CorrelationID,
			Reason:        err.Error(),
		}, nil
	}

	var declined *domain.PaymentDeclinedError
	if errors.As(err, &declined) {
		// 支付被拒仍然落库一条 FAILED 订单留作审计
		order, buildErr := domain.NewOrder(checkoutCtx.CustomerID, checkoutCtx.CorrelationID, checkoutCtx.Lines)
		if buildErr == nil {
			_ = order.MarkFailed(declined.Reason)
			if appendErr := s.orders.Append(ctx, order); appendErr != nil {
				span.RecordError(appendErr)
				logger.Ctx(ctx).Error().Err(appendErr).
					Str("correlation_id", checkoutCtx.CorrelationID).
					Msg("failed to append failed order record")
				order = nil
			}
		} else {
			order = nil
		}

		metrics.CheckoutOutcomes.WithLabelValues(string(domain.OutcomePaymentDeclined)).Inc()
		event := &domain.CheckoutOutcomeEvent{
			CorrelationID: checkoutCtx.CorrelationID,
			CustomerID:    checkoutCtx.CustomerID,
			Outcome:       domain.OutcomePaymentDeclined,
			Total:         checkoutCtx.Total,
			Reason:        declined.Reason,
			At:            time.Now(),
		}
		if order != nil {
			event.OrderID = order.ID
		}
		s.publishOutcome(ctx, event)

		logger.Ctx(ctx).Info().
			Str("correlation_id", checkoutCtx.CorrelationID).
			Str("reason", declined.Reason).
			Msg("checkout rejected: payment declined")
		return &CheckoutResult{
			Outcome:       domain.OutcomePaymentDeclined,
			CorrelationID: checkoutCtx.CorrelationID,
			Order:         order,
			Reason:        declined.Reason,
		}, nil
	}

	// 预期之外的错误：补偿已执行，原样上抛
	checkoutCtx.State = domain.StateFailed
	span.SetStatus(codes.Error, "checkout failed")
	logger.Ctx(ctx).Error().Err(err).
		Str("correlation_id", checkoutCtx.CorrelationID).
		Msg("checkout failed")
	return nil, err
}

// GetReservationStatus 是暴露给运维和测试的只读观测入口。
func (s *CheckoutService) GetReservationStatus(ctx context.Context, correlationID string) ([]checkout.ReservationView, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetReservationStatus")
	defer span.End()
	span.SetAttributes(attribute.String("correlation.id", correlationID))

	return s.manager.Status(ctx, correlationID)
}

func (s *CheckoutService) buildChain() saga.Handler {
	chain := new(saga.ReserveStockHandler)
	chain.
		SetNext(new(saga.ChargePaymentHandler)).
		SetNext(new(saga.CommitReservationHandler))
	return chain
}

// publishOutcome 发布终态事件。发布失败不影响主流程，只记错误。
func (s *CheckoutService) publishOutcome(ctx context.Context, event *domain.CheckoutOutcomeEvent) {
	if s.producer == nil {
		return
	}
	if err := s.producer.Publish(ctx, event); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("correlation_id", event.CorrelationID).
			Msg("failed to publish checkout outcome event")
	}
}

func validateRequest(req *CheckoutRequest) error {
	if req == nil || req.CustomerID == "" || len(req.Lines) == 0 {
		return errors.New("checkout request must carry a customer and at least one cart line")
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
	}
	return nil
}
