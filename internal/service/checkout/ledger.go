// internal/service/checkout/ledger.go
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vertex/internal/pkg/logger"
	"vertex/internal/pkg/metrics"
	"vertex/internal/service/checkout/domain"
)

// AvailabilityCache 是可用量的读缓存。实现可以是 Redis，也可以不配（nil）。
type AvailabilityCache interface {
	Get(ctx context.Context, sku string) (int, bool)
	Set(ctx context.Context, sku string, available int)
	Invalidate(ctx context.Context, sku string)
}

// ReservationManager 持有台账的全部原子操作：Reserve/Commit/Release。
//
// 并发控制采用乐观并发令牌：读取台账行（带版本号）、在内存中计算新状态、
// 以版本号为条件写回；版本不匹配则从读取步骤重试，重试耗尽返回
// ErrReservationConflict。同一 SKU 的写互相串行化，不同 SKU 完全并行，
// 不存在跨 SKU 的全局锁。
type ReservationManager struct {
	store       domain.LedgerStore
	cache       AvailabilityCache // 可选
	maxAttempts int
	ttl         time.Duration
	tracer      trace.Tracer
}

// NewReservationManager 创建预留管理器。cache 传 nil 时直接读存储。
func NewReservationManager(store domain.LedgerStore, cache AvailabilityCache, maxAttempts int, ttl time.Duration, tracer trace.Tracer) *ReservationManager {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &ReservationManager{
		store:       store,
		cache:       cache,
		maxAttempts: maxAttempts,
		ttl:         ttl,
		tracer:      tracer,
	}
}

// Reserve 为一次结算尝试预占库存。
// 检查可用量、增加 reservedQuantity、插入 Pending 预留行是一次不可分割的
// 写入：任何并发读者都不会观察到"检查通过但未预占"的中间态。
// 库存不足时无副作用，返回携带当前可用量的 InsufficientStockError。
func (m *ReservationManager) Reserve(ctx context.Context, correlationID, sku string, quantity int) (*domain.Reservation, error) {
	ctx, span := m.tracer.Start(ctx, "ledger.Reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("correlation.id", correlationID),
		attribute.String("sku", sku),
		attribute.Int("quantity", quantity),
	)

	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		item, err := m.store.GetItem(ctx, sku)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		if err := item.ApplyReserve(quantity); err != nil {
			// 库存不足不重试，原样上抛
			span.RecordError(err)
			span.SetStatus(codes.Error, "insufficient stock")
			return nil, err
		}

		res := domain.NewReservation(correlationID, sku, quantity, m.ttl)
		err = m.store.ApplyReserve(ctx, item, res)
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.ReservationConflicts.Inc()
			span.AddEvent("version conflict, retrying from read")
			continue
		}
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		m.invalidate(ctx, sku)
		metrics.ReservationsCreated.Inc()
		span.AddEvent("reservation created")
		return res, nil
	}

	span.SetStatus(codes.Error, "retry budget exhausted")
	return nil, fmt.Errorf("reserve %s for %s: %w", sku, correlationID, domain.ErrReservationConflict)
}

// Commit 把一次结算尝试的全部 Pending 预留转为永久扣减。
// 已全部终态时返回 ErrAlreadyTerminal（幂等无操作），未知 correlationId
// 返回 ErrUnknownCorrelation。
func (m *ReservationManager) Commit(ctx context.Context, correlationID string) error {
	ctx, span := m.tracer.Start(ctx, "ledger.Commit")
	defer span.End()
	span.SetAttributes(attribute.String("correlation.id", correlationID))

	return m.finalize(ctx, correlationID, func(item *domain.InventoryItem, res *domain.Reservation) error {
		item.ApplyCommit(res.Quantity)
		return m.store.ApplyCommit(ctx, item, res)
	})
}

// Release 把一次结算尝试的全部 Pending 预留退回可用池。
// 幂等语义与 Commit 相同。
func (m *ReservationManager) Release(ctx context.Context, correlationID string) error {
	ctx, span := m.tracer.Start(ctx, "ledger.Release")
	defer span.End()
	span.SetAttributes(attribute.String("correlation.id", correlationID))

	return m.finalize(ctx, correlationID, func(item *domain.InventoryItem, res *domain.Reservation) error {
		item.ApplyRelease(res.Quantity)
		return m.store.ApplyRelease(ctx, item, res)
	})
}

// finalize 驱动 Commit/Release 共用的逐行终态化流程。
// 每行独立走 CAS 重试；status 守卫失败（对方先到终态）按幂等跳过。
func (m *ReservationManager) finalize(ctx context.Context, correlationID string, apply func(*domain.InventoryItem, *domain.Reservation) error) error {
	reservations, err := m.store.ReservationsByCorrelation(ctx, correlationID)
	if err != nil {
		return err
	}
	if len(reservations) == 0 {
		return domain.ErrUnknownCorrelation
	}

	pending := reservations[:0:0]
	for _, res := range reservations {
		if res.Status == domain.ReservationPending {
			pending = append(pending, res)
		}
	}
	if len(pending) == 0 {
		return domain.ErrAlreadyTerminal
	}

	for _, res := range pending {
		if err := m.finalizeOne(ctx, res, apply); err != nil {
			return err
		}
	}
	return nil
}

func (m *ReservationManager) finalizeOne(ctx context.Context, res *domain.Reservation, apply func(*domain.InventoryItem, *domain.Reservation) error) error {
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		item, err := m.store.GetItem(ctx, res.SKU)
		if err != nil {
			return err
		}

		err = apply(item, res)
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.ReservationConflicts.Inc()
			continue
		}
		if errors.Is(err, domain.ErrAlreadyTerminal) {
			// 对方（Sweeper 或另一个调用）先把这行翻到了终态，
			// 台账写入已随之回滚，按幂等跳过即可。
			logger.Ctx(ctx).Debug().
				Str("reservation_id", res.ID).
				Str("sku", res.SKU).
				Msg("reservation already terminal, skipping")
			return nil
		}
		if err != nil {
			return err
		}

		m.invalidate(ctx, res.SKU)
		return nil
	}
	return fmt.Errorf("finalize reservation %s: %w", res.ID, domain.ErrReservationConflict)
}

// GetAvailable 返回某个 SKU 当前可预留的数量。
// 缓存命中直接返回；未命中读存储并回填。写路径在每次成功写入后失效缓存。
func (m *ReservationManager) GetAvailable(ctx context.Context, sku string) (int, error) {
	if m.cache != nil {
		if available, ok := m.cache.Get(ctx, sku); ok {
			return available, nil
		}
	}

	item, err := m.store.GetItem(ctx, sku)
	if err != nil {
		return 0, err
	}
	if m.cache != nil {
		m.cache.Set(ctx, sku, item.Available())
	}
	return item.Available(), nil
}

// ReservationView 是单条预留的观测视图。
type ReservationView struct {
	ID        string                   `json:"id"`
	SKU       string                   `json:"sku"`
	Quantity  int                      `json:"quantity"`
	Status    domain.ReservationStatus `json:"status"`
	ExpiresAt time.Time                `json:"expiresAt"`
}

// Status 返回某次结算尝试下全部预留的状态，供运维和测试观测。
// 已过期但尚未被回收的 Pending 行显示为 EXPIRED。
func (m *ReservationManager) Status(ctx context.Context, correlationID string) ([]ReservationView, error) {
	reservations, err := m.store.ReservationsByCorrelation(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if len(reservations) == 0 {
		return nil, domain.ErrUnknownCorrelation
	}

	now := time.Now()
	views := make([]ReservationView, 0, len(reservations))
	for _, res := range reservations {
		views = append(views, ReservationView{
			ID:        res.ID,
			SKU:       res.SKU,
			Quantity:  res.Quantity,
			Status:    res.EffectiveStatus(now),
			ExpiresAt: res.ExpiresAt,
		})
	}
	return views, nil
}

func (m *ReservationManager) invalidate(ctx context.Context, sku string) {
	if m.cache != nil {
		m.cache.Invalidate(ctx, sku)
	}
}
