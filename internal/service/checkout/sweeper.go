// internal/service/checkout/sweeper.go
package checkout

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"vertex/internal/pkg/logger"
	"vertex/internal/pkg/metrics"
	"vertex/internal/service/checkout/domain"
)

// Elector 决定当前实例在本轮扫描中是否持有执行权。
// 多副本部署时由 ZooKeeper 分布式锁实现；单副本传 nil 即可。
type Elector interface {
	TryLock() (bool, error)
	Unlock() error
}

// Sweeper 是预留过期回收器。
// 独立于任何进行中的 Saga 周期性扫描台账，把已过期的 Pending 预留按
// correlationId 分组释放，回收崩溃或被放弃的结算尝试占用的库存。
// 与活跃编排器的竞争由台账的终态守卫仲裁：先到者赢，后到者观察到
// AlreadyTerminal，因此并发运行是安全的。
type Sweeper struct {
	manager     *ReservationManager
	store       domain.LedgerStore
	interval    time.Duration
	batchSize   int
	parallelism int
	elector     Elector // 可选
	tracer      trace.Tracer
}

// NewSweeper 创建回收器。elector 传 nil 时每轮都执行扫描。
func NewSweeper(manager *ReservationManager, store domain.LedgerStore, interval time.Duration, batchSize, parallelism int, elector Elector, tracer trace.Tracer) *Sweeper {
	if batchSize <= 0 {
		batchSize = 256
	}
	if parallelism <= 0 {
		parallelism = 8
	}
	return &Sweeper{
		manager:     manager,
		store:       store,
		interval:    interval,
		batchSize:   batchSize,
		parallelism: parallelism,
		elector:     elector,
		tracer:      tracer,
	}
}

// Run 按固定间隔执行扫描，直到 ctx 结束。设计为作为后台 Runner 启动。
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Ctx(ctx).Info().Dur("interval", s.interval).Msg("reservation sweeper started")

	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("reservation sweeper stopped")
			return
		case <-ticker.C:
			if !s.acquireLeadership(ctx) {
				continue
			}
			if err := s.Sweep(ctx); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("sweep pass failed")
			}
			s.releaseLeadership(ctx)
		}
	}
}

// Sweep 执行一轮扫描。独立暴露出来方便测试和手动触发。
func (s *Sweeper) Sweep(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "sweeper.Sweep")
	defer span.End()

	expired, err := s.store.ExpiredPending(ctx, time.Now(), s.batchSize)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if len(expired) == 0 {
		return nil
	}
	span.SetAttributes(attribute.Int("expired.count", len(expired)))

	// 按 correlationId 分组，Release 以结算尝试为单位
	groups := map[string]int{}
	for _, res := range expired {
		groups[res.CorrelationID]++
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for correlationID, count := range groups {
		g.Go(func() error {
			err := s.manager.Release(groupCtx, correlationID)
			switch {
			case err == nil:
				metrics.SweptReservations.Add(float64(count))
				// Sweeper 的释放是静默的：没有调用方在等待结果，只记日志
				logger.Ctx(groupCtx).Info().
					Str("correlation_id", correlationID).
					Int("reservations", count).
					Msg("released expired reservations")
				return nil
			case errors.Is(err, domain.ErrAlreadyTerminal):
				// 活跃的编排器抢先到达终态，幂等信号，不是错误
				logger.Ctx(groupCtx).Debug().
					Str("correlation_id", correlationID).
					Msg("reservations already terminal, nothing to sweep")
				return nil
			default:
				logger.Ctx(groupCtx).Error().Err(err).
					Str("correlation_id", correlationID).
					Msg("failed to release expired reservations")
				return err
			}
		})
	}
	return g.Wait()
}

func (s *Sweeper) acquireLeadership(ctx context.Context) bool {
	if s.elector == nil {
		return true
	}
	ok, err := s.elector.TryLock()
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("sweeper leadership acquisition failed")
		return false
	}
	return ok
}

func (s *Sweeper) releaseLeadership(ctx context.Context) {
	if s.elector == nil {
		return
	}
	if err := s.elector.Unlock(); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("sweeper leadership release failed")
	}
}
