// internal/service/checkout/sweeper_test.go
package checkout

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"vertex/internal/pkg/metrics"
	"vertex/internal/service/checkout/domain"
)

// 对应规格场景: Pending 预留过期后（模拟编排器崩溃），Sweeper 在没有
// 任何调用方参与的情况下把它释放，库存回到预留前的值。
func TestSweepReleasesExpiredReservations(t *testing.T) {
	manager, store := newTestManager(t, "sku-1", 10, 15*time.Millisecond)
	ctx := context.Background()

	_, err := manager.Reserve(ctx, "corr-crashed", "sku-1", 3)
	require.NoError(t, err)
	_, err = manager.Reserve(ctx, "corr-crashed", "sku-1", 2)
	require.NoError(t, err)

	available, err := manager.GetAvailable(ctx, "sku-1")
	require.NoError(t, err)
	require.Equal(t, 5, available)

	time.Sleep(30 * time.Millisecond)

	swept := testutil.ToFloat64(metrics.SweptReservations)

	sweeper := NewSweeper(manager, store, time.Minute, 256, 4, nil, otel.Tracer("test"))
	require.NoError(t, sweeper.Sweep(ctx))

	// 计数器按回收的预留行数推进
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SweptReservations)-swept)

	available, err = manager.GetAvailable(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 10, available)

	views, err := manager.Status(ctx, "corr-crashed")
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, view := range views {
		assert.Equal(t, domain.ReservationReleased, view.Status)
	}
}

func TestSweepLeavesLiveReservationsAlone(t *testing.T) {
	manager, store := newTestManager(t, "sku-1", 10, time.Minute)
	ctx := context.Background()

	_, err := manager.Reserve(ctx, "corr-live", "sku-1", 3)
	require.NoError(t, err)

	sweeper := NewSweeper(manager, store, time.Minute, 256, 4, nil, otel.Tracer("test"))
	require.NoError(t, sweeper.Sweep(ctx))

	views, err := manager.Status(ctx, "corr-live")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationPending, views[0].Status)
}

// 编排器抢先提交时，Sweeper 观察到 AlreadyTerminal 并静默跳过。
func TestSweepIsIdempotentAgainstCommittedReservations(t *testing.T) {
	manager, store := newTestManager(t, "sku-1", 10, 10*time.Millisecond)
	ctx := context.Background()

	_, err := manager.Reserve(ctx, "corr-racing", "sku-1", 3)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	expired, err := store.ExpiredPending(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	// 扫描已经捞到过期行，但编排器先一步提交
	require.NoError(t, manager.Commit(ctx, "corr-racing"))

	sweeper := NewSweeper(manager, store, time.Minute, 256, 4, nil, otel.Tracer("test"))
	require.NoError(t, sweeper.Sweep(ctx))

	views, err := manager.Status(ctx, "corr-racing")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCommitted, views[0].Status)
}

func TestSweeperRunHonorsContext(t *testing.T) {
	manager, store := newTestManager(t, "sku-1", 10, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := manager.Reserve(ctx, "corr-abandoned", "sku-1", 2)
	require.NoError(t, err)

	sweeper := NewSweeper(manager, store, 10*time.Millisecond, 256, 4, nil, otel.Tracer("test"))

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	// 等待至少一轮扫描
	assert.Eventually(t, func() bool {
		views, err := manager.Status(context.Background(), "corr-abandoned")
		return err == nil && views[0].Status == domain.ReservationReleased
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}

type fakeElector struct {
	grant   atomic.Bool
	locks   atomic.Int32
	unlocks atomic.Int32
}

func (e *fakeElector) TryLock() (bool, error) {
	e.locks.Add(1)
	return e.grant.Load(), nil
}

func (e *fakeElector) Unlock() error {
	e.unlocks.Add(1)
	return nil
}

func TestSweeperRunRespectsElection(t *testing.T) {
	manager, store := newTestManager(t, "sku-1", 10, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := manager.Reserve(ctx, "corr-follower", "sku-1", 2)
	require.NoError(t, err)

	elector := &fakeElector{}
	sweeper := NewSweeper(manager, store, 10*time.Millisecond, 256, 4, elector, otel.Tracer("test"))
	go sweeper.Run(ctx)

	// 没拿到执行权时绝不能动台账
	time.Sleep(50 * time.Millisecond)
	views, err := manager.Status(context.Background(), "corr-follower")
	require.NoError(t, err)
	require.NotEqual(t, domain.ReservationReleased, views[0].Status)

	// 成为 leader 后恢复回收
	elector.grant.Store(true)
	assert.Eventually(t, func() bool {
		views, err := manager.Status(context.Background(), "corr-follower")
		return err == nil && views[0].Status == domain.ReservationReleased
	}, time.Second, 5*time.Millisecond)

	assert.Greater(t, elector.locks.Load(), int32(0))
}
