// internal/service/checkout/ledger_test.go
package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"vertex/internal/service/checkout/domain"
	"vertex/internal/service/checkout/infrastructure"
)

func newTestManager(t *testing.T, sku string, total int, ttl time.Duration) (*ReservationManager, *infrastructure.MemoryLedgerStore) {
	t.Helper()
	store := infrastructure.NewMemoryLedgerStore()
	require.NoError(t, store.UpsertItem(context.Background(), &domain.InventoryItem{SKU: sku, TotalQuantity: total}))
	manager := NewReservationManager(store, nil, 20, ttl, otel.Tracer("test"))
	return manager, store
}

func TestReserveInvalidQuantity(t *testing.T) {
	manager, _ := newTestManager(t, "sku-1", 10, time.Minute)

	_, err := manager.Reserve(context.Background(), "corr-1", "sku-1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = manager.Reserve(context.Background(), "corr-1", "sku-1", -3)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestReserveUnknownSKU(t *testing.T) {
	manager, _ := newTestManager(t, "sku-1", 10, time.Minute)

	_, err := manager.Reserve(context.Background(), "corr-1", "missing", 1)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestReserveInsufficientStock(t *testing.T) {
	manager, _ := newTestManager(t, "sku-1", 10, time.Minute)

	_, err := manager.Reserve(context.Background(), "corr-1", "sku-1", 11)

	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 10, insufficient.Available)
	assert.Equal(t, 11, insufficient.Requested)

	// 失败的预留不能留下任何副作用
	available, err := manager.GetAvailable(context.Background(), "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 10, available)
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	manager, _ := newTestManager(t, "sku-1", 10, time.Minute)
	ctx := context.Background()

	res, err := manager.Reserve(ctx, "corr-1", "sku-1", 4)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationPending, res.Status)

	available, err := manager.GetAvailable(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 6, available)

	require.NoError(t, manager.Release(ctx, "corr-1"))

	// 释放后可用量必须精确回到预留前的值
	available, err = manager.GetAvailable(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 10, available)
}

func TestCommitDeductsPermanently(t *testing.T) {
	manager, store := newTestManager(t, "sku-1", 10, time.Minute)
	ctx := context.Background()

	_, err := manager.Reserve(ctx, "corr-1", "sku-1", 4)
	require.NoError(t, err)
	require.NoError(t, manager.Commit(ctx, "corr-1"))

	item, err := store.GetItem(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 6, item.TotalQuantity)
	assert.Equal(t, 0, item.ReservedQuantity)
	assert.Equal(t, 6, item.Available())

	views, err := manager.Status(ctx, "corr-1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.ReservationCommitted, views[0].Status)
}

func TestCommitIdempotent(t *testing.T) {
	manager, store := newTestManager(t, "sku-1", 10, time.Minute)
	ctx := context.Background()

	_, err := manager.Reserve(ctx, "corr-1", "sku-1", 4)
	require.NoError(t, err)
	require.NoError(t, manager.Commit(ctx, "corr-1"))

	before, err := store.GetItem(ctx, "sku-1")
	require.NoError(t, err)

	// 第二次 Commit 必须是幂等无操作
	err = manager.Commit(ctx, "corr-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)

	after, err := store.GetItem(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, before.TotalQuantity, after.TotalQuantity)
	assert.Equal(t, before.ReservedQuantity, after.ReservedQuantity)
	assert.Equal(t, before.Version, after.Version)
}

func TestReleaseIdempotent(t *testing.T) {
	manager, store := newTestManager(t, "sku-1", 10, time.Minute)
	ctx := context.Background()

	_, err := manager.Reserve(ctx, "corr-1", "sku-1", 4)
	require.NoError(t, err)
	require.NoError(t, manager.Release(ctx, "corr-1"))

	before, err := store.GetItem(ctx, "sku-1")
	require.NoError(t, err)

	err = manager.Release(ctx, "corr-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)

	// Release 之后 Commit 也必须拿到同样的幂等信号
	err = manager.Commit(ctx, "corr-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)

	after, err := store.GetItem(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
}

func TestCommitUnknownCorrelation(t *testing.T) {
	manager, _ := newTestManager(t, "sku-1", 10, time.Minute)

	assert.ErrorIs(t, manager.Commit(context.Background(), "never-reserved"), domain.ErrUnknownCorrelation)
	assert.ErrorIs(t, manager.Release(context.Background(), "never-reserved"), domain.ErrUnknownCorrelation)
}

// 对应规格场景: totalQuantity=10 的 SKU 上两个并发的 Reserve(6)，
// 恰好一个成功，另一个观察到 available=4 后失败。
func TestConcurrentReserveSingleWinner(t *testing.T) {
	manager, _ := newTestManager(t, "sku-x", 10, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = manager.Reserve(ctx, []string{"corr-a", "corr-b"}[i], "sku-x", 6)
		}(i)
	}
	wg.Wait()

	var successes, failures int
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var insufficient *domain.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, 4, insufficient.Available)
		failures++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, failures)

	available, err := manager.GetAvailable(ctx, "sku-x")
	require.NoError(t, err)
	assert.Equal(t, 4, available)
}

// 不超卖：并发预留下 Pending+Committed 的总量永远不超过 totalQuantity。
func TestNoOversellUnderConcurrency(t *testing.T) {
	const total = 10
	const contenders = 30

	manager, store := newTestManager(t, "sku-x", total, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			correlationID := "corr-" + string(rune('a'+i%26)) + "-" + string(rune('0'+i/26))
			_, errs[i] = manager.Reserve(ctx, correlationID, "sku-x", 1)
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		var insufficient *domain.InsufficientStockError
		if !errors.As(err, &insufficient) {
			// 重试预算耗尽是合法的失败方式，但不允许其它错误
			require.ErrorIs(t, err, domain.ErrReservationConflict)
		}
	}

	require.LessOrEqual(t, successes, total)

	item, err := store.GetItem(ctx, "sku-x")
	require.NoError(t, err)
	assert.Equal(t, successes, item.ReservedQuantity)
	assert.Equal(t, total-successes, item.Available())
	assert.GreaterOrEqual(t, item.Available(), 0)
}

func TestStatusReportsExpiredView(t *testing.T) {
	manager, _ := newTestManager(t, "sku-1", 10, 10*time.Millisecond)
	ctx := context.Background()

	_, err := manager.Reserve(ctx, "corr-1", "sku-1", 2)
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	// 过期但尚未被回收的 Pending 行在观测视图里显示为 EXPIRED
	views, err := manager.Status(ctx, "corr-1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.ReservationExpired, views[0].Status)
}

func TestStatusUnknownCorrelation(t *testing.T) {
	manager, _ := newTestManager(t, "sku-1", 10, time.Minute)

	_, err := manager.Status(context.Background(), "never-reserved")
	assert.ErrorIs(t, err, domain.ErrUnknownCorrelation)
}

type fakeCache struct {
	mu     sync.Mutex
	values map[string]int
	hits   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]int)}
}

func (c *fakeCache) Get(_ context.Context, sku string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[sku]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *fakeCache) Set(_ context.Context, sku string, available int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[sku] = available
}

func (c *fakeCache) Invalidate(_ context.Context, sku string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, sku)
}

func TestGetAvailableCacheFillAndInvalidate(t *testing.T) {
	store := infrastructure.NewMemoryLedgerStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertItem(ctx, &domain.InventoryItem{SKU: "sku-1", TotalQuantity: 10}))

	cache := newFakeCache()
	manager := NewReservationManager(store, cache, 5, time.Minute, otel.Tracer("test"))

	// 第一次读回填缓存，第二次命中
	available, err := manager.GetAvailable(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 10, available)

	available, err = manager.GetAvailable(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 10, available)
	assert.Equal(t, 1, cache.hits)

	// 写路径失效缓存，下一次读必须看见新值
	_, err = manager.Reserve(ctx, "corr-1", "sku-1", 3)
	require.NoError(t, err)

	available, err = manager.GetAvailable(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 7, available)
}
