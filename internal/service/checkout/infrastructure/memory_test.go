// internal/service/checkout/infrastructure/memory_test.go
package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vertex/internal/service/checkout/domain"
)

func seedItem(t *testing.T, store *MemoryLedgerStore, sku string, total int) {
	t.Helper()
	require.NoError(t, store.UpsertItem(context.Background(), &domain.InventoryItem{SKU: sku, TotalQuantity: total}))
}

func TestMemoryStoreVersionConflict(t *testing.T) {
	store := NewMemoryLedgerStore()
	ctx := context.Background()
	seedItem(t, store, "sku-a", 10)

	// 两个写入者基于同一个版本各自修改内存副本
	first, err := store.GetItem(ctx, "sku-a")
	require.NoError(t, err)
	second, err := store.GetItem(ctx, "sku-a")
	require.NoError(t, err)

	require.NoError(t, first.ApplyReserve(6))
	require.NoError(t, second.ApplyReserve(6))

	resFirst := domain.NewReservation("corr-1", "sku-a", 6, time.Minute)
	resSecond := domain.NewReservation("corr-2", "sku-a", 6, time.Minute)

	// 先写者成功并推进版本，后写者携带过期版本被拒
	require.NoError(t, store.ApplyReserve(ctx, first, resFirst))
	err = store.ApplyReserve(ctx, second, resSecond)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	// 失败的写入不会留下预留行
	rows, err := store.ReservationsByCorrelation(ctx, "corr-2")
	require.NoError(t, err)
	assert.Empty(t, rows)

	item, err := store.GetItem(ctx, "sku-a")
	require.NoError(t, err)
	assert.Equal(t, 6, item.ReservedQuantity)
	assert.EqualValues(t, 1, item.Version)
}

func TestMemoryStoreUpsertPreservesVersion(t *testing.T) {
	store := NewMemoryLedgerStore()
	ctx := context.Background()
	seedItem(t, store, "sku-a", 10)

	item, err := store.GetItem(ctx, "sku-a")
	require.NoError(t, err)
	require.NoError(t, item.ApplyReserve(1))
	require.NoError(t, store.ApplyReserve(ctx, item, domain.NewReservation("corr-1", "sku-a", 1, time.Minute)))

	// 重新灌数不回退并发令牌
	seedItem(t, store, "sku-a", 20)
	item, err = store.GetItem(ctx, "sku-a")
	require.NoError(t, err)
	assert.Equal(t, 20, item.TotalQuantity)
	assert.EqualValues(t, 1, item.Version)
}

func TestMemoryStoreFlipGuardsTerminalRows(t *testing.T) {
	store := NewMemoryLedgerStore()
	ctx := context.Background()
	seedItem(t, store, "sku-a", 10)

	item, err := store.GetItem(ctx, "sku-a")
	require.NoError(t, err)
	require.NoError(t, item.ApplyReserve(4))
	res := domain.NewReservation("corr-1", "sku-a", 4, time.Minute)
	require.NoError(t, store.ApplyReserve(ctx, item, res))

	item, err = store.GetItem(ctx, "sku-a")
	require.NoError(t, err)
	item.ApplyCommit(4)
	require.NoError(t, store.ApplyCommit(ctx, item, res))
	assert.Equal(t, domain.ReservationCommitted, res.Status)

	// 已到终态的行再次翻转被状态守卫拒绝
	item, err = store.GetItem(ctx, "sku-a")
	require.NoError(t, err)
	item.ApplyRelease(4)
	err = store.ApplyRelease(ctx, item, res)
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)

	// 台账未被被拒的写入污染
	item, err = store.GetItem(ctx, "sku-a")
	require.NoError(t, err)
	assert.Equal(t, 6, item.TotalQuantity)
	assert.Equal(t, 0, item.ReservedQuantity)
}

func TestMemoryStoreExpiredPendingOrderAndLimit(t *testing.T) {
	store := NewMemoryLedgerStore()
	ctx := context.Background()
	seedItem(t, store, "sku-a", 100)

	for i := 0; i < 3; i++ {
		item, err := store.GetItem(ctx, "sku-a")
		require.NoError(t, err)
		require.NoError(t, item.ApplyReserve(1))
		res := domain.NewReservation("corr-exp", "sku-a", 1, time.Duration(-(i+1))*time.Minute)
		require.NoError(t, store.ApplyReserve(ctx, item, res))
	}

	expired, err := store.ExpiredPending(ctx, time.Now(), 2)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	// 最早过期的排在最前
	assert.True(t, expired[0].ExpiresAt.Before(expired[1].ExpiresAt))
}
