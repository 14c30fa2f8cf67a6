// internal/service/checkout/domain/order_test.go
package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderComputesTotalFromSnapshot(t *testing.T) {
	order, err := NewOrder("cust-1", "corr-1", []CartLine{
		{SKU: "sku-a", Name: "widget", UnitPrice: 2.5, Quantity: 4},
		{SKU: "sku-b", Name: "gadget", UnitPrice: 10, Quantity: 1},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 20.0, order.Total)
	assert.Equal(t, OrderCreated, order.Status)
	assert.Len(t, order.Lines, 2)
}

func TestNewOrderValidation(t *testing.T) {
	lines := []CartLine{{SKU: "sku-a", UnitPrice: 1, Quantity: 1}}

	_, err := NewOrder("", "corr-1", lines)
	assert.Error(t, err)
	_, err = NewOrder("cust-1", "", lines)
	assert.Error(t, err)
	_, err = NewOrder("cust-1", "corr-1", nil)
	assert.Error(t, err)
}

func TestOrderTerminalTransitions(t *testing.T) {
	order, err := NewOrder("cust-1", "corr-1", []CartLine{{SKU: "sku-a", UnitPrice: 1, Quantity: 1}})
	require.NoError(t, err)

	require.NoError(t, order.MarkPaid("txn-1"))
	assert.Equal(t, OrderPaid, order.Status)
	assert.Equal(t, "txn-1", order.ProviderRef)

	// 终态只写一次
	assert.Error(t, order.MarkPaid("txn-2"))
	assert.Error(t, order.MarkFailed("late decline"))

	order, err = NewOrder("cust-1", "corr-2", []CartLine{{SKU: "sku-a", UnitPrice: 1, Quantity: 1}})
	require.NoError(t, err)
	require.NoError(t, order.MarkFailed("card expired"))
	assert.Equal(t, OrderFailed, order.Status)
	assert.Equal(t, "card expired", order.FailureReason)
	assert.Error(t, order.MarkPaid("txn-3"))
}
