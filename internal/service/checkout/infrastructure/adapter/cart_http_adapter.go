// internal/service/checkout/infrastructure/adapter/cart_http_adapter.go
package adapter

import (
	"context"
	"fmt"
	"net/url"

	"vertex/internal/pkg/httpclient"
	"vertex/internal/service/checkout/domain"
)

// CartHTTPAdapter 实现了 port.CartProvider 接口。
// 购物车服务只读，核心不向它回写任何状态。
type CartHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

// NewCartHTTPAdapter 创建一个新的购物车服务适配器。
func NewCartHTTPAdapter(client *httpclient.Client, baseURL string) *CartHTTPAdapter {
	return &CartHTTPAdapter{client: client, baseURL: baseURL}
}

type cartSnapshotResponse struct {
	Lines []domain.CartLine `json:"lines"`
}

// Snapshot 获取某个客户购物车在当前时刻的不可变快照。
func (a *CartHTTPAdapter) Snapshot(ctx context.Context, customerID string) ([]domain.CartLine, error) {
	snapshotURL := fmt.Sprintf("%s?customerId=%s", a.baseURL, url.QueryEscape(customerID))

	var resp cartSnapshotResponse
	if err := a.client.GetJSON(ctx, snapshotURL, &resp); err != nil {
		return nil, fmt.Errorf("failed to snapshot cart for customer %s: %w", customerID, err)
	}
	return resp.Lines, nil
}
