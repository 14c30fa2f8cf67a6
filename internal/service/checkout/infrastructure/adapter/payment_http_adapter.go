// internal/service/checkout/infrastructure/adapter/payment_http_adapter.go
package adapter

import (
	"context"

	"vertex/internal/pkg/httpclient"
	"vertex/internal/service/checkout/domain/port"
)

// PaymentHTTPAdapter 实现了 port.PaymentGateway 接口。
// 网关是唯一的长尾外部依赖，调用方通过 ctx 控制超时。
type PaymentHTTPAdapter struct {
	client    *httpclient.Client
	chargeURL string
}

// NewPaymentHTTPAdapter 创建一个新的支付网关适配器。
func NewPaymentHTTPAdapter(client *httpclient.Client, chargeURL string) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client, chargeURL: chargeURL}
}

type chargeRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Token    string  `json:"token"`
}

type chargeResponse struct {
	Succeeded   bool   `json:"succeeded"`
	ProviderRef string `json:"providerRef,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Charge 发起一次同步扣款。
// 传输层错误原样上抛；网关正常应答但拒绝时 Succeeded 为 false。
func (a *PaymentHTTPAdapter) Charge(ctx context.Context, amount float64, currency, token string) (*port.ChargeResult, error) {
	req := chargeRequest{Amount: amount, Currency: currency, Token: token}
	var resp chargeResponse
	if err := a.client.PostJSON(ctx, a.chargeURL, req, &resp); err != nil {
		return nil, err
	}

	return &port.ChargeResult{
		Succeeded:   resp.Succeeded,
		ProviderRef: resp.ProviderRef,
		Reason:      resp.Error,
	}, nil
}
