// internal/service/checkout/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"vertex/internal/pkg/logger"
	"vertex/internal/service/checkout/application"
	"vertex/internal/service/checkout/domain"
	"vertex/internal/service/checkout/domain/port"
)

const serviceName = "checkout-service"

// CheckoutHandler 封装了 checkout 服务的 HTTP 处理器。
type CheckoutHandler struct {
	service *application.CheckoutService
	carts   port.CartProvider
}

// NewCheckoutHandler 创建一个新的 HTTP 处理器实例。
func NewCheckoutHandler(service *application.CheckoutService, carts port.CartProvider) *CheckoutHandler {
	return &CheckoutHandler{service: service, carts: carts}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/checkout", h.checkoutHandler)
	mux.HandleFunc("/reservations/status", h.reservationStatusHandler)
}

type checkoutHTTPRequest struct {
	CustomerID   string `json:"customerId"`
	PaymentToken string `json:"paymentToken"`
	// Lines 可以直接随请求提交；为空时从购物车服务取快照
	Lines []domain.CartLine `json:"lines,omitempty"`
}

func (h *CheckoutHandler) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "interfaces.CheckoutHandler")
	defer span.End()

	var req checkoutHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	lines := req.Lines
	if len(lines) == 0 && h.carts != nil {
		snapshot, err := h.carts.Snapshot(ctx, req.CustomerID)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("customer_id", req.CustomerID).Msg("failed to snapshot cart")
			http.Error(w, "cart service unavailable", http.StatusBadGateway)
			return
		}
		lines = snapshot
	}

	result, err := h.service.StartCheckout(ctx, &application.CheckoutRequest{
		CustomerID:   req.CustomerID,
		Lines:        lines,
		PaymentToken: req.PaymentToken,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidQuantity) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch result.Outcome {
	case domain.OutcomeStockUnavailable:
		w.WriteHeader(http.StatusConflict)
	case domain.OutcomePaymentDeclined:
		w.WriteHeader(http.StatusPaymentRequired)
	default:
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(result)
}

func (h *CheckoutHandler) reservationStatusHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "interfaces.ReservationStatusHandler")
	defer span.End()

	correlationID := r.URL.Query().Get("correlationId")
	if correlationID == "" {
		http.Error(w, "correlationId is required", http.StatusBadRequest)
		return
	}

	views, err := h.service.GetReservationStatus(ctx, correlationID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownCorrelation) {
			http.Error(w, "unknown correlation id", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}
