// internal/service/checkout/infrastructure/mapper.go
package infrastructure

import (
	"database/sql"

	"vertex/internal/service/checkout/domain"
)

// ToDomainItem 将数据库模型转换为领域模型。
func ToDomainItem(model *InventoryItemModel) *domain.InventoryItem {
	return &domain.InventoryItem{
		SKU:              model.SKU,
		TotalQuantity:    model.TotalQuantity,
		ReservedQuantity: model.ReservedQuantity,
		Version:          model.Version,
		UpdatedAt:        model.UpdatedAt,
	}
}

// ToDomainReservation 将数据库模型转换为领域模型。
func ToDomainReservation(model *ReservationModel) *domain.Reservation {
	return &domain.Reservation{
		ID:            model.ReservationID,
		CorrelationID: model.CorrelationID,
		SKU:           model.SKU,
		Quantity:      model.Quantity,
		Status:        domain.ReservationStatus(model.Status),
		CreatedAt:     model.ReservedAt,
		ExpiresAt:     model.ExpiresAt,
	}
}

// ToReservationModel 将领域模型转换为数据库模型。
func ToReservationModel(res *domain.Reservation) *ReservationModel {
	return &ReservationModel{
		ReservationID: res.ID,
		CorrelationID: res.CorrelationID,
		SKU:           res.SKU,
		Quantity:      res.Quantity,
		Status:        string(res.Status),
		ExpiresAt:     res.ExpiresAt,
		ReservedAt:    res.CreatedAt,
	}
}

// ToOrderModel 将订单聚合转换为数据库模型。
func ToOrderModel(order *domain.Order) *CheckoutOrderModel {
	model := &CheckoutOrderModel{
		OrderID:       order.ID,
		CorrelationID: order.CorrelationID,
		CustomerID:    order.CustomerID,
		Total:         order.Total,
		Status:        string(order.Status),
	}
	if order.ProviderRef != "" {
		model.ProviderRef = sql.NullString{String: order.ProviderRef, Valid: true}
	}
	if order.FailureReason != "" {
		model.FailureReason = sql.NullString{String: order.FailureReason, Valid: true}
	}
	for _, line := range order.Lines {
		model.Lines = append(model.Lines, OrderLineModel{
			SKU:       line.SKU,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	return model
}

// ToDomainOrder 将数据库模型转换为订单聚合。
func ToDomainOrder(model *CheckoutOrderModel) *domain.Order {
	order := &domain.Order{
		ID:            model.OrderID,
		CustomerID:    model.CustomerID,
		CorrelationID: model.CorrelationID,
		Total:         model.Total,
		Status:        domain.OrderStatus(model.Status),
		CreatedAt:     model.CreatedAt,
	}
	if model.ProviderRef.Valid {
		order.ProviderRef = model.ProviderRef.String
	}
	if model.FailureReason.Valid {
		order.FailureReason = model.FailureReason.String
	}
	for _, line := range model.Lines {
		order.Lines = append(order.Lines, domain.CartLine{
			SKU:       line.SKU,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	return order
}
