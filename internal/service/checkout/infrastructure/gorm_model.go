// internal/service/checkout/infrastructure/gorm_model.go
package infrastructure

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// InventoryItemModel 对应数据库中的 inventory_item 表。
// version 列是乐观并发令牌，所有写入都以它为条件。
type InventoryItemModel struct {
	gorm.Model
	SKU              string `gorm:"uniqueIndex;size:64"`
	TotalQuantity    int
	ReservedQuantity int
	Version          int64
}

// TableName 指定 GORM 应该使用的表名
func (InventoryItemModel) TableName() string {
	return "inventory_item"
}

// ReservationModel 对应数据库中的 stock_reservation 表。
// 行只追加、终态后不再变更，留作审计。
type ReservationModel struct {
	gorm.Model
	ReservationID string `gorm:"uniqueIndex;size:64"`
	CorrelationID string `gorm:"index;size:64"`
	SKU           string `gorm:"index;size:64"`
	Quantity      int
	Status        string    `gorm:"index;size:16"`
	ExpiresAt     time.Time `gorm:"index"`
	ReservedAt    time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ReservationModel) TableName() string {
	return "stock_reservation"
}

// CheckoutOrderModel 对应数据库中的 checkout_order 表。
// correlation_id 上的唯一索引保证每次结算尝试至多一条订单。
type CheckoutOrderModel struct {
	gorm.Model
	OrderID       string  `gorm:"uniqueIndex;size:64"`
	CorrelationID string  `gorm:"uniqueIndex;size:64"`
	CustomerID    string  `gorm:"index;size:64"`
	Total         float64 `gorm:"type:decimal(12,2)"`
	Status        string  `gorm:"size:16"`
	ProviderRef   sql.NullString
	FailureReason sql.NullString
	// 关联关系
	Lines []OrderLineModel `gorm:"foreignKey:OrderModelID"`
}

// TableName 指定 GORM 应该使用的表名
func (CheckoutOrderModel) TableName() string {
	return "checkout_order"
}

// OrderLineModel 对应数据库中的 checkout_order_line 表，
// 保存预留时刻捕获的行快照。
type OrderLineModel struct {
	gorm.Model
	OrderModelID uint   `gorm:"index"`
	SKU          string `gorm:"size:64"`
	Name         string
	UnitPrice    float64 `gorm:"type:decimal(12,2)"`
	Quantity     int
}

// TableName 指定 GORM 应该使用的表名
func (OrderLineModel) TableName() string {
	return "checkout_order_line"
}
