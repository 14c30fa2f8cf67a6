// internal/service/checkout/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"vertex/internal/service/checkout/domain"
)

// GormLedgerStore 是 domain.LedgerStore 的 GORM 实现。
//
// 乐观并发写入的落地方式: 台账行的 UPDATE 带 `version = ?` 条件并自增
// version，RowsAffected == 0 视为版本冲突；预留行的状态翻转带
// `status = 'PENDING'` 守卫。两条语句包在同一个事务里，守卫失败时
// 整个事务回滚，台账不会被半改。
type GormLedgerStore struct {
	db *gorm.DB
}

// NewGormLedgerStore 创建一个新的 GORM 台账实例。
func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{db: db}
}

// AutoMigrate 建表。部署时由启动流程调用一次。
func (s *GormLedgerStore) AutoMigrate() error {
	return s.db.AutoMigrate(&InventoryItemModel{}, &ReservationModel{})
}

func (s *GormLedgerStore) GetItem(ctx context.Context, sku string) (*domain.InventoryItem, error) {
	var model InventoryItemModel
	err := s.db.WithContext(ctx).Where("sku = ?", sku).First(&model).Error
	if err != nil {
		if pkgerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, pkgerrors.Wrapf(err, "failed to load inventory item %s", sku)
	}
	return ToDomainItem(&model), nil
}

func (s *GormLedgerStore) UpsertItem(ctx context.Context, item *domain.InventoryItem) error {
	var existing InventoryItemModel
	err := s.db.WithContext(ctx).Where("sku = ?", item.SKU).First(&existing).Error
	if pkgerrors.Is(err, gorm.ErrRecordNotFound) {
		model := InventoryItemModel{
			SKU:              item.SKU,
			TotalQuantity:    item.TotalQuantity,
			ReservedQuantity: item.ReservedQuantity,
			Version:          0,
		}
		return pkgerrors.Wrap(s.db.WithContext(ctx).Create(&model).Error, "failed to create inventory item")
	}
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load inventory item for upsert")
	}

	updates := map[string]interface{}{
		"total_quantity":    item.TotalQuantity,
		"reserved_quantity": item.ReservedQuantity,
	}
	return pkgerrors.Wrap(
		s.db.WithContext(ctx).Model(&InventoryItemModel{}).Where("sku = ?", item.SKU).Updates(updates).Error,
		"failed to update inventory item")
}

func (s *GormLedgerStore) ApplyReserve(ctx context.Context, item *domain.InventoryItem, res *domain.Reservation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.casUpdateItem(tx, item); err != nil {
			return err
		}
		if err := tx.Create(ToReservationModel(res)).Error; err != nil {
			return pkgerrors.Wrap(err, "failed to insert reservation")
		}
		return nil
	})
}

func (s *GormLedgerStore) ApplyCommit(ctx context.Context, item *domain.InventoryItem, res *domain.Reservation) error {
	return s.flip(ctx, item, res, domain.ReservationCommitted)
}

func (s *GormLedgerStore) ApplyRelease(ctx context.Context, item *domain.InventoryItem, res *domain.Reservation) error {
	return s.flip(ctx, item, res, domain.ReservationReleased)
}

// flip 在一个事务里更新台账行并把预留翻转到终态。
func (s *GormLedgerStore) flip(ctx context.Context, item *domain.InventoryItem, res *domain.Reservation, to domain.ReservationStatus) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.casUpdateItem(tx, item); err != nil {
			return err
		}

		result := tx.Model(&ReservationModel{}).
			Where("reservation_id = ? AND status = ?", res.ID, string(domain.ReservationPending)).
			Update("status", string(to))
		if result.Error != nil {
			return pkgerrors.Wrap(result.Error, "failed to flip reservation status")
		}
		if result.RowsAffected == 0 {
			// 状态守卫失败：别人先到了终态，回滚台账写入
			return domain.ErrAlreadyTerminal
		}
		return nil
	})
	if err == nil {
		switch to {
		case domain.ReservationCommitted:
			res.Status = domain.ReservationCommitted
		case domain.ReservationReleased:
			res.Status = domain.ReservationReleased
		}
	}
	return err
}

// casUpdateItem 以版本号为条件写回台账行，不匹配返回 ErrVersionConflict。
func (s *GormLedgerStore) casUpdateItem(tx *gorm.DB, item *domain.InventoryItem) error {
	result := tx.Model(&InventoryItemModel{}).
		Where("sku = ? AND version = ?", item.SKU, item.Version).
		Updates(map[string]interface{}{
			"total_quantity":    item.TotalQuantity,
			"reserved_quantity": item.ReservedQuantity,
			"version":           item.Version + 1,
		})
	if result.Error != nil {
		return pkgerrors.Wrap(result.Error, "failed to update inventory item")
	}
	if result.RowsAffected == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func (s *GormLedgerStore) ReservationsByCorrelation(ctx context.Context, correlationID string) ([]*domain.Reservation, error) {
	var models []ReservationModel
	err := s.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load reservations by correlation")
	}

	reservations := make([]*domain.Reservation, 0, len(models))
	for i := range models {
		reservations = append(reservations, ToDomainReservation(&models[i]))
	}
	return reservations, nil
}

func (s *GormLedgerStore) ExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Reservation, error) {
	var models []ReservationModel
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", string(domain.ReservationPending), cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load expired reservations")
	}

	reservations := make([]*domain.Reservation, 0, len(models))
	for i := range models {
		reservations = append(reservations, ToDomainReservation(&models[i]))
	}
	return reservations, nil
}

// GormOrderStore 是 domain.OrderStore 的 GORM 实现。
type GormOrderStore struct {
	db *gorm.DB
}

// NewGormOrderStore 创建一个新的 GORM 订单存储实例。
func NewGormOrderStore(db *gorm.DB) *GormOrderStore {
	return &GormOrderStore{db: db}
}

// AutoMigrate 建表。
func (s *GormOrderStore) AutoMigrate() error {
	return s.db.AutoMigrate(&CheckoutOrderModel{}, &OrderLineModel{})
}

// Append 写入终态订单。correlation_id 上的唯一索引兜底"每次结算至多一条"。
func (s *GormOrderStore) Append(ctx context.Context, order *domain.Order) error {
	model := ToOrderModel(order)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return pkgerrors.Wrapf(err, "failed to append order for correlation %s", order.CorrelationID)
	}
	return nil
}

func (s *GormOrderStore) FindByCorrelation(ctx context.Context, correlationID string) (*domain.Order, error) {
	var model CheckoutOrderModel
	err := s.db.WithContext(ctx).
		Preload("Lines").
		Where("correlation_id = ?", correlationID).
		First(&model).Error
	if err != nil {
		if pkgerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(err, "failed to load order by correlation")
	}
	return ToDomainOrder(&model), nil
}
