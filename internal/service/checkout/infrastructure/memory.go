// internal/service/checkout/infrastructure/memory.go
package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"vertex/internal/service/checkout/domain"
)

// MemoryLedgerStore 是 domain.LedgerStore 的内存实现，
// 用于测试和本地运行。版本比对语义与 GORM 实现一致：
// 每个写入以读取时的版本为条件，冲突返回 ErrVersionConflict。
type MemoryLedgerStore struct {
	mu           sync.Mutex
	items        map[string]*domain.InventoryItem
	reservations map[string]*domain.Reservation // by reservation id
	order        []string                       // 插入顺序，保证遍历稳定
}

// NewMemoryLedgerStore 创建空的内存台账。
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		items:        make(map[string]*domain.InventoryItem),
		reservations: make(map[string]*domain.Reservation),
	}
}

func (s *MemoryLedgerStore) GetItem(_ context.Context, sku string) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[sku]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	clone := *item
	return &clone, nil
}

func (s *MemoryLedgerStore) UpsertItem(_ context.Context, item *domain.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *item
	if existing, ok := s.items[item.SKU]; ok {
		clone.Version = existing.Version
	} else {
		clone.Version = 0
	}
	s.items[item.SKU] = &clone
	return nil
}

func (s *MemoryLedgerStore) ApplyReserve(_ context.Context, item *domain.InventoryItem, res *domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.casWrite(item); err != nil {
		return err
	}
	clone := *res
	s.reservations[res.ID] = &clone
	s.order = append(s.order, res.ID)
	return nil
}

func (s *MemoryLedgerStore) ApplyCommit(_ context.Context, item *domain.InventoryItem, res *domain.Reservation) error {
	return s.flip(item, res, domain.ReservationCommitted)
}

func (s *MemoryLedgerStore) ApplyRelease(_ context.Context, item *domain.InventoryItem, res *domain.Reservation) error {
	return s.flip(item, res, domain.ReservationReleased)
}

func (s *MemoryLedgerStore) flip(item *domain.InventoryItem, res *domain.Reservation, to domain.ReservationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.reservations[res.ID]
	if !ok || stored.Status != domain.ReservationPending {
		return domain.ErrAlreadyTerminal
	}
	if err := s.casWrite(item); err != nil {
		return err
	}
	stored.Status = to
	res.Status = to
	return nil
}

// casWrite 模拟带版本条件的 UPDATE，调用方必须持有锁。
func (s *MemoryLedgerStore) casWrite(item *domain.InventoryItem) error {
	existing, ok := s.items[item.SKU]
	if !ok {
		return domain.ErrItemNotFound
	}
	if existing.Version != item.Version {
		return domain.ErrVersionConflict
	}
	clone := *item
	clone.Version = item.Version + 1
	clone.UpdatedAt = time.Now()
	s.items[item.SKU] = &clone
	return nil
}

func (s *MemoryLedgerStore) ReservationsByCorrelation(_ context.Context, correlationID string) ([]*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Reservation
	for _, id := range s.order {
		res := s.reservations[id]
		if res.CorrelationID == correlationID {
			clone := *res
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *MemoryLedgerStore) ExpiredPending(_ context.Context, cutoff time.Time, limit int) ([]*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Reservation
	for _, id := range s.order {
		res := s.reservations[id]
		if res.Status == domain.ReservationPending && res.ExpiresAt.Before(cutoff) {
			clone := *res
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryOrderStore 是 domain.OrderStore 的内存实现。
type MemoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order // by correlation id
}

// NewMemoryOrderStore 创建空的内存订单存储。
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[string]*domain.Order)}
}

func (s *MemoryOrderStore) Append(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.CorrelationID]; ok {
		return domain.ErrAlreadyTerminal
	}
	clone := *order
	s.orders[order.CorrelationID] = &clone
	return nil
}

func (s *MemoryOrderStore) FindByCorrelation(_ context.Context, correlationID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[correlationID]
	if !ok {
		return nil, nil
	}
	clone := *order
	return &clone, nil
}
