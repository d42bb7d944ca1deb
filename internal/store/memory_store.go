package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/models"

	"github.com/google/uuid"
)

var _ Store = (*MemoryStore)(nil)

type counterKey struct {
	orderID  string
	stepName string
}

// MemoryStore хранит данные в памяти процесса.
// Используется без PostgreSQL (разработка) и в тестах; соблюдает те же
// ограничения уникальности и атомарность счетчика, что и PostgresStore
type MemoryStore struct {
	mu sync.RWMutex

	tenants       map[string]string // user_id -> merchant_id
	orderItems    map[string]models.OrderItem
	finishedGoods map[string]models.FinishedGood
	rawMaterials  map[string]models.RawMaterial
	bomEntries    map[string]models.BOMEntry
	orders        map[string]models.ManufacturingOrder
	instances     map[string]models.StepInstance
	counters      map[counterKey]int
	steps         map[string]map[string]int // merchant -> step -> order

	// Хуки для имитации сбоев в тестах
	UpdateRawMaterialHook func(id string) error
	InsertOrderHook       func(order *models.ManufacturingOrder) error
	InsertInstanceHook    func(instance *models.StepInstance) error
	ProbeHook             func(tenant, orderNumber string)
}

// NewMemoryStore создает пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:       make(map[string]string),
		orderItems:    make(map[string]models.OrderItem),
		finishedGoods: make(map[string]models.FinishedGood),
		rawMaterials:  make(map[string]models.RawMaterial),
		bomEntries:    make(map[string]models.BOMEntry),
		orders:        make(map[string]models.ManufacturingOrder),
		instances:     make(map[string]models.StepInstance),
		counters:      make(map[counterKey]int),
		steps:         make(map[string]map[string]int),
	}
}

// SetTenant привязывает пользователя к мерчанту
func (s *MemoryStore) SetTenant(userID, merchantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[userID] = merchantID
}

// PutOrderItem добавляет или заменяет позицию заказа
func (s *MemoryStore) PutOrderItem(item models.OrderItem) models.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	s.orderItems[item.ID] = item
	return item
}

// PutFinishedGood добавляет или заменяет остаток готового изделия
func (s *MemoryStore) PutFinishedGood(fg models.FinishedGood) models.FinishedGood {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fg.ID == "" {
		fg.ID = uuid.New().String()
	}
	if fg.LastUpdated.IsZero() {
		fg.LastUpdated = time.Now().UTC()
	}
	s.finishedGoods[fg.ID] = fg
	return fg
}

// PutRawMaterial добавляет или заменяет сырье
func (s *MemoryStore) PutRawMaterial(rm models.RawMaterial) models.RawMaterial {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rm.ID == "" {
		rm.ID = uuid.New().String()
	}
	s.rawMaterials[rm.ID] = rm
	return rm
}

// PutBOMEntry добавляет строку спецификации
func (s *MemoryStore) PutBOMEntry(entry models.BOMEntry) models.BOMEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	s.bomEntries[entry.ID] = entry
	return entry
}

// SetStepOrder задает порядок этапа для мерчанта
func (s *MemoryStore) SetStepOrder(tenant, stepName string, order int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.steps[tenant] == nil {
		s.steps[tenant] = make(map[string]int)
	}
	s.steps[tenant][stepName] = order
}

// RawMaterial возвращает текущее состояние сырья (для проверок в тестах)
func (s *MemoryStore) RawMaterial(id string) (models.RawMaterial, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rm, ok := s.rawMaterials[id]
	return rm, ok
}

func (s *MemoryStore) ResolveTenant(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify("resolve tenant", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	merchantID, ok := s.tenants[userID]
	if !ok {
		return "", fmt.Errorf("resolve tenant for user %s: %w", userID, ErrNotFound)
	}
	return merchantID, nil
}

func (s *MemoryStore) QueryOrderItems(ctx context.Context, tenant string, statuses []models.OrderItemStatus) ([]models.OrderItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("query order items", err)
	}
	allowed := make(map[models.OrderItemStatus]bool, len(statuses))
	for _, st := range statuses {
		allowed[st] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []models.OrderItem
	for _, item := range s.orderItems {
		if item.MerchantID != tenant {
			continue
		}
		if len(allowed) > 0 && !allowed[item.Status] {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *MemoryStore) QueryFinishedGoods(ctx context.Context, tenant string) ([]models.FinishedGood, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("query finished goods", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var goods []models.FinishedGood
	for _, fg := range s.finishedGoods {
		if fg.MerchantID == tenant {
			goods = append(goods, fg)
		}
	}
	sort.Slice(goods, func(i, j int) bool { return goods[i].ID < goods[j].ID })
	return goods, nil
}

func (s *MemoryStore) QueryRawMaterials(ctx context.Context, tenant string) ([]models.RawMaterial, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("query raw materials", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var materials []models.RawMaterial
	for _, rm := range s.rawMaterials {
		if rm.MerchantID == tenant {
			materials = append(materials, rm)
		}
	}
	sort.Slice(materials, func(i, j int) bool {
		if materials[i].Name != materials[j].Name {
			return materials[i].Name < materials[j].Name
		}
		return materials[i].ID < materials[j].ID
	})
	return materials, nil
}

func (s *MemoryStore) QueryBOMEntries(ctx context.Context, tenant string) ([]models.BOMEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("query bom entries", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []models.BOMEntry
	for _, e := range s.bomEntries {
		if e.MerchantID == tenant {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (s *MemoryStore) QueryManufacturingOrders(ctx context.Context, tenant string) ([]models.ManufacturingOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("query manufacturing orders", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var orders []models.ManufacturingOrder
	for _, o := range s.orders {
		if o.MerchantID == tenant {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderNumber < orders[j].OrderNumber })
	return orders, nil
}

func (s *MemoryStore) QueryStepInstances(ctx context.Context, tenant string) ([]models.StepInstance, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("query step instances", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var instances []models.StepInstance
	for _, si := range s.instances {
		if si.MerchantID == tenant {
			instances = append(instances, si)
		}
	}
	sort.Slice(instances, func(i, j int) bool {
		a, b := instances[i], instances[j]
		if a.OrderID != b.OrderID {
			return a.OrderID < b.OrderID
		}
		if a.StepName != b.StepName {
			return a.StepName < b.StepName
		}
		return a.InstanceNumber < b.InstanceNumber
	})
	return instances, nil
}

func (s *MemoryStore) GetManufacturingOrder(ctx context.Context, tenant, id string) (*models.ManufacturingOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("get manufacturing order", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok || order.MerchantID != tenant {
		return nil, fmt.Errorf("get manufacturing order %s: %w", id, ErrNotFound)
	}
	return &order, nil
}

func (s *MemoryStore) GetStepInstance(ctx context.Context, tenant, id string) (*models.StepInstance, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("get step instance", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	instance, ok := s.instances[id]
	if !ok || instance.MerchantID != tenant {
		return nil, fmt.Errorf("get step instance %s: %w", id, ErrNotFound)
	}
	return &instance, nil
}

func (s *MemoryStore) UpdateRawMaterialRequired(ctx context.Context, tenant, id string, required float64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return classify("update raw material "+id, err)
	}
	if s.UpdateRawMaterialHook != nil {
		if err := s.UpdateRawMaterialHook(id); err != nil {
			return fmt.Errorf("update raw material %s: %w", id, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.rawMaterials[id]
	if !ok || rm.MerchantID != tenant {
		return fmt.Errorf("update raw material %s: %w", id, ErrNotFound)
	}
	rm.Required = required
	rm.LastUpdated = at
	s.rawMaterials[id] = rm
	return nil
}

func (s *MemoryStore) LatestPrimaryOrderNumber(ctx context.Context, tenant string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify("latest primary order number", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := ""
	for _, o := range s.orders {
		if o.MerchantID != tenant || o.ParentOrderID != nil || !models.IsPrimaryOrderNumber(o.OrderNumber) {
			continue
		}
		if len(o.OrderNumber) > len(latest) || (len(o.OrderNumber) == len(latest) && o.OrderNumber > latest) {
			latest = o.OrderNumber
		}
	}
	return latest, nil
}

func (s *MemoryStore) ReworkOrderNumbers(ctx context.Context, tenant, parentOrderNumber string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("rework order numbers", err)
	}
	prefix := parentOrderNumber + "-R"
	s.mu.RLock()
	defer s.mu.RUnlock()
	var numbers []string
	for _, o := range s.orders {
		if o.MerchantID == tenant && o.ParentOrderID != nil && strings.HasPrefix(o.OrderNumber, prefix) {
			numbers = append(numbers, o.OrderNumber)
		}
	}
	sort.Strings(numbers)
	return numbers, nil
}

func (s *MemoryStore) OrderNumberExists(ctx context.Context, tenant, orderNumber string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, classify("probe order number", err)
	}
	if s.ProbeHook != nil {
		s.ProbeHook(tenant, orderNumber)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderNumberTaken(tenant, orderNumber), nil
}

func (s *MemoryStore) orderNumberTaken(tenant, orderNumber string) bool {
	for _, o := range s.orders {
		if o.MerchantID == tenant && o.OrderNumber == orderNumber {
			return true
		}
	}
	return false
}

func (s *MemoryStore) InsertManufacturingOrder(ctx context.Context, order *models.ManufacturingOrder) error {
	if err := ctx.Err(); err != nil {
		return classify("insert manufacturing order", err)
	}
	if s.InsertOrderHook != nil {
		if err := s.InsertOrderHook(order); err != nil {
			return fmt.Errorf("insert manufacturing order %s: %w", order.OrderNumber, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orderNumberTaken(order.MerchantID, order.OrderNumber) {
		return fmt.Errorf("insert manufacturing order %s: %w", order.OrderNumber, ErrUniqueViolation)
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Status == "" {
		order.Status = models.ManufacturingOrderStatusPending
	}
	now := time.Now().UTC()
	order.CreatedAt, order.UpdatedAt = now, now
	s.orders[order.ID] = *order
	return nil
}

func (s *MemoryStore) InsertStepInstance(ctx context.Context, instance *models.StepInstance) error {
	if err := ctx.Err(); err != nil {
		return classify("insert step instance", err)
	}
	if s.InsertInstanceHook != nil {
		if err := s.InsertInstanceHook(instance); err != nil {
			return fmt.Errorf("insert step instance: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.instances {
		if existing.OrderID == instance.OrderID && existing.StepName == instance.StepName &&
			existing.InstanceNumber == instance.InstanceNumber {
			return fmt.Errorf("insert step instance %s #%d: %w", instance.StepName, instance.InstanceNumber, ErrUniqueViolation)
		}
	}
	if instance.ID == "" {
		instance.ID = uuid.New().String()
	}
	if instance.Status == "" {
		instance.Status = models.StepInstanceStatusInProgress
	}
	now := time.Now().UTC()
	instance.CreatedAt, instance.UpdatedAt = now, now
	s.instances[instance.ID] = *instance
	return nil
}

func (s *MemoryStore) NextInstanceNumber(ctx context.Context, orderID, stepName string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, classify("next instance number", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := counterKey{orderID: orderID, stepName: stepName}
	s.counters[key]++
	return s.counters[key], nil
}

func (s *MemoryStore) GetStepOrderConfig(ctx context.Context, tenant string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("get step order config", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	config := make(map[string]int, len(s.steps[tenant]))
	for name, order := range s.steps[tenant] {
		config[name] = order
	}
	return config, nil
}
