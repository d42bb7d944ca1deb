package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/models"

	"gorm.io/gorm"
)

// Compile-time проверка контракта
var _ Store = (*PostgresStore)(nil)

// PostgresStore реализация Store поверх gorm/PostgreSQL
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore создает новый экземпляр PostgresStore
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ResolveTenant вызывает RPC get_user_merchant_id
func (s *PostgresStore) ResolveTenant(ctx context.Context, userID string) (string, error) {
	var merchantID sql.NullString
	if err := s.db.WithContext(ctx).Raw("SELECT get_user_merchant_id(?)", userID).Scan(&merchantID).Error; err != nil {
		return "", classify("resolve tenant", err)
	}
	if !merchantID.Valid || merchantID.String == "" {
		return "", fmt.Errorf("resolve tenant for user %s: %w", userID, ErrNotFound)
	}
	return merchantID.String, nil
}

func (s *PostgresStore) QueryOrderItems(ctx context.Context, tenant string, statuses []models.OrderItemStatus) ([]models.OrderItem, error) {
	var items []models.OrderItem
	q := s.db.WithContext(ctx).Where("merchant_id = ?", tenant)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, classify("query order items", err)
	}
	return items, nil
}

func (s *PostgresStore) QueryFinishedGoods(ctx context.Context, tenant string) ([]models.FinishedGood, error) {
	var goods []models.FinishedGood
	if err := s.db.WithContext(ctx).Where("merchant_id = ?", tenant).Find(&goods).Error; err != nil {
		return nil, classify("query finished goods", err)
	}
	return goods, nil
}

func (s *PostgresStore) QueryRawMaterials(ctx context.Context, tenant string) ([]models.RawMaterial, error) {
	var materials []models.RawMaterial
	if err := s.db.WithContext(ctx).Where("merchant_id = ?", tenant).Order("name").Find(&materials).Error; err != nil {
		return nil, classify("query raw materials", err)
	}
	return materials, nil
}

func (s *PostgresStore) QueryBOMEntries(ctx context.Context, tenant string) ([]models.BOMEntry, error) {
	var entries []models.BOMEntry
	if err := s.db.WithContext(ctx).Where("merchant_id = ?", tenant).Find(&entries).Error; err != nil {
		return nil, classify("query bom entries", err)
	}
	return entries, nil
}

func (s *PostgresStore) QueryManufacturingOrders(ctx context.Context, tenant string) ([]models.ManufacturingOrder, error) {
	var orders []models.ManufacturingOrder
	if err := s.db.WithContext(ctx).Where("merchant_id = ?", tenant).Order("order_number").Find(&orders).Error; err != nil {
		return nil, classify("query manufacturing orders", err)
	}
	return orders, nil
}

func (s *PostgresStore) QueryStepInstances(ctx context.Context, tenant string) ([]models.StepInstance, error) {
	var instances []models.StepInstance
	if err := s.db.WithContext(ctx).Where("merchant_id = ?", tenant).
		Order("order_id, step_name, instance_number").
		Find(&instances).Error; err != nil {
		return nil, classify("query step instances", err)
	}
	return instances, nil
}

func (s *PostgresStore) GetManufacturingOrder(ctx context.Context, tenant, id string) (*models.ManufacturingOrder, error) {
	var order models.ManufacturingOrder
	if err := s.db.WithContext(ctx).Where("merchant_id = ? AND id = ?", tenant, id).First(&order).Error; err != nil {
		return nil, classify("get manufacturing order", err)
	}
	return &order, nil
}

func (s *PostgresStore) GetStepInstance(ctx context.Context, tenant, id string) (*models.StepInstance, error) {
	var instance models.StepInstance
	if err := s.db.WithContext(ctx).Where("merchant_id = ? AND id = ?", tenant, id).First(&instance).Error; err != nil {
		return nil, classify("get step instance", err)
	}
	return &instance, nil
}

// UpdateRawMaterialRequired использует UpdateColumns: без хуков и без изменения остатков
func (s *PostgresStore) UpdateRawMaterialRequired(ctx context.Context, tenant, id string, required float64, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.RawMaterial{}).
		Where("merchant_id = ? AND id = ?", tenant, id).
		UpdateColumns(map[string]interface{}{
			"required":     required,
			"last_updated": at,
		})
	if res.Error != nil {
		return classify("update raw material "+id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update raw material %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) LatestPrimaryOrderNumber(ctx context.Context, tenant string) (string, error) {
	var numbers []string
	if err := s.db.WithContext(ctx).Model(&models.ManufacturingOrder{}).
		Where("merchant_id = ? AND parent_order_id IS NULL", tenant).
		// То же правило, что models.IsPrimaryOrderNumber
		Where("order_number LIKE ? AND order_number NOT LIKE ? AND order_number ~ ?",
			models.PrimaryOrderPrefix+"%", "%"+models.ReworkSeparator+"%", "^"+models.PrimaryOrderPrefix+"[0-9]+$").
		// Длина, затем значение: MO1000000 старше MO999999
		Order("length(order_number) DESC, order_number DESC").
		Limit(1).
		Pluck("order_number", &numbers).Error; err != nil {
		return "", classify("latest primary order number", err)
	}
	if len(numbers) == 0 {
		return "", nil
	}
	return numbers[0], nil
}

func (s *PostgresStore) ReworkOrderNumbers(ctx context.Context, tenant, parentOrderNumber string) ([]string, error) {
	var numbers []string
	if err := s.db.WithContext(ctx).Model(&models.ManufacturingOrder{}).
		Where("merchant_id = ? AND parent_order_id IS NOT NULL AND order_number LIKE ?", tenant, parentOrderNumber+"-R%").
		Pluck("order_number", &numbers).Error; err != nil {
		return nil, classify("rework order numbers", err)
	}
	return numbers, nil
}

func (s *PostgresStore) OrderNumberExists(ctx context.Context, tenant, orderNumber string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ManufacturingOrder{}).
		Where("merchant_id = ? AND order_number = ?", tenant, orderNumber).
		Count(&count).Error; err != nil {
		return false, classify("probe order number", err)
	}
	return count > 0, nil
}

func (s *PostgresStore) InsertManufacturingOrder(ctx context.Context, order *models.ManufacturingOrder) error {
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return classify("insert manufacturing order "+order.OrderNumber, err)
	}
	return nil
}

func (s *PostgresStore) InsertStepInstance(ctx context.Context, instance *models.StepInstance) error {
	if err := s.db.WithContext(ctx).Create(instance).Error; err != nil {
		return classify("insert step instance", err)
	}
	return nil
}

// NextInstanceNumber одна UPSERT-команда: конкурентные вызовы сериализуются на строке счетчика
func (s *PostgresStore) NextInstanceNumber(ctx context.Context, orderID, stepName string) (int, error) {
	var next int
	err := s.db.WithContext(ctx).Raw(`
		INSERT INTO step_instance_counters (order_id, step_name, last_value)
		VALUES (?, ?, 1)
		ON CONFLICT (order_id, step_name)
		DO UPDATE SET last_value = step_instance_counters.last_value + 1
		RETURNING last_value
	`, orderID, stepName).Scan(&next).Error
	if err != nil {
		return 0, classify("next instance number", err)
	}
	return next, nil
}

func (s *PostgresStore) GetStepOrderConfig(ctx context.Context, tenant string) (map[string]int, error) {
	var steps []models.ManufacturingStep
	if err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND is_active = true", tenant).
		Find(&steps).Error; err != nil {
		return nil, classify("get step order config", err)
	}
	config := make(map[string]int, len(steps))
	for _, step := range steps {
		config[step.StepName] = step.StepOrder
	}
	return config, nil
}
