// Package store предоставляет доступ к таблицам MRP в разрезе мерчанта (tenant).
// Все методы принимают мерчанта явно, глобального "текущего мерчанта" нет.
package store

import (
	"context"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/models"
)

// TenantResolver определяет мерчанта по пользователю сессии
type TenantResolver interface {
	ResolveTenant(ctx context.Context, userID string) (string, error)
}

// StepOrderProvider отдает настроенную мерчантом последовательность этапов: имя этапа -> порядок
type StepOrderProvider interface {
	GetStepOrderConfig(ctx context.Context, tenant string) (map[string]int, error)
}

// Store операции чтения и записи, которые нужны ядру MRP
type Store interface {
	TenantResolver
	StepOrderProvider

	QueryOrderItems(ctx context.Context, tenant string, statuses []models.OrderItemStatus) ([]models.OrderItem, error)
	QueryFinishedGoods(ctx context.Context, tenant string) ([]models.FinishedGood, error)
	QueryRawMaterials(ctx context.Context, tenant string) ([]models.RawMaterial, error)
	QueryBOMEntries(ctx context.Context, tenant string) ([]models.BOMEntry, error)
	QueryManufacturingOrders(ctx context.Context, tenant string) ([]models.ManufacturingOrder, error)
	QueryStepInstances(ctx context.Context, tenant string) ([]models.StepInstance, error)

	GetManufacturingOrder(ctx context.Context, tenant, id string) (*models.ManufacturingOrder, error)
	GetStepInstance(ctx context.Context, tenant, id string) (*models.StepInstance, error)

	// UpdateRawMaterialRequired пишет только поля required и last_updated
	UpdateRawMaterialRequired(ctx context.Context, tenant, id string, required float64, at time.Time) error

	// LatestPrimaryOrderNumber возвращает лексикографически максимальный номер среди заказов без родителя ("" если заказов нет)
	LatestPrimaryOrderNumber(ctx context.Context, tenant string) (string, error)
	// ReworkOrderNumbers возвращает номера переделок, созданных от заказа parentOrderNumber
	ReworkOrderNumbers(ctx context.Context, tenant, parentOrderNumber string) ([]string, error)
	OrderNumberExists(ctx context.Context, tenant, orderNumber string) (bool, error)
	// InsertManufacturingOrder возвращает ErrUniqueViolation, если номер уже занят
	InsertManufacturingOrder(ctx context.Context, order *models.ManufacturingOrder) error

	InsertStepInstance(ctx context.Context, instance *models.StepInstance) error
	// NextInstanceNumber атомарно увеличивает счетчик пары (заказ, этап) и возвращает новое значение
	NextInstanceNumber(ctx context.Context, orderID, stepName string) (int, error)
}
