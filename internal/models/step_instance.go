package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StepInstanceStatus статус экземпляра этапа
type StepInstanceStatus string

const (
	StepInstanceStatusInProgress StepInstanceStatus = "in_progress"
	StepInstanceStatusCompleted  StepInstanceStatus = "completed"
)

// StepInstance одно выполнение этапа производства по заказу
// (этап может выполняться несколькими параллельными экземплярами)
type StepInstance struct {
	ID               string             `json:"id" gorm:"type:uuid;primaryKey"`
	MerchantID       string             `json:"merchant_id" gorm:"type:uuid;not null;index"`
	OrderID          string             `json:"order_id" gorm:"type:uuid;not null;uniqueIndex:idx_step_instance_number"`
	StepName         string             `json:"step_name" gorm:"type:varchar(100);not null;uniqueIndex:idx_step_instance_number"`
	InstanceNumber   int                `json:"instance_number" gorm:"not null;uniqueIndex:idx_step_instance_number"` // С 1, не переиспользуется
	ParentInstanceID *string            `json:"parent_instance_id" gorm:"type:uuid;index"`
	OriginStepID     *string            `json:"origin_step_id" gorm:"type:uuid;index"` // Экземпляр, с которого началась переделка
	IsRework         bool               `json:"is_rework" gorm:"default:false"`
	Status           StepInstanceStatus `json:"status" gorm:"type:varchar(20);not null;default:'in_progress'"`
	QuantityAssigned int                `json:"quantity_assigned" gorm:"default:0"`
	QuantityReceived int                `json:"quantity_received" gorm:"default:0"`
	WeightAssigned   float64            `json:"weight_assigned" gorm:"type:decimal(12,4);default:0"`
	WeightReceived   float64            `json:"weight_received" gorm:"type:decimal(12,4);default:0"`
	WorkerID         *string            `json:"worker_id" gorm:"type:uuid"`
	CreatedAt        time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (StepInstance) TableName() string {
	return "manufacturing_order_step_data"
}

// BeforeCreate генерирует UUID
func (si *StepInstance) BeforeCreate(tx *gorm.DB) error {
	if si.ID == "" {
		si.ID = uuid.New().String()
	}
	if si.Status == "" {
		si.Status = StepInstanceStatusInProgress
	}
	return nil
}

// StepInstanceCounter монотонный счетчик номеров экземпляров на пару (заказ, этап)
type StepInstanceCounter struct {
	OrderID   string `gorm:"type:uuid;primaryKey"`
	StepName  string `gorm:"type:varchar(100);primaryKey"`
	LastValue int    `gorm:"not null;default:0"`
}

// TableName указывает имя таблицы
func (StepInstanceCounter) TableName() string {
	return "step_instance_counters"
}

// ManufacturingStep настроенный мерчантом этап и его место в последовательности
type ManufacturingStep struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey"`
	MerchantID string    `json:"merchant_id" gorm:"type:uuid;not null;uniqueIndex:idx_step_merchant_name"`
	StepName   string    `json:"step_name" gorm:"type:varchar(100);not null;uniqueIndex:idx_step_merchant_name"`
	StepOrder  int       `json:"step_order" gorm:"not null"`
	IsActive   bool      `json:"is_active" gorm:"default:true"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (ManufacturingStep) TableName() string {
	return "manufacturing_steps"
}

// BeforeCreate генерирует UUID
func (ms *ManufacturingStep) BeforeCreate(tx *gorm.DB) error {
	if ms.ID == "" {
		ms.ID = uuid.New().String()
	}
	return nil
}
