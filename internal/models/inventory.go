package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FinishedGood остаток готовых изделий по одной конфигурации
// RequiredQuantity записывается внешним агрегатором спроса по заказам
type FinishedGood struct {
	ID               string    `json:"id" gorm:"type:uuid;primaryKey"`
	MerchantID       string    `json:"merchant_id" gorm:"type:uuid;not null;uniqueIndex:idx_fg_merchant_config"`
	ProductConfigID  string    `json:"product_config_id" gorm:"type:uuid;not null;uniqueIndex:idx_fg_merchant_config"`
	CurrentStock     int       `json:"current_stock" gorm:"not null;default:0"`
	InManufacturing  int       `json:"in_manufacturing" gorm:"not null;default:0"`
	Threshold        int       `json:"threshold" gorm:"not null;default:0"`
	RequiredQuantity int       `json:"required_quantity" gorm:"not null;default:0"`
	LastUpdated      time.Time `json:"last_updated" gorm:"autoUpdateTime"`

	ProductConfig *ProductConfig `json:"product_config,omitempty" gorm:"foreignKey:ProductConfigID"`
}

// TableName указывает имя таблицы
func (FinishedGood) TableName() string {
	return "finished_goods"
}

// BeforeCreate генерирует UUID
func (fg *FinishedGood) BeforeCreate(tx *gorm.DB) error {
	if fg.ID == "" {
		fg.ID = uuid.New().String()
	}
	return nil
}

// RawMaterial сырье (металлы, камни, фурнитура)
// Required пишется только калькулятором потребностей, остальные поля - внешними процессами
type RawMaterial struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	MerchantID    string    `json:"merchant_id" gorm:"type:uuid;not null;index"`
	Name          string    `json:"name" gorm:"type:varchar(255);not null"`
	Type          string    `json:"type" gorm:"type:varchar(100)"`
	Unit          string    `json:"unit" gorm:"type:varchar(20);not null;default:'g'"`
	CurrentStock  float64   `json:"current_stock" gorm:"type:decimal(12,4);not null;default:0"`
	InProcurement float64   `json:"in_procurement" gorm:"type:decimal(12,4);not null;default:0"`
	MinimumStock  float64   `json:"minimum_stock" gorm:"type:decimal(12,4);not null;default:0"`
	Required      float64   `json:"required" gorm:"type:decimal(12,4);not null;default:0"`
	LastUpdated   time.Time `json:"last_updated"`
}

// TableName указывает имя таблицы
func (RawMaterial) TableName() string {
	return "raw_materials"
}

// BeforeCreate генерирует UUID
func (rm *RawMaterial) BeforeCreate(tx *gorm.DB) error {
	if rm.ID == "" {
		rm.ID = uuid.New().String()
	}
	return nil
}
