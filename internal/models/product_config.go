package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductConfig конфигурация изделия (SKU): код, категория, размер
type ProductConfig struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	MerchantID  string    `json:"merchant_id" gorm:"type:uuid;not null;index"`
	ProductCode string    `json:"product_code" gorm:"type:varchar(100);not null;index"`
	Category    string    `json:"category" gorm:"type:varchar(100)"`
	Subcategory string    `json:"subcategory" gorm:"type:varchar(100)"`
	SizeValue   string    `json:"size_value" gorm:"type:varchar(50)"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Materials []BOMEntry `json:"materials,omitempty" gorm:"foreignKey:ProductConfigID"`
}

// TableName указывает имя таблицы
func (ProductConfig) TableName() string {
	return "product_configs"
}

// BeforeCreate генерирует UUID
func (pc *ProductConfig) BeforeCreate(tx *gorm.DB) error {
	if pc.ID == "" {
		pc.ID = uuid.New().String()
	}
	return nil
}

// BOMEntry строка спецификации: сколько сырья нужно на одно изделие
type BOMEntry struct {
	ID               string    `json:"id" gorm:"type:uuid;primaryKey"`
	MerchantID       string    `json:"merchant_id" gorm:"type:uuid;not null;index"`
	ProductConfigID  string    `json:"product_config_id" gorm:"type:uuid;not null;index"`
	RawMaterialID    string    `json:"raw_material_id" gorm:"type:uuid;not null;index"`
	QuantityRequired float64   `json:"quantity_required" gorm:"type:decimal(12,4);not null"` // На 1 единицу изделия, всегда > 0
	Unit             string    `json:"unit" gorm:"type:varchar(20);not null;default:'g'"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName указывает имя таблицы
func (BOMEntry) TableName() string {
	return "product_config_materials"
}

// BeforeCreate генерирует UUID
func (b *BOMEntry) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}
