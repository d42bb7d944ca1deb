package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ManufacturingOrderStatus статус заказа на производство
type ManufacturingOrderStatus string

const (
	ManufacturingOrderStatusPending    ManufacturingOrderStatus = "pending"
	ManufacturingOrderStatusInProgress ManufacturingOrderStatus = "in_progress"
	ManufacturingOrderStatusCompleted  ManufacturingOrderStatus = "completed"
)

const (
	// PrimaryOrderPrefix префикс номеров основных заказов (MO000001)
	PrimaryOrderPrefix = "MO"
	// ReworkSeparator отделяет номер переделки от номера родителя (MO000001-R1)
	ReworkSeparator = "-R"
)

// IsPrimaryOrderNumber номер основного заказа: префикс MO, без разделителя переделки, далее только цифры.
// Номера других форматов (например, импортированные WO-...) в нумерации не участвуют
func IsPrimaryOrderNumber(number string) bool {
	if !strings.HasPrefix(number, PrimaryOrderPrefix) || strings.Contains(number, ReworkSeparator) {
		return false
	}
	digits := number[len(PrimaryOrderPrefix):]
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ManufacturingOrder заказ на производство
// ParentOrderID != nil означает заказ на переделку (rework)
type ManufacturingOrder struct {
	ID                 string                   `json:"id" gorm:"type:uuid;primaryKey"`
	MerchantID         string                   `json:"merchant_id" gorm:"type:uuid;not null;uniqueIndex:idx_mo_merchant_number"`
	OrderNumber        string                   `json:"order_number" gorm:"type:varchar(100);not null;uniqueIndex:idx_mo_merchant_number"` // MO000001, MO000001-R1
	ProductConfigID    string                   `json:"product_config_id" gorm:"type:uuid;not null;index"`
	QuantityRequired   int                      `json:"quantity_required" gorm:"not null"`
	ParentOrderID      *string                  `json:"parent_order_id" gorm:"type:uuid;index"`
	ReworkSourceStepID *string                  `json:"rework_source_step_id" gorm:"type:uuid;index"` // Экземпляр этапа, с которого отправлено на переделку
	ReworkQuantity     *int                     `json:"rework_quantity"`
	Priority           string                   `json:"priority" gorm:"type:varchar(20);default:'medium'"`
	Status             ManufacturingOrderStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	CreatedAt          time.Time                `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt          time.Time                `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (ManufacturingOrder) TableName() string {
	return "manufacturing_orders"
}

// BeforeCreate генерирует UUID и значения по умолчанию
func (mo *ManufacturingOrder) BeforeCreate(tx *gorm.DB) error {
	if mo.ID == "" {
		mo.ID = uuid.New().String()
	}
	if mo.Status == "" {
		mo.Status = ManufacturingOrderStatusPending
	}
	if mo.Priority == "" {
		mo.Priority = "medium"
	}
	return nil
}

// IsRework сообщает, является ли заказ переделкой
func (mo *ManufacturingOrder) IsRework() bool {
	return mo.ParentOrderID != nil
}
