package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderItemStatus статус позиции клиентского заказа
type OrderItemStatus string

const (
	OrderItemStatusCreated    OrderItemStatus = "Created"
	OrderItemStatusInProgress OrderItemStatus = "In Progress"
	OrderItemStatusReady      OrderItemStatus = "Ready"
	OrderItemStatusDelivered  OrderItemStatus = "Delivered"
)

// LiveDemandStatuses статусы, которые формируют текущий спрос
var LiveDemandStatuses = []OrderItemStatus{OrderItemStatusCreated, OrderItemStatusInProgress}

// IsLiveDemand сообщает, учитывается ли позиция в спросе
func (s OrderItemStatus) IsLiveDemand() bool {
	return s == OrderItemStatusCreated || s == OrderItemStatusInProgress
}

// OrderItem позиция клиентского заказа (агрегат заказа управляется внешним CRUD)
type OrderItem struct {
	ID              string          `json:"id" gorm:"type:uuid;primaryKey"`
	MerchantID      string          `json:"merchant_id" gorm:"type:uuid;not null;index"`
	OrderID         string          `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductConfigID string          `json:"product_config_id" gorm:"type:uuid;not null;index"`
	Quantity        int             `json:"quantity" gorm:"not null;default:0"`
	Status          OrderItemStatus `json:"status" gorm:"type:varchar(20);not null;default:'Created';index"`
	CreatedAt       time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (OrderItem) TableName() string {
	return "order_items"
}

// BeforeCreate генерирует UUID
func (oi *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if oi.ID == "" {
		oi.ID = uuid.New().String()
	}
	return nil
}
