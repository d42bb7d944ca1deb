// Package events публикует доменные события MRP (пересчет потребностей,
// новые заказы на производство, экземпляры этапов)
package events

import (
	"context"
	"time"
)

// Типы событий
const (
	TypeMaterialsRecalculated     = "materials.recalculated"
	TypeManufacturingOrderCreated = "manufacturing_order.created"
	TypeStepInstanceCreated       = "step_instance.created"
)

// Event доменное событие; Key определяет партицию (обычно ID сущности)
type Event struct {
	Type       string      `json:"type"`
	MerchantID string      `json:"merchant_id"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Publisher отправляет события; ошибка доставки не должна ломать основную операцию
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher используется, когда Kafka не настроена
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error { return nil }
