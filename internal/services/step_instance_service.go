package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/events"
	"github.com/Jooldo/zarify-sub003/internal/metrics"
	"github.com/Jooldo/zarify-sub003/internal/models"
	"github.com/Jooldo/zarify-sub003/internal/store"
)

// CreateStepInstanceRequest параметры нового экземпляра этапа.
// OriginStepID учитывается только без ParentInstanceID: у дочернего экземпляра
// источник переделки определяется по родителю
type CreateStepInstanceRequest struct {
	OrderID          string  `json:"order_id"`
	StepName         string  `json:"step_name"`
	ParentInstanceID *string `json:"parent_instance_id"`
	OriginStepID     *string `json:"origin_step_id"`
	IsRework         bool    `json:"is_rework"`
	QuantityAssigned int     `json:"quantity_assigned"`
	WeightAssigned   float64 `json:"weight_assigned"`
	WorkerID         *string `json:"worker_id"`
}

// StepInstanceService создает экземпляры этапов и распространяет признак переделки
type StepInstanceService struct {
	store     store.Store
	steps     store.StepOrderProvider
	publisher events.Publisher
	metrics   *metrics.Metrics
}

// NewStepInstanceService steps = nil означает последовательность этапов из хранилища
func NewStepInstanceService(st store.Store, steps store.StepOrderProvider, publisher events.Publisher, m *metrics.Metrics) *StepInstanceService {
	if steps == nil {
		steps = st
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &StepInstanceService{store: st, steps: steps, publisher: publisher, metrics: m}
}

// CreateStepInstance создает экземпляр со следующим номером для пары (заказ, этап).
// Номер берется из атомарного счетчика, поэтому неудачная вставка оставляет пропуск, но не повтор
func (s *StepInstanceService) CreateStepInstance(ctx context.Context, tenant string, req CreateStepInstanceRequest) (*models.StepInstance, error) {
	if req.OrderID == "" || req.StepName == "" {
		return nil, validationError("order_id and step_name are required")
	}
	if req.QuantityAssigned < 0 || req.WeightAssigned < 0 {
		return nil, validationError("assigned quantity and weight must not be negative")
	}

	order, err := s.store.GetManufacturingOrder(ctx, tenant, req.OrderID)
	if err != nil {
		return nil, err
	}

	origin, isRework, err := s.resolveOrigin(ctx, tenant, req)
	if err != nil {
		return nil, err
	}

	number, err := s.store.NextInstanceNumber(ctx, order.ID, req.StepName)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения номера экземпляра %s: %w", req.StepName, err)
	}

	instance := &models.StepInstance{
		MerchantID:       tenant,
		OrderID:          order.ID,
		StepName:         req.StepName,
		InstanceNumber:   number,
		ParentInstanceID: req.ParentInstanceID,
		OriginStepID:     origin,
		IsRework:         isRework,
		Status:           models.StepInstanceStatusInProgress,
		QuantityAssigned: req.QuantityAssigned,
		WeightAssigned:   req.WeightAssigned,
		WorkerID:         req.WorkerID,
	}
	if err := s.store.InsertStepInstance(ctx, instance); err != nil {
		return nil, err
	}

	s.metrics.StepInstanceCreated(instance.IsRework)
	log.Printf("✅ Step instance %s #%d создан (order: %s, rework: %v)", instance.StepName, instance.InstanceNumber, order.OrderNumber, instance.IsRework)

	event := events.Event{
		Type:       events.TypeStepInstanceCreated,
		MerchantID: tenant,
		Key:        instance.ID,
		OccurredAt: time.Now().UTC(),
		Payload:    instance,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("⚠️ Step instance %s: не удалось опубликовать событие: %v", instance.ID, err)
	}
	return instance, nil
}

// resolveOrigin вычисляет origin_step_id и is_rework нового экземпляра
func (s *StepInstanceService) resolveOrigin(ctx context.Context, tenant string, req CreateStepInstanceRequest) (*string, bool, error) {
	if req.ParentInstanceID == nil {
		if req.OriginStepID == nil {
			return nil, req.IsRework, nil
		}
		// Переделка, отмеченная вручную
		if _, err := s.store.GetStepInstance(ctx, tenant, *req.OriginStepID); err != nil {
			return nil, false, fmt.Errorf("origin step instance: %w", err)
		}
		origin := *req.OriginStepID
		return &origin, true, nil
	}

	parent, err := s.store.GetStepInstance(ctx, tenant, *req.ParentInstanceID)
	if err != nil {
		return nil, false, fmt.Errorf("parent step instance: %w", err)
	}
	// Связь родитель -> потомок существует только внутри одного заказа
	if parent.OrderID != req.OrderID {
		return nil, false, validationError("parent step instance %s belongs to order %s, not %s", parent.ID, parent.OrderID, req.OrderID)
	}
	if parent.OriginStepID == nil {
		return nil, req.IsRework, nil
	}

	originInstance, err := s.store.GetStepInstance(ctx, tenant, *parent.OriginStepID)
	if err != nil {
		return nil, false, fmt.Errorf("origin step instance: %w", err)
	}

	config, err := s.steps.GetStepOrderConfig(ctx, tenant)
	if err != nil {
		return nil, false, err
	}
	newOrder, newOK := config[req.StepName]
	originOrder, originOK := config[originInstance.StepName]
	if !newOK || !originOK {
		missing := req.StepName
		if newOK {
			missing = originInstance.StepName
		}
		log.Printf("⚠️ Step instance: %v: этап %q (merchant: %s), признак переделки не распространяется",
			ErrStepConfigMissing, missing, tenant)
		return nil, req.IsRework, nil
	}

	// Линия вернулась к этапу источника или еще не прошла его: это переделка
	if newOrder <= originOrder {
		origin := *parent.OriginStepID
		return &origin, true, nil
	}
	return nil, req.IsRework, nil
}
