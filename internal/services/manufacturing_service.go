package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/events"
	"github.com/Jooldo/zarify-sub003/internal/models"
	"github.com/Jooldo/zarify-sub003/internal/store"
)

// CreateOrderRequest новый заказ на производство
type CreateOrderRequest struct {
	ProductConfigID  string `json:"product_config_id"`
	QuantityRequired int    `json:"quantity_required"`
	Priority         string `json:"priority"`
}

// CreateReworkRequest заказ на переделку части выпуска этапа SourceStepInstanceID
type CreateReworkRequest struct {
	ParentOrderID        string `json:"parent_order_id"`
	SourceStepInstanceID string `json:"source_step_instance_id"`
	ReworkQuantity       int    `json:"rework_quantity"`
	Priority             string `json:"priority"`
}

// ReworkResult заказ переделки и его первый экземпляр этапа
type ReworkResult struct {
	Order     *models.ManufacturingOrder `json:"order"`
	FirstStep *models.StepInstance       `json:"first_step"`
}

// ManufacturingService создание заказов на производство и переделок
type ManufacturingService struct {
	store     store.Store
	numbers   *OrderNumberService
	steps     *StepInstanceService
	publisher events.Publisher
}

// NewManufacturingService создает новый экземпляр ManufacturingService
func NewManufacturingService(st store.Store, numbers *OrderNumberService, steps *StepInstanceService, publisher events.Publisher) *ManufacturingService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &ManufacturingService{store: st, numbers: numbers, steps: steps, publisher: publisher}
}

// CreateOrder создает заказ с номером вида MO000001
func (s *ManufacturingService) CreateOrder(ctx context.Context, tenant string, req CreateOrderRequest) (*models.ManufacturingOrder, error) {
	if req.ProductConfigID == "" {
		return nil, validationError("product_config_id is required")
	}
	if req.QuantityRequired <= 0 {
		return nil, validationError("quantity_required must be positive")
	}

	var created *models.ManufacturingOrder
	_, err := s.numbers.AllocateOrderNumber(ctx, tenant, AllocationRequest{Kind: AllocationPrimary},
		func(ctx context.Context, orderNumber string) error {
			order := &models.ManufacturingOrder{
				MerchantID:       tenant,
				OrderNumber:      orderNumber,
				ProductConfigID:  req.ProductConfigID,
				QuantityRequired: req.QuantityRequired,
				Priority:         priorityOrDefault(req.Priority, "medium"),
				Status:           models.ManufacturingOrderStatusPending,
			}
			if err := s.store.InsertManufacturingOrder(ctx, order); err != nil {
				return err
			}
			created = order
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания заказа на производство: %w", err)
	}

	log.Printf("✅ Manufacturing order %s создан (merchant: %s, qty: %d)", created.OrderNumber, tenant, created.QuantityRequired)
	s.publishOrder(ctx, created)
	return created, nil
}

// CreateReworkOrder создает переделку <parent>-R<n> и первый экземпляр этапа-источника
// с origin_step_id = исходный экземпляр и is_rework = true.
// Если экземпляр этапа создать не удалось, заказ остается, вернется ошибка вместе с частичным результатом
func (s *ManufacturingService) CreateReworkOrder(ctx context.Context, tenant string, req CreateReworkRequest) (*ReworkResult, error) {
	if req.ParentOrderID == "" || req.SourceStepInstanceID == "" {
		return nil, validationError("parent_order_id and source_step_instance_id are required")
	}

	parent, err := s.store.GetManufacturingOrder(ctx, tenant, req.ParentOrderID)
	if err != nil {
		return nil, err
	}
	source, err := s.store.GetStepInstance(ctx, tenant, req.SourceStepInstanceID)
	if err != nil {
		return nil, err
	}
	if source.OrderID != parent.ID {
		return nil, validationError("step instance %s does not belong to order %s", source.ID, parent.OrderNumber)
	}
	if req.ReworkQuantity <= 0 || req.ReworkQuantity > parent.QuantityRequired {
		return nil, validationError("rework_quantity must be in 1..%d", parent.QuantityRequired)
	}

	var created *models.ManufacturingOrder
	_, err = s.numbers.AllocateOrderNumber(ctx, tenant, AllocationRequest{Kind: AllocationRework, ParentOrderNumber: parent.OrderNumber},
		func(ctx context.Context, orderNumber string) error {
			parentID, sourceID, qty := parent.ID, source.ID, req.ReworkQuantity
			order := &models.ManufacturingOrder{
				MerchantID:         tenant,
				OrderNumber:        orderNumber,
				ProductConfigID:    parent.ProductConfigID,
				QuantityRequired:   qty,
				ParentOrderID:      &parentID,
				ReworkSourceStepID: &sourceID,
				ReworkQuantity:     &qty,
				Priority:           priorityOrDefault(req.Priority, parent.Priority),
				Status:             models.ManufacturingOrderStatusPending,
			}
			if err := s.store.InsertManufacturingOrder(ctx, order); err != nil {
				return err
			}
			created = order
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания переделки для %s: %w", parent.OrderNumber, err)
	}
	log.Printf("✅ Rework order %s создан (parent: %s, step: %s #%d, qty: %d)",
		created.OrderNumber, parent.OrderNumber, source.StepName, source.InstanceNumber, req.ReworkQuantity)
	s.publishOrder(ctx, created)

	result := &ReworkResult{Order: created}
	origin := source.ID
	first, err := s.steps.CreateStepInstance(ctx, tenant, CreateStepInstanceRequest{
		OrderID:          created.ID,
		StepName:         source.StepName,
		OriginStepID:     &origin,
		IsRework:         true,
		QuantityAssigned: req.ReworkQuantity,
	})
	if err != nil {
		log.Printf("❌ Rework order %s: не удалось создать первый этап %s: %v", created.OrderNumber, source.StepName, err)
		return result, fmt.Errorf("ошибка создания этапа переделки %s: %w", created.OrderNumber, err)
	}
	result.FirstStep = first
	return result, nil
}

func (s *ManufacturingService) publishOrder(ctx context.Context, order *models.ManufacturingOrder) {
	event := events.Event{
		Type:       events.TypeManufacturingOrderCreated,
		MerchantID: order.MerchantID,
		Key:        order.ID,
		OccurredAt: time.Now().UTC(),
		Payload:    order,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("⚠️ Manufacturing order %s: не удалось опубликовать событие: %v", order.OrderNumber, err)
	}
}

func priorityOrDefault(priority, fallback string) string {
	if priority != "" {
		return priority
	}
	if fallback != "" {
		return fallback
	}
	return "medium"
}
