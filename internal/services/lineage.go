package services

import (
	"context"
	"sort"

	"github.com/Jooldo/zarify-sub003/internal/models"
	"github.com/Jooldo/zarify-sub003/internal/store"

	"golang.org/x/sync/errgroup"
)

// ProgressionEdge переход от экземпляра этапа к дочернему экземпляру того же заказа
type ProgressionEdge struct {
	FromInstanceID string `json:"from_instance_id"`
	FromStep       string `json:"from_step"`
	FromNumber     int    `json:"from_number"`
	ToInstanceID   string `json:"to_instance_id"`
	ToStep         string `json:"to_step"`
	ToNumber       int    `json:"to_number"`
}

// ReworkEdge экземпляр этапа, с которого заказ отправлен на переделку -> заказ переделки
type ReworkEdge struct {
	OriginInstanceID  string `json:"origin_instance_id"`
	ReworkOrderID     string `json:"rework_order_id"`
	ReworkOrderNumber string `json:"rework_order_number"`
}

// Lineage граф заказа: оба списка отсортированы детерминированно, каждое ребро ровно один раз
type Lineage struct {
	OrderID     string            `json:"order_id"`
	Progression []ProgressionEdge `json:"progression"`
	Rework      []ReworkEdge      `json:"rework"`
}

// LineageService строит граф этапов и переделок по заказу
type LineageService struct {
	store store.Store
}

func NewLineageService(st store.Store) *LineageService {
	return &LineageService{store: st}
}

// LineageEdges возвращает ребра графа для заказа orderID
func (s *LineageService) LineageEdges(ctx context.Context, tenant, orderID string) (*Lineage, error) {
	if _, err := s.store.GetManufacturingOrder(ctx, tenant, orderID); err != nil {
		return nil, err
	}

	var (
		orders    []models.ManufacturingOrder
		instances []models.StepInstance
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.store.QueryManufacturingOrders(gctx, tenant)
		return err
	})
	g.Go(func() error {
		var err error
		instances, err = s.store.QueryStepInstances(gctx, tenant)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lineage := BuildLineage(orderID, orders, instances)
	return &lineage, nil
}

// BuildLineage строит ребра по снимку заказов и экземпляров
func BuildLineage(orderID string, orders []models.ManufacturingOrder, instances []models.StepInstance) Lineage {
	lineage := Lineage{
		OrderID:     orderID,
		Progression: []ProgressionEdge{},
		Rework:      []ReworkEdge{},
	}

	own := make(map[string]models.StepInstance)
	for _, si := range instances {
		if si.OrderID == orderID {
			own[si.ID] = si
		}
	}
	for _, child := range own {
		if child.ParentInstanceID == nil {
			continue
		}
		parent, ok := own[*child.ParentInstanceID]
		if !ok {
			continue
		}
		lineage.Progression = append(lineage.Progression, ProgressionEdge{
			FromInstanceID: parent.ID,
			FromStep:       parent.StepName,
			FromNumber:     parent.InstanceNumber,
			ToInstanceID:   child.ID,
			ToStep:         child.StepName,
			ToNumber:       child.InstanceNumber,
		})
	}

	seen := make(map[string]bool)
	for _, order := range orders {
		if order.ParentOrderID == nil || *order.ParentOrderID != orderID || order.ReworkSourceStepID == nil {
			continue
		}
		if seen[order.ID] {
			continue
		}
		seen[order.ID] = true
		lineage.Rework = append(lineage.Rework, ReworkEdge{
			OriginInstanceID:  *order.ReworkSourceStepID,
			ReworkOrderID:     order.ID,
			ReworkOrderNumber: order.OrderNumber,
		})
	}

	sort.Slice(lineage.Progression, func(i, j int) bool {
		a, b := lineage.Progression[i], lineage.Progression[j]
		if a.FromStep != b.FromStep {
			return a.FromStep < b.FromStep
		}
		if a.FromNumber != b.FromNumber {
			return a.FromNumber < b.FromNumber
		}
		if a.ToStep != b.ToStep {
			return a.ToStep < b.ToStep
		}
		if a.ToNumber != b.ToNumber {
			return a.ToNumber < b.ToNumber
		}
		return a.ToInstanceID < b.ToInstanceID
	})
	sort.Slice(lineage.Rework, func(i, j int) bool {
		a, b := lineage.Rework[i], lineage.Rework[j]
		if a.ReworkOrderNumber != b.ReworkOrderNumber {
			return a.ReworkOrderNumber < b.ReworkOrderNumber
		}
		return a.ReworkOrderID < b.ReworkOrderID
	})
	return lineage
}
