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

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// MaterialRequirement результат каскада по одному виду сырья
type MaterialRequirement struct {
	Required  float64 `json:"required"`
	Shortfall float64 `json:"shortfall"`
}

// RequirementsService каскад потребностей: заказы -> дефицит изделий -> расход сырья -> дефицит сырья
type RequirementsService struct {
	store     store.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewRequirementsService создает новый экземпляр RequirementsService
func NewRequirementsService(st store.Store, publisher events.Publisher, m *metrics.Metrics) *RequirementsService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &RequirementsService{
		store:     st,
		publisher: publisher,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type cascadeInputs struct {
	goods     []models.FinishedGood
	materials []models.RawMaterial
	bom       []models.BOMEntry
}

func (s *RequirementsService) loadInputs(ctx context.Context, tenant string) (*cascadeInputs, error) {
	in := &cascadeInputs{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		in.goods, err = s.store.QueryFinishedGoods(gctx, tenant)
		return err
	})
	g.Go(func() error {
		var err error
		in.materials, err = s.store.QueryRawMaterials(gctx, tenant)
		return err
	})
	g.Go(func() error {
		var err error
		in.bom, err = s.store.QueryBOMEntries(gctx, tenant)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

// ComputeRequirements чистый расчет каскада без записи в хранилище
func ComputeRequirements(goods []models.FinishedGood, materials []models.RawMaterial, bom []models.BOMEntry) map[string]MaterialRequirement {
	// Дефицит изделий по конфигурации (несколько строк с одной конфигурацией суммируются)
	shortfallByConfig := make(map[string]decimal.Decimal, len(goods))
	for _, fg := range goods {
		shortfall := FinishedGoodShortfall(fg)
		if shortfall == 0 {
			continue
		}
		shortfallByConfig[fg.ProductConfigID] = shortfallByConfig[fg.ProductConfigID].Add(decimal.NewFromInt(int64(shortfall)))
	}

	totals := make(map[string]decimal.Decimal, len(materials))
	for _, entry := range bom {
		shortfall, ok := shortfallByConfig[entry.ProductConfigID]
		if !ok {
			continue
		}
		totals[entry.RawMaterialID] = totals[entry.RawMaterialID].Add(shortfall.Mul(decimal.NewFromFloat(entry.QuantityRequired)))
	}

	result := make(map[string]MaterialRequirement, len(materials))
	for _, rm := range materials {
		required := totals[rm.ID].Round(quantityScale)
		result[rm.ID] = MaterialRequirement{
			Required:  required.InexactFloat64(),
			Shortfall: rawMaterialShortfall(required, rm).InexactFloat64(),
		}
	}
	return result
}

// Recalculate пересчитывает потребность в сырье и сохраняет required и last_updated.
// При частичной ошибке возвращает результат вместе с *PartialUpdateError
func (s *RequirementsService) Recalculate(ctx context.Context, tenant string) (map[string]MaterialRequirement, error) {
	started := time.Now()

	in, err := s.loadInputs(ctx, tenant)
	if err != nil {
		s.metrics.ObserveRecalculation("error", time.Since(started))
		return nil, fmt.Errorf("ошибка загрузки данных для расчета потребностей: %w", err)
	}

	result := ComputeRequirements(in.goods, in.materials, in.bom)

	at := s.now()
	partial := &PartialUpdateError{Total: len(in.materials)}
	for _, rm := range in.materials {
		req := result[rm.ID]
		if err := s.store.UpdateRawMaterialRequired(ctx, tenant, rm.ID, req.Required, at); err != nil {
			log.Printf("❌ Recalculate: не удалось сохранить required для сырья %s (merchant: %s): %v", rm.ID, tenant, err)
			partial.FailedIDs = append(partial.FailedIDs, rm.ID)
			partial.Errors = append(partial.Errors, err)
		}
	}

	switch {
	case len(partial.FailedIDs) == 0:
	case len(partial.FailedIDs) == partial.Total:
		// Ничего не сохранилось: отдаем ошибку хранилища как есть
		s.metrics.ObserveRecalculation("error", time.Since(started))
		return nil, fmt.Errorf("ошибка сохранения потребностей в сырье: %w", partial.Errors[0])
	default:
		s.metrics.ObserveRecalculation("partial", time.Since(started))
		log.Printf("⚠️ Recalculate: сохранено %d из %d строк сырья (merchant: %s)",
			partial.Total-len(partial.FailedIDs), partial.Total, tenant)
		return result, partial
	}

	s.metrics.ObserveRecalculation("ok", time.Since(started))
	log.Printf("🔄 Recalculate: пересчитано %d видов сырья, %d изделий (merchant: %s)", len(in.materials), len(in.goods), tenant)

	s.publish(ctx, tenant, at, result)
	return result, nil
}

func (s *RequirementsService) publish(ctx context.Context, tenant string, at time.Time, result map[string]MaterialRequirement) {
	short := 0
	for _, req := range result {
		if req.Shortfall > 0 {
			short++
		}
	}
	event := events.Event{
		Type:       events.TypeMaterialsRecalculated,
		MerchantID: tenant,
		Key:        tenant,
		OccurredAt: at,
		Payload: map[string]interface{}{
			"materials":          len(result),
			"materials_in_short": short,
		},
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("⚠️ Recalculate: не удалось опубликовать событие: %v", err)
	}
}
