package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/metrics"
	"github.com/Jooldo/zarify-sub003/internal/models"
	"github.com/Jooldo/zarify-sub003/internal/store"

	"golang.org/x/sync/errgroup"
)

// Причины решения о пересчете
const (
	ReasonNoMetadata          = "no_metadata"
	ReasonMetadataUnavailable = "metadata_unavailable"
	ReasonOrdersChanged       = "orders_changed"
	ReasonStockChanged        = "stock_changed"
	ReasonStale               = "stale"
	ReasonForced              = "forced"
	ReasonUnchanged           = "unchanged"
)

// DefaultCacheStaleness максимальный возраст расчета по умолчанию
const DefaultCacheStaleness = time.Hour

// CacheDecision решение о пересчете и отпечатки, по которым оно принято
type CacheDecision struct {
	Recalculate       bool
	Reason            string
	OrdersFingerprint string
	StockFingerprint  string
	LastCalculatedAt  time.Time // Нулевое значение, если метаданных нет
}

// ChangeDetectionService решает, нужен ли пересчет каскада.
// Кэш только рекомендательный: при любой проблеме с метаданными пересчитываем
type ChangeDetectionService struct {
	store     store.Store
	cache     CacheMetadataStore
	staleness time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewChangeDetectionService создает новый экземпляр ChangeDetectionService
func NewChangeDetectionService(st store.Store, cache CacheMetadataStore, staleness time.Duration, m *metrics.Metrics) *ChangeDetectionService {
	if staleness <= 0 {
		staleness = DefaultCacheStaleness
	}
	return &ChangeDetectionService{
		store:     st,
		cache:     cache,
		staleness: staleness,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Fingerprints считает оба отпечатка по текущему состоянию мерчанта
func (s *ChangeDetectionService) Fingerprints(ctx context.Context, tenant string) (orders, stock string, err error) {
	var (
		items     []models.OrderItem
		goods     []models.FinishedGood
		materials []models.RawMaterial
		bom       []models.BOMEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.store.QueryOrderItems(gctx, tenant, models.LiveDemandStatuses)
		return err
	})
	g.Go(func() error {
		var err error
		goods, err = s.store.QueryFinishedGoods(gctx, tenant)
		return err
	})
	g.Go(func() error {
		var err error
		materials, err = s.store.QueryRawMaterials(gctx, tenant)
		return err
	})
	g.Go(func() error {
		var err error
		bom, err = s.store.QueryBOMEntries(gctx, tenant)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", "", fmt.Errorf("ошибка расчета отпечатков: %w", err)
	}
	return OrdersFingerprint(items), StockFingerprint(goods, materials, bom), nil
}

// Check сравнивает текущие отпечатки с сохраненными
func (s *ChangeDetectionService) Check(ctx context.Context, tenant string) (CacheDecision, error) {
	orders, stock, err := s.Fingerprints(ctx, tenant)
	if err != nil {
		return CacheDecision{}, err
	}
	decision := CacheDecision{OrdersFingerprint: orders, StockFingerprint: stock}

	meta, err := s.cache.Get(ctx, tenant)
	switch {
	case err != nil:
		log.Printf("⚠️ ChangeDetection: не удалось прочитать метаданные кэша (merchant: %s): %v", tenant, err)
		decision.Recalculate, decision.Reason = true, ReasonMetadataUnavailable
	case meta == nil:
		decision.Recalculate, decision.Reason = true, ReasonNoMetadata
	default:
		decision.LastCalculatedAt = meta.LastCalculatedAt
		switch {
		case meta.OrdersFingerprint != orders:
			decision.Recalculate, decision.Reason = true, ReasonOrdersChanged
		case meta.StockFingerprint != stock:
			decision.Recalculate, decision.Reason = true, ReasonStockChanged
		case s.now().Sub(meta.LastCalculatedAt) > s.staleness:
			decision.Recalculate, decision.Reason = true, ReasonStale
		default:
			decision.Reason = ReasonUnchanged
		}
	}

	s.metrics.CacheDecision(decision.Reason)
	return decision, nil
}

// ShouldRecalculate true, если каскад нужно пересчитать
func (s *ChangeDetectionService) ShouldRecalculate(ctx context.Context, tenant string) (bool, error) {
	decision, err := s.Check(ctx, tenant)
	if err != nil {
		return true, err
	}
	return decision.Recalculate, nil
}

// Commit сохраняет отпечатки решения как результат успешного пересчета.
// Ошибка записи только логируется
func (s *ChangeDetectionService) Commit(ctx context.Context, tenant string, decision CacheDecision) {
	meta := models.CacheMetadata{
		LastCalculatedAt:  s.now(),
		OrdersFingerprint: decision.OrdersFingerprint,
		StockFingerprint:  decision.StockFingerprint,
	}
	if err := s.cache.Put(ctx, tenant, meta); err != nil {
		log.Printf("⚠️ ChangeDetection: не удалось сохранить метаданные кэша (merchant: %s): %v", tenant, err)
	}
}

// UpdateCacheMetadata пересчитывает отпечатки и сохраняет их с текущим временем
func (s *ChangeDetectionService) UpdateCacheMetadata(ctx context.Context, tenant string) error {
	orders, stock, err := s.Fingerprints(ctx, tenant)
	if err != nil {
		return err
	}
	s.Commit(ctx, tenant, CacheDecision{OrdersFingerprint: orders, StockFingerprint: stock})
	return nil
}

// ForceInvalidate удаляет метаданные: следующий запрос пересчитает каскад
func (s *ChangeDetectionService) ForceInvalidate(ctx context.Context, tenant string) error {
	if err := s.cache.Delete(ctx, tenant); err != nil {
		return fmt.Errorf("ошибка сброса кэша потребностей: %w", err)
	}
	log.Printf("🔄 ChangeDetection: кэш потребностей сброшен (merchant: %s)", tenant)
	return nil
}
