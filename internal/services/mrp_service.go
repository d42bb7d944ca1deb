package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/models"
	"github.com/Jooldo/zarify-sub003/internal/store"

	"golang.org/x/sync/errgroup"
)

// RawMaterialView сырье с дефицитом, рассчитанным при чтении
type RawMaterialView struct {
	models.RawMaterial
	Shortfall float64 `json:"shortfall"`
}

// FinishedGoodView изделие с дефицитом, рассчитанным при чтении
type FinishedGoodView struct {
	models.FinishedGood
	Shortfall int `json:"shortfall"`
}

// RequirementsView потребности мерчанта для экрана MRP
type RequirementsView struct {
	MerchantID    string             `json:"merchant_id"`
	RawMaterials  []RawMaterialView  `json:"raw_materials"`
	FinishedGoods []FinishedGoodView `json:"finished_goods"`
	Recalculated  bool               `json:"recalculated"`
	Reason        string             `json:"reason"`
	CalculatedAt  time.Time          `json:"calculated_at"`
}

// MRPService связывает проверку кэша и каскад потребностей
type MRPService struct {
	store    store.Store
	cascade  *RequirementsService
	detector *ChangeDetectionService
}

// NewMRPService создает новый экземпляр MRPService
func NewMRPService(st store.Store, cascade *RequirementsService, detector *ChangeDetectionService) *MRPService {
	return &MRPService{store: st, cascade: cascade, detector: detector}
}

// GetRequirements пересчитывает каскад, если входные данные изменились (или force),
// и возвращает сохраненные потребности с дефицитом.
// При частичной ошибке сохранения метаданные кэша не обновляются
func (s *MRPService) GetRequirements(ctx context.Context, tenant string, force bool) (*RequirementsView, error) {
	decision, err := s.detector.Check(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if force {
		decision.Recalculate, decision.Reason = true, ReasonForced
	}

	calculatedAt := decision.LastCalculatedAt
	if decision.Recalculate {
		if _, err := s.cascade.Recalculate(ctx, tenant); err != nil {
			return nil, err
		}
		s.detector.Commit(ctx, tenant, decision)
		calculatedAt = s.detector.now()
	}

	view, err := s.loadView(ctx, tenant)
	if err != nil {
		return nil, err
	}
	view.Recalculated = decision.Recalculate
	view.Reason = decision.Reason
	view.CalculatedAt = calculatedAt
	return view, nil
}

// Invalidate сбрасывает кэш мерчанта
func (s *MRPService) Invalidate(ctx context.Context, tenant string) error {
	return s.detector.ForceInvalidate(ctx, tenant)
}

func (s *MRPService) loadView(ctx context.Context, tenant string) (*RequirementsView, error) {
	var (
		materials []models.RawMaterial
		goods     []models.FinishedGood
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		materials, err = s.store.QueryRawMaterials(gctx, tenant)
		return err
	})
	g.Go(func() error {
		var err error
		goods, err = s.store.QueryFinishedGoods(gctx, tenant)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ошибка загрузки потребностей: %w", err)
	}

	view := &RequirementsView{
		MerchantID:    tenant,
		RawMaterials:  make([]RawMaterialView, 0, len(materials)),
		FinishedGoods: make([]FinishedGoodView, 0, len(goods)),
	}
	for _, rm := range materials {
		view.RawMaterials = append(view.RawMaterials, RawMaterialView{RawMaterial: rm, Shortfall: RawMaterialShortfall(rm)})
	}
	for _, fg := range goods {
		view.FinishedGoods = append(view.FinishedGoods, FinishedGoodView{FinishedGood: fg, Shortfall: FinishedGoodShortfall(fg)})
	}
	return view, nil
}
