package services

import (
	"context"
	"testing"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/models"
	"github.com/Jooldo/zarify-sub003/internal/store"
)

func newDetector(st *store.MemoryStore, cache CacheMetadataStore, now time.Time) *ChangeDetectionService {
	d := NewChangeDetectionService(st, cache, time.Hour, nil)
	d.now = fixedClock(now)
	return d
}

func TestChangeDetection_Lifecycle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	fg, _ := seedScenario(st)
	st.PutOrderItem(models.OrderItem{MerchantID: testTenant, ProductConfigID: "config-F", Quantity: 2, Status: models.OrderItemStatusCreated})
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d := newDetector(st, NewMemoryCacheMetadataStore(), now)

	decision, err := d.Check(ctx, testTenant)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !decision.Recalculate || decision.Reason != ReasonNoMetadata {
		t.Fatalf("Expected recalculation without metadata, got %+v", decision)
	}

	if err := d.UpdateCacheMetadata(ctx, testTenant); err != nil {
		t.Fatalf("UpdateCacheMetadata failed: %v", err)
	}
	should, err := d.ShouldRecalculate(ctx, testTenant)
	if err != nil || should {
		t.Fatalf("Expected no recalculation without changes, got %v (err %v)", should, err)
	}
	// Повторная проверка без изменений
	if should, _ := d.ShouldRecalculate(ctx, testTenant); should {
		t.Fatal("Expected second check to stay false")
	}

	fg.CurrentStock = 11
	st.PutFinishedGood(fg)
	decision, _ = d.Check(ctx, testTenant)
	if !decision.Recalculate || decision.Reason != ReasonStockChanged {
		t.Errorf("Expected stock change to trigger recalculation, got %+v", decision)
	}
	d.Commit(ctx, testTenant, decision)

	st.PutOrderItem(models.OrderItem{MerchantID: testTenant, ProductConfigID: "config-F", Quantity: 1, Status: models.OrderItemStatusInProgress})
	decision, _ = d.Check(ctx, testTenant)
	if !decision.Recalculate || decision.Reason != ReasonOrdersChanged {
		t.Errorf("Expected order change to trigger recalculation, got %+v", decision)
	}
}

func TestChangeDetection_IgnoresOtherTenants(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seedScenario(st)
	d := newDetector(st, NewMemoryCacheMetadataStore(), time.Now().UTC())
	if err := d.UpdateCacheMetadata(ctx, testTenant); err != nil {
		t.Fatalf("UpdateCacheMetadata failed: %v", err)
	}

	st.PutOrderItem(models.OrderItem{MerchantID: "merchant-2", ProductConfigID: "x", Quantity: 9, Status: models.OrderItemStatusCreated})
	if should, _ := d.ShouldRecalculate(ctx, testTenant); should {
		t.Error("Another tenant's writes must not invalidate the cache")
	}
}

func TestChangeDetection_Staleness(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seedScenario(st)
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d := newDetector(st, NewMemoryCacheMetadataStore(), start)
	if err := d.UpdateCacheMetadata(ctx, testTenant); err != nil {
		t.Fatalf("UpdateCacheMetadata failed: %v", err)
	}

	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"fresh", 10 * time.Minute, false},
		{"at bound", time.Hour, false},
		{"past bound", time.Hour + time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d.now = fixedClock(start.Add(tt.elapsed))
			decision, err := d.Check(ctx, testTenant)
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if decision.Recalculate != tt.want {
				t.Errorf("Expected recalculate=%v, got %+v", tt.want, decision)
			}
			if tt.want && decision.Reason != ReasonStale {
				t.Errorf("Expected reason %s, got %s", ReasonStale, decision.Reason)
			}
		})
	}
}

func TestChangeDetection_MetadataStoreDown(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seedScenario(st)
	d := newDetector(st, failingCacheStore{}, time.Now().UTC())

	decision, err := d.Check(ctx, testTenant)
	if err != nil {
		t.Fatalf("Metadata read failure must not fail the check: %v", err)
	}
	if !decision.Recalculate || decision.Reason != ReasonMetadataUnavailable {
		t.Errorf("Expected recalculation when metadata is unavailable, got %+v", decision)
	}
	if err := d.UpdateCacheMetadata(ctx, testTenant); err != nil {
		t.Errorf("Metadata write failure must only be logged, got %v", err)
	}
}

func TestChangeDetection_ForceInvalidate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seedScenario(st)
	d := newDetector(st, NewMemoryCacheMetadataStore(), time.Now().UTC())
	if err := d.UpdateCacheMetadata(ctx, testTenant); err != nil {
		t.Fatalf("UpdateCacheMetadata failed: %v", err)
	}

	if err := d.ForceInvalidate(ctx, testTenant); err != nil {
		t.Fatalf("ForceInvalidate failed: %v", err)
	}
	if should, _ := d.ShouldRecalculate(ctx, testTenant); !should {
		t.Error("Expected recalculation after invalidation")
	}
}

func TestCacheMetadataKey(t *testing.T) {
	if got := CacheMetadataKey("m-42"); got != "mrp:cache:m-42" {
		t.Errorf("Unexpected key %q", got)
	}
}
