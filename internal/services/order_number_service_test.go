package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Jooldo/zarify-sub003/internal/models"
	"github.com/Jooldo/zarify-sub003/internal/store"
)

// insertOrder вставка заказа с выбранным номером
func insertOrder(st *store.MemoryStore, tenant string, parent *models.ManufacturingOrder) InsertFunc {
	return func(ctx context.Context, orderNumber string) error {
		order := &models.ManufacturingOrder{
			MerchantID:       tenant,
			OrderNumber:      orderNumber,
			ProductConfigID:  "config-F",
			QuantityRequired: 10,
		}
		if parent != nil {
			order.ParentOrderID = &parent.ID
		}
		return st.InsertManufacturingOrder(ctx, order)
	}
}

func TestAllocateOrderNumber_Scenario(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewOrderNumberService(st, 10, fastBackoff(), nil)

	first, err := svc.AllocateOrderNumber(ctx, testTenant, AllocationRequest{Kind: AllocationPrimary}, insertOrder(st, testTenant, nil))
	if err != nil || first != "MO000001" {
		t.Fatalf("Expected MO000001, got %q (err %v)", first, err)
	}
	orders, _ := st.QueryManufacturingOrders(ctx, testTenant)
	parent := orders[0]

	rework := AllocationRequest{Kind: AllocationRework, ParentOrderNumber: first}
	for _, want := range []string{"MO000001-R1", "MO000001-R2"} {
		got, err := svc.AllocateOrderNumber(ctx, testTenant, rework, insertOrder(st, testTenant, &parent))
		if err != nil || got != want {
			t.Fatalf("Expected %s, got %q (err %v)", want, got, err)
		}
	}

	next, err := svc.AllocateOrderNumber(ctx, testTenant, AllocationRequest{Kind: AllocationPrimary}, insertOrder(st, testTenant, nil))
	if err != nil || next != "MO000002" {
		t.Errorf("Rework numbers must not affect primary sequence, got %q (err %v)", next, err)
	}

	other, err := svc.AllocateOrderNumber(ctx, "merchant-2", AllocationRequest{Kind: AllocationPrimary}, insertOrder(st, "merchant-2", nil))
	if err != nil || other != "MO000001" {
		t.Errorf("Expected independent sequence per tenant, got %q (err %v)", other, err)
	}
}

func TestAllocateOrderNumber_MixedPrefixTenant(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	for _, number := range []string{"MO000001", "WO-LEGACY-7", "PO-2023-17"} {
		if err := st.InsertManufacturingOrder(ctx, &models.ManufacturingOrder{MerchantID: testTenant, OrderNumber: number, QuantityRequired: 1}); err != nil {
			t.Fatalf("Failed to seed %s: %v", number, err)
		}
	}
	svc := NewOrderNumberService(st, 10, fastBackoff(), nil)

	got, err := svc.AllocateOrderNumber(ctx, testTenant, AllocationRequest{Kind: AllocationPrimary}, insertOrder(st, testTenant, nil))
	if err != nil || got != "MO000002" {
		t.Errorf("Expected MO000002, got %q (err %v)", got, err)
	}
}

func TestAllocateOrderNumber_NearMiss(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	var once sync.Once
	// Конкурент успевает вставить MO000001 между сканированием и проверкой
	st.ProbeHook = func(tenant, orderNumber string) {
		once.Do(func() {
			_ = st.InsertManufacturingOrder(ctx, &models.ManufacturingOrder{MerchantID: tenant, OrderNumber: orderNumber, QuantityRequired: 1})
		})
	}
	svc := NewOrderNumberService(st, 10, fastBackoff(), nil)

	got, err := svc.AllocateOrderNumber(ctx, testTenant, AllocationRequest{Kind: AllocationPrimary}, insertOrder(st, testTenant, nil))
	if err != nil || got != "MO000002" {
		t.Errorf("Expected MO000002 after near miss, got %q (err %v)", got, err)
	}
}

func TestAllocateOrderNumber_Exhausted(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewOrderNumberService(st, 4, Backoff{}, nil)

	calls := 0
	alwaysTaken := func(context.Context, string) error {
		calls++
		return fmt.Errorf("insert: %w", store.ErrUniqueViolation)
	}
	_, err := svc.AllocateOrderNumber(context.Background(), testTenant, AllocationRequest{Kind: AllocationPrimary}, alwaysTaken)
	if !errors.Is(err, ErrAllocationExhausted) {
		t.Fatalf("Expected ErrAllocationExhausted, got %v", err)
	}
	var exhausted *AllocationExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 4 {
		t.Errorf("Expected attempts 4 in error, got %+v", err)
	}
	if calls != 4 {
		t.Errorf("Expected 4 insert attempts, got %d", calls)
	}
	if ErrorKind(err) != KindExhausted {
		t.Errorf("Expected kind %s, got %s", KindExhausted, ErrorKind(err))
	}
}

func TestAllocateOrderNumber_OtherErrorsAreFatal(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewOrderNumberService(st, 10, Backoff{}, nil)

	calls := 0
	failing := func(context.Context, string) error {
		calls++
		return fmt.Errorf("insert: %w", store.ErrTransient)
	}
	_, err := svc.AllocateOrderNumber(context.Background(), testTenant, AllocationRequest{Kind: AllocationPrimary}, failing)
	if !errors.Is(err, store.ErrTransient) {
		t.Fatalf("Expected transient error to propagate, got %v", err)
	}
	if errors.Is(err, ErrAllocationExhausted) {
		t.Error("Write failure must be distinguishable from exhaustion")
	}
	if calls != 1 {
		t.Errorf("Expected no retries, got %d calls", calls)
	}
}

func TestAllocateOrderNumber_Validation(t *testing.T) {
	svc := NewOrderNumberService(store.NewMemoryStore(), 10, Backoff{}, nil)
	noop := func(context.Context, string) error { return nil }

	tests := []struct {
		name string
		req  AllocationRequest
	}{
		{"rework without parent", AllocationRequest{Kind: AllocationRework}},
		{"unknown kind", AllocationRequest{Kind: AllocationKind(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.AllocateOrderNumber(context.Background(), testTenant, tt.req, noop); !errors.Is(err, ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestAllocateOrderNumber_ConcurrentUnique(t *testing.T) {
	const workers = 50
	st := store.NewMemoryStore()
	// Каждая проигранная попытка означает вставку другим участником, поэтому workers попыток всегда хватает
	svc := NewOrderNumberService(st, workers, fastBackoff(), nil)

	var wg sync.WaitGroup
	numbers := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			numbers[i], errs[i] = svc.AllocateOrderNumber(context.Background(), testTenant,
				AllocationRequest{Kind: AllocationPrimary}, insertOrder(st, testTenant, nil))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for i, number := range numbers {
		if errs[i] != nil {
			t.Fatalf("Worker %d failed: %v", i, errs[i])
		}
		if seen[number] {
			t.Fatalf("Duplicate order number %s", number)
		}
		seen[number] = true
	}
	orders, _ := st.QueryManufacturingOrders(context.Background(), testTenant)
	if len(orders) != workers {
		t.Errorf("Expected %d inserted orders, got %d", workers, len(orders))
	}
}

func TestParseOrderNumbers(t *testing.T) {
	primaries := []struct {
		number string
		want   int
		ok     bool
	}{
		{"MO000041", 41, true},
		{"MO1000000", 1000000, true},
		{"MO000041-R1", 0, false},
		{"LEGACY-7", 0, false},
		{"MO", 0, false},
	}
	for _, tt := range primaries {
		got, ok := parsePrimarySequence(tt.number)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parsePrimarySequence(%q) = %d, %v; expected %d, %v", tt.number, got, ok, tt.want, tt.ok)
		}
	}

	reworks := []struct {
		number string
		want   int
		ok     bool
	}{
		{"MO000001-R3", 3, true},
		{"MO000001-R12", 12, true},
		{"MO000001-R1-R1", 0, false},
		{"MO000002-R1", 0, false},
		{"MO000001-R", 0, false},
	}
	for _, tt := range reworks {
		got, ok := parseReworkSuffix("MO000001", tt.number)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseReworkSuffix(%q) = %d, %v; expected %d, %v", tt.number, got, ok, tt.want, tt.ok)
		}
	}

	if got := FormatPrimaryOrderNumber(7); got != "MO000007" {
		t.Errorf("Unexpected primary format %q", got)
	}
	if got := FormatReworkOrderNumber("MO000007-R1", 2); got != "MO000007-R1-R2" {
		t.Errorf("Unexpected rework format %q", got)
	}
}
