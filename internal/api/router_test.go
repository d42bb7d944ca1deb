package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/models"
	"github.com/Jooldo/zarify-sub003/internal/services"
	"github.com/Jooldo/zarify-sub003/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	testUser   = "user-1"
	testTenant = "merchant-1"
)

func setupRouter(t *testing.T) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	st.SetTenant(testUser, testTenant)
	for i, step := range []string{"Jhalai", "Dhol", "Casting", "Polish"} {
		st.SetStepOrder(testTenant, step, i+1)
	}

	cascade := services.NewRequirementsService(st, nil, nil)
	detector := services.NewChangeDetectionService(st, services.NewMemoryCacheMetadataStore(), time.Hour, nil)
	steps := services.NewStepInstanceService(st, nil, nil, nil)
	numbers := services.NewOrderNumberService(st, 10, services.Backoff{Base: time.Millisecond, Max: 5 * time.Millisecond}, nil)

	r := NewRouter(RouterDeps{
		Tenants: st,
		MRP:     NewMRPController(services.NewMRPService(st, cascade, detector)),
		Manufacturing: NewManufacturingController(
			services.NewManufacturingService(st, numbers, steps, nil),
			steps,
			services.NewLineageService(st),
		),
	})
	return r, st
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var payload bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&payload).Encode(body)
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(UserIDHeader, testUser)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dest); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	r, _ := setupRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestTenantMiddleware(t *testing.T) {
	r, _ := setupRouter(t)

	tests := []struct {
		name   string
		user   string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"unknown user", "stranger", http.StatusUnauthorized},
		{"known user", testUser, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/mrp/requirements", nil)
			if tt.user != "" {
				req.Header.Set(UserIDHeader, tt.user)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Errorf("Expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestGetRequirements(t *testing.T) {
	r, st := setupRouter(t)
	st.PutFinishedGood(models.FinishedGood{MerchantID: testTenant, ProductConfigID: "config-F", RequiredQuantity: 20, Threshold: 5, CurrentStock: 10})
	rm := st.PutRawMaterial(models.RawMaterial{MerchantID: testTenant, Name: "Gold", MinimumStock: 10, CurrentStock: 5})
	st.PutBOMEntry(models.BOMEntry{MerchantID: testTenant, ProductConfigID: "config-F", RawMaterialID: rm.ID, QuantityRequired: 2})

	w := doRequest(r, http.MethodGet, "/api/v1/mrp/requirements", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var view services.RequirementsView
	decode(t, w, &view)
	if !view.Recalculated || len(view.RawMaterials) != 1 {
		t.Fatalf("Unexpected view %+v", view)
	}
	if view.RawMaterials[0].Required != 30 || view.RawMaterials[0].Shortfall != 35 {
		t.Errorf("Expected required 30 / shortfall 35, got %+v", view.RawMaterials[0])
	}

	w = doRequest(r, http.MethodGet, "/api/v1/mrp/requirements", nil)
	decode(t, w, &view)
	if view.Recalculated {
		t.Error("Expected cached response on second request")
	}

	if w = doRequest(r, http.MethodPost, "/api/v1/mrp/cache/invalidate", nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200 on invalidate, got %d", w.Code)
	}
	w = doRequest(r, http.MethodGet, "/api/v1/mrp/requirements", nil)
	decode(t, w, &view)
	if !view.Recalculated {
		t.Error("Expected recalculation after invalidate")
	}
}

func TestExportRequirements(t *testing.T) {
	r, _ := setupRouter(t)
	w := doRequest(r, http.MethodGet, "/api/v1/mrp/requirements/export", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("Unexpected content type %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("Expected workbook body")
	}
}

func TestManufacturingFlow(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/manufacturing/orders", services.CreateOrderRequest{ProductConfigID: "config-F", QuantityRequired: 4})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var order models.ManufacturingOrder
	decode(t, w, &order)
	if order.OrderNumber != "MO000001" {
		t.Errorf("Expected MO000001, got %s", order.OrderNumber)
	}

	w = doRequest(r, http.MethodPost, "/api/v1/manufacturing/orders/"+order.ID+"/steps", services.CreateStepInstanceRequest{StepName: "Casting", QuantityAssigned: 4})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var step models.StepInstance
	decode(t, w, &step)

	w = doRequest(r, http.MethodPost, "/api/v1/manufacturing/orders/"+order.ID+"/rework",
		services.CreateReworkRequest{SourceStepInstanceID: step.ID, ReworkQuantity: 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var rework services.ReworkResult
	decode(t, w, &rework)
	if rework.Order.OrderNumber != "MO000001-R1" || rework.FirstStep == nil || !rework.FirstStep.IsRework {
		t.Errorf("Unexpected rework result %+v", rework)
	}

	w = doRequest(r, http.MethodGet, "/api/v1/manufacturing/orders/"+order.ID+"/lineage", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var lineage services.Lineage
	decode(t, w, &lineage)
	if len(lineage.Rework) != 1 || lineage.Rework[0].OriginInstanceID != step.ID {
		t.Errorf("Unexpected lineage %+v", lineage)
	}
}

func TestCreateReworkOrder_FirstStepFails(t *testing.T) {
	r, st := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/manufacturing/orders", services.CreateOrderRequest{ProductConfigID: "config-F", QuantityRequired: 4})
	var order models.ManufacturingOrder
	decode(t, w, &order)
	w = doRequest(r, http.MethodPost, "/api/v1/manufacturing/orders/"+order.ID+"/steps", services.CreateStepInstanceRequest{StepName: "Casting", QuantityAssigned: 4})
	var step models.StepInstance
	decode(t, w, &step)

	st.InsertInstanceHook = func(*models.StepInstance) error { return store.ErrTransient }

	w = doRequest(r, http.MethodPost, "/api/v1/manufacturing/orders/"+order.ID+"/rework",
		services.CreateReworkRequest{SourceStepInstanceID: step.ID, ReworkQuantity: 2})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Kind   string                 `json:"kind"`
		Result *services.ReworkResult `json:"result"`
	}
	decode(t, w, &body)
	if body.Kind != services.KindTransient {
		t.Errorf("Expected kind %s, got %s", services.KindTransient, body.Kind)
	}
	if body.Result == nil || body.Result.Order == nil || body.Result.Order.OrderNumber != "MO000001-R1" {
		t.Fatalf("Expected created rework order in response, got %s", w.Body.String())
	}
	if body.Result.FirstStep != nil {
		t.Errorf("Expected no first step, got %+v", body.Result.FirstStep)
	}
}

func TestErrorResponses(t *testing.T) {
	r, st := setupRouter(t)
	order := &models.ManufacturingOrder{MerchantID: testTenant, OrderNumber: "MO000001", ProductConfigID: "config-F", QuantityRequired: 2}
	if err := st.InsertManufacturingOrder(context.Background(), order); err != nil {
		t.Fatalf("Failed to seed order: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		kind   string
	}{
		{"validation", http.MethodPost, "/api/v1/manufacturing/orders", services.CreateOrderRequest{ProductConfigID: "config-F"}, http.StatusBadRequest, services.KindValidation},
		{"not found", http.MethodGet, "/api/v1/manufacturing/orders/missing/lineage", nil, http.StatusNotFound, services.KindNotFound},
		{"unknown source step", http.MethodPost, "/api/v1/manufacturing/orders/" + order.ID + "/rework", services.CreateReworkRequest{SourceStepInstanceID: "missing", ReworkQuantity: 1}, http.StatusNotFound, services.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, tt.method, tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			var body map[string]interface{}
			decode(t, w, &body)
			if body["kind"] != tt.kind {
				t.Errorf("Expected kind %s, got %v", tt.kind, body["kind"])
			}
		})
	}
}

func TestRespondError_PartialUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, "failed", &services.PartialUpdateError{FailedIDs: []string{"rm-1"}, Total: 3})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
	var body map[string]interface{}
	decode(t, w, &body)
	if body["kind"] != services.KindPartialUpdate || body["total"] != float64(3) {
		t.Errorf("Unexpected body %v", body)
	}
}
