package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Jooldo/zarify-sub003/internal/models"
	"github.com/Jooldo/zarify-sub003/internal/store"
)

func TestBuildLineage(t *testing.T) {
	orders := []models.ManufacturingOrder{
		{ID: "o1", OrderNumber: "MO000001"},
		{ID: "o1-r2", OrderNumber: "MO000001-R2", ParentOrderID: strPtr("o1"), ReworkSourceStepID: strPtr("cast-1")},
		{ID: "o1-r1", OrderNumber: "MO000001-R1", ParentOrderID: strPtr("o1"), ReworkSourceStepID: strPtr("dhol-2")},
		{ID: "o1-r1-r1", OrderNumber: "MO000001-R1-R1", ParentOrderID: strPtr("o1-r1"), ReworkSourceStepID: strPtr("x")},
		{ID: "o2", OrderNumber: "MO000002"},
	}
	instances := []models.StepInstance{
		{ID: "cast-1", OrderID: "o1", StepName: "Casting", InstanceNumber: 1, ParentInstanceID: strPtr("dhol-1")},
		{ID: "dhol-2", OrderID: "o1", StepName: "Dhol", InstanceNumber: 2, ParentInstanceID: strPtr("jhalai-1")},
		{ID: "jhalai-1", OrderID: "o1", StepName: "Jhalai", InstanceNumber: 1},
		{ID: "dhol-1", OrderID: "o1", StepName: "Dhol", InstanceNumber: 1, ParentInstanceID: strPtr("jhalai-1")},
		// Родитель в другом заказе: не ребро прогрессии этого заказа
		{ID: "other", OrderID: "o2", StepName: "Dhol", InstanceNumber: 1, ParentInstanceID: strPtr("jhalai-1")},
	}

	got := BuildLineage("o1", orders, instances)

	wantProgression := []ProgressionEdge{
		{FromInstanceID: "dhol-1", FromStep: "Dhol", FromNumber: 1, ToInstanceID: "cast-1", ToStep: "Casting", ToNumber: 1},
		{FromInstanceID: "jhalai-1", FromStep: "Jhalai", FromNumber: 1, ToInstanceID: "dhol-1", ToStep: "Dhol", ToNumber: 1},
		{FromInstanceID: "jhalai-1", FromStep: "Jhalai", FromNumber: 1, ToInstanceID: "dhol-2", ToStep: "Dhol", ToNumber: 2},
	}
	if !reflect.DeepEqual(got.Progression, wantProgression) {
		t.Errorf("Unexpected progression edges:\n got %+v\nwant %+v", got.Progression, wantProgression)
	}

	wantRework := []ReworkEdge{
		{OriginInstanceID: "dhol-2", ReworkOrderID: "o1-r1", ReworkOrderNumber: "MO000001-R1"},
		{OriginInstanceID: "cast-1", ReworkOrderID: "o1-r2", ReworkOrderNumber: "MO000001-R2"},
	}
	if !reflect.DeepEqual(got.Rework, wantRework) {
		t.Errorf("Unexpected rework edges:\n got %+v\nwant %+v", got.Rework, wantRework)
	}

	// Детерминированность при другом порядке входных данных
	reversedOrders := append([]models.ManufacturingOrder(nil), orders...)
	reversedInstances := append([]models.StepInstance(nil), instances...)
	for i, j := 0, len(reversedOrders)-1; i < j; i, j = i+1, j-1 {
		reversedOrders[i], reversedOrders[j] = reversedOrders[j], reversedOrders[i]
	}
	for i, j := 0, len(reversedInstances)-1; i < j; i, j = i+1, j-1 {
		reversedInstances[i], reversedInstances[j] = reversedInstances[j], reversedInstances[i]
	}
	if again := BuildLineage("o1", reversedOrders, reversedInstances); !reflect.DeepEqual(again, got) {
		t.Error("Lineage must not depend on input order")
	}
}

func TestBuildLineage_Empty(t *testing.T) {
	got := BuildLineage("o1", nil, nil)
	if got.Progression == nil || got.Rework == nil {
		t.Error("Expected empty, non-nil edge lists")
	}
}

func TestLineageEdges_NotFound(t *testing.T) {
	svc := NewLineageService(store.NewMemoryStore())
	if _, err := svc.LineageEdges(context.Background(), testTenant, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
