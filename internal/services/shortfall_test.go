package services

import (
	"testing"

	"github.com/Jooldo/zarify-sub003/internal/models"
)

func TestFinishedGoodShortfall(t *testing.T) {
	tests := []struct {
		name string
		fg   models.FinishedGood
		want int
	}{
		{"scenario", models.FinishedGood{RequiredQuantity: 20, Threshold: 5, CurrentStock: 10}, 15},
		{"covered by stock", models.FinishedGood{RequiredQuantity: 5, Threshold: 5, CurrentStock: 20}, 0},
		{"in manufacturing counts as supply", models.FinishedGood{RequiredQuantity: 10, CurrentStock: 2, InManufacturing: 5}, 3},
		{"threshold only", models.FinishedGood{RequiredQuantity: 0, Threshold: 8, CurrentStock: 3}, 5},
		{"exact match", models.FinishedGood{RequiredQuantity: 4, Threshold: 1, CurrentStock: 5}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FinishedGoodShortfall(tt.fg); got != tt.want {
				t.Errorf("Expected shortfall %d, got %d", tt.want, got)
			}
		})
	}
}

func TestRawMaterialShortfall(t *testing.T) {
	tests := []struct {
		name string
		rm   models.RawMaterial
		want float64
	}{
		{"scenario", models.RawMaterial{Required: 30, MinimumStock: 10, CurrentStock: 5}, 35},
		{"no demand, below minimum", models.RawMaterial{Required: 0, MinimumStock: 12.5, CurrentStock: 2.25}, 10.25},
		{"procurement covers", models.RawMaterial{Required: 10, CurrentStock: 4, InProcurement: 6}, 0},
		{"surplus clamps to zero", models.RawMaterial{Required: 1, CurrentStock: 100}, 0},
		{"fractional grams", models.RawMaterial{Required: 0.3, CurrentStock: 0.1}, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RawMaterialShortfall(tt.rm); got != tt.want {
				t.Errorf("Expected shortfall %v, got %v", tt.want, got)
			}
		})
	}
}
