package services

import (
	"github.com/Jooldo/zarify-sub003/internal/models"

	"github.com/shopspring/decimal"
)

// quantityScale совпадает с масштабом колонок decimal(12,4)
const quantityScale = 4

// FinishedGoodShortfall сколько изделий не хватает с учетом порога:
// max(0, requiredQuantity + threshold - (currentStock + inManufacturing))
func FinishedGoodShortfall(fg models.FinishedGood) int {
	demand := fg.RequiredQuantity + fg.Threshold
	supply := fg.CurrentStock + fg.InManufacturing
	if demand <= supply {
		return 0
	}
	return demand - supply
}

// RawMaterialShortfall дефицит сырья по сохраненному полю required.
// Сам required не обрезается до нуля, обрезается только итог
func RawMaterialShortfall(rm models.RawMaterial) float64 {
	return rawMaterialShortfall(decimal.NewFromFloat(rm.Required), rm).InexactFloat64()
}

func rawMaterialShortfall(required decimal.Decimal, rm models.RawMaterial) decimal.Decimal {
	demand := required.Add(decimal.NewFromFloat(rm.MinimumStock))
	supply := decimal.NewFromFloat(rm.CurrentStock).Add(decimal.NewFromFloat(rm.InProcurement))
	shortfall := demand.Sub(supply)
	if !shortfall.IsPositive() {
		return decimal.Zero
	}
	return shortfall.Round(quantityScale)
}
