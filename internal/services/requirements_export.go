package services

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	rawMaterialsSheet  = "Raw Materials"
	finishedGoodsSheet = "Finished Goods"
)

// ExportRequirementsXLSX выгружает потребности в книгу Excel с двумя листами
func ExportRequirementsXLSX(view *RequirementsView) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания стиля заголовка: %w", err)
	}

	materialRows := make([][]interface{}, 0, len(view.RawMaterials))
	for _, rm := range view.RawMaterials {
		materialRows = append(materialRows, []interface{}{
			rm.Name, rm.Type, rm.Unit, rm.CurrentStock, rm.InProcurement, rm.MinimumStock, rm.Required, rm.Shortfall,
		})
	}
	if err := writeSheet(f, rawMaterialsSheet, headerStyle,
		[]string{"Name", "Type", "Unit", "Current Stock", "In Procurement", "Minimum Stock", "Required", "Shortfall"},
		materialRows); err != nil {
		return nil, err
	}

	goodRows := make([][]interface{}, 0, len(view.FinishedGoods))
	for _, fg := range view.FinishedGoods {
		goodRows = append(goodRows, []interface{}{
			fg.ProductConfigID, fg.CurrentStock, fg.InManufacturing, fg.Threshold, fg.RequiredQuantity, fg.Shortfall,
		})
	}
	if err := writeSheet(f, finishedGoodsSheet, headerStyle,
		[]string{"Product Config", "Current Stock", "In Manufacturing", "Threshold", "Required Quantity", "Shortfall"},
		goodRows); err != nil {
		return nil, err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("ошибка удаления листа по умолчанию: %w", err)
	}
	if index, err := f.GetSheetIndex(rawMaterialsSheet); err == nil {
		f.SetActiveSheet(index)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("ошибка записи книги: %w", err)
	}
	return buf, nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("ошибка создания листа %s: %w", sheet, err)
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 16)
}
