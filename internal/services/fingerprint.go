package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/models"

	"github.com/cespare/xxhash/v2"
)

// Каноническая сериализация для отпечатков:
// одна запись на строку, поля в фиксированном порядке через '|',
// время в UTC RFC3339Nano, количества через FormatFloat('f', -1).
// Строки сортируются, поэтому порядок выборки из БД не влияет на результат.
// Отпечаток = "<число записей>:<xxhash64 в hex>"

// OrdersFingerprint отпечаток позиций заказов, формирующих спрос (Created, In Progress)
func OrdersFingerprint(items []models.OrderItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if !item.Status.IsLiveDemand() {
			continue
		}
		lines = append(lines, joinFields("oi",
			item.ID,
			item.ProductConfigID,
			strconv.Itoa(item.Quantity),
			string(item.Status),
			formatTime(item.UpdatedAt),
		))
	}
	return digest(lines)
}

// StockFingerprint отпечаток остатков изделий, сырья и спецификаций.
// Поля, которые пишет сам каскад (required и last_updated сырья), не входят
func StockFingerprint(goods []models.FinishedGood, materials []models.RawMaterial, bom []models.BOMEntry) string {
	lines := make([]string, 0, len(goods)+len(materials)+len(bom))
	for _, fg := range goods {
		lines = append(lines, joinFields("fg",
			fg.ID,
			fg.ProductConfigID,
			strconv.Itoa(fg.CurrentStock),
			strconv.Itoa(fg.InManufacturing),
			strconv.Itoa(fg.Threshold),
			strconv.Itoa(fg.RequiredQuantity),
			formatTime(fg.LastUpdated),
		))
	}
	for _, rm := range materials {
		lines = append(lines, joinFields("rm",
			rm.ID,
			formatQuantity(rm.CurrentStock),
			formatQuantity(rm.InProcurement),
			formatQuantity(rm.MinimumStock),
		))
	}
	for _, entry := range bom {
		lines = append(lines, joinFields("bom",
			entry.ProductConfigID,
			entry.RawMaterialID,
			formatQuantity(entry.QuantityRequired),
		))
	}
	return digest(lines)
}

func joinFields(kind string, fields ...string) string {
	return kind + "|" + strings.Join(fields, "|")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func digest(lines []string) string {
	sort.Strings(lines)
	h := xxhash.New()
	for _, line := range lines {
		_, _ = h.WriteString(line)
		_, _ = h.WriteString("\n")
	}
	return fmt.Sprintf("%d:%016x", len(lines), h.Sum64())
}
