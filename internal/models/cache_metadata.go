package models

import "time"

// CacheMetadata снимок входных данных последнего пересчета потребностей.
// Хранится в Redis, может быть удален в любой момент
type CacheMetadata struct {
	LastCalculatedAt  time.Time `json:"lastCalculatedAt"`
	OrdersFingerprint string    `json:"ordersFingerprint"`
	StockFingerprint  string    `json:"stockFingerprint"`
}
