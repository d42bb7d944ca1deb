package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/Jooldo/zarify-sub003/internal/metrics"
	"github.com/Jooldo/zarify-sub003/internal/models"
	"github.com/Jooldo/zarify-sub003/internal/store"
)

// AllocationKind вид номера заказа, задается явно вызывающей стороной
type AllocationKind int

const (
	AllocationPrimary AllocationKind = iota
	AllocationRework
)

func (k AllocationKind) String() string {
	switch k {
	case AllocationPrimary:
		return "primary"
	case AllocationRework:
		return "rework"
	}
	return "unknown"
}

const (
	primaryPrefix      = models.PrimaryOrderPrefix
	reworkSeparator    = models.ReworkSeparator
	primaryDigits      = 6
	DefaultMaxAttempts = 10
)

// AllocationRequest запрос номера; ParentOrderNumber обязателен для переделки
type AllocationRequest struct {
	Kind              AllocationKind
	ParentOrderNumber string
}

// InsertFunc вставляет заказ с выбранным номером.
// Должна вернуть ошибку, удовлетворяющую errors.Is(err, store.ErrUniqueViolation), если номер уже занят
type InsertFunc func(ctx context.Context, orderNumber string) error

// OrderNumberService выдает номера заказов без центрального счетчика:
// вычисляет кандидата, проверяет, вставляет и при проигранной гонке повторяет с задержкой
type OrderNumberService struct {
	store       store.Store
	maxAttempts int
	backoff     Backoff
	metrics     *metrics.Metrics
}

// NewOrderNumberService создает новый экземпляр OrderNumberService
func NewOrderNumberService(st store.Store, maxAttempts int, backoff Backoff, m *metrics.Metrics) *OrderNumberService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &OrderNumberService{store: st, maxAttempts: maxAttempts, backoff: backoff, metrics: m}
}

// AllocateOrderNumber подбирает свободный номер и вставляет заказ через insert.
// Ошибки, кроме нарушения уникальности, возвращаются без повторов
func (s *OrderNumberService) AllocateOrderNumber(ctx context.Context, tenant string, req AllocationRequest, insert InsertFunc) (string, error) {
	if req.Kind != AllocationPrimary && req.Kind != AllocationRework {
		return "", validationError("unknown allocation kind %d", req.Kind)
	}
	if req.Kind == AllocationRework && req.ParentOrderNumber == "" {
		return "", validationError("rework allocation requires parent order number")
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		candidate, err := s.nextCandidate(ctx, tenant, req)
		if err != nil {
			s.metrics.AllocationFailed("store_error")
			return "", err
		}

		taken, err := s.store.OrderNumberExists(ctx, tenant, candidate)
		if err != nil {
			s.metrics.AllocationFailed("store_error")
			return "", err
		}

		if !taken {
			err = insert(ctx, candidate)
			if err == nil {
				s.metrics.AllocationSucceeded(attempt + 1)
				if attempt > 0 {
					log.Printf("✅ AllocateOrderNumber: номер %s выдан после %d попыток (merchant: %s)", candidate, attempt+1, tenant)
				}
				return candidate, nil
			}
			if !errors.Is(err, store.ErrUniqueViolation) {
				s.metrics.AllocationFailed("store_error")
				return "", err
			}
		}

		s.metrics.AllocationConflict()
		if attempt == s.maxAttempts-1 {
			break
		}

		delay := s.backoff.Duration(attempt)
		log.Printf("⚠️ AllocateOrderNumber: номер %s занят (попытка %d/%d, merchant: %s), retry через %v",
			candidate, attempt+1, s.maxAttempts, tenant, delay)
		if err := sleepContext(ctx, delay); err != nil {
			s.metrics.AllocationFailed("canceled")
			return "", fmt.Errorf("allocate %s order number: %w", req.Kind, err)
		}
	}

	s.metrics.AllocationFailed("exhausted")
	log.Printf("❌ AllocateOrderNumber: исчерпано %d попыток (kind: %s, merchant: %s)", s.maxAttempts, req.Kind, tenant)
	return "", &AllocationExhaustedError{Kind: req.Kind, Attempts: s.maxAttempts}
}

func (s *OrderNumberService) nextCandidate(ctx context.Context, tenant string, req AllocationRequest) (string, error) {
	if req.Kind == AllocationRework {
		numbers, err := s.store.ReworkOrderNumbers(ctx, tenant, req.ParentOrderNumber)
		if err != nil {
			return "", err
		}
		highest := 0
		for _, number := range numbers {
			if n, ok := parseReworkSuffix(req.ParentOrderNumber, number); ok && n > highest {
				highest = n
			}
		}
		return FormatReworkOrderNumber(req.ParentOrderNumber, highest+1), nil
	}

	latest, err := s.store.LatestPrimaryOrderNumber(ctx, tenant)
	if err != nil {
		return "", err
	}
	next := 1
	if latest != "" {
		n, ok := parsePrimarySequence(latest)
		if !ok {
			log.Printf("⚠️ AllocateOrderNumber: не удалось разобрать номер %s (merchant: %s), начинаем с 1", latest, tenant)
		}
		next = n + 1
	}
	return FormatPrimaryOrderNumber(next), nil
}

// FormatPrimaryOrderNumber MO + номер с ведущими нулями
func FormatPrimaryOrderNumber(n int) string {
	return fmt.Sprintf("%s%0*d", primaryPrefix, primaryDigits, n)
}

// FormatReworkOrderNumber <parent>-R<n>
func FormatReworkOrderNumber(parent string, n int) string {
	return parent + reworkSeparator + strconv.Itoa(n)
}

func parsePrimarySequence(number string) (int, bool) {
	return parseDigits(strings.TrimPrefix(number, primaryPrefix), strings.HasPrefix(number, primaryPrefix))
}

// parseReworkSuffix разбирает только прямые переделки parent: "MO000001-R1-R2" для "MO000001" не подходит
func parseReworkSuffix(parent, number string) (int, bool) {
	prefix := parent + reworkSeparator
	return parseDigits(strings.TrimPrefix(number, prefix), strings.HasPrefix(number, prefix))
}

func parseDigits(s string, hasPrefix bool) (int, bool) {
	if !hasPrefix || s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
