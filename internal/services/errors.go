package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Jooldo/zarify-sub003/internal/store"
)

var (
	// ErrAllocationExhausted исчерпан бюджет попыток генерации номера заказа
	ErrAllocationExhausted = errors.New("order number allocation exhausted")
	// ErrPartialUpdate часть строк сырья не удалось сохранить
	ErrPartialUpdate = errors.New("partial update failure")
	// ErrStepConfigMissing этап отсутствует в настроенной последовательности мерчанта
	ErrStepConfigMissing = errors.New("step order configuration missing")
	// ErrValidation некорректные входные данные
	ErrValidation = errors.New("validation error")
)

// Машиночитаемые виды ошибок для логов и ответов API
const (
	KindTransient       = "transient_store_error"
	KindUniqueViolation = "unique_constraint_violation"
	KindExhausted       = "allocation_exhausted"
	KindPartialUpdate   = "partial_update_failure"
	KindConfigMissing   = "configuration_missing"
	KindNotFound        = "not_found"
	KindValidation      = "validation_error"
	KindInternal        = "internal_error"
)

// AllocationExhaustedError все попытки генерации номера проиграли гонку
type AllocationExhaustedError struct {
	Kind     AllocationKind
	Attempts int
}

func (e *AllocationExhaustedError) Error() string {
	return fmt.Sprintf("%s order number allocation exhausted after %d attempts", e.Kind, e.Attempts)
}

func (e *AllocationExhaustedError) Is(target error) bool {
	return target == ErrAllocationExhausted
}

// PartialUpdateError пересчет выполнен, но часть строк сырья не сохранена.
// Успешно сохраненные строки не откатываются
type PartialUpdateError struct {
	FailedIDs []string
	Total     int
	Errors    []error
}

func (e *PartialUpdateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to persist %d of %d raw materials", len(e.FailedIDs), e.Total)
	if len(e.Errors) > 0 {
		fmt.Fprintf(&b, " (first error: %v)", e.Errors[0])
	}
	return b.String()
}

func (e *PartialUpdateError) Is(target error) bool {
	return target == ErrPartialUpdate
}

// ErrorKind возвращает вид ошибки для ответа клиенту
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAllocationExhausted):
		return KindExhausted
	case errors.Is(err, ErrPartialUpdate):
		return KindPartialUpdate
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrStepConfigMissing):
		return KindConfigMissing
	case errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, store.ErrUniqueViolation):
		return KindUniqueViolation
	case errors.Is(err, store.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	}
	return KindInternal
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
