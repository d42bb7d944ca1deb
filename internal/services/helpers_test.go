package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/events"
	"github.com/Jooldo/zarify-sub003/internal/models"
	"github.com/Jooldo/zarify-sub003/internal/store"
)

const testTenant = "merchant-1"

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// failingCacheStore имитирует недоступный Redis
type failingCacheStore struct{}

var errCacheDown = errors.New("redis: connection refused")

func (failingCacheStore) Get(context.Context, string) (*models.CacheMetadata, error) {
	return nil, errCacheDown
}
func (failingCacheStore) Put(context.Context, string, models.CacheMetadata) error { return errCacheDown }
func (failingCacheStore) Delete(context.Context, string) error { return errCacheDown }

// seedScenario изделие F и сырье R из базового примера: дефицит F = 15, required R = 30, дефицит R = 35
func seedScenario(st *store.MemoryStore) (models.FinishedGood, models.RawMaterial) {
	fg := st.PutFinishedGood(models.FinishedGood{
		MerchantID:       testTenant,
		ProductConfigID:  "config-F",
		RequiredQuantity: 20,
		Threshold:        5,
		CurrentStock:     10,
		InManufacturing:  0,
	})
	rm := st.PutRawMaterial(models.RawMaterial{
		MerchantID:    testTenant,
		Name:          "Gold 22K",
		Unit:          "g",
		MinimumStock:  10,
		CurrentStock:  5,
		InProcurement: 0,
	})
	st.PutBOMEntry(models.BOMEntry{
		MerchantID:       testTenant,
		ProductConfigID:  "config-F",
		RawMaterialID:    rm.ID,
		QuantityRequired: 2,
	})
	return fg, rm
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func fastBackoff() Backoff {
	return Backoff{Base: time.Millisecond, Max: 5 * time.Millisecond, Jitter: RandomJitter}
}

func strPtr(s string) *string { return &s }
