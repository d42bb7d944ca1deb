package services

import (
	"context"
	"math/rand"
	"time"
)

// Backoff задержка перед повтором: base*2^attempt + jitter, не больше Max.
// Jitter получает верхнюю границу и возвращает значение из [0, limit)
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter func(limit time.Duration) time.Duration
}

// DefaultBackoff 20ms, 40ms, 80ms ... с потолком 2s
func DefaultBackoff() Backoff {
	return Backoff{Base: 20 * time.Millisecond, Max: 2 * time.Second, Jitter: RandomJitter}
}

// Duration задержка после неудачной попытки attempt (с нуля)
func (b Backoff) Duration(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := b.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			delay = b.Max
			break
		}
	}
	if b.Jitter != nil && b.Base > 0 {
		delay += b.Jitter(b.Base)
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}

// RandomJitter равномерный джиттер
func RandomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(limit)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
