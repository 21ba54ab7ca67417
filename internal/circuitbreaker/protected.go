package circuitbreaker

import (
	"context"
	"fmt"

	"github.com/lalithlochan/beacon/internal/platform"
)

// Do runs fn through cb.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if !cb.Allow() {
		return fmt.Errorf("%w: %s unavailable", ErrCircuitOpen, cb.config.Name)
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// ProtectedCenter guards a notification center. Submissions and re-arms
// both go through it.
type ProtectedCenter struct {
	center  platform.NotificationCenter
	breaker *CircuitBreaker
}

var _ platform.NotificationCenter = (*ProtectedCenter)(nil)

func NewProtectedCenter(center platform.NotificationCenter, breaker *CircuitBreaker) *ProtectedCenter {
	return &ProtectedCenter{center: center, breaker: breaker}
}

func (p *ProtectedCenter) Add(ctx context.Context, req platform.Request) error {
	return p.breaker.Do(func() error { return p.center.Add(ctx, req) })
}

func (p *ProtectedCenter) Breaker() *CircuitBreaker { return p.breaker }

// ProtectedLegacy guards the legacy scheduling primitive.
type ProtectedLegacy struct {
	legacy  platform.LegacyScheduler
	breaker *CircuitBreaker
}

var _ platform.LegacyScheduler = (*ProtectedLegacy)(nil)

func NewProtectedLegacy(legacy platform.LegacyScheduler, breaker *CircuitBreaker) *ProtectedLegacy {
	return &ProtectedLegacy{legacy: legacy, breaker: breaker}
}

func (p *ProtectedLegacy) ScheduleLocalNotification(ctx context.Context, n platform.LegacyNotification) error {
	return p.breaker.Do(func() error { return p.legacy.ScheduleLocalNotification(ctx, n) })
}

func (p *ProtectedLegacy) Breaker() *CircuitBreaker { return p.breaker }
