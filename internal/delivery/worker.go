// Package delivery fires due notifications. It plays the platform's part:
// polling the stores, presenting through the registered delegate and handing
// legacy and remote notifications to the lifecycle hooks.
package delivery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/bridge"
	"github.com/lalithlochan/beacon/internal/db"
	"github.com/lalithlochan/beacon/internal/metrics"
	"github.com/lalithlochan/beacon/internal/platform"
)

// Center yields modern requests whose fire date has passed.
type Center interface {
	Due(ctx context.Context, now time.Time, limit int) ([]platform.Notification, error)
}

// LegacyStore yields legacy notifications whose fire date has passed.
type LegacyStore interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*db.LocalNotification, error)
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// Worker polls the modern center and the legacy store. Either may be nil.
type Worker struct {
	center Center
	legacy LegacyStore
	hooks  bridge.Hooks
	config Config
	now    func() time.Time
	logger *zap.Logger

	mu       sync.RWMutex
	delegate platform.Delegate
}

var _ platform.DelegateRegistrar = (*Worker)(nil)

func New(center Center, legacy LegacyStore, hooks bridge.Hooks, cfg Config, logger *zap.Logger) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 50
	}
	if hooks == nil {
		hooks = bridge.NopHooks{}
	}

	return &Worker{
		center: center,
		legacy: legacy,
		hooks:  hooks,
		config: cfg,
		now:    time.Now,
		logger: logger,
	}
}

// SetDelegate registers the receiver of modern deliveries.
func (w *Worker) SetDelegate(d platform.Delegate) {
	w.mu.Lock()
	w.delegate = d
	w.mu.Unlock()
}

func (w *Worker) currentDelegate() platform.Delegate {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.delegate
}

// Start polls until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.logger.Info("delivery worker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("delivery worker stopping")
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one poll of both stores.
func (w *Worker) Tick(ctx context.Context) {
	now := w.now()
	if w.center != nil {
		w.deliverModern(ctx, now)
	}
	if w.legacy != nil {
		w.deliverLegacy(ctx, now)
	}
}

func (w *Worker) deliverModern(ctx context.Context, now time.Time) {
	delegate := w.currentDelegate()
	if delegate == nil {
		// Nothing registered yet; leave requests in place.
		return
	}

	due, err := w.center.Due(ctx, now, w.config.BatchSize)
	if err != nil {
		w.logger.Error("failed to load due requests", zap.Error(err))
	}
	for _, n := range due {
		opts := delegate.WillPresent(ctx, n)
		metrics.RecordDelivered("modern", now.Sub(n.Date))
		w.logger.Info("notification presented",
			zap.String("identifier", n.Request.Identifier),
			zap.String("title", n.Request.Content.Title),
			zap.Bool("alert", opts&platform.PresentAlert != 0),
			zap.Bool("sound", opts&platform.PresentSound != 0),
		)
	}
}

func (w *Worker) deliverLegacy(ctx context.Context, now time.Time) {
	due, err := w.legacy.ClaimDue(ctx, now, w.config.BatchSize)
	if err != nil {
		w.logger.Error("failed to claim due local notifications", zap.Error(err))
		return
	}
	for _, n := range due {
		w.hooks.DidReceiveLocalNotification(ctx, n.Legacy())
		metrics.RecordDelivered("legacy", now.Sub(n.FireDate))
		w.logger.Info("local notification delivered",
			zap.String("id", n.ID.String()),
			zap.String("body", n.AlertBody),
			zap.Duration("repeat_interval", n.RepeatInterval),
		)
	}
}
