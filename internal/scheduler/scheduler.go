package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/metrics"
)

// Scheduler is the fire-and-forget entry point. Failures are logged and
// counted, never returned.
type Scheduler struct {
	backend Backend
	now     func() time.Time
	logger  *zap.Logger
}

func New(backend Backend, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		backend: backend,
		now:     time.Now,
		logger:  logger,
	}
}

// Backend returns the backend selected at construction.
func (s *Scheduler) Backend() Backend {
	return s.backend
}

// Schedule submits d. The caller observes nothing.
func (s *Scheduler) Schedule(ctx context.Context, d Descriptor) {
	name := s.backend.Name()

	if d.Identifier == "" {
		s.logger.Error("dropping notification",
			zap.Error(ErrMissingIdentifier),
			zap.String("backend", name),
			zap.String("title", d.Title),
		)
		metrics.RecordSubmissionFailure(name)
		return
	}

	if err := s.backend.Submit(ctx, d, s.now()); err != nil {
		s.logger.Error("notification submission failed",
			zap.Error(err),
			zap.String("backend", name),
			zap.String("identifier", d.Identifier),
		)
		metrics.RecordSubmissionFailure(name)
		return
	}

	metrics.RecordScheduled(name)
	s.logger.Debug("notification scheduled",
		zap.String("backend", name),
		zap.String("identifier", d.Identifier),
		zap.Bool("repeats", d.Repeats),
	)
}
