package platform

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Queue is a serial dispatch queue: functions run one at a time, in
// submission order, on the goroutine that calls Run. Dispatch never blocks.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	logger  *zap.Logger
}

// NewQueue creates an idle queue. Nothing runs until Run is called.
func NewQueue(logger *zap.Logger) *Queue {
	return &Queue{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Dispatch appends fn to the queue.
func (q *Queue) Dispatch(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("dispatch queue stopping")
			return
		case <-q.wake:
			for fn := q.next(); fn != nil; fn = q.next() {
				q.run(fn)
			}
		}
	}
}

func (q *Queue) next() func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	fn := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return fn
}

func (q *Queue) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("dispatched function panicked", zap.Any("panic", r))
		}
	}()
	fn()
}
