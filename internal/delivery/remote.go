package delivery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/bridge"
	"github.com/lalithlochan/beacon/internal/sqs"
)

// RemoteSource is a queue of remote notification payloads.
type RemoteSource interface {
	Receive(ctx context.Context, limit int32) ([]sqs.RemoteMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// RemoteListener hands remote payloads to the hooks. A payload is deleted
// from the queue unless the hook reports FetchFailed, in which case it
// becomes visible again for another attempt.
type RemoteListener struct {
	source  RemoteSource
	hooks   bridge.Hooks
	backoff time.Duration
	logger  *zap.Logger
}

func NewRemoteListener(source RemoteSource, hooks bridge.Hooks, logger *zap.Logger) *RemoteListener {
	if hooks == nil {
		hooks = bridge.NopHooks{}
	}
	return &RemoteListener{source: source, hooks: hooks, backoff: 5 * time.Second, logger: logger}
}

// Start long-polls until ctx is cancelled.
func (l *RemoteListener) Start(ctx context.Context) {
	l.logger.Info("remote listener started")
	for {
		if ctx.Err() != nil {
			l.logger.Info("remote listener stopping")
			return
		}
		if err := l.Poll(ctx); err != nil && ctx.Err() == nil {
			l.logger.Warn("remote poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(l.backoff):
			}
		}
	}
}

// Poll receives one batch and dispatches it.
func (l *RemoteListener) Poll(ctx context.Context) error {
	msgs, err := l.source.Receive(ctx, 10)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		result := l.hooks.DidReceiveRemoteNotification(ctx, m.Payload)
		l.logger.Debug("remote notification handled", zap.Stringer("result", result))
		if result == bridge.FetchFailed {
			continue
		}
		if err := l.source.Delete(ctx, m.ReceiptHandle); err != nil {
			l.logger.Warn("failed to delete remote message", zap.Error(err))
		}
	}
	return nil
}
