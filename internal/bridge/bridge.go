// Package bridge receives delivery and interaction callbacks from the
// platform, keeps repeating notifications armed, and forwards events to the
// host's handlers.
package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/metrics"
	"github.com/lalithlochan/beacon/internal/platform"
)

// Bridge implements platform.Delegate.
type Bridge struct {
	center platform.NotificationCenter
	logger *zap.Logger

	mu             sync.RWMutex
	onWillPresent  func(identifier string)
	onUserResponse func(actionIdentifier string)
}

var _ platform.Delegate = (*Bridge)(nil)

func New(center platform.NotificationCenter, logger *zap.Logger) *Bridge {
	return &Bridge{center: center, logger: logger}
}

// SetOnWillPresent replaces the presentation handler. Nil clears it.
func (b *Bridge) SetOnWillPresent(fn func(identifier string)) {
	b.mu.Lock()
	b.onWillPresent = fn
	b.mu.Unlock()
}

// SetOnUserResponse replaces the response handler. Nil clears it.
func (b *Bridge) SetOnUserResponse(fn func(actionIdentifier string)) {
	b.mu.Lock()
	b.onUserResponse = fn
	b.mu.Unlock()
}

// WillPresent re-arms repeating requests before telling the host, and always
// asks for full presentation.
func (b *Bridge) WillPresent(ctx context.Context, n platform.Notification) platform.PresentationOptions {
	req := n.Request
	if req.Trigger != nil && req.Trigger.Repeats() {
		b.rearm(ctx, req)
	}

	b.mu.RLock()
	handler := b.onWillPresent
	b.mu.RUnlock()

	if handler != nil {
		handler(req.Identifier)
		metrics.RecordEventForwarded("will_present")
	}
	return platform.PresentAll
}

// DidReceive forwards the chosen action. Responses are never re-armed.
func (b *Bridge) DidReceive(ctx context.Context, r platform.Response) {
	b.mu.RLock()
	handler := b.onUserResponse
	b.mu.RUnlock()

	if handler == nil {
		return
	}
	handler(r.ActionIdentifier)
	metrics.RecordEventForwarded("user_response")
}

func (b *Bridge) rearm(ctx context.Context, req platform.Request) {
	if err := b.center.Add(ctx, req); err != nil {
		b.logger.Warn("re-arm failed",
			zap.Error(err),
			zap.String("identifier", req.Identifier),
		)
		metrics.RecordRearm("error")
		return
	}
	metrics.RecordRearm("ok")
}
