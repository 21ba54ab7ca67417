package bridge

import (
	"context"

	"github.com/lalithlochan/beacon/internal/platform"
)

// FetchResult is what a remote payload handler reports back to the platform.
type FetchResult int

const (
	FetchNoData FetchResult = iota
	FetchNewData
	FetchFailed
)

func (r FetchResult) String() string {
	switch r {
	case FetchNewData:
		return "new_data"
	case FetchFailed:
		return "failed"
	default:
		return "no_data"
	}
}

// Hooks mirrors the platform's application lifecycle callbacks. The core
// does nothing with them; hosts embed NopHooks and override what they need.
type Hooks interface {
	DidRegisterForRemoteNotifications(ctx context.Context, deviceToken string)
	DidFailToRegisterForRemoteNotifications(ctx context.Context, err error)
	DidReceiveRemoteNotification(ctx context.Context, payload map[string]any) FetchResult

	// Legacy-tier callbacks.
	DidReceiveLocalNotification(ctx context.Context, n platform.LegacyNotification)
	DidRegisterUserNotificationSettings(ctx context.Context, types platform.AuthorizationOptions)
	HandleActionForLocalNotification(ctx context.Context, actionIdentifier string, n platform.LegacyNotification)
	HandleActionForLocalNotificationWithResponse(ctx context.Context, actionIdentifier string, n platform.LegacyNotification, responseInfo map[string]any)
	HandleActionForRemoteNotification(ctx context.Context, actionIdentifier string, payload map[string]any)
	HandleActionForRemoteNotificationWithResponse(ctx context.Context, actionIdentifier string, payload, responseInfo map[string]any)
}

// NopHooks implements Hooks with no-ops.
type NopHooks struct{}

var _ Hooks = NopHooks{}

func (NopHooks) DidRegisterForRemoteNotifications(context.Context, string)      {}
func (NopHooks) DidFailToRegisterForRemoteNotifications(context.Context, error) {}

func (NopHooks) DidReceiveRemoteNotification(context.Context, map[string]any) FetchResult {
	return FetchNoData
}

func (NopHooks) DidReceiveLocalNotification(context.Context, platform.LegacyNotification) {}

func (NopHooks) DidRegisterUserNotificationSettings(context.Context, platform.AuthorizationOptions) {
}

func (NopHooks) HandleActionForLocalNotification(context.Context, string, platform.LegacyNotification) {
}

func (NopHooks) HandleActionForLocalNotificationWithResponse(context.Context, string, platform.LegacyNotification, map[string]any) {
}

func (NopHooks) HandleActionForRemoteNotification(context.Context, string, map[string]any) {}

func (NopHooks) HandleActionForRemoteNotificationWithResponse(context.Context, string, map[string]any, map[string]any) {
}
