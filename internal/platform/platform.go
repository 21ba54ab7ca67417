package platform

import "context"

// PermissionService is the modern permission API.
type PermissionService interface {
	AuthorizationStatus(ctx context.Context) (AuthorizationStatus, error)
	// RequestAuthorization prompts the user (when needed) and reports the
	// decision.
	RequestAuthorization(ctx context.Context, options AuthorizationOptions) (bool, error)
}

// NotificationCenter is the modern submission service. Add is used both for
// new requests and for re-arming delivered repeating ones.
type NotificationCenter interface {
	Add(ctx context.Context, req Request) error
}

// Delegate receives the platform's delivery and interaction callbacks.
type Delegate interface {
	WillPresent(ctx context.Context, n Notification) PresentationOptions
	DidReceive(ctx context.Context, r Response)
}

// DelegateRegistrar is where the core installs its Delegate at startup.
type DelegateRegistrar interface {
	SetDelegate(d Delegate)
}

// LegacyScheduler is the legacy immediate-scheduling primitive.
type LegacyScheduler interface {
	ScheduleLocalNotification(ctx context.Context, n LegacyNotification) error
}

// LegacySettings is the legacy permission model: the app registers the
// types it wants and later reads back what the user allowed.
type LegacySettings interface {
	// CurrentTypes returns the allowed types, and false if the app never
	// registered.
	CurrentTypes(ctx context.Context) (AuthorizationOptions, bool, error)
	RegisterUserNotificationSettings(ctx context.Context, types AuthorizationOptions) error
}

// RemoteRegistrar registers the application for remote delivery.
type RemoteRegistrar interface {
	RegisterForRemoteNotifications(ctx context.Context)
}

// SettingsOpener navigates to the OS settings surface for this application.
type SettingsOpener interface {
	OpenSettings(ctx context.Context) error
}

// Dispatcher runs work on the main scheduling context without blocking the
// caller.
type Dispatcher interface {
	Dispatch(fn func())
}
