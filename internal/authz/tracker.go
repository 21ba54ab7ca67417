// Package authz tracks the notification authorization state and drives the
// request-permission-once policy.
package authz

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lalithlochan/beacon/internal/capability"
	"github.com/lalithlochan/beacon/internal/metrics"
	"github.com/lalithlochan/beacon/internal/platform"
)

const requestKey = "authorization"

// IsSchedulingAllowed reports whether notifications may be scheduled under
// status. Provisional counts as authorized here, but stays a distinct status
// for the host.
func IsSchedulingAllowed(status platform.AuthorizationStatus) bool {
	switch status {
	case platform.StatusAuthorized, platform.StatusProvisional:
		return true
	default:
		return false
	}
}

// Tracker queries and normalizes authorization across API generations.
type Tracker struct {
	tier        capability.Tier
	permissions platform.PermissionService // modern tiers
	legacy      platform.LegacySettings    // legacy tier
	remote      platform.RemoteRegistrar   // nil disables remote registration
	main        platform.Dispatcher
	logger      *zap.Logger

	useRemote atomic.Bool
	requests  singleflight.Group
}

// Deps are the platform collaborators a Tracker talks to.
type Deps struct {
	Permissions platform.PermissionService
	Legacy      platform.LegacySettings
	Remote      platform.RemoteRegistrar
	Main        platform.Dispatcher
}

// New creates a tracker for tier.
func New(tier capability.Tier, deps Deps, logger *zap.Logger) *Tracker {
	return &Tracker{
		tier:        tier,
		permissions: deps.Permissions,
		legacy:      deps.Legacy,
		remote:      deps.Remote,
		main:        deps.Main,
		logger:      logger,
	}
}

// SetRemoteDelivery enables registration for remote delivery after a grant.
func (t *Tracker) SetRemoteDelivery(enabled bool) {
	t.useRemote.Store(enabled)
}

// Status queries the platform without side effects.
func (t *Tracker) Status(ctx context.Context) (platform.AuthorizationStatus, error) {
	if !t.tier.SupportsModern() {
		return t.legacyStatus(ctx)
	}
	return t.permissions.AuthorizationStatus(ctx)
}

func (t *Tracker) legacyStatus(ctx context.Context) (platform.AuthorizationStatus, error) {
	types, registered, err := t.legacy.CurrentTypes(ctx)
	if err != nil {
		return platform.StatusNotDetermined, err
	}
	if registered && types.Contains(platform.OptionAlert) {
		return platform.StatusAuthorized, nil
	}
	return platform.StatusDenied, nil
}

// Check observes the current status. On NotDetermined it issues the
// permission request and reports the status that follows the user's
// decision. Any other status is returned as is, without a request.
func (t *Tracker) Check(ctx context.Context) platform.AuthorizationStatus {
	status, err := t.Status(ctx)
	if err != nil {
		t.logger.Warn("authorization status query failed", zap.Error(err))
		metrics.RecordAuthorizationCheck("error")
		return platform.StatusNotDetermined
	}
	metrics.RecordAuthorizationCheck(status.String())

	if status != platform.StatusNotDetermined {
		return status
	}

	granted := t.Request(ctx)

	after, err := t.Status(ctx)
	if err != nil || after == platform.StatusNotDetermined {
		if err != nil {
			t.logger.Warn("authorization status query after request failed", zap.Error(err))
		}
		if granted {
			return platform.StatusAuthorized
		}
		return platform.StatusDenied
	}
	return after
}

// Request asks the platform for the tier's capability set. Concurrent calls
// share a single outstanding platform request.
func (t *Tracker) Request(ctx context.Context) bool {
	v, _, shared := t.requests.Do(requestKey, func() (any, error) {
		return t.request(ctx), nil
	})
	if shared {
		t.logger.Debug("joined in-flight authorization request")
	}
	return v.(bool)
}

func (t *Tracker) request(ctx context.Context) bool {
	opts := t.tier.AuthorizationOptions()

	var (
		granted bool
		err     error
	)
	if t.tier.SupportsModern() {
		granted, err = t.permissions.RequestAuthorization(ctx, opts)
	} else {
		granted, err = t.registerLegacy(ctx, opts)
	}

	switch {
	case err != nil:
		t.logger.Warn("authorization request reported an error",
			zap.Error(err),
			zap.Bool("granted", granted),
		)
		metrics.RecordAuthorizationRequest("error")
	case granted:
		metrics.RecordAuthorizationRequest("granted")
	default:
		metrics.RecordAuthorizationRequest("refused")
	}

	t.logger.Info("authorization requested",
		zap.String("tier", t.tier.String()),
		zap.Stringer("options", opts),
		zap.Bool("granted", granted),
	)

	if granted && t.useRemote.Load() {
		t.scheduleRemoteRegistration(ctx)
	}

	return granted
}

func (t *Tracker) registerLegacy(ctx context.Context, opts platform.AuthorizationOptions) (bool, error) {
	if err := t.legacy.RegisterUserNotificationSettings(ctx, opts); err != nil {
		return false, fmt.Errorf("register legacy settings: %w", err)
	}
	types, registered, err := t.legacy.CurrentTypes(ctx)
	if err != nil {
		return false, fmt.Errorf("read legacy settings: %w", err)
	}
	return registered && types.Contains(platform.OptionAlert), nil
}

func (t *Tracker) scheduleRemoteRegistration(ctx context.Context) {
	if t.remote == nil {
		t.logger.Warn("remote delivery enabled but no remote registrar configured")
		return
	}
	regCtx := context.WithoutCancel(ctx)
	t.main.Dispatch(func() {
		t.remote.RegisterForRemoteNotifications(regCtx)
	})
}
