// Package notifier is the host-facing entry point. A process owns exactly one
// Service, built at startup and passed to whatever needs it.
package notifier

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/authz"
	"github.com/lalithlochan/beacon/internal/bridge"
	"github.com/lalithlochan/beacon/internal/capability"
	"github.com/lalithlochan/beacon/internal/platform"
	"github.com/lalithlochan/beacon/internal/prompt"
	"github.com/lalithlochan/beacon/internal/scheduler"
)

// Deps are the platform adapters the service drives. Modern-tier processes
// may leave the legacy fields nil and the other way round.
type Deps struct {
	Permissions    platform.PermissionService
	Center         platform.NotificationCenter
	Registrar      platform.DelegateRegistrar
	Legacy         platform.LegacyScheduler
	LegacySettings platform.LegacySettings
	Remote         platform.RemoteRegistrar
	Settings       platform.SettingsOpener
	Main           platform.Dispatcher

	// Hooks receives lifecycle callbacks. Defaults to bridge.NopHooks.
	Hooks bridge.Hooks
}

// Service ties the tracker, scheduler, prompter and bridge together.
// Callback-style operations return immediately and run on goroutines owned
// by the service; Wait blocks until they are done.
type Service struct {
	bridge.Hooks

	tier           capability.Tier
	tracker        *authz.Tracker
	scheduler      *scheduler.Scheduler
	prompter       *prompt.Prompter
	bridge         *bridge.Bridge
	registrar      platform.DelegateRegistrar
	legacySettings platform.LegacySettings
	logger         *zap.Logger

	registered atomic.Bool
	wg         sync.WaitGroup

	// lastSubmit is closed when the most recent Schedule has submitted.
	submitMu   sync.Mutex
	lastSubmit chan struct{}
}

// New wires a service for tier.
func New(tier capability.Tier, c prompt.Copy, deps Deps, logger *zap.Logger) *Service {
	hooks := deps.Hooks
	if hooks == nil {
		hooks = bridge.NopHooks{}
	}

	p := prompt.New(c, deps.Settings, logger.Named("prompt"))
	backend := scheduler.Select(tier, deps.Center, deps.Legacy, p.Copy().DefaultAction)

	return &Service{
		Hooks: hooks,
		tier:  tier,
		tracker: authz.New(tier, authz.Deps{
			Permissions: deps.Permissions,
			Legacy:      deps.LegacySettings,
			Remote:      deps.Remote,
			Main:        deps.Main,
		}, logger.Named("authz")),
		scheduler:      scheduler.New(backend, logger.Named("scheduler")),
		prompter:       p,
		bridge:         bridge.New(deps.Center, logger.Named("bridge")),
		registrar:      deps.Registrar,
		legacySettings: deps.LegacySettings,
		logger:         logger,
	}
}

func (s *Service) Tier() capability.Tier { return s.tier }

// Bridge returns the platform delegate. Delivery loops call it directly.
func (s *Service) Bridge() *bridge.Bridge { return s.bridge }

func (s *Service) Copy() prompt.Copy { return s.prompter.Copy() }

// Register installs the delegate (or the legacy settings) and runs the
// initial authorization check. Only the first call has any effect; it
// reports whether this call was that one.
func (s *Service) Register(ctx context.Context, useRemoteDelivery bool) bool {
	if !s.registered.CompareAndSwap(false, true) {
		s.logger.Warn("register called more than once; ignoring")
		return false
	}
	s.tracker.SetRemoteDelivery(useRemoteDelivery)

	if s.tier.SupportsModern() {
		s.registrar.SetDelegate(s.bridge)
	} else {
		types := s.tier.AuthorizationOptions()
		if err := s.legacySettings.RegisterUserNotificationSettings(ctx, types); err != nil {
			s.logger.Warn("legacy settings registration failed", zap.Error(err))
		} else {
			s.Hooks.DidRegisterUserNotificationSettings(ctx, types)
		}
	}

	s.logger.Info("notifier registered",
		zap.String("tier", s.tier.String()),
		zap.Bool("remote_delivery", useRemoteDelivery),
	)

	s.async(ctx, func(ctx context.Context) {
		s.tracker.Check(ctx)
	})
	return true
}

// Registered reports whether Register has run.
func (s *Service) Registered() bool {
	return s.registered.Load()
}

// Status runs the check synchronously and returns the resulting status.
func (s *Service) Status(ctx context.Context) platform.AuthorizationStatus {
	return s.tracker.Check(ctx)
}

// CheckAuthorization reports whether scheduling is allowed. A NotDetermined
// status triggers the permission request first.
func (s *Service) CheckAuthorization(ctx context.Context, cb func(authorized bool)) {
	s.async(ctx, func(ctx context.Context) {
		cb(authz.IsSchedulingAllowed(s.tracker.Check(ctx)))
	})
}

// RequestAuthorization asks for permission. cb may be nil.
func (s *Service) RequestAuthorization(ctx context.Context, cb func(granted bool)) {
	s.async(ctx, func(ctx context.Context) {
		granted := s.tracker.Request(ctx)
		if cb != nil {
			cb(granted)
		}
	})
}

// Schedule submits d in the background. Failures are logged, not reported.
// Submissions reach the backend in call order, so a later descriptor with the
// same identifier replaces an earlier one.
func (s *Service) Schedule(ctx context.Context, d scheduler.Descriptor) {
	s.submitMu.Lock()
	prev := s.lastSubmit
	done := make(chan struct{})
	s.lastSubmit = done
	s.submitMu.Unlock()

	s.async(ctx, func(ctx context.Context) {
		defer close(done)
		if prev != nil {
			<-prev
		}
		s.scheduler.Schedule(ctx, d)
	})
}

func (s *Service) PromptSettingsRedirect(ctx context.Context, title, message string, surface prompt.Surface) {
	s.prompter.PromptSettingsRedirect(ctx, title, message, surface)
}

func (s *Service) SetOnWillPresent(fn func(identifier string)) {
	s.bridge.SetOnWillPresent(fn)
}

func (s *Service) SetOnUserResponse(fn func(actionIdentifier string)) {
	s.bridge.SetOnUserResponse(fn)
}

// Wait blocks until every background operation has finished, settings
// navigations included.
func (s *Service) Wait() {
	s.wg.Wait()
	s.prompter.Wait()
}

// async runs fn detached from the caller's cancellation.
func (s *Service) async(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("background operation panicked", zap.Any("panic", r))
			}
		}()
		fn(ctx)
	}()
}
