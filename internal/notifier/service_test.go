package notifier

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/bridge"
	"github.com/lalithlochan/beacon/internal/capability"
	"github.com/lalithlochan/beacon/internal/platform"
	"github.com/lalithlochan/beacon/internal/prompt"
	"github.com/lalithlochan/beacon/internal/scheduler"
)

// fakePermissions flips to the decided status once a request is made.
type fakePermissions struct {
	mu       sync.Mutex
	status   platform.AuthorizationStatus
	grant    bool
	requests int
	// remote is read at grant time to check ordering.
	remote        *countingRemote
	remoteAtGrant int64
}

func (p *fakePermissions) AuthorizationStatus(ctx context.Context) (platform.AuthorizationStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, nil
}

func (p *fakePermissions) RequestAuthorization(ctx context.Context, opts platform.AuthorizationOptions) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++
	if p.remote != nil {
		p.remoteAtGrant = p.remote.calls.Load()
	}
	if p.grant {
		p.status = platform.StatusAuthorized
	} else {
		p.status = platform.StatusDenied
	}
	return p.grant, nil
}

func (p *fakePermissions) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

type recordingCenter struct {
	mu    sync.Mutex
	added []platform.Request
}

func (c *recordingCenter) Add(ctx context.Context, req platform.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.added = append(c.added, req)
	return nil
}

func (c *recordingCenter) snapshot() []platform.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]platform.Request(nil), c.added...)
}

type recordingRegistrar struct {
	delegate platform.Delegate
}

func (r *recordingRegistrar) SetDelegate(d platform.Delegate) { r.delegate = d }

type countingRemote struct {
	calls atomic.Int64
}

func (r *countingRemote) RegisterForRemoteNotifications(ctx context.Context) {
	r.calls.Add(1)
}

type countingOpener struct {
	calls atomic.Int64
}

func (o *countingOpener) OpenSettings(ctx context.Context) error {
	o.calls.Add(1)
	return nil
}

type fakeLegacySettings struct {
	mu         sync.Mutex
	types      platform.AuthorizationOptions
	registered bool
	allow      bool
}

func (s *fakeLegacySettings) CurrentTypes(ctx context.Context) (platform.AuthorizationOptions, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types, s.registered, nil
}

func (s *fakeLegacySettings) RegisterUserNotificationSettings(ctx context.Context, types platform.AuthorizationOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = true
	if s.allow {
		s.types = types
	}
	return nil
}

type fakeLegacyScheduler struct {
	mu        sync.Mutex
	scheduled []platform.LegacyNotification
}

func (f *fakeLegacyScheduler) ScheduleLocalNotification(ctx context.Context, n platform.LegacyNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, n)
	return nil
}

type settingsHooks struct {
	bridge.NopHooks
	registered []platform.AuthorizationOptions
}

func (h *settingsHooks) DidRegisterUserNotificationSettings(ctx context.Context, types platform.AuthorizationOptions) {
	h.registered = append(h.registered, types)
}

type choosingSurface struct {
	choose prompt.ActionStyle
}

func (s choosingSurface) Present(ctx context.Context, alert prompt.Alert) {
	for _, a := range alert.Actions {
		if a.Style == s.choose && a.Handler != nil {
			a.Handler(ctx)
		}
	}
}

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fixture struct {
	svc         *Service
	permissions *fakePermissions
	center      *recordingCenter
	registrar   *recordingRegistrar
	remote      *countingRemote
	opener      *countingOpener
}

func newModern(t *testing.T, status platform.AuthorizationStatus, grant bool) *fixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	queue := platform.NewQueue(zap.NewNop())
	go queue.Run(ctx)

	f := &fixture{
		center:    &recordingCenter{},
		registrar: &recordingRegistrar{},
		remote:    &countingRemote{},
		opener:    &countingOpener{},
	}
	f.permissions = &fakePermissions{status: status, grant: grant, remote: f.remote}
	f.svc = New(capability.TierModern, prompt.Copy{}, Deps{
		Permissions: f.permissions,
		Center:      f.center,
		Registrar:   f.registrar,
		Remote:      f.remote,
		Settings:    f.opener,
		Main:        queue,
	}, zap.NewNop())
	return f
}

func TestRegister_InstallsBridgeAndChecks(t *testing.T) {
	f := newModern(t, platform.StatusNotDetermined, true)

	if !f.svc.Register(context.Background(), false) {
		t.Fatal("first register should report true")
	}
	f.svc.Wait()

	if f.registrar.delegate != f.svc.Bridge() {
		t.Error("expected the bridge to be installed as delegate")
	}
	if got := f.permissions.requestCount(); got != 1 {
		t.Errorf("initial check should request once on NotDetermined, got %d requests", got)
	}
	if !f.svc.Registered() {
		t.Error("expected Registered to be true")
	}

	// A second register is ignored.
	if f.svc.Register(context.Background(), true) {
		t.Error("second register should report false")
	}
	f.svc.Wait()
	if got := f.permissions.requestCount(); got != 1 {
		t.Errorf("expected 1 request after second register, got %d", got)
	}
}

func TestRegister_ConcurrentCallersOneWins(t *testing.T) {
	f := newModern(t, platform.StatusAuthorized, true)

	const callers = 16
	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.svc.Register(context.Background(), false) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	f.svc.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("expected exactly one register to win, got %d", got)
	}
}

func TestRemoteRegistrationAfterGrant(t *testing.T) {
	f := newModern(t, platform.StatusNotDetermined, true)
	f.svc.Register(context.Background(), true)
	f.svc.Wait()

	waitFor(t, func() bool { return f.remote.calls.Load() == 1 })
	if f.permissions.remoteAtGrant != 0 {
		t.Error("remote registration must not precede the grant")
	}

	var granted atomic.Bool
	f.svc.RequestAuthorization(context.Background(), func(ok bool) { granted.Store(ok) })
	f.svc.Wait()

	if !granted.Load() {
		t.Error("expected the request to be granted")
	}
	waitFor(t, func() bool { return f.remote.calls.Load() == 2 })
}

func TestRequestAuthorization_NoRemoteWhenNotRequested(t *testing.T) {
	f := newModern(t, platform.StatusAuthorized, true)
	f.svc.Register(context.Background(), false)

	f.svc.RequestAuthorization(context.Background(), nil)
	f.svc.Wait()

	time.Sleep(20 * time.Millisecond)
	if got := f.remote.calls.Load(); got != 0 {
		t.Errorf("expected no remote registration, got %d", got)
	}
}

func TestCheckAuthorization(t *testing.T) {
	tests := []struct {
		name         string
		status       platform.AuthorizationStatus
		grant        bool
		want         bool
		wantRequests int
	}{
		{"authorized", platform.StatusAuthorized, false, true, 0},
		{"provisional", platform.StatusProvisional, false, true, 0},
		{"denied", platform.StatusDenied, true, false, 0},
		{"not determined then granted", platform.StatusNotDetermined, true, true, 1},
		{"not determined then refused", platform.StatusNotDetermined, false, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newModern(t, tt.status, tt.grant)

			var got atomic.Bool
			f.svc.CheckAuthorization(context.Background(), func(ok bool) { got.Store(ok) })
			f.svc.Wait()

			if got.Load() != tt.want {
				t.Errorf("expected authorized=%v, got %v", tt.want, got.Load())
			}
			if n := f.permissions.requestCount(); n != tt.wantRequests {
				t.Errorf("expected %d requests, got %d", tt.wantRequests, n)
			}
		})
	}
}

func TestDeniedPromptProceedAnyway(t *testing.T) {
	f := newModern(t, platform.StatusDenied, false)

	var authorized atomic.Bool
	authorized.Store(true)
	f.svc.CheckAuthorization(context.Background(), func(ok bool) { authorized.Store(ok) })
	f.svc.Wait()
	if authorized.Load() {
		t.Fatal("denied status must not allow scheduling")
	}

	f.svc.PromptSettingsRedirect(context.Background(), "Off", "Enable?", choosingSurface{choose: prompt.StyleCancel})
	f.svc.Wait()

	if got := f.opener.calls.Load(); got != 0 {
		t.Errorf("proceed anyway must not open settings, got %d opens", got)
	}
	if got := f.svc.Status(context.Background()); got != platform.StatusDenied {
		t.Errorf("expected status to stay denied, got %s", got)
	}
	if got := f.permissions.requestCount(); got != 0 {
		t.Errorf("expected no permission requests, got %d", got)
	}
}

func TestDeniedPromptOpenSettings(t *testing.T) {
	f := newModern(t, platform.StatusDenied, false)
	f.svc.PromptSettingsRedirect(context.Background(), "", "", choosingSurface{choose: prompt.StyleDefault})
	f.svc.Wait()

	if got := f.opener.calls.Load(); got != 1 {
		t.Errorf("expected 1 settings open, got %d", got)
	}
}

func TestSchedule_SameIdentifierKeepsCallOrder(t *testing.T) {
	f := newModern(t, platform.StatusAuthorized, true)
	f.svc.Register(context.Background(), false)
	f.svc.Wait()

	const rounds = 200
	for i := 0; i < rounds; i++ {
		f.svc.Schedule(context.Background(), scheduler.Descriptor{Identifier: "x", Title: "v1", FireDelay: time.Hour})
		f.svc.Schedule(context.Background(), scheduler.Descriptor{Identifier: "x", Title: "v2", FireDelay: time.Hour})
	}
	f.svc.Wait()

	added := f.center.snapshot()
	if len(added) != 2*rounds {
		t.Fatalf("expected %d submissions, got %d", 2*rounds, len(added))
	}
	for i, req := range added {
		want := "v1"
		if i%2 == 1 {
			want = "v2"
		}
		if req.Content.Title != want {
			t.Fatalf("submission %d: expected %s, got %s", i, want, req.Content.Title)
		}
	}
}

func TestScheduleThenRepeatingDeliveryRearms(t *testing.T) {
	f := newModern(t, platform.StatusAuthorized, true)
	f.svc.Register(context.Background(), false)

	f.svc.Schedule(context.Background(), scheduler.Descriptor{
		Identifier: "water",
		Title:      "Drink water",
		FireDelay:  time.Hour,
		Repeats:    true,
	})
	f.svc.Wait()

	added := f.center.snapshot()
	if len(added) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(added))
	}

	opts := f.registrar.delegate.WillPresent(context.Background(), platform.Notification{Request: added[0], Date: time.Now()})
	if opts != platform.PresentAll {
		t.Errorf("expected all presentation options, got %v", opts)
	}

	added = f.center.snapshot()
	if len(added) != 2 {
		t.Fatalf("expected the repeat to be re-armed, got %d submissions", len(added))
	}
	if added[1].Identifier != "water" {
		t.Errorf("expected identifier water, got %s", added[1].Identifier)
	}
	if added[0].Trigger != added[1].Trigger {
		t.Errorf("expected the same trigger, got %v and %v", added[0].Trigger, added[1].Trigger)
	}
}

func TestNonRepeatingDeliveryForwardsIdentifier(t *testing.T) {
	f := newModern(t, platform.StatusAuthorized, true)
	f.svc.Register(context.Background(), false)
	f.svc.Wait()

	var got []string
	f.svc.SetOnWillPresent(func(id string) { got = append(got, id) })

	req := platform.Request{Identifier: "n1", Trigger: platform.IntervalTrigger{Interval: time.Minute}}
	f.registrar.delegate.WillPresent(context.Background(), platform.Notification{Request: req})

	if len(got) != 1 || got[0] != "n1" {
		t.Errorf("expected [n1], got %v", got)
	}
	if added := f.center.snapshot(); len(added) != 0 {
		t.Errorf("non-repeating delivery must not re-arm, got %d submissions", len(added))
	}

	var actions []string
	f.svc.SetOnUserResponse(func(a string) { actions = append(actions, a) })
	f.registrar.delegate.DidReceive(context.Background(), platform.Response{
		Notification:     platform.Notification{Request: req},
		ActionIdentifier: platform.DefaultActionIdentifier,
	})
	if len(actions) != 1 || actions[0] != platform.DefaultActionIdentifier {
		t.Errorf("expected [%s], got %v", platform.DefaultActionIdentifier, actions)
	}
}

func TestLegacyTier(t *testing.T) {
	settings := &fakeLegacySettings{allow: true}
	legacy := &fakeLegacyScheduler{}
	hooks := &settingsHooks{}

	svc := New(capability.TierLegacy, prompt.Copy{}, Deps{
		LegacySettings: settings,
		Legacy:         legacy,
		Hooks:          hooks,
		Main:           platform.NewQueue(zap.NewNop()),
	}, zap.NewNop())

	svc.Register(context.Background(), false)
	svc.Wait()
	if len(hooks.registered) != 1 {
		t.Fatalf("expected 1 settings registration, got %d", len(hooks.registered))
	}
	if !hooks.registered[0].Contains(platform.OptionAlert) {
		t.Error("expected alert in registered types")
	}

	var authorized atomic.Bool
	svc.CheckAuthorization(context.Background(), func(ok bool) { authorized.Store(ok) })
	svc.Schedule(context.Background(), scheduler.Descriptor{Identifier: "n1", Title: "A", Subtitle: "B", Body: "C"})
	svc.Wait()

	if !authorized.Load() {
		t.Error("expected scheduling to be allowed")
	}
	if len(legacy.scheduled) != 1 {
		t.Fatalf("expected 1 legacy notification, got %d", len(legacy.scheduled))
	}
	if got := legacy.scheduled[0].AlertBody; got != "ABC" {
		t.Errorf("expected alert body ABC, got %q", got)
	}
	if got := legacy.scheduled[0].AlertAction; got != "Open" {
		t.Errorf("expected alert action Open, got %q", got)
	}
}
