package prompt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingOpener struct {
	calls atomic.Int64
	err   error
}

func (o *countingOpener) OpenSettings(ctx context.Context) error {
	o.calls.Add(1)
	return o.err
}

// blockingOpener holds every navigation until release is closed.
type blockingOpener struct {
	release chan struct{}
	ctxErr  chan error
}

func (o *blockingOpener) OpenSettings(ctx context.Context) error {
	<-o.release
	o.ctxErr <- ctx.Err()
	return nil
}

// choosingSurface presents the alert and picks the action with the given
// style, as a user tapping a button would.
type choosingSurface struct {
	choose    ActionStyle
	presented []Alert
}

func (s *choosingSurface) Present(ctx context.Context, alert Alert) {
	s.presented = append(s.presented, alert)
	for _, a := range alert.Actions {
		if a.Style == s.choose && a.Handler != nil {
			a.Handler(ctx)
		}
	}
}

func TestPromptSettingsRedirect_TwoChoices(t *testing.T) {
	p := New(Copy{}, &countingOpener{}, zap.NewNop())
	surface := &choosingSurface{choose: -1}

	p.PromptSettingsRedirect(context.Background(), "Notifications off", "Turn them on?", surface)

	if len(surface.presented) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(surface.presented))
	}
	alert := surface.presented[0]
	if alert.Title != "Notifications off" || alert.Message != "Turn them on?" {
		t.Errorf("unexpected title/message: %q / %q", alert.Title, alert.Message)
	}
	if len(alert.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(alert.Actions))
	}
	if alert.Actions[0].Title != "Open setting" || alert.Actions[0].Style != StyleDefault {
		t.Errorf("unexpected first action: %+v", alert.Actions[0])
	}
	if alert.Actions[1].Title != "Proceed anyway" || alert.Actions[1].Style != StyleCancel {
		t.Errorf("unexpected second action: %+v", alert.Actions[1])
	}
}

func TestPromptSettingsRedirect_ProceedAnyway(t *testing.T) {
	opener := &countingOpener{}
	p := New(Copy{}, opener, zap.NewNop())
	before := p.Copy()

	p.PromptSettingsRedirect(context.Background(), "t", "m", &choosingSurface{choose: StyleCancel})
	p.Wait()

	if n := opener.calls.Load(); n != 0 {
		t.Errorf("proceed anyway must not navigate, got %d calls", n)
	}
	if p.Copy() != before {
		t.Error("copy changed")
	}
}

func TestPromptSettingsRedirect_OpenSettings(t *testing.T) {
	opener := &countingOpener{err: errors.New("no settings app")}
	p := New(Copy{}, opener, zap.NewNop())

	p.PromptSettingsRedirect(context.Background(), "t", "m", &choosingSurface{choose: StyleDefault})
	p.Wait()

	if n := opener.calls.Load(); n != 1 {
		t.Errorf("expected 1 navigation, got %d", n)
	}
}

func TestPromptSettingsRedirect_OpenSettingsDoesNotBlock(t *testing.T) {
	opener := &blockingOpener{release: make(chan struct{}), ctxErr: make(chan error, 1)}
	p := New(Copy{}, opener, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.PromptSettingsRedirect(ctx, "t", "m", &choosingSurface{choose: StyleDefault})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		close(opener.release)
		t.Fatal("prompt waited for the settings navigation")
	}

	// The caller going away must not cancel the navigation.
	cancel()
	close(opener.release)
	p.Wait()

	if err := <-opener.ctxErr; err != nil {
		t.Errorf("navigation context was cancelled: %v", err)
	}
}

func TestAlert_FallsBackToCopy(t *testing.T) {
	p := New(Copy{AlertTitle: "Heads up", ActionMessage: "Settings"}, &countingOpener{}, zap.NewNop())

	alert := p.Alert("", "")
	if alert.Title != "Heads up" {
		t.Errorf("expected configured title, got %q", alert.Title)
	}
	if alert.Message != DefaultCopy().AlertMessage {
		t.Errorf("expected default message, got %q", alert.Message)
	}
	if alert.Actions[0].Title != "Settings" {
		t.Errorf("expected configured action label, got %q", alert.Actions[0].Title)
	}
	if alert.Actions[1].Title != DefaultCopy().ProceedAnywayMessage {
		t.Errorf("expected default proceed label, got %q", alert.Actions[1].Title)
	}
}

func TestCopyMerge(t *testing.T) {
	merged := Copy{SettingsURL: "custom:"}.Merge(DefaultCopy())
	if merged.SettingsURL != "custom:" {
		t.Errorf("expected custom settings url, got %q", merged.SettingsURL)
	}
	if merged.DefaultAction != "Open" {
		t.Errorf("expected default action Open, got %q", merged.DefaultAction)
	}
}
