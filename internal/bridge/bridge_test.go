package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/platform"
)

type recordingCenter struct {
	mu    sync.Mutex
	added []platform.Request
	err   error
}

func (c *recordingCenter) Add(ctx context.Context, req platform.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.added = append(c.added, req)
	return c.err
}

func delivered(id string, trigger platform.Trigger) platform.Notification {
	return platform.Notification{
		Request: platform.Request{
			Identifier: id,
			Content:    platform.Content{Title: "t", Body: "b"},
			Trigger:    trigger,
		},
		Date: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestWillPresent_RepeatingRearmsOnce(t *testing.T) {
	center := &recordingCenter{}
	b := New(center, zap.NewNop())

	trigger := platform.IntervalTrigger{Interval: time.Hour, Repeating: true}
	opts := b.WillPresent(context.Background(), delivered("daily", trigger))

	if opts != platform.PresentAll {
		t.Errorf("expected all presentation options, got %v", opts)
	}
	if len(center.added) != 1 {
		t.Fatalf("expected 1 re-arm, got %d", len(center.added))
	}
	if center.added[0].Identifier != "daily" {
		t.Errorf("expected identifier daily, got %s", center.added[0].Identifier)
	}
	if got, ok := center.added[0].Trigger.(platform.IntervalTrigger); !ok || got != trigger {
		t.Errorf("expected trigger %+v, got %+v", trigger, center.added[0].Trigger)
	}
}

func TestWillPresent_NonRepeatingForwardsOnly(t *testing.T) {
	center := &recordingCenter{}
	b := New(center, zap.NewNop())

	var got []string
	b.SetOnWillPresent(func(id string) { got = append(got, id) })

	opts := b.WillPresent(context.Background(), delivered("n1", platform.IntervalTrigger{Interval: time.Second}))

	if opts != platform.PresentAll {
		t.Errorf("expected all presentation options, got %v", opts)
	}
	if len(got) != 1 || got[0] != "n1" {
		t.Errorf("expected [n1], got %v", got)
	}
	if len(center.added) != 0 {
		t.Errorf("non-repeating delivery must not re-arm, got %d", len(center.added))
	}
}

func TestWillPresent_RearmFailureDoesNotBlockPresentation(t *testing.T) {
	center := &recordingCenter{err: errors.New("center unavailable")}
	b := New(center, zap.NewNop())

	var called int
	b.SetOnWillPresent(func(string) { called++ })

	opts := b.WillPresent(context.Background(), delivered("daily", platform.IntervalTrigger{Interval: time.Hour, Repeating: true}))

	if opts != platform.PresentAll {
		t.Errorf("expected all presentation options, got %v", opts)
	}
	if called != 1 {
		t.Errorf("expected handler called once, got %d", called)
	}
	if len(center.added) != 1 {
		t.Errorf("expected 1 re-arm attempt, got %d", len(center.added))
	}
}

func TestWillPresent_RearmBeforeHandler(t *testing.T) {
	center := &recordingCenter{}
	b := New(center, zap.NewNop())

	var addedAtHandler int
	b.SetOnWillPresent(func(string) { addedAtHandler = len(center.added) })

	b.WillPresent(context.Background(), delivered("daily", platform.IntervalTrigger{Interval: time.Hour, Repeating: true}))
	if addedAtHandler != 1 {
		t.Errorf("expected re-arm before handler, saw %d requests at handler time", addedAtHandler)
	}
}

func TestWillPresent_NoHandlerNoTrigger(t *testing.T) {
	b := New(&recordingCenter{}, zap.NewNop())
	if opts := b.WillPresent(context.Background(), delivered("n1", nil)); opts != platform.PresentAll {
		t.Errorf("expected all presentation options, got %v", opts)
	}
}

func TestDidReceive(t *testing.T) {
	center := &recordingCenter{}
	b := New(center, zap.NewNop())

	// No handler registered: nothing happens.
	b.DidReceive(context.Background(), platform.Response{ActionIdentifier: platform.DefaultActionIdentifier})

	var got []string
	b.SetOnUserResponse(func(action string) { got = append(got, action) })

	resp := platform.Response{
		Notification:     delivered("daily", platform.IntervalTrigger{Interval: time.Hour, Repeating: true}),
		ActionIdentifier: "snooze",
	}
	b.DidReceive(context.Background(), resp)

	if len(got) != 1 || got[0] != "snooze" {
		t.Errorf("expected [snooze], got %v", got)
	}
	if len(center.added) != 0 {
		t.Errorf("responses are never re-armed, got %d", len(center.added))
	}
}

func TestHandlers_LastWriterWins(t *testing.T) {
	b := New(&recordingCenter{}, zap.NewNop())

	var first, second int
	b.SetOnWillPresent(func(string) { first++ })
	b.SetOnWillPresent(func(string) { second++ })
	b.WillPresent(context.Background(), delivered("n1", nil))

	if first != 0 || second != 1 {
		t.Errorf("expected only the last handler to run, got first=%d second=%d", first, second)
	}

	b.SetOnWillPresent(nil)
	b.WillPresent(context.Background(), delivered("n1", nil))
	if second != 1 {
		t.Errorf("cleared handler still ran: second=%d", second)
	}
}

func TestNopHooks(t *testing.T) {
	var h Hooks = NopHooks{}
	ctx := context.Background()

	if got := h.DidReceiveRemoteNotification(ctx, map[string]any{"aps": map[string]any{}}); got != FetchNoData {
		t.Errorf("expected no data, got %s", got)
	}

	h.DidRegisterForRemoteNotifications(ctx, "token")
	h.DidFailToRegisterForRemoteNotifications(ctx, errors.New("no network"))
	h.DidReceiveLocalNotification(ctx, platform.LegacyNotification{})
	h.DidRegisterUserNotificationSettings(ctx, platform.OptionAlert)
	h.HandleActionForLocalNotification(ctx, "open", platform.LegacyNotification{})
	h.HandleActionForLocalNotificationWithResponse(ctx, "reply", platform.LegacyNotification{}, map[string]any{"text": "hi"})
	h.HandleActionForRemoteNotification(ctx, "open", nil)
	h.HandleActionForRemoteNotificationWithResponse(ctx, "reply", nil, nil)

	if got := FetchNewData.String(); got != "new_data" {
		t.Errorf("expected new_data, got %s", got)
	}
}
