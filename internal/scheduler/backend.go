package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/lalithlochan/beacon/internal/capability"
	"github.com/lalithlochan/beacon/internal/platform"
)

// Backend submits a descriptor to one generation of the platform API.
type Backend interface {
	Name() string
	Submit(ctx context.Context, d Descriptor, now time.Time) error
}

// Select picks the backend for tier. It is called once at startup.
func Select(tier capability.Tier, center platform.NotificationCenter, legacy platform.LegacyScheduler, defaultAction string) Backend {
	if tier.SupportsModern() {
		return NewModernBackend(center)
	}
	return NewLegacyBackend(legacy, defaultAction)
}

// ModernBackend submits to the modern notification center.
type ModernBackend struct {
	center platform.NotificationCenter
}

func NewModernBackend(center platform.NotificationCenter) *ModernBackend {
	return &ModernBackend{center: center}
}

func (b *ModernBackend) Name() string { return "modern" }

// Submit builds the request for d and adds it under d.Identifier.
func (b *ModernBackend) Submit(ctx context.Context, d Descriptor, now time.Time) error {
	req, err := BuildRequest(d, now)
	if err != nil {
		return err
	}
	if err := b.center.Add(ctx, req); err != nil {
		return fmt.Errorf("add request %q: %w", d.Identifier, err)
	}
	return nil
}

// BuildRequest maps a descriptor to a modern request.
func BuildRequest(d Descriptor, now time.Time) (platform.Request, error) {
	trigger, err := buildTrigger(d, now)
	if err != nil {
		return platform.Request{}, err
	}
	return platform.Request{
		Identifier: d.Identifier,
		Content: platform.Content{
			Title:    d.Title,
			Subtitle: d.Subtitle,
			Body:     d.Body,
			Sound:    d.SoundName,
		},
		Trigger: trigger,
	}, nil
}

func buildTrigger(d Descriptor, now time.Time) (platform.Trigger, error) {
	if d.Calendar != "" {
		return platform.NewCalendarTrigger(d.Calendar, d.Repeats)
	}
	return platform.IntervalTrigger{
		Interval:  ResolveDelay(now, d),
		Repeating: d.Repeats,
	}, nil
}

// LegacyBackend submits to the legacy scheduling primitive. The legacy
// content model has no subtitle, so title, subtitle and body are folded into
// one body string.
type LegacyBackend struct {
	legacy        platform.LegacyScheduler
	defaultAction string
}

func NewLegacyBackend(legacy platform.LegacyScheduler, defaultAction string) *LegacyBackend {
	return &LegacyBackend{legacy: legacy, defaultAction: defaultAction}
}

func (b *LegacyBackend) Name() string { return "legacy" }

func (b *LegacyBackend) Submit(ctx context.Context, d Descriptor, now time.Time) error {
	n, err := BuildLegacyNotification(d, now, b.defaultAction)
	if err != nil {
		return err
	}
	if err := b.legacy.ScheduleLocalNotification(ctx, n); err != nil {
		return fmt.Errorf("schedule local notification %q: %w", d.Identifier, err)
	}
	return nil
}

// BuildLegacyNotification maps a descriptor to the legacy model with an
// absolute fire date.
func BuildLegacyNotification(d Descriptor, now time.Time, defaultAction string) (platform.LegacyNotification, error) {
	action := d.Action
	if action == "" {
		action = defaultAction
	}

	n := platform.LegacyNotification{
		AlertTitle:  d.Title,
		AlertBody:   ComposeLegacyBody(d.Title, d.Subtitle, d.Body),
		AlertAction: action,
		SoundName:   d.SoundName,
	}

	if d.Calendar != "" {
		trigger, err := platform.NewCalendarTrigger(d.Calendar, d.Repeats)
		if err != nil {
			return platform.LegacyNotification{}, err
		}
		first, ok := trigger.NextFireDate(now)
		if !ok {
			return platform.LegacyNotification{}, fmt.Errorf("calendar spec %q never fires", d.Calendar)
		}
		n.FireDate = first
		if d.Repeats {
			if second, ok := trigger.NextFireDate(first); ok {
				n.RepeatInterval = second.Sub(first)
			}
		}
		return n, nil
	}

	delay := ResolveDelay(now, d)
	n.FireDate = now.Add(delay)
	if d.Repeats {
		n.RepeatInterval = delay
	}
	return n, nil
}
