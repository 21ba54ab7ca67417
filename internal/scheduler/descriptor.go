// Package scheduler turns caller descriptors into platform submissions on
// whichever backend the capability tier provides.
package scheduler

import (
	"errors"
	"time"
)

// MinimumDelay is the smallest delay ever handed to a backend. Some backends
// reject fire dates in the past or fire them in undefined order.
const MinimumDelay = time.Second

var ErrMissingIdentifier = errors.New("descriptor has no identifier")

// Descriptor is the caller's specification of a notification.
type Descriptor struct {
	// Identifier keys the notification on the platform. Keep it stable for a
	// recurring notification so re-arming targets the same one.
	Identifier string
	Title      string
	Subtitle   string // empty means absent
	Body       string
	Action     string // legacy action label
	SoundName  string

	// Date is an absolute target. When nil, FireDelay is used.
	Date      *time.Time
	FireDelay time.Duration
	Repeats   bool

	// Calendar is an optional cron expression; when set it replaces the
	// delay-based trigger.
	Calendar string
}

// ResolveDelay computes the delay to submit for d. Non-positive delays are
// clamped to MinimumDelay.
func ResolveDelay(now time.Time, d Descriptor) time.Duration {
	delay := d.FireDelay
	if d.Date != nil {
		delay = d.Date.Sub(now)
	}
	if delay <= 0 {
		return MinimumDelay
	}
	return delay
}

// ComposeLegacyBody folds title, subtitle and body into the single body
// string of the legacy content model, without separators.
func ComposeLegacyBody(title, subtitle, body string) string {
	return title + subtitle + body
}
