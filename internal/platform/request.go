package platform

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Content is the user-visible part of a modern notification request.
type Content struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Body     string `json:"body"`
	Sound    string `json:"sound,omitempty"`
}

// Trigger decides when a submitted request fires.
type Trigger interface {
	Repeats() bool
	// NextFireDate returns the first fire date strictly after from.
	NextFireDate(from time.Time) (time.Time, bool)
}

// IntervalTrigger fires once Interval has elapsed since submission, and
// again every Interval when Repeating.
type IntervalTrigger struct {
	Interval  time.Duration
	Repeating bool
}

func (t IntervalTrigger) Repeats() bool { return t.Repeating }

func (t IntervalTrigger) NextFireDate(from time.Time) (time.Time, bool) {
	if t.Interval <= 0 {
		return time.Time{}, false
	}
	return from.Add(t.Interval), true
}

var calendarParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CalendarTrigger fires on the dates matched by a cron expression.
type CalendarTrigger struct {
	Spec      string
	Repeating bool

	schedule cron.Schedule
}

// NewCalendarTrigger parses spec ("0 9 * * 1", "@daily", ...).
func NewCalendarTrigger(spec string, repeats bool) (*CalendarTrigger, error) {
	sched, err := calendarParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse calendar spec %q: %w", spec, err)
	}
	return &CalendarTrigger{Spec: spec, Repeating: repeats, schedule: sched}, nil
}

func (t *CalendarTrigger) Repeats() bool { return t.Repeating }

func (t *CalendarTrigger) NextFireDate(from time.Time) (time.Time, bool) {
	if t.schedule == nil {
		return time.Time{}, false
	}
	next := t.schedule.Next(from)
	return next, !next.IsZero()
}

// Request is a modern submission. The identifier is the platform key:
// submitting a request with an existing identifier replaces it.
type Request struct {
	Identifier string
	Content    Content
	Trigger    Trigger
}

// Notification is a delivered request.
type Notification struct {
	Request Request
	Date    time.Time
}

// Action identifiers the platform reports for built-in interactions.
const (
	DefaultActionIdentifier = "com.apple.UNNotificationDefaultActionIdentifier"
	DismissActionIdentifier = "com.apple.UNNotificationDismissActionIdentifier"
)

// Response is the user's interaction with a delivered notification.
type Response struct {
	Notification     Notification
	ActionIdentifier string
}

// LegacyNotification is the legacy scheduling primitive's content model. It
// has no subtitle and a single body string.
type LegacyNotification struct {
	FireDate       time.Time
	AlertTitle     string
	AlertBody      string
	AlertAction    string
	SoundName      string
	RepeatInterval time.Duration // zero means one-shot
}
