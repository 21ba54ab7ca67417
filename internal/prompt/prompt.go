// Package prompt offers the user a way to the system settings when
// notifications are denied.
package prompt

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/platform"
)

// Copy holds the host-configurable strings.
type Copy struct {
	AlertTitle           string `yaml:"alert_title"`
	AlertMessage         string `yaml:"alert_message"`
	ActionMessage        string `yaml:"action_message"`
	ProceedAnywayMessage string `yaml:"proceed_anyway_message"`
	DefaultAction        string `yaml:"default_action"` // legacy action label when a descriptor has none
	SettingsURL          string `yaml:"settings_url"`
}

// DefaultCopy returns the built-in strings.
func DefaultCopy() Copy {
	return Copy{
		AlertTitle:           "(・A・)!!",
		AlertMessage:         "Cannot authorized using notification...",
		ActionMessage:        "Open setting",
		ProceedAnywayMessage: "Proceed anyway",
		DefaultAction:        "Open",
		SettingsURL:          "app-settings:",
	}
}

// Merge returns c with empty fields filled from fallback.
func (c Copy) Merge(fallback Copy) Copy {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Copy{
		AlertTitle:           pick(c.AlertTitle, fallback.AlertTitle),
		AlertMessage:         pick(c.AlertMessage, fallback.AlertMessage),
		ActionMessage:        pick(c.ActionMessage, fallback.ActionMessage),
		ProceedAnywayMessage: pick(c.ProceedAnywayMessage, fallback.ProceedAnywayMessage),
		DefaultAction:        pick(c.DefaultAction, fallback.DefaultAction),
		SettingsURL:          pick(c.SettingsURL, fallback.SettingsURL),
	}
}

type ActionStyle int

const (
	StyleDefault ActionStyle = iota
	StyleCancel
)

// Action is one button of an alert. Handler may be nil.
type Action struct {
	Title   string
	Style   ActionStyle
	Handler func(ctx context.Context)
}

// Alert is what the prompter asks the host surface to show.
type Alert struct {
	Title   string
	Message string
	Actions []Action
}

// Surface is the host UI that presents an alert and runs the chosen
// action's handler.
type Surface interface {
	Present(ctx context.Context, alert Alert)
}

// Prompter builds the settings-redirect alert. Apart from tracking
// navigations in flight it holds only its configuration.
type Prompter struct {
	copy   Copy
	opener platform.SettingsOpener
	logger *zap.Logger

	wg sync.WaitGroup
}

func New(c Copy, opener platform.SettingsOpener, logger *zap.Logger) *Prompter {
	return &Prompter{copy: c.Merge(DefaultCopy()), opener: opener, logger: logger}
}

// Copy returns the effective strings.
func (p *Prompter) Copy() Copy {
	return p.copy
}

// PromptSettingsRedirect presents exactly two choices on surface: open the
// settings, or proceed without doing anything.
func (p *Prompter) PromptSettingsRedirect(ctx context.Context, title, message string, surface Surface) {
	surface.Present(ctx, p.Alert(title, message))
}

// Alert builds the two-action alert. Empty title or message fall back to the
// configured copy.
func (p *Prompter) Alert(title, message string) Alert {
	if title == "" {
		title = p.copy.AlertTitle
	}
	if message == "" {
		message = p.copy.AlertMessage
	}
	return Alert{
		Title:   title,
		Message: message,
		Actions: []Action{
			{Title: p.copy.ActionMessage, Style: StyleDefault, Handler: p.openSettings},
			{Title: p.copy.ProceedAnywayMessage, Style: StyleCancel},
		},
	}
}

// openSettings starts navigation and returns at once. The caller's
// cancellation does not reach it and its outcome is not reported back.
func (p *Prompter) openSettings(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.opener.OpenSettings(ctx); err != nil {
			p.logger.Debug("open settings failed", zap.Error(err))
		}
	}()
}

// Wait blocks until started navigations have returned.
func (p *Prompter) Wait() {
	p.wg.Wait()
}
