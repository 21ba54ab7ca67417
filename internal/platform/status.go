// Package platform defines the contracts of the host notification platform
// that the core consumes, and the value types that flow across them.
package platform

import (
	"fmt"
	"strings"
)

// AuthorizationStatus is the user's current consent level for notifications.
type AuthorizationStatus int

const (
	StatusNotDetermined AuthorizationStatus = iota
	StatusDenied
	StatusAuthorized
	StatusProvisional // quiet delivery without an explicit prompt
)

func (s AuthorizationStatus) String() string {
	switch s {
	case StatusNotDetermined:
		return "not_determined"
	case StatusDenied:
		return "denied"
	case StatusAuthorized:
		return "authorized"
	case StatusProvisional:
		return "provisional"
	default:
		return "unknown"
	}
}

// ParseAuthorizationStatus is the inverse of AuthorizationStatus.String.
func ParseAuthorizationStatus(s string) (AuthorizationStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "not_determined", "":
		return StatusNotDetermined, nil
	case "denied":
		return StatusDenied, nil
	case "authorized":
		return StatusAuthorized, nil
	case "provisional":
		return StatusProvisional, nil
	default:
		return StatusNotDetermined, fmt.Errorf("unknown authorization status: %q", s)
	}
}

// AuthorizationOptions is the capability set asked for when requesting
// authorization. The legacy settings API reuses it for its registered types.
type AuthorizationOptions uint8

const (
	OptionAlert AuthorizationOptions = 1 << iota
	OptionBadge
	OptionSound
	OptionProvisional
)

// Contains reports whether every option in o is present.
func (a AuthorizationOptions) Contains(o AuthorizationOptions) bool {
	return a&o == o
}

func (a AuthorizationOptions) String() string {
	var parts []string
	if a.Contains(OptionAlert) {
		parts = append(parts, "alert")
	}
	if a.Contains(OptionBadge) {
		parts = append(parts, "badge")
	}
	if a.Contains(OptionSound) {
		parts = append(parts, "sound")
	}
	if a.Contains(OptionProvisional) {
		parts = append(parts, "provisional")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// PresentationOptions tells the platform how to render a notification that
// arrives while the application is in the foreground.
type PresentationOptions uint8

const (
	PresentAlert PresentationOptions = 1 << iota
	PresentBadge
	PresentSound
)

// PresentAll is what the delegate bridge always answers with.
const PresentAll = PresentAlert | PresentBadge | PresentSound
