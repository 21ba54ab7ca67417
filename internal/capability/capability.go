// Package capability resolves which generation of the platform notification
// API is available. The tier is resolved once per process and never changes.
package capability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/lalithlochan/beacon/internal/platform"
)

// Tier is the feature set of the running platform version.
type Tier int

const (
	TierLegacy      Tier = iota // immediate-scheduling API only
	TierModern                  // permission-and-delivery API
	TierProvisional             // modern API with quiet (provisional) delivery
)

// Major versions at which each tier becomes available.
const (
	ModernSince      = 10
	ProvisionalSince = 12
)

var ErrInvalidVersion = errors.New("invalid platform version")

func (t Tier) String() string {
	switch t {
	case TierLegacy:
		return "legacy"
	case TierModern:
		return "modern"
	case TierProvisional:
		return "provisional"
	default:
		return "unknown"
	}
}

// SupportsModern reports whether the modern submission service exists.
func (t Tier) SupportsModern() bool {
	return t >= TierModern
}

// AuthorizationOptions is the capability set to request on this tier.
func (t Tier) AuthorizationOptions() platform.AuthorizationOptions {
	opts := platform.OptionAlert | platform.OptionBadge | platform.OptionSound
	if t >= TierProvisional {
		opts |= platform.OptionProvisional
	}
	return opts
}

// Resolve maps a "major[.minor[.patch]]" platform version to a tier.
func Resolve(version string) (Tier, error) {
	major, err := parseMajor(version)
	if err != nil {
		return TierLegacy, err
	}

	switch {
	case major >= ProvisionalSince:
		return TierProvisional, nil
	case major >= ModernSince:
		return TierModern, nil
	default:
		return TierLegacy, nil
	}
}

func parseMajor(version string) (int, error) {
	v := strings.TrimSpace(version)
	if v == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidVersion)
	}
	head, _, _ := strings.Cut(v, ".")
	major, err := strconv.Atoi(head)
	if err != nil || major < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}
	return major, nil
}

// Resolver caches the first resolution. Later calls return the same tier
// whatever version they pass.
type Resolver struct {
	once sync.Once
	tier Tier
	err  error
}

// Tier resolves version on first use and returns the cached result after.
func (r *Resolver) Tier(version string) (Tier, error) {
	r.once.Do(func() {
		r.tier, r.err = Resolve(version)
	})
	return r.tier, r.err
}
