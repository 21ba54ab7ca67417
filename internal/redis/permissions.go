package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/platform"
)

// Decision is how a pending permission prompt gets answered. A service has
// no user to ask, so the deployment decides.
type Decision string

const (
	DecisionGrant Decision = "grant"
	DecisionDeny  Decision = "deny"
)

// ParseDecision accepts "grant" or "deny".
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionGrant, DecisionDeny:
		return d, nil
	default:
		return "", fmt.Errorf("unknown authorization decision %q", s)
	}
}

// Permissions stores the modern authorization status. A missing key means
// the user was never asked.
type Permissions struct {
	client   *Client
	decision Decision
	logger   *zap.Logger
}

var _ platform.PermissionService = (*Permissions)(nil)

func NewPermissions(client *Client, decision Decision, logger *zap.Logger) *Permissions {
	return &Permissions{client: client, decision: decision, logger: logger}
}

func (p *Permissions) statusKey() string { return p.client.key("authorization", "status") }

func (p *Permissions) AuthorizationStatus(ctx context.Context) (platform.AuthorizationStatus, error) {
	raw, err := p.client.rdb.Get(ctx, p.statusKey()).Result()
	if errors.Is(err, redis.Nil) {
		return platform.StatusNotDetermined, nil
	}
	if err != nil {
		return platform.StatusNotDetermined, fmt.Errorf("get authorization status: %w", err)
	}
	return platform.ParseAuthorizationStatus(raw)
}

// RequestAuthorization answers a prompt once. When a status is already
// stored the stored answer is reported and nothing changes.
func (p *Permissions) RequestAuthorization(ctx context.Context, options platform.AuthorizationOptions) (bool, error) {
	next := platform.StatusDenied
	if p.decision == DecisionGrant {
		next = platform.StatusAuthorized
		if options.Contains(platform.OptionProvisional) {
			next = platform.StatusProvisional
		}
	}

	set, err := p.client.rdb.SetNX(ctx, p.statusKey(), next.String(), 0).Result()
	if err != nil {
		return false, fmt.Errorf("store authorization decision: %w", err)
	}
	if !set {
		current, err := p.AuthorizationStatus(ctx)
		if err != nil {
			return false, err
		}
		return current == platform.StatusAuthorized || current == platform.StatusProvisional, nil
	}

	p.logger.Info("authorization decided",
		zap.Stringer("options", options),
		zap.Stringer("status", next),
	)
	return next != platform.StatusDenied, nil
}

// SetStatus overwrites the stored status, as a change in the system
// settings would.
func (p *Permissions) SetStatus(ctx context.Context, status platform.AuthorizationStatus) error {
	if status == platform.StatusNotDetermined {
		return p.client.rdb.Del(ctx, p.statusKey()).Err()
	}
	return p.client.rdb.Set(ctx, p.statusKey(), status.String(), 0).Err()
}

// LegacySettings stores the legacy registered notification types.
type LegacySettings struct {
	client   *Client
	decision Decision
	logger   *zap.Logger
}

var _ platform.LegacySettings = (*LegacySettings)(nil)

func NewLegacySettings(client *Client, decision Decision, logger *zap.Logger) *LegacySettings {
	return &LegacySettings{client: client, decision: decision, logger: logger}
}

func (s *LegacySettings) typesKey() string { return s.client.key("legacy", "types") }

func (s *LegacySettings) CurrentTypes(ctx context.Context) (platform.AuthorizationOptions, bool, error) {
	raw, err := s.client.rdb.Get(ctx, s.typesKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get legacy types: %w", err)
	}
	bits, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, false, fmt.Errorf("parse legacy types %q: %w", raw, err)
	}
	return platform.AuthorizationOptions(bits), true, nil
}

// RegisterUserNotificationSettings records what the user allowed out of
// types. Re-registering keeps an earlier answer.
func (s *LegacySettings) RegisterUserNotificationSettings(ctx context.Context, types platform.AuthorizationOptions) error {
	allowed := platform.AuthorizationOptions(0)
	if s.decision == DecisionGrant {
		allowed = types
	}
	set, err := s.client.rdb.SetNX(ctx, s.typesKey(), strconv.FormatUint(uint64(allowed), 10), 0).Result()
	if err != nil {
		return fmt.Errorf("store legacy types: %w", err)
	}
	if set {
		s.logger.Info("legacy notification settings registered", zap.Stringer("allowed", allowed))
	}
	return nil
}
