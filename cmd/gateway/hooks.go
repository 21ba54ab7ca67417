package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/bridge"
	"github.com/lalithlochan/beacon/internal/platform"
)

// logHooks records every lifecycle callback. The gateway has no UI to drive,
// so the log is the host.
type logHooks struct {
	bridge.NopHooks
	logger *zap.Logger
}

func (h logHooks) DidRegisterForRemoteNotifications(ctx context.Context, deviceToken string) {
	h.logger.Info("registered for remote notifications", zap.String("endpoint", deviceToken))
}

func (h logHooks) DidFailToRegisterForRemoteNotifications(ctx context.Context, err error) {
	h.logger.Warn("remote notification registration failed", zap.Error(err))
}

func (h logHooks) DidReceiveRemoteNotification(ctx context.Context, payload map[string]any) bridge.FetchResult {
	h.logger.Info("remote notification received", zap.Any("payload", payload))
	return bridge.FetchNewData
}

func (h logHooks) DidReceiveLocalNotification(ctx context.Context, n platform.LegacyNotification) {
	h.logger.Info("local notification received",
		zap.String("body", n.AlertBody),
		zap.Time("fire_date", n.FireDate),
	)
}

func (h logHooks) DidRegisterUserNotificationSettings(ctx context.Context, types platform.AuthorizationOptions) {
	h.logger.Info("user notification settings registered", zap.Stringer("types", types))
}
