// Package settings navigates the host to the OS settings surface.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/platform"
)

// Config for the webhook opener.
type Config struct {
	WebhookURL  string
	SettingsURL string // the deep link handed to the host
	Timeout     time.Duration
}

type openRequest struct {
	URL string `json:"url"`
}

// WebhookOpener asks the host to open its settings screen by POSTing the
// settings deep link to a host-provided webhook.
type WebhookOpener struct {
	client      *http.Client
	webhookURL  string
	settingsURL string
	logger      *zap.Logger
}

var _ platform.SettingsOpener = (*WebhookOpener)(nil)

func NewWebhookOpener(cfg Config, logger *zap.Logger) *WebhookOpener {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookOpener{
		client:      &http.Client{Timeout: timeout},
		webhookURL:  cfg.WebhookURL,
		settingsURL: cfg.SettingsURL,
		logger:      logger,
	}
}

func (o *WebhookOpener) OpenSettings(ctx context.Context) error {
	body, err := json.Marshal(openRequest{URL: o.settingsURL})
	if err != nil {
		return fmt.Errorf("marshal open request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create settings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Beacon/1.0")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("settings webhook failed: %w", err)
	}
	defer resp.Body.Close()

	preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("settings webhook returned %d: %s", resp.StatusCode, string(preview))
	}

	o.logger.Info("settings navigation requested",
		zap.String("settings_url", o.settingsURL),
		zap.Int("status_code", resp.StatusCode),
	)
	return nil
}

// LogOpener only logs. Used when no webhook is configured.
type LogOpener struct {
	settingsURL string
	logger      *zap.Logger
}

func NewLogOpener(settingsURL string, logger *zap.Logger) *LogOpener {
	return &LogOpener{settingsURL: settingsURL, logger: logger}
}

func (o *LogOpener) OpenSettings(ctx context.Context) error {
	o.logger.Info("open settings", zap.String("settings_url", o.settingsURL))
	return nil
}

// New picks the webhook opener when a webhook is configured.
func New(cfg Config, logger *zap.Logger) platform.SettingsOpener {
	if cfg.WebhookURL == "" {
		return NewLogOpener(cfg.SettingsURL, logger)
	}
	return NewWebhookOpener(cfg, logger)
}
