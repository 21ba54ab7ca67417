package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestWebhookOpener_PostsSettingsURL(t *testing.T) {
	var got openRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %s", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	o := NewWebhookOpener(Config{WebhookURL: srv.URL, SettingsURL: "app-settings:"}, zap.NewNop())
	if err := o.OpenSettings(context.Background()); err != nil {
		t.Fatalf("open settings failed: %v", err)
	}
	if got.URL != "app-settings:" {
		t.Errorf("expected app-settings:, got %q", got.URL)
	}
}

func TestWebhookOpener_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	o := NewWebhookOpener(Config{WebhookURL: srv.URL, SettingsURL: "app-settings:"}, zap.NewNop())
	if err := o.OpenSettings(context.Background()); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestNew_FallsBackToLog(t *testing.T) {
	if _, ok := New(Config{SettingsURL: "app-settings:"}, zap.NewNop()).(*LogOpener); !ok {
		t.Fatal("expected LogOpener without a webhook")
	}
	if _, ok := New(Config{WebhookURL: "http://host/settings"}, zap.NewNop()).(*WebhookOpener); !ok {
		t.Fatal("expected WebhookOpener with a webhook")
	}
	if err := NewLogOpener("app-settings:", zap.NewNop()).OpenSettings(context.Background()); err != nil {
		t.Fatalf("log opener failed: %v", err)
	}
}
