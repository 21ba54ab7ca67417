package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/authz"
	"github.com/lalithlochan/beacon/internal/capability"
	"github.com/lalithlochan/beacon/internal/circuitbreaker"
	"github.com/lalithlochan/beacon/internal/platform"
	"github.com/lalithlochan/beacon/internal/prompt"
	"github.com/lalithlochan/beacon/internal/scheduler"
)

// Notifier is the part of notifier.Service the HTTP surface drives.
type Notifier interface {
	Tier() capability.Tier
	Register(ctx context.Context, useRemoteDelivery bool) bool
	Registered() bool
	Status(ctx context.Context) platform.AuthorizationStatus
	RequestAuthorization(ctx context.Context, cb func(granted bool))
	Schedule(ctx context.Context, d scheduler.Descriptor)
	PromptSettingsRedirect(ctx context.Context, title, message string, surface prompt.Surface)
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// RegisterRequest is the body of POST /v1/register.
type RegisterRequest struct {
	RemoteDelivery bool `json:"remote_delivery"`
}

// ScheduleRequest is the body of POST /v1/notifications.
type ScheduleRequest struct {
	Identifier       string     `json:"identifier"`
	Title            string     `json:"title"`
	Subtitle         string     `json:"subtitle"`
	Body             string     `json:"body"`
	Action           string     `json:"action"`
	Sound            string     `json:"sound"`
	Date             *time.Time `json:"date,omitempty"`
	FireDelaySeconds float64    `json:"fire_delay_seconds"`
	Repeats          bool       `json:"repeats"`
	Calendar         string     `json:"calendar,omitempty"`
}

// ResponseRequest is the body of POST /v1/notifications/{id}/response.
type ResponseRequest struct {
	Action string `json:"action"`
}

// PromptRequest is the body of POST /v1/settings-prompt. Choice picks the
// action to run: "open_settings", "proceed", or empty to only describe the
// alert.
type PromptRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Choice  string `json:"choice"`
}

const (
	ChoiceOpenSettings = "open_settings"
	ChoiceProceed      = "proceed"
)

// maxFireDelaySeconds is the largest delay a time.Duration can hold.
const maxFireDelaySeconds = float64(math.MaxInt64 / int64(time.Second))

type alertAction struct {
	Title string `json:"title"`
	Style string `json:"style"`
}

type promptResponse struct {
	Title   string        `json:"title"`
	Message string        `json:"message"`
	Actions []alertAction `json:"actions"`
	Chosen  string        `json:"chosen,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger   *zap.Logger
	notifier Notifier
	delegate platform.Delegate
	breakers []*circuitbreaker.CircuitBreaker
}

// NewHandler creates a new API handler. delegate receives the responses
// posted to /v1/notifications/{id}/response.
func NewHandler(logger *zap.Logger, notifier Notifier, delegate platform.Delegate, breakers ...*circuitbreaker.CircuitBreaker) *Handler {
	return &Handler{
		logger:   logger,
		notifier: notifier,
		delegate: delegate,
		breakers: breakers,
	}
}

// Routes mounts the v1 API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Get("/authorization", h.GetAuthorization)
	r.Post("/authorization/request", h.RequestAuthorization)
	r.Post("/notifications", h.ScheduleNotification)
	r.Post("/notifications/{id}/response", h.RespondToNotification)
	r.Post("/settings-prompt", h.PromptSettings)
}

// Register handles POST /v1/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
			return
		}
	}

	if !h.notifier.Register(r.Context(), req.RemoteDelivery) {
		h.writeError(w, http.StatusConflict, "already_registered", "Already registered", "register runs once per process")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"registered":      true,
		"tier":            h.notifier.Tier().String(),
		"remote_delivery": req.RemoteDelivery,
	})
}

// GetAuthorization handles GET /v1/authorization. A not-determined status
// asks for permission before answering.
func (h *Handler) GetAuthorization(w http.ResponseWriter, r *http.Request) {
	status := h.notifier.Status(r.Context())

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":             status.String(),
		"scheduling_allowed": authz.IsSchedulingAllowed(status),
	})
}

// RequestAuthorization handles POST /v1/authorization/request
func (h *Handler) RequestAuthorization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	done := make(chan bool, 1)
	h.notifier.RequestAuthorization(ctx, func(granted bool) { done <- granted })

	select {
	case granted := <-done:
		h.logger.Info("authorization requested", zap.Bool("granted", granted))
		h.writeJSON(w, http.StatusOK, map[string]bool{"granted": granted})
	case <-ctx.Done():
		h.writeError(w, http.StatusGatewayTimeout, "timeout", "Authorization request did not complete", "")
	}
}

// ScheduleNotification handles POST /v1/notifications. Submission is
// asynchronous; failures show up in logs and metrics only.
func (h *Handler) ScheduleNotification(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.FireDelaySeconds < 0 || req.FireDelaySeconds > maxFireDelaySeconds {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid fire_delay_seconds",
			fmt.Sprintf("fire_delay_seconds must be between 0 and %.0f", maxFireDelaySeconds))
		return
	}
	if req.Calendar != "" {
		if _, err := platform.NewCalendarTrigger(req.Calendar, req.Repeats); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid calendar", err.Error())
			return
		}
	}
	if req.Identifier == "" {
		req.Identifier = uuid.NewString()
	}

	h.notifier.Schedule(r.Context(), scheduler.Descriptor{
		Identifier: req.Identifier,
		Title:      req.Title,
		Subtitle:   req.Subtitle,
		Body:       req.Body,
		Action:     req.Action,
		SoundName:  req.Sound,
		Date:       req.Date,
		FireDelay:  time.Duration(req.FireDelaySeconds * float64(time.Second)),
		Repeats:    req.Repeats,
		Calendar:   req.Calendar,
	})

	h.logger.Info("notification accepted",
		zap.String("identifier", req.Identifier),
		zap.Bool("repeats", req.Repeats),
	)

	h.writeJSON(w, http.StatusAccepted, map[string]string{"identifier": req.Identifier})
}

// RespondToNotification handles POST /v1/notifications/{id}/response
func (h *Handler) RespondToNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ResponseRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
			return
		}
	}
	if req.Action == "" {
		req.Action = platform.DefaultActionIdentifier
	}

	h.delegate.DidReceive(r.Context(), platform.Response{
		Notification: platform.Notification{
			Request: platform.Request{Identifier: id},
			Date:    time.Now(),
		},
		ActionIdentifier: req.Action,
	})

	h.writeJSON(w, http.StatusOK, map[string]string{
		"identifier": id,
		"action":     req.Action,
	})
}

// PromptSettings handles POST /v1/settings-prompt
func (h *Handler) PromptSettings(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
			return
		}
	}

	surface := &choiceSurface{}
	switch req.Choice {
	case "":
		surface.index = -1
	case ChoiceOpenSettings:
		surface.index = 0
	case ChoiceProceed:
		surface.index = 1
	default:
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid choice", "choice must be open_settings or proceed")
		return
	}

	h.notifier.PromptSettingsRedirect(r.Context(), req.Title, req.Message, surface)

	resp := promptResponse{
		Title:   surface.alert.Title,
		Message: surface.alert.Message,
		Chosen:  req.Choice,
	}
	for _, a := range surface.alert.Actions {
		style := "default"
		if a.Style == prompt.StyleCancel {
			style = "cancel"
		}
		resp.Actions = append(resp.Actions, alertAction{Title: a.Title, Style: style})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /health. Any open breaker degrades the response.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	stats := make([]circuitbreaker.Stats, 0, len(h.breakers))
	for _, b := range h.breakers {
		s := b.Stats()
		if b.State() == circuitbreaker.StateOpen {
			status = http.StatusServiceUnavailable
		}
		stats = append(stats, s)
	}

	body := map[string]any{
		"status":     "ok",
		"registered": h.notifier.Registered(),
		"tier":       h.notifier.Tier().String(),
		"breakers":   stats,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	h.writeJSON(w, status, body)
}

// choiceSurface records the alert and runs the action at index, if any.
type choiceSurface struct {
	index int
	alert prompt.Alert
}

func (s *choiceSurface) Present(ctx context.Context, alert prompt.Alert) {
	s.alert = alert
	if s.index < 0 || s.index >= len(alert.Actions) {
		return
	}
	if fn := alert.Actions[s.index].Handler; fn != nil {
		fn(ctx)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
