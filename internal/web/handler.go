package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/internal/models"
	"github.com/huddlenotify/huddlenotify/internal/reporter"
	"github.com/huddlenotify/huddlenotify/internal/settings"
	"github.com/huddlenotify/huddlenotify/internal/watcher"
	"github.com/huddlenotify/huddlenotify/pkg/utils"
)

// Repository is the history the API reads.
type Repository interface {
	reporter.Source
	GetVoiceEventsSince(since time.Time) ([]*models.VoiceEvent, error)
	GetLatestVoiceEvent() (*models.VoiceEvent, error)
	GetRecentErrorLogs(limit int) ([]*models.ErrorLog, error)
}

// SettingsStore is the live settings profile.
type SettingsStore interface {
	Current() settings.Settings
	Save(next settings.Settings) error
	Subscribe() (<-chan settings.Settings, func())
}

// TestNotifier sends a sample notification.
type TestNotifier interface {
	SendTest(ctx context.Context, soundEnabled bool) error
}

// StatusProvider reports the watcher state. Nil when no watcher runs in
// this process.
type StatusProvider interface {
	Status() watcher.Status
}

// CooldownState exposes when the last notification went out.
type CooldownState interface {
	LastNotifiedAt() time.Time
}

type Deps struct {
	Repo     Repository
	Settings SettingsStore
	Notifier TestNotifier
	Watcher  StatusProvider
	Cooldown CooldownState
	Hub      *Hub
}

type Handler struct {
	repo     Repository
	settings SettingsStore
	notifier TestNotifier
	watcher  StatusProvider
	cooldown CooldownState
	reporter *reporter.Reporter
	hub      *Hub
	logger   zerolog.Logger
	started  time.Time
}

func NewHandler(deps Deps, logger zerolog.Logger) *Handler {
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(logger)
	}
	return &Handler{
		repo:     deps.Repo,
		settings: deps.Settings,
		notifier: deps.Notifier,
		watcher:  deps.Watcher,
		cooldown: deps.Cooldown,
		reporter: reporter.New(deps.Repo),
		hub:      hub,
		logger:   logger,
		started:  time.Now(),
	}
}

func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/settings", h.handleSettings)
	mux.HandleFunc("/api/notifications/test", h.handleTestNotification)
	mux.HandleFunc("/api/events", h.handleEvents)
	mux.HandleFunc("/api/events/latest", h.handleLatestEvent)
	mux.HandleFunc("/api/report", h.handleReport)
	mux.HandleFunc("/api/summary", h.handleSummary)
	mux.HandleFunc("/api/errors", h.handleErrors)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.Handle("/api/stream", h.hub)

	mux.HandleFunc("/health", h.handleHealth)

	mux.HandleFunc("/", h.handleIndex)
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, h.settings.Current())

	case http.MethodPut, http.MethodPost:
		next := h.settings.Current()
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			http.Error(w, fmt.Sprintf("Invalid settings: %v", err), http.StatusBadRequest)
			return
		}
		if err := next.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.settings.Save(next); err != nil {
			http.Error(w, fmt.Sprintf("Failed to save settings: %v", err), http.StatusInternalServerError)
			return
		}
		respondJSON(w, next)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.notifier == nil {
		http.Error(w, "Notifications are not available", http.StatusServiceUnavailable)
		return
	}

	sound := h.settings.Current().SoundEnabled
	if v := r.URL.Query().Get("sound"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			sound = b
		}
	}

	if err := h.notifier.SendTest(r.Context(), sound); err != nil {
		http.Error(w, fmt.Sprintf("Failed to send test notification: %v", err), http.StatusBadGateway)
		return
	}
	respondJSON(w, map[string]bool{"success": true})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	limitStr := query.Get("limit")
	periodType := query.Get("period") // day, week, month

	var events []*models.VoiceEvent

	if periodType != "" {
		period, err := h.reporter.Period(periodType)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		events, err = h.repo.GetVoiceEventsSince(period.Start)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to fetch events: %v", err), http.StatusInternalServerError)
			return
		}
	} else {
		allEvents, err := h.repo.GetVoiceEventsSince(time.Now().Add(-24 * time.Hour))
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to fetch events: %v", err), http.StatusInternalServerError)
			return
		}

		limit := 100
		if limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
				limit = l
			}
		}

		if len(allEvents) > limit {
			events = allEvents[len(allEvents)-limit:]
		} else {
			events = allEvents
		}
	}

	if events == nil {
		events = []*models.VoiceEvent{}
	}
	respondJSON(w, events)
}

func (h *Handler) handleLatestEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	event, err := h.repo.GetLatestVoiceEvent()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch latest event: %v", err), http.StatusInternalServerError)
		return
	}

	if event == nil {
		http.Error(w, "No events found", http.StatusNotFound)
		return
	}

	respondJSON(w, event)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	periodType := r.URL.Query().Get("period")
	if periodType == "" {
		periodType = "day"
	}

	report, err := h.reporter.GenerateReport(periodType)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate report: %v", err), http.StatusBadRequest)
		return
	}

	respondJSON(w, report)
}

// handleSummary serves the speaker list as JSON, or as an HTML fragment for
// htmx requests.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	periodType := r.URL.Query().Get("period")
	if periodType == "" {
		periodType = "day"
	}

	report, err := h.reporter.GenerateReport(periodType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		h.respondSummaryHTML(w, report)
		return
	}

	respondJSON(w, map[string]interface{}{
		"period":       report.Period,
		"speakers":     report.Speakers,
		"total_events": report.TotalEvents,
	})
}

func (h *Handler) respondSummaryHTML(w http.ResponseWriter, report *models.Report) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if len(report.Speakers) == 0 {
		w.Write([]byte(`<div class="loading">No voice activity yet</div>`))
		return
	}

	out := `<div class="listing">`
	for _, s := range report.Speakers {
		name := s.ParticipantName
		if name == "" {
			name = "(hidden)"
		}
		last := utils.Ago(s.LastSpokeAt, time.Now())
		out += fmt.Sprintf(`
		<div class="speaker-item" style="--bar-width: %.1f%%">
			<span class="speaker-name">%s</span>
			<div>
				<span class="speaker-count">%d</span>
				<span class="speaker-last">%s</span>
			</div>
		</div>`, s.Percentage, html.EscapeString(name), s.EventCount, last)
	}
	out += `</div>`
	out += fmt.Sprintf(`<div class="total">Total: %d</div>`, report.TotalEvents)

	w.Write([]byte(out))
}

func (h *Handler) handleErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	logs, err := h.repo.GetRecentErrorLogs(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch errors: %v", err), http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []*models.ErrorLog{}
	}
	respondJSON(w, logs)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := map[string]interface{}{
		"settings":       h.settings.Current(),
		"stream_clients": h.hub.Clients(),
		"uptime":         utils.Elapsed(time.Since(h.started)),
	}
	if h.watcher != nil {
		status["watcher"] = h.watcher.Status()
	}
	if h.cooldown != nil {
		if last := h.cooldown.LastNotifiedAt(); !last.IsZero() {
			status["last_notified_at"] = last
			remaining := h.settings.Current().NotificationCooldown - time.Since(last)
			if remaining < 0 {
				remaining = 0
			}
			status["cooldown_remaining_ms"] = remaining.Milliseconds()
		}
	}

	if latest, _ := h.repo.GetLatestVoiceEvent(); latest != nil {
		status["latest_event"] = map[string]interface{}{
			"participant_name": latest.ParticipantName,
			"timestamp":        latest.Timestamp,
			"delivered":        latest.Delivered,
		}
	}

	respondJSON(w, status)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode JSON: %v", err), http.StatusInternalServerError)
	}
}
