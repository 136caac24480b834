package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/internal/models"
	"github.com/huddlenotify/huddlenotify/internal/settings"
	"github.com/huddlenotify/huddlenotify/internal/watcher"
)

type fakeRepo struct {
	events []*models.VoiceEvent
	errs   []*models.ErrorLog
}

func (f *fakeRepo) GetSpeakerSummarySince(time.Time) ([]models.SpeakerSummary, error) {
	counts := map[string]int64{}
	var order []string
	for _, e := range f.events {
		if !e.Delivered {
			continue
		}
		if _, ok := counts[e.ParticipantName]; !ok {
			order = append(order, e.ParticipantName)
		}
		counts[e.ParticipantName]++
	}
	var out []models.SpeakerSummary
	for _, name := range order {
		out = append(out, models.SpeakerSummary{ParticipantName: name, EventCount: counts[name]})
	}
	return out, nil
}

func (f *fakeRepo) GetLatestForParticipant(string, time.Time) (*models.VoiceEvent, error) {
	return nil, nil
}

func (f *fakeRepo) CountFailedSince(time.Time) (int64, error) { return 0, nil }

func (f *fakeRepo) GetVoiceEventsSince(time.Time) ([]*models.VoiceEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) GetLatestVoiceEvent() (*models.VoiceEvent, error) {
	if len(f.events) == 0 {
		return nil, nil
	}
	return f.events[len(f.events)-1], nil
}

func (f *fakeRepo) GetRecentErrorLogs(limit int) ([]*models.ErrorLog, error) {
	if len(f.errs) > limit {
		return f.errs[:limit], nil
	}
	return f.errs, nil
}

type fakeStore struct {
	mu      sync.Mutex
	current settings.Settings
	saveErr error
	subs    []chan settings.Settings
}

func (f *fakeStore) Current() settings.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeStore) Save(next settings.Settings) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	f.current = next
	subs := f.subs
	f.mu.Unlock()
	for _, ch := range subs {
		ch <- next
	}
	return nil
}

func (f *fakeStore) Subscribe() (<-chan settings.Settings, func()) {
	ch := make(chan settings.Settings, 1)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch, func() {}
}

type fakeNotifier struct {
	sounds []bool
	err    error
}

func (f *fakeNotifier) SendTest(_ context.Context, sound bool) error {
	f.sounds = append(f.sounds, sound)
	return f.err
}

type fakeWatcher struct{}

func (fakeWatcher) Status() watcher.Status {
	return watcher.Status{Running: true, InCall: true}
}

type fixedCooldown struct{ last time.Time }

func (f fixedCooldown) LastNotifiedAt() time.Time { return f.last }

func newTestHandler(repo *fakeRepo, store *fakeStore, n TestNotifier) (*Handler, *http.ServeMux) {
	h := NewHandler(Deps{Repo: repo, Settings: store, Notifier: n, Watcher: fakeWatcher{}}, zerolog.Nop())
	mux := http.NewServeMux()
	h.SetupRoutes(mux)
	return h, mux
}

func TestSettingsRoundTrip(t *testing.T) {
	store := &fakeStore{current: settings.Defaults()}
	_, mux := newTestHandler(&fakeRepo{}, store, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"notificationCooldown":3000`) {
		t.Errorf("GET body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(`{"soundEnabled":false,"notificationCooldown":5000}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d body = %s", rec.Code, rec.Body.String())
	}
	got := store.Current()
	if got.SoundEnabled || got.NotificationCooldown != 5*time.Second || !got.Enabled {
		t.Errorf("stored %+v", got)
	}
}

func TestSettingsRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		saveErr error
		want    int
	}{
		{"malformed", `{`, nil, http.StatusBadRequest},
		{"negative cooldown", `{"notificationCooldown":-1}`, nil, http.StatusBadRequest},
		{"store failure", `{"enabled":false}`, errors.New("read-only"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{current: settings.Defaults(), saveErr: tt.saveErr}
			_, mux := newTestHandler(&fakeRepo{}, store, nil)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if store.Current() != settings.Defaults() {
				t.Error("settings changed on a rejected request")
			}
		})
	}
}

func TestTestNotification(t *testing.T) {
	store := &fakeStore{current: settings.Defaults()}
	n := &fakeNotifier{}
	_, mux := newTestHandler(&fakeRepo{}, store, n)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications/test", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notifications/test?sound=false", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d", rec.Code)
	}
	if len(n.sounds) != 1 || n.sounds[0] {
		t.Errorf("SendTest calls = %v, want [false]", n.sounds)
	}

	_, mux = newTestHandler(&fakeRepo{}, store, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notifications/test", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status without notifier = %d", rec.Code)
	}
}

func TestEventsAndLatest(t *testing.T) {
	repo := &fakeRepo{}
	store := &fakeStore{current: settings.Defaults()}
	_, mux := newTestHandler(repo, store, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/latest", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("latest on empty history = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty events body = %s", rec.Body.String())
	}

	for i, name := range []string{"Alice", "Bob", "Alice"} {
		repo.events = append(repo.events, &models.VoiceEvent{ID: uint(i + 1), ParticipantName: name, Delivered: true})
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?limit=2", nil))
	var events []models.VoiceEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].ID != 2 {
		t.Errorf("limited events = %+v", events)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?period=fortnight", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad period status = %d", rec.Code)
	}
}

func TestSummaryHTMX(t *testing.T) {
	repo := &fakeRepo{events: []*models.VoiceEvent{
		{ParticipantName: "<b>Eve</b>", Delivered: true},
	}}
	_, mux := newTestHandler(repo, &fakeStore{current: settings.Defaults()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "&lt;b&gt;Eve&lt;/b&gt;") {
		t.Errorf("participant name not escaped: %s", body)
	}
	if !strings.Contains(body, "Total: 1") {
		t.Errorf("fragment = %s", body)
	}
}

func TestStatusAndHealth(t *testing.T) {
	_, mux := newTestHandler(&fakeRepo{}, &fakeStore{current: settings.Defaults()}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	var status map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("status body: %v", err)
	}
	if !strings.Contains(string(status["watcher"]), `"in_call":true`) {
		t.Errorf("watcher status = %s", status["watcher"])
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("health = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d", rec.Code)
	}
}

func TestStatusReportsCooldown(t *testing.T) {
	store := &fakeStore{current: settings.Defaults()}

	quiet := NewHandler(Deps{Repo: &fakeRepo{}, Settings: store, Cooldown: fixedCooldown{}}, zerolog.Nop())
	rec := httptest.NewRecorder()
	quiet.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if strings.Contains(rec.Body.String(), "last_notified_at") {
		t.Errorf("status without any notification = %s", rec.Body.String())
	}

	recent := NewHandler(Deps{
		Repo:     &fakeRepo{},
		Settings: store,
		Cooldown: fixedCooldown{last: time.Now().Add(-time.Second)},
	}, zerolog.Nop())
	rec = httptest.NewRecorder()
	recent.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var status struct {
		LastNotifiedAt time.Time `json:"last_notified_at"`
		Remaining      int64     `json:"cooldown_remaining_ms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("status body: %v", err)
	}
	if status.LastNotifiedAt.IsZero() {
		t.Error("last_notified_at missing")
	}
	if status.Remaining <= 0 || status.Remaining > 2000 {
		t.Errorf("cooldown_remaining_ms = %d, want within the 3s window", status.Remaining)
	}
}

func TestStreamDeliversMessages(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish("settings_updated", settings.Defaults())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}
	var msg struct {
		Type string            `json:"type"`
		Data settings.Settings `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "settings_updated" || msg.Data != settings.Defaults() {
		t.Errorf("message = %+v", msg)
	}

	hub.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Clients() != 0 {
		t.Error("clients remain after Close")
	}
}
