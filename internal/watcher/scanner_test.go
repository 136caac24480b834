package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/internal/dispatch"
	"github.com/huddlenotify/huddlenotify/internal/settings"
	"github.com/huddlenotify/huddlenotify/pkg/dom"
)

const (
	speakingLabel = "田中さん、ビデオはオフ、音声はオン、ステータスは "
	silentLabel   = "田中さん、ビデオはオフ、音声はオフ、ステータスは "
)

type recordingSink struct {
	mu     sync.Mutex
	events []dispatch.VoiceStartEvent
}

func (r *recordingSink) HandleVoiceStart(_ context.Context, ev dispatch.VoiceStartEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.ParticipantName
	}
	return out
}

type staticSettings struct {
	mu sync.Mutex
	s  settings.Settings
}

func (s *staticSettings) Current() settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s
}

func (s *staticSettings) set(next settings.Settings) {
	s.mu.Lock()
	s.s = next
	s.mu.Unlock()
}

func (s *staticSettings) Refresh() (settings.Settings, bool) {
	return s.Current(), false
}

func (s *staticSettings) Subscribe() (<-chan settings.Settings, func()) {
	return make(chan settings.Settings), func() {}
}

type tile struct {
	id    string
	label string
}

func page(t *testing.T, inCall bool, tiles ...tile) *dom.Document {
	t.Helper()
	var b strings.Builder
	b.WriteString("<html><body>")
	if inCall {
		b.WriteString(`<div class="c-huddle_sidebar">`)
	}
	for _, tl := range tiles {
		attrs := ""
		if tl.id != "" {
			attrs += fmt.Sprintf(` id=%q`, tl.id)
		}
		if tl.label != "" {
			attrs += fmt.Sprintf(` aria-label=%q`, tl.label)
		}
		fmt.Fprintf(&b, `<div class="p-peer_tile__container"%s></div>`, attrs)
	}
	if inCall {
		b.WriteString("</div>")
	}
	b.WriteString("</body></html>")

	doc, err := dom.ParseString(b.String())
	if err != nil {
		t.Fatalf("ParseString() error: %v", err)
	}
	return doc
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newPipeline(cfg settings.Settings) (*Scanner, *recordingSink, *fakeClock) {
	sink := &recordingSink{}
	clock := &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	d := dispatch.New(sink, &staticSettings{s: cfg}, zerolog.Nop(),
		dispatch.WithClock(clock.Now), dispatch.Synchronous())
	return NewScanner(d.OnVoiceStart, zerolog.Nop()), sink, clock
}

func TestEndToEndScan(t *testing.T) {
	cfg := settings.Defaults()
	cfg.NotificationCooldown = 0
	scanner, sink, _ := newPipeline(cfg)

	speaking := tile{id: "U1", label: speakingLabel}

	first := scanner.Scan(page(t, true, speaking))
	if !first.InCall {
		t.Fatal("call not detected")
	}
	if got := sink.names(); len(got) != 1 || got[0] != "田中" {
		t.Fatalf("first scan emitted %v, want [田中]", got)
	}

	scanner.Scan(page(t, true, speaking))
	if got := sink.names(); len(got) != 1 {
		t.Fatalf("unchanged second scan emitted again: %v", got)
	}

	left := scanner.Scan(page(t, false))
	if left.InCall {
		t.Fatal("call should be gone")
	}
	if scanner.Tracked() != 0 {
		t.Errorf("registry holds %d entries after leaving", scanner.Tracked())
	}

	scanner.Scan(page(t, true, speaking))
	if got := sink.names(); len(got) != 2 {
		t.Fatalf("rejoining with the same label emitted %v, want two events", got)
	}
}

// Joining silent, leaving and rejoining while speaking under the same id
// fires: the entering edge cleared the registry too.
func TestScanClearsOnEnteringCall(t *testing.T) {
	cfg := settings.Defaults()
	cfg.NotificationCooldown = 0
	scanner, sink, _ := newPipeline(cfg)

	scanner.Scan(page(t, true, tile{id: "U1", label: silentLabel}))
	if scanner.Tracked() != 1 || len(sink.names()) != 0 {
		t.Fatalf("silent join: tracked %d, events %v", scanner.Tracked(), sink.names())
	}

	scanner.Scan(page(t, false))
	if scanner.Tracked() != 0 {
		t.Fatalf("registry holds %d entries after leaving", scanner.Tracked())
	}

	// Outside the call nothing is observed, so the stale entry for U1 could
	// only be dropped by the leaving edge. Seed it again with a speaking
	// value to check that the entering edge clears it as well.
	scanner.registry.Observe("U1", true)

	res := scanner.Scan(page(t, true, tile{id: "U1", label: speakingLabel}))
	if len(res.Rising) != 1 || res.Rising[0] != "田中" {
		t.Errorf("rejoin rising = %v, want [田中]", res.Rising)
	}
	if got := sink.names(); len(got) != 1 || got[0] != "田中" {
		t.Errorf("events = %v, want one event on rejoin", got)
	}
}

func TestScanRisingEdgesOnly(t *testing.T) {
	cfg := settings.Defaults()
	cfg.NotificationCooldown = 0
	scanner, sink, _ := newPipeline(cfg)

	scanner.Scan(page(t, true, tile{id: "U1", label: silentLabel}))
	if len(sink.names()) != 0 {
		t.Fatal("silent participant produced an event")
	}

	res := scanner.Scan(page(t, true, tile{id: "U1", label: speakingLabel}))
	if len(res.Rising) != 1 || res.Emitted != 1 {
		t.Errorf("rising = %v emitted = %d", res.Rising, res.Emitted)
	}

	scanner.Scan(page(t, true, tile{id: "U1", label: silentLabel}))
	scanner.Scan(page(t, true, tile{id: "U1", label: speakingLabel}))
	if got := sink.names(); len(got) != 2 {
		t.Errorf("speak, stop, speak emitted %v, want two events", got)
	}
}

func TestScanCooldownAcrossParticipants(t *testing.T) {
	scanner, sink, clock := newPipeline(settings.Defaults())

	res := scanner.Scan(page(t, true,
		tile{id: "U1", label: speakingLabel},
		tile{id: "U2", label: "Jane Doe, video is off, audio is on, status is "},
	))
	if len(res.Rising) != 2 {
		t.Fatalf("rising = %v, want both participants", res.Rising)
	}
	if res.Emitted != 1 || len(sink.names()) != 1 {
		t.Errorf("cooldown should let only the first through, emitted %d", res.Emitted)
	}

	clock.t = clock.t.Add(3 * time.Second)
	scanner.Scan(page(t, true,
		tile{id: "U1", label: speakingLabel},
		tile{id: "U2", label: "Jane Doe, video is off, audio is on, status is "},
	))
	if len(sink.names()) != 1 {
		t.Error("no new edge, no new event")
	}
}

func TestScanSkipsUnclassifiableTiles(t *testing.T) {
	cfg := settings.Defaults()
	cfg.NotificationCooldown = 0
	scanner, sink, _ := newPipeline(cfg)

	res := scanner.Scan(page(t, true, tile{}, tile{label: speakingLabel}))
	if len(res.Participants) != 1 {
		t.Fatalf("participants = %+v, want only the labeled tile", res.Participants)
	}
	// The unlabeled tile still takes index 0.
	if res.Participants[0].ID != "peer_container_1" {
		t.Errorf("ID = %q, want peer_container_1", res.Participants[0].ID)
	}
	if len(sink.names()) != 1 {
		t.Errorf("events = %v", sink.names())
	}
}

func TestScanHiddenName(t *testing.T) {
	cfg := settings.Defaults()
	cfg.ShowParticipantName = false
	scanner, sink, _ := newPipeline(cfg)

	scanner.Scan(page(t, true, tile{id: "U1", label: speakingLabel}))
	if got := sink.names(); len(got) != 1 || got[0] != "" {
		t.Errorf("events = %q, want one anonymous event", got)
	}
}
