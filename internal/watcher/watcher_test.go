package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/internal/config"
	"github.com/huddlenotify/huddlenotify/internal/models"
	"github.com/huddlenotify/huddlenotify/internal/settings"
	"github.com/huddlenotify/huddlenotify/pkg/dom"
)

type fakePage struct {
	mu      sync.Mutex
	doc     *dom.Document
	err     error
	fetches int
	batches chan dom.Batch
}

func newFakePage(doc *dom.Document) *fakePage {
	return &fakePage{doc: doc, batches: make(chan dom.Batch)}
}

func (p *fakePage) Document(context.Context) (*dom.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches++
	return p.doc, p.err
}

func (p *fakePage) Mutations() <-chan dom.Batch            { return p.batches }
func (p *fakePage) HasFocus(context.Context) (bool, error) { return false, nil }
func (p *fakePage) Close() error                           { return nil }

type memoryErrors struct {
	mu   sync.Mutex
	logs []*models.ErrorLog
}

func (m *memoryErrors) CreateErrorLog(l *models.ErrorLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
	return nil
}

func (m *memoryErrors) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

// sharedProfile is one persisted settings profile read by several stores.
type sharedProfile struct {
	mu     sync.Mutex
	values map[string]string
}

func (p *sharedProfile) GetSettings() (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out, nil
}

func (p *sharedProfile) SaveSettings(values map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.values == nil {
		p.values = make(map[string]string)
	}
	for k, v := range values {
		p.values[k] = v
	}
	return nil
}

func watcherConfig() config.WatcherConfig {
	return config.WatcherConfig{BackstopInterval: time.Hour}
}

func TestWatcherScansMutationBatches(t *testing.T) {
	cfg := settings.Defaults()
	cfg.NotificationCooldown = 0
	scanner, sink, _ := newPipeline(cfg)

	pg := newFakePage(page(t, false))
	w := New(pg, scanner, &staticSettings{s: cfg}, nil, watcherConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// Filtered out: attribute outside the observed set.
	pg.batches <- dom.Batch{
		Mutations: []dom.Mutation{{Kind: dom.Attributes, Attribute: "style"}},
		Document:  page(t, true, tile{id: "U1", label: speakingLabel}),
	}
	pg.batches <- dom.Batch{
		Mutations: []dom.Mutation{{Kind: dom.Attributes, Attribute: "aria-label"}},
		Document:  page(t, true, tile{id: "U2", label: "Jane Doe, video is off, audio is on"}),
	}
	// Unbuffered channel: this send completes only after the previous batch
	// was scanned.
	pg.batches <- dom.Batch{
		Mutations: []dom.Mutation{{Kind: dom.ChildList}},
		Document:  page(t, true, tile{id: "U2", label: "Jane Doe, video is off, audio is on"}),
	}

	w.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}

	if got := sink.names(); len(got) != 1 || got[0] != "Jane Doe" {
		t.Errorf("events = %v, want [Jane Doe]", got)
	}
	st := w.Status()
	if st.Running || !st.InCall || st.Notified != 1 {
		t.Errorf("status = %+v", st)
	}
	if st.Scans != 3 {
		t.Errorf("scans = %d, want initial + two accepted batches", st.Scans)
	}
	if st.Tracked != 1 || st.Speaking != 1 {
		t.Errorf("tracked = %d speaking = %d, want 1 and 1", st.Tracked, st.Speaking)
	}
	if len(st.Strategies) != 2 || st.Strategies[0] != "aria-label" {
		t.Errorf("strategies = %v, want label first", st.Strategies)
	}
}

func TestWatcherDisabledSkipsScans(t *testing.T) {
	cfg := settings.Defaults()
	cfg.Enabled = false
	cfg.NotificationCooldown = 0
	src := &staticSettings{s: cfg}
	scanner, sink, _ := newPipeline(cfg)

	w := New(newFakePage(nil), scanner, src, nil, watcherConfig(), zerolog.Nop())
	doc := page(t, true, tile{id: "U1", label: speakingLabel})

	if res := w.Rescan(doc); res.InCall {
		t.Error("disabled rescan should not evaluate presence")
	}
	if len(sink.names()) != 0 {
		t.Fatal("disabled rescan emitted an event")
	}

	cfg.Enabled = true
	src.set(cfg)
	w.Rescan(doc)
	if len(sink.names()) != 1 {
		t.Errorf("enabled rescan emitted %v", sink.names())
	}
}

func TestBackstopAppliesSettingsSavedElsewhere(t *testing.T) {
	profile := &sharedProfile{}
	daemonStore := settings.NewStore(profile, zerolog.Nop())
	daemonStore.Load()

	cfg := settings.Defaults()
	cfg.NotificationCooldown = 0
	scanner, sink, _ := newPipeline(cfg)

	doc := page(t, true, tile{id: "U1", label: speakingLabel})
	pg := newFakePage(doc)
	w := New(pg, scanner, daemonStore, nil, watcherConfig(), zerolog.Nop())

	cliStore := settings.NewStore(profile, zerolog.Nop())
	cliStore.Load()
	disabled := cliStore.Current()
	disabled.Enabled = false
	if err := cliStore.Save(disabled); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	w.scanFresh(context.Background())
	if len(sink.names()) != 0 {
		t.Fatalf("backstop scanned after detection was disabled: %v", sink.names())
	}
	if st := w.Status(); st.Enabled || st.Scans != 0 {
		t.Errorf("status = %+v, want disabled with no scans", st)
	}

	if err := cliStore.Save(settings.Defaults()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	w.scanFresh(context.Background())
	if got := sink.names(); len(got) != 1 || got[0] != "田中" {
		t.Errorf("re-enabled backstop emitted %v, want [田中]", got)
	}
}

func TestWatcherStoresFetchErrors(t *testing.T) {
	scanner, _, _ := newPipeline(settings.Defaults())
	pg := newFakePage(nil)
	pg.err = errors.New("target detached")
	errs := &memoryErrors{}

	w := New(pg, scanner, &staticSettings{s: settings.Defaults()}, errs, watcherConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for errs.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Start() error = %v, want context.Canceled", err)
	}

	if errs.count() != 1 {
		t.Fatalf("stored %d errors, want 1", errs.count())
	}
	if errs.logs[0].Source != "watcher" {
		t.Errorf("Source = %q", errs.logs[0].Source)
	}
	if w.Status().LastError == "" {
		t.Error("status should carry the last error")
	}
}

func TestWatcherStreamClosed(t *testing.T) {
	scanner, _, _ := newPipeline(settings.Defaults())
	pg := newFakePage(page(t, false))
	close(pg.batches)

	w := New(pg, scanner, &staticSettings{s: settings.Defaults()}, nil, watcherConfig(), zerolog.Nop())
	if err := w.Start(context.Background()); err == nil {
		t.Error("Start() should fail when the page stream ends")
	}
}

func TestWatcherRejectsSecondStart(t *testing.T) {
	scanner, _, _ := newPipeline(settings.Defaults())
	pg := newFakePage(page(t, false))
	w := New(pg, scanner, &staticSettings{s: settings.Defaults()}, nil, watcherConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for !w.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := w.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}
}
