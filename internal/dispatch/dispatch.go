package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/internal/settings"
)

// VoiceStartEvent is emitted once per rising edge that survives the cooldown.
type VoiceStartEvent struct {
	ParticipantName string
	Timestamp       time.Time
	SoundEnabled    bool
	TabActive       bool
}

// Sink receives voice-start events.
type Sink interface {
	HandleVoiceStart(ctx context.Context, ev VoiceStartEvent) error
}

// SettingsSource exposes the live settings.
type SettingsSource interface {
	Current() settings.Settings
}

// FocusProbe reports whether the call page currently has input focus.
type FocusProbe func(ctx context.Context) (bool, error)

// Dispatcher applies the global notification cooldown and hands surviving
// events to the sink without blocking the caller.
type Dispatcher struct {
	sink     Sink
	settings SettingsSource
	focus    FocusProbe
	logger   zerolog.Logger

	now   func() time.Time
	spawn func(func())

	mu             sync.Mutex
	lastNotifiedAt time.Time
	wg             sync.WaitGroup
}

type Option func(*Dispatcher)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithFocusProbe sets how TabActive is determined. Without one it is false.
func WithFocusProbe(probe FocusProbe) Option {
	return func(d *Dispatcher) { d.focus = probe }
}

// Synchronous delivers on the calling goroutine.
func Synchronous() Option {
	return func(d *Dispatcher) { d.spawn = func(f func()) { f() } }
}

func New(sink Sink, src SettingsSource, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:     sink,
		settings: src,
		logger:   logger,
		now:      time.Now,
	}
	d.spawn = func(f func()) {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			f()
		}()
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnVoiceStart reports whether an event was emitted for name. Edges arriving
// inside the cooldown window are dropped, not queued.
func (d *Dispatcher) OnVoiceStart(name string) bool {
	cfg := d.settings.Current()
	now := d.now()

	d.mu.Lock()
	if !d.lastNotifiedAt.IsZero() && now.Sub(d.lastNotifiedAt) < cfg.NotificationCooldown {
		d.mu.Unlock()
		d.logger.Debug().Str("participant", name).Msg("voice start suppressed by cooldown")
		return false
	}
	d.lastNotifiedAt = now
	d.mu.Unlock()

	ev := VoiceStartEvent{
		Timestamp:    now,
		SoundEnabled: cfg.SoundEnabled,
	}
	if cfg.ShowParticipantName {
		ev.ParticipantName = name
	}

	d.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if d.focus != nil {
			active, err := d.focus(ctx)
			if err != nil {
				d.logger.Debug().Err(err).Msg("focus probe failed")
			}
			ev.TabActive = active
		}

		if err := d.sink.HandleVoiceStart(ctx, ev); err != nil {
			d.logger.Error().Err(err).Str("participant", ev.ParticipantName).Msg("voice start delivery failed")
		}
	})
	return true
}

// LastNotifiedAt returns when the last event was emitted.
func (d *Dispatcher) LastNotifiedAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastNotifiedAt
}

// Wait blocks until in-flight deliveries have returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
