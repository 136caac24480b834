package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/internal/config"
	"github.com/huddlenotify/huddlenotify/internal/models"
	"github.com/huddlenotify/huddlenotify/internal/settings"
	"github.com/huddlenotify/huddlenotify/pkg/dom"
	"github.com/huddlenotify/huddlenotify/pkg/participant"
)

// SettingsSource is the live settings view the watcher reads. Refresh
// rereads the persisted profile, picking up saves from other processes.
type SettingsSource interface {
	Current() settings.Settings
	Refresh() (settings.Settings, bool)
	Subscribe() (<-chan settings.Settings, func())
}

// ErrorStore persists scan failures.
type ErrorStore interface {
	CreateErrorLog(errorLog *models.ErrorLog) error
}

// Status is a read-only snapshot of the watcher for the API.
type Status struct {
	Running      bool                      `json:"running"`
	Enabled      bool                      `json:"enabled"`
	InCall       bool                      `json:"in_call"`
	Landmark     string                    `json:"landmark,omitempty"`
	Participants []participant.Observation `json:"participants"`
	Tracked      int                       `json:"tracked"`
	Speaking     int                       `json:"speaking"`
	Strategies   []string                  `json:"strategies"`
	Scans        int64                     `json:"scans"`
	Notified     int64                     `json:"notified"`
	LastScan     time.Time                 `json:"last_scan"`
	LastError    string                    `json:"last_error,omitempty"`
}

// Watcher drives the scanner from the page mutation stream and a periodic
// backstop. All scanning happens on the goroutine running Start.
type Watcher struct {
	page     dom.Page
	scanner  *Scanner
	settings SettingsSource
	errors   ErrorStore
	opts     dom.ObserveOptions
	backstop time.Duration
	logger   zerolog.Logger

	stopChan chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	running bool
	status  Status
}

func New(page dom.Page, scanner *Scanner, src SettingsSource, errs ErrorStore, cfg config.WatcherConfig, logger zerolog.Logger) *Watcher {
	backstop := cfg.BackstopInterval
	if backstop <= 0 {
		backstop = config.Default().Watcher.BackstopInterval
	}
	return &Watcher{
		page:     page,
		scanner:  scanner,
		settings: src,
		errors:   errs,
		opts:     dom.DefaultObserveOptions(),
		backstop: backstop,
		logger:   logger,
		stopChan: make(chan struct{}),
		status:   Status{Strategies: scanner.Strategies()},
	}
}

// Start blocks until ctx is done, Stop is called or the mutation stream ends.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	w.running = true
	w.status.Running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.status.Running = false
		w.mu.Unlock()
	}()

	w.logger.Info().Dur("backstop", w.backstop).Msg("starting watcher")

	ticker := time.NewTicker(w.backstop)
	defer ticker.Stop()

	updates, unsubscribe := w.settings.Subscribe()
	defer unsubscribe()

	w.scanFresh(ctx)

	mutations := w.page.Mutations()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("watcher stopped by context")
			return ctx.Err()

		case <-w.stopChan:
			w.logger.Info().Msg("watcher stopped")
			return nil

		case batch, ok := <-mutations:
			if !ok {
				return fmt.Errorf("page mutation stream closed")
			}
			if len(w.opts.Filter(batch)) == 0 {
				continue
			}
			w.Rescan(batch.Document)

		case <-ticker.C:
			w.scanFresh(ctx)

		case s, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			w.logger.Info().
				Bool("enabled", s.Enabled).
				Bool("sound", s.SoundEnabled).
				Dur("cooldown", s.NotificationCooldown).
				Msg("settings applied")
			w.mu.Lock()
			w.status.Enabled = s.Enabled
			w.mu.Unlock()
		}
	}
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Status returns a copy of the latest scan state.
func (w *Watcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	st := w.status
	st.Participants = append([]participant.Observation(nil), w.status.Participants...)
	st.Strategies = append([]string(nil), w.status.Strategies...)
	return st
}

// Rescan runs one scan of doc unless detection is disabled.
func (w *Watcher) Rescan(doc *dom.Document) ScanResult {
	enabled := w.settings.Current().Enabled

	w.mu.Lock()
	w.status.Enabled = enabled
	w.mu.Unlock()

	if !enabled {
		return ScanResult{}
	}

	result := w.scanner.Scan(doc)

	w.mu.Lock()
	w.status.InCall = result.InCall
	w.status.Landmark = result.Selector
	w.status.Participants = result.Participants
	w.status.Tracked = w.scanner.Tracked()
	w.status.Speaking = w.scanner.Speaking()
	w.status.Scans++
	w.status.Notified += int64(result.Emitted)
	w.status.LastScan = time.Now()
	w.mu.Unlock()

	return result
}

// scanFresh is the backstop: reread settings, fetch the whole document and
// rescan it.
func (w *Watcher) scanFresh(ctx context.Context) {
	w.settings.Refresh()

	doc, err := w.page.Document(ctx)
	if err != nil {
		w.storeError(fmt.Errorf("failed to fetch document: %w", err))
		return
	}
	w.Rescan(doc)
}

func (w *Watcher) storeError(err error) {
	w.mu.Lock()
	w.status.LastError = err.Error()
	w.mu.Unlock()

	if w.errors == nil {
		w.logger.Error().Err(err).Msg("scan failed")
		return
	}

	errorLog := &models.ErrorLog{
		Timestamp: time.Now(),
		Source:    "watcher",
		ErrorMsg:  err.Error(),
	}
	if dbErr := w.errors.CreateErrorLog(errorLog); dbErr != nil {
		w.logger.Error().Err(dbErr).AnErr("original", err).Msg("failed to store error in database")
	} else {
		w.logger.Warn().Err(err).Msg("error logged to database")
	}
}
