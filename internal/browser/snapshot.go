package browser

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/pkg/dom"
)

// SnapshotFile replays a saved HTML page. Every rewrite of the file is
// reported as one childList mutation of the whole document.
type SnapshotFile struct {
	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher

	mu  sync.RWMutex
	doc *dom.Document

	batches   chan dom.Batch
	done      chan struct{}
	closeOnce sync.Once
}

func OpenSnapshot(path string, logger zerolog.Logger) (*SnapshotFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	s := &SnapshotFile{
		path:    abs,
		logger:  logger.With().Str("snapshot", abs).Logger(),
		batches: make(chan dom.Batch, 8),
		done:    make(chan struct{}),
	}

	if _, err := s.reload(); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	// Editors often replace the file, so the directory is watched.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", filepath.Dir(abs))
	}
	s.watcher = w

	go s.loop()
	return s, nil
}

func (s *SnapshotFile) Document(ctx context.Context) (*dom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc, nil
}

func (s *SnapshotFile) Mutations() <-chan dom.Batch {
	return s.batches
}

// HasFocus is always false; a file has no input focus.
func (s *SnapshotFile) HasFocus(context.Context) (bool, error) {
	return false, nil
}

func (s *SnapshotFile) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.watcher.Close()
	})
	return err
}

func (s *SnapshotFile) reload() (*dom.Document, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open snapshot")
	}
	defer f.Close()

	doc, err := dom.Parse(f)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse snapshot")
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return doc, nil
}

func (s *SnapshotFile) loop() {
	defer close(s.batches)
	for {
		select {
		case <-s.done:
			return
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn().Err(err).Msg("file watcher error")
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			doc, err := s.reload()
			if err != nil {
				// Partially written files are picked up on the next write.
				s.logger.Debug().Err(err).Msg("snapshot reload failed")
				continue
			}
			batch := dom.Batch{
				Mutations:  []dom.Mutation{{Kind: dom.ChildList, Target: "document"}},
				Document:   doc,
				ReceivedAt: time.Now(),
			}
			select {
			case s.batches <- batch:
			case <-s.done:
				return
			}
		}
	}
}
