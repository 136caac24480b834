package settings

import (
	"sync"

	"github.com/rs/zerolog"
)

// Repository persists the settings profile.
type Repository interface {
	GetSettings() (map[string]string, error)
	SaveSettings(values map[string]string) error
}

// Store caches the current settings and pushes every saved value to its
// subscribers.
type Store struct {
	repo   Repository
	logger zerolog.Logger

	mu          sync.RWMutex
	current     Settings
	subscribers map[int]chan Settings
	nextID      int
}

func NewStore(repo Repository, logger zerolog.Logger) *Store {
	return &Store{
		repo:        repo,
		logger:      logger,
		current:     Defaults(),
		subscribers: make(map[int]chan Settings),
	}
}

// Load reads the profile. On any failure the defaults are used. A profile
// that does not exist yet is created with the defaults.
func (s *Store) Load() Settings {
	values, err := s.repo.GetSettings()
	if err != nil {
		s.logger.Warn().Err(err).Msg("settings load failed, using defaults")
		s.set(Defaults())
		return Defaults()
	}

	if len(values) == 0 {
		if err := s.repo.SaveSettings(Defaults().Values()); err != nil {
			s.logger.Warn().Err(err).Msg("failed to write default settings")
		}
	}

	loaded := FromValues(values)
	s.set(loaded)
	return loaded
}

// Refresh rereads the profile so saves made by another process take
// effect. Subscribers are notified only when the value changed. A read
// failure keeps the current settings.
func (s *Store) Refresh() (Settings, bool) {
	values, err := s.repo.GetSettings()
	if err != nil {
		s.logger.Debug().Err(err).Msg("settings refresh failed")
		return s.Current(), false
	}
	next := FromValues(values)

	s.mu.Lock()
	changed := next != s.current
	s.current = next
	s.mu.Unlock()

	if changed {
		s.broadcast(next)
		s.logger.Info().
			Bool("enabled", next.Enabled).
			Bool("sound", next.SoundEnabled).
			Bool("show_name", next.ShowParticipantName).
			Dur("cooldown", next.NotificationCooldown).
			Msg("settings changed on disk")
	}
	return next, changed
}

// Current returns the last loaded or saved settings.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save validates, persists and broadcasts next.
func (s *Store) Save(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if err := s.repo.SaveSettings(next.Values()); err != nil {
		return err
	}

	s.set(next)
	s.broadcast(next)
	s.logger.Info().
		Bool("enabled", next.Enabled).
		Bool("sound", next.SoundEnabled).
		Bool("show_name", next.ShowParticipantName).
		Dur("cooldown", next.NotificationCooldown).
		Msg("settings updated")
	return nil
}

// Subscribe returns a channel receiving every saved value. Only the latest
// undelivered value is kept. Call the returned func to unsubscribe.
func (s *Store) Subscribe() (<-chan Settings, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Settings, 1)
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
}

func (s *Store) set(next Settings) {
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
}

func (s *Store) broadcast(next Settings) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
}
