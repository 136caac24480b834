package settings

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Keys of the persisted profile.
const (
	KeyEnabled             = "enabled"
	KeySoundEnabled        = "soundEnabled"
	KeyShowParticipantName = "showParticipantName"
	KeyCooldown            = "notificationCooldown" // milliseconds
)

// Settings is the user-facing configuration read by the watcher.
type Settings struct {
	Enabled              bool
	SoundEnabled         bool
	ShowParticipantName  bool
	NotificationCooldown time.Duration
}

// Defaults are written on first start and used whenever loading fails.
func Defaults() Settings {
	return Settings{
		Enabled:              true,
		SoundEnabled:         true,
		ShowParticipantName:  true,
		NotificationCooldown: 3000 * time.Millisecond,
	}
}

// Validate rejects settings that cannot be applied.
func (s Settings) Validate() error {
	if s.NotificationCooldown < 0 {
		return fmt.Errorf("notification cooldown cannot be negative")
	}
	return nil
}

// Values flattens s into profile key/value pairs.
func (s Settings) Values() map[string]string {
	return map[string]string{
		KeyEnabled:             strconv.FormatBool(s.Enabled),
		KeySoundEnabled:        strconv.FormatBool(s.SoundEnabled),
		KeyShowParticipantName: strconv.FormatBool(s.ShowParticipantName),
		KeyCooldown:            strconv.FormatInt(s.NotificationCooldown.Milliseconds(), 10),
	}
}

// With returns a copy of s with one key replaced.
func (s Settings) With(key, value string) (Settings, error) {
	switch key {
	case KeyEnabled, KeySoundEnabled, KeyShowParticipantName:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return s, fmt.Errorf("invalid value %q for %s: %w", value, key, err)
		}
		switch key {
		case KeyEnabled:
			s.Enabled = b
		case KeySoundEnabled:
			s.SoundEnabled = b
		default:
			s.ShowParticipantName = b
		}
	case KeyCooldown:
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return s, fmt.Errorf("invalid value %q for %s: %w", value, key, err)
		}
		s.NotificationCooldown = time.Duration(ms) * time.Millisecond
	default:
		return s, fmt.Errorf("unknown setting %q", key)
	}
	return s, s.Validate()
}

// FromValues rebuilds settings from profile pairs. Missing or malformed keys
// keep their default.
func FromValues(values map[string]string) Settings {
	s := Defaults()
	for _, key := range []string{KeyEnabled, KeySoundEnabled, KeyShowParticipantName, KeyCooldown} {
		v, ok := values[key]
		if !ok {
			continue
		}
		if next, err := s.With(key, v); err == nil {
			s = next
		}
	}
	return s
}

type wireSettings struct {
	Enabled              bool  `json:"enabled"`
	SoundEnabled         bool  `json:"soundEnabled"`
	ShowParticipantName  bool  `json:"showParticipantName"`
	NotificationCooldown int64 `json:"notificationCooldown"`
}

// MarshalJSON uses the profile shape with the cooldown in milliseconds.
func (s Settings) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSettings{
		Enabled:              s.Enabled,
		SoundEnabled:         s.SoundEnabled,
		ShowParticipantName:  s.ShowParticipantName,
		NotificationCooldown: s.NotificationCooldown.Milliseconds(),
	})
}

// UnmarshalJSON accepts partial documents; absent keys keep the values s
// already holds.
func (s *Settings) UnmarshalJSON(data []byte) error {
	w := wireSettings{
		Enabled:              s.Enabled,
		SoundEnabled:         s.SoundEnabled,
		ShowParticipantName:  s.ShowParticipantName,
		NotificationCooldown: s.NotificationCooldown.Milliseconds(),
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Enabled = w.Enabled
	s.SoundEnabled = w.SoundEnabled
	s.ShowParticipantName = w.ShowParticipantName
	s.NotificationCooldown = time.Duration(w.NotificationCooldown) * time.Millisecond
	return nil
}
