package notifier

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/huddlenotify/huddlenotify/internal/dispatch"
)

const (
	TypeVoiceActivity   = "voice_activity_detected"
	TypeSettingsUpdated = "settings_updated"
)

var ErrUnknownMessage = errors.New("unknown message type")

// Message is the envelope passed from detection to the gateway.
type Message struct {
	Type string        `json:"type"`
	Data VoiceActivity `json:"data"`
}

// VoiceActivity carries one voice-start event. Timestamp is epoch milliseconds.
type VoiceActivity struct {
	ParticipantName string `json:"participantName"`
	Timestamp       int64  `json:"timestamp"`
	SoundEnabled    bool   `json:"soundEnabled"`
	TabActive       bool   `json:"tabActive"`
}

func (v VoiceActivity) Time() time.Time {
	return time.UnixMilli(v.Timestamp)
}

// FromVoiceStart wraps a dispatcher event.
func FromVoiceStart(ev dispatch.VoiceStartEvent) Message {
	return Message{
		Type: TypeVoiceActivity,
		Data: VoiceActivity{
			ParticipantName: ev.ParticipantName,
			Timestamp:       ev.Timestamp.UnixMilli(),
			SoundEnabled:    ev.SoundEnabled,
			TabActive:       ev.TabActive,
		},
	}
}

func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	if msg.Type != TypeVoiceActivity {
		return Message{}, ErrUnknownMessage
	}
	return msg, nil
}
