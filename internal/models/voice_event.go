package models

import (
	"time"

	"gorm.io/gorm"
)

// VoiceEvent is one voice-start notification handled by the gateway.
type VoiceEvent struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	EventID         string         `gorm:"not null;uniqueIndex" json:"event_id"`
	Timestamp       time.Time      `gorm:"not null;index" json:"timestamp"`
	ParticipantName string         `gorm:"not null;index" json:"participant_name"`
	SoundEnabled    bool           `gorm:"not null;default:false" json:"sound_enabled"`
	TabActive       bool           `gorm:"not null;default:false" json:"tab_active"`
	Delivered       bool           `gorm:"not null;default:false" json:"delivered"`
	NotificationID  uint32         `gorm:"not null;default:0" json:"notification_id"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

type SpeakerSummary struct {
	ParticipantName string    `json:"participant_name"`
	EventCount      int64     `json:"event_count"`
	LastSpokeAt     time.Time `json:"last_spoke_at"`
	Percentage      float64   `json:"percentage,omitempty"`
}

type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  string    `json:"type"` // "day", "week", "month"
}

type Report struct {
	Period      ReportPeriod     `json:"period"`
	Speakers    []SpeakerSummary `json:"speakers"`
	TotalEvents int64            `json:"total_events"`
	Failed      int64            `json:"failed"`
	GeneratedAt time.Time        `json:"generated_at"`
}
