package database

import (
	"time"

	"github.com/huddlenotify/huddlenotify/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles all database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateVoiceEvent inserts a handled voice-start notification
func (r *Repository) CreateVoiceEvent(event *models.VoiceEvent) error {
	result := r.db.Create(event)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert voice event")
	}
	return nil
}

// GetVoiceEventsSince retrieves all voice events since a given time
func (r *Repository) GetVoiceEventsSince(since time.Time) ([]*models.VoiceEvent, error) {
	var events []*models.VoiceEvent
	result := r.db.Where("timestamp >= ?", since).Order("timestamp ASC").Find(&events)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query voice events")
	}

	return events, nil
}

// GetLatestVoiceEvent retrieves the most recent voice event
func (r *Repository) GetLatestVoiceEvent() (*models.VoiceEvent, error) {
	var event models.VoiceEvent
	result := r.db.Order("timestamp DESC").First(&event)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest event")
	}
	return &event, nil
}

// GetLatestForParticipant retrieves the most recent delivered event of one
// participant since a given time
func (r *Repository) GetLatestForParticipant(name string, since time.Time) (*models.VoiceEvent, error) {
	var event models.VoiceEvent
	result := r.db.Where("participant_name = ? AND timestamp >= ? AND delivered = ?", name, since, true).
		Order("timestamp DESC").
		First(&event)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest participant event")
	}
	return &event, nil
}

// GetSpeakerSummarySince returns delivered notification counts per participant
// Uses SQL COUNT for efficiency - runtime fills in the derived fields
func (r *Repository) GetSpeakerSummarySince(since time.Time) ([]models.SpeakerSummary, error) {
	var summaries []models.SpeakerSummary

	result := r.db.Model(&models.VoiceEvent{}).
		Select("participant_name, COUNT(*) as event_count").
		Where("timestamp >= ? AND delivered = ?", since, true).
		Group("participant_name").
		Order("event_count DESC, participant_name ASC").
		Scan(&summaries)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query speaker summary")
	}

	return summaries, nil
}

// CountFailedSince counts events whose notification could not be shown
func (r *Repository) CountFailedSince(since time.Time) (int64, error) {
	var count int64
	result := r.db.Model(&models.VoiceEvent{}).
		Where("timestamp >= ? AND delivered = ?", since, false).
		Count(&count)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to count failed events")
	}
	return count, nil
}

// DeleteOldEvents deletes events older than a specified date (soft delete)
func (r *Repository) DeleteOldEvents(before time.Time) (int64, error) {
	result := r.db.Where("timestamp < ?", before).Delete(&models.VoiceEvent{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old events")
	}
	return result.RowsAffected, nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	result := r.db.Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// GetRecentErrorLogs returns the newest error logs first
func (r *Repository) GetRecentErrorLogs(limit int) ([]*models.ErrorLog, error) {
	var logs []*models.ErrorLog
	result := r.db.Order("timestamp DESC").Limit(limit).Find(&logs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query error logs")
	}
	return logs, nil
}

// GetSettings returns the stored settings profile as key/value pairs
func (r *Repository) GetSettings() (map[string]string, error) {
	var rows []models.Setting
	result := r.db.Find(&rows)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to load settings")
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

// SaveSettings upserts every given key in one transaction
func (r *Repository) SaveSettings(values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	rows := make([]models.Setting, 0, len(values))
	for k, v := range values {
		rows = append(rows, models.Setting{Key: k, Value: v})
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return errors.Wrap(err, "failed to save settings")
	}
	return nil
}

// Clear removes all voice events from the database
func (r *Repository) Clear() error {
	if result := r.db.Exec("DELETE FROM voice_events"); result.Error != nil {
		return errors.Wrap(result.Error, "failed to clear voice events")
	}
	if result := r.db.Exec("DELETE FROM error_logs"); result.Error != nil {
		return errors.Wrap(result.Error, "failed to clear error logs")
	}
	return nil
}
