package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/huddlenotify/huddlenotify/internal/models"
)

// busyTimeoutMS bounds how long a writer waits for the lock. The daemon
// and CLI commands open the same file concurrently.
const busyTimeoutMS = 5000

type DB struct {
	*gorm.DB
}

// Connect opens the sqlite history at path, creating its directory.
func Connect(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL", path, busyTimeoutMS)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}

	return &DB{db}, nil
}

// Initialize creates or migrates the settings, voice event and error tables.
func (db *DB) Initialize() error {
	if err := db.AutoMigrate(&models.Setting{}, &models.VoiceEvent{}, &models.ErrorLog{}); err != nil {
		return errors.Wrap(err, "failed to migrate schema")
	}
	return nil
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return sqlDB.Close()
}
