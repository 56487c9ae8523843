package datastore

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jvaltonen/facewatch-go/internal/conf"
)

// Interface is the attendance history store. A nil Interface means no
// database output is enabled and history queries fall back to the ledger.
type Interface interface {
	Open() error
	Save(record *MarkRecord) error
	GetByDate(date string) ([]MarkRecord, error)
	GetRecent(limit int) ([]MarkRecord, error)
	CountByDate(date string) (int64, error)
	Close() error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a store for whichever database output is enabled, or nil when
// none is.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// Save inserts one attendance mark.
func (ds *DataStore) Save(record *MarkRecord) error {
	if ds.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	if err := ds.DB.Create(record).Error; err != nil {
		return fmt.Errorf("saving attendance record: %w", err)
	}
	return nil
}

// GetByDate returns all marks for a date in the order they were made.
func (ds *DataStore) GetByDate(date string) ([]MarkRecord, error) {
	var records []MarkRecord
	err := ds.DB.Where("date = ?", date).Order("time ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("getting records for date %s: %w", date, err)
	}
	return records, nil
}

// GetRecent returns the most recent marks across all dates, newest first.
func (ds *DataStore) GetRecent(limit int) ([]MarkRecord, error) {
	var records []MarkRecord
	err := ds.DB.Order("date DESC, time DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("getting recent records: %w", err)
	}
	return records, nil
}

// CountByDate returns the number of marks made on a date.
func (ds *DataStore) CountByDate(date string) (int64, error) {
	var count int64
	err := ds.DB.Model(&MarkRecord{}).Where("date = ?", date).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting records for date %s: %w", date, err)
	}
	return count, nil
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&MarkRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
