package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established")
	return db, nil
}

// AutoMigrate runs database migrations
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	return db.AutoMigrate(
		&RawRecord{},
		&CanonicalIncident{},
		&IncidentMerge{},
		&DedupRun{},
		&DedupSettings{},
		&SlackSettings{},
		&ReportSourceInstance{},
	)
}

// InitializeDefaults creates default settings rows if they don't exist
func InitializeDefaults(db *gorm.DB) error {
	if _, err := GetOrCreateDedupSettings(db); err != nil {
		return fmt.Errorf("failed to initialize dedup settings: %w", err)
	}
	if _, err := GetSlackSettings(db); err != nil {
		return fmt.Errorf("failed to initialize slack settings: %w", err)
	}
	return nil
}
