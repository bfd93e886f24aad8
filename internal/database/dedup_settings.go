package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// DedupSettings controls deduplication behavior
type DedupSettings struct {
	ID                      uint    `gorm:"primaryKey" json:"id"`
	Enabled                 bool    `gorm:"default:true" json:"enabled"`
	MatchThreshold          float64 `gorm:"type:decimal(3,2);default:0.70" json:"match_threshold"`
	HighConfidenceThreshold float64 `gorm:"type:decimal(3,2);default:0.80" json:"high_confidence_threshold"` // Reporting label only, not a separate code path
	MaxTimeWindowHours      float64 `gorm:"default:72" json:"max_time_window_hours"`
	MaxDistanceKm           float64 `gorm:"default:100" json:"max_distance_km"`
	CandidateWindowHours    float64 `gorm:"default:48" json:"candidate_window_hours"`
	CandidateRadiusKm       float64 `gorm:"default:50" json:"candidate_radius_km"`
	LookbackDays            int     `gorm:"default:30" json:"lookback_days"`
	MaxRecordsPerRun        int     `gorm:"default:500" json:"max_records_per_run"`
	RunIntervalMinutes      int     `gorm:"default:60" json:"run_interval_minutes"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

func (DedupSettings) TableName() string {
	return "dedup_settings"
}

// NewDefaultDedupSettings returns settings with default values
func NewDefaultDedupSettings() *DedupSettings {
	return &DedupSettings{
		Enabled:                 true,
		MatchThreshold:          0.70,
		HighConfidenceThreshold: 0.80,
		MaxTimeWindowHours:      72,
		MaxDistanceKm:           100,
		CandidateWindowHours:    48,
		CandidateRadiusKm:       50,
		LookbackDays:            30,
		MaxRecordsPerRun:        500,
		RunIntervalMinutes:      60,
	}
}

// GetOrCreateDedupSettings returns the settings row, creating defaults if not exists
func GetOrCreateDedupSettings(db *gorm.DB) (*DedupSettings, error) {
	var settings DedupSettings
	err := db.First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = *NewDefaultDedupSettings()
		if err := db.Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateDedupSettings persists changed settings
func UpdateDedupSettings(db *gorm.DB, settings *DedupSettings) error {
	return db.Save(settings).Error
}
