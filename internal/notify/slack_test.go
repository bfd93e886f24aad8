package notify

import (
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seawatch/seawatch/internal/database"
	"github.com/seawatch/seawatch/internal/jobs"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestNotifyRunSummaryDisabledIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	notifier := NewSlackNotifier(db)

	// Settings default to disabled; the notifier must return without
	// attempting any network call.
	summary := &jobs.RunSummary{StartedAt: time.Now(), FinishedAt: time.Now()}
	notifier.NotifyRunSummary(summary)
}

func TestFormatRunSummary(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	summary := &jobs.RunSummary{
		RecordsAnalyzed:         120,
		PotentialMatchesChecked: 45,
		HighConfidenceMatches:   3,
		MediumConfidenceMatches: 2,
		MergesAttempted:         5,
		MergesSucceeded:         4,
		StartedAt:               start,
		FinishedAt:              start.Add(90 * time.Second),
	}

	msg := formatRunSummary(summary)
	for _, want := range []string{
		"Deduplication run complete",
		"1m 30s",
		"Records analyzed: 120",
		"Pairs checked: 45",
		"4 succeeded / 5 attempted",
		":white_check_mark:",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Merge errors") {
		t.Error("error line present without errors")
	}

	summary.MergeErrors = 1
	msg = formatRunSummary(summary)
	if !strings.Contains(msg, ":warning:") || !strings.Contains(msg, "Merge errors: 1") {
		t.Errorf("error summary not flagged:\n%s", msg)
	}
}
