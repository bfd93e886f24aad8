package dedup

import (
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seawatch/seawatch/internal/database"
)

func setupTestStore(t *testing.T) *database.RecordStore {
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
	return database.NewRecordStore(db)
}

func seedTestRecord(t *testing.T, store *database.RecordStore, record *database.RawRecord) *database.RawRecord {
	t.Helper()
	if err := store.CreateRecord(record); err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}
	return record
}

func reloadRecord(t *testing.T, store *database.RecordStore, id uint) *database.RawRecord {
	t.Helper()
	record, err := store.GetRecordByID(id)
	if err != nil {
		t.Fatalf("failed to reload record %d: %v", id, err)
	}
	return record
}

func TestExecuteMerge(t *testing.T) {
	store := setupTestStore(t)
	occurred := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	lat, lon := 1.25, 103.8

	rich := seedTestRecord(t, store, &database.RawRecord{
		Source: "ukmto", ReferenceID: "2025-101",
		Title:       "Armed robbery aboard tanker",
		Description: strings.Repeat("Detailed narrative. ", 10),
		OccurredAt:  &occurred, Latitude: &lat, Longitude: &lon,
		VesselName: "OCEAN STAR",
	})
	sparse := seedTestRecord(t, store, &database.RawRecord{
		Source: "recaap", ReferenceID: "SS-88",
		Description: "Robbers boarded via the anchor chain.",
		OccurredAt:  &occurred, Latitude: &lat, Longitude: &lon,
		VesselIMO: "9395044",
	})

	outcome, err := ExecuteMerge(store, rich, sparse, 0.85, "composite score 0.85", "system", DefaultSourcePriorities)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if outcome.Primary.ID != rich.ID {
		t.Errorf("primary = %d, want richer record %d", outcome.Primary.ID, rich.ID)
	}
	if !outcome.StateWritten || !outcome.FieldsWritten {
		t.Errorf("outcome = %+v, want both writes performed", outcome)
	}

	secondary := reloadRecord(t, store, sparse.ID)
	if secondary.MergeStatus != database.MergeStatusMergedInto {
		t.Errorf("secondary merge status = %q, want merged_into", secondary.MergeStatus)
	}
	if secondary.MergedIntoID == nil || *secondary.MergedIntoID != rich.ID {
		t.Errorf("secondary merged_into = %v, want %d", secondary.MergedIntoID, rich.ID)
	}

	primary := reloadRecord(t, store, rich.ID)
	if primary.MergeStatus != database.MergeStatusMerged {
		t.Errorf("primary merge status = %q, want merged", primary.MergeStatus)
	}
	if primary.VesselIMO != "9395044" {
		t.Errorf("vessel IMO = %q, want adopted from secondary", primary.VesselIMO)
	}
	if !strings.Contains(primary.Description, "--- additional info from recaap ---") {
		t.Errorf("secondary narrative not appended: %q", primary.Description)
	}
	if !primary.MergedSourceNames()["recaap"] {
		t.Error("merged sources missing recaap")
	}

	merges, err := store.ListMerges(10)
	if err != nil || len(merges) != 1 {
		t.Fatalf("merges = %v (err %v), want one audit row", merges, err)
	}
	if merges[0].MergedBy != "system" || merges[0].SecondaryRecordID != sparse.ID {
		t.Errorf("audit row = %+v, want secondary %d merged by system", merges[0], sparse.ID)
	}
}

func TestExecuteMergeConflictOnConsumedSecondary(t *testing.T) {
	store := setupTestStore(t)
	occurred := time.Now()
	lat, lon := 1.25, 103.8

	a := seedTestRecord(t, store, &database.RawRecord{
		Source: "ukmto", ReferenceID: "a", Title: "Full report",
		Description: strings.Repeat("x", 150),
		OccurredAt:  &occurred, Latitude: &lat, Longitude: &lon,
	})
	b := seedTestRecord(t, store, &database.RawRecord{
		Source: "recaap", ReferenceID: "b",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
	})

	// Another run already consumed b.
	if err := store.UpdateMergeState(b.ID, database.MergeStatusMergedInto, &a.ID, database.MergeStatusNone); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	// In-memory copies still say "none"; the conditional write must lose.
	outcome, err := ExecuteMerge(store, a, b, 0.8, "test", "system", DefaultSourcePriorities)
	if !errors.Is(err, database.ErrMergeConflict) {
		t.Fatalf("err = %v, want ErrMergeConflict", err)
	}
	if outcome.StateWritten || outcome.FieldsWritten {
		t.Errorf("outcome = %+v, want no writes after a lost race", outcome)
	}
}

func TestExecuteMergeIntegrityGuards(t *testing.T) {
	store := setupTestStore(t)

	a := &database.RawRecord{ID: 1, Source: "ukmto", MergeStatus: database.MergeStatusMergedInto}
	b := &database.RawRecord{ID: 2, Source: "recaap", MergeStatus: database.MergeStatusNone}

	if _, err := ExecuteMerge(store, a, b, 0.8, "test", "system", DefaultSourcePriorities); !errors.Is(err, ErrMergeIntegrity) {
		t.Errorf("err = %v, want ErrMergeIntegrity for merged_into participant", err)
	}

	c := &database.RawRecord{ID: 3, Source: "ukmto", MergeStatus: database.MergeStatusNone}
	if _, err := ExecuteMerge(store, c, c, 0.8, "test", "system", DefaultSourcePriorities); !errors.Is(err, ErrMergeIntegrity) {
		t.Errorf("err = %v, want ErrMergeIntegrity for self-merge", err)
	}
}

func TestExecuteMergeIdempotentForRepeatedSource(t *testing.T) {
	store := setupTestStore(t)
	occurred := time.Now()
	lat, lon := 1.25, 103.8

	primary := seedTestRecord(t, store, &database.RawRecord{
		Source: "ukmto", ReferenceID: "a", Title: "Full report",
		Description:   strings.Repeat("x", 150),
		OccurredAt:    &occurred, Latitude: &lat, Longitude: &lon,
		MergedSources: database.JSONB{"recaap": true},
		MergeStatus:   database.MergeStatusMerged,
	})
	secondary := seedTestRecord(t, store, &database.RawRecord{
		Source: "recaap", ReferenceID: "b2",
		Description: "A second recaap report of the same event.",
		OccurredAt:  &occurred, Latitude: &lat, Longitude: &lon,
	})

	before := reloadRecord(t, store, primary.ID).Description

	outcome, err := ExecuteMerge(store, primary, secondary, 0.8, "test", "system", DefaultSourcePriorities)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if !outcome.StateWritten {
		t.Error("secondary must still be marked merged_into")
	}
	if outcome.FieldsWritten {
		t.Error("no field updates expected when the source was already folded in")
	}

	after := reloadRecord(t, store, primary.ID).Description
	if before != after {
		t.Errorf("primary description changed on a repeated-source merge:\nbefore %q\nafter  %q", before, after)
	}
}

func TestExecuteMergeBumpsCanonicalRecordCount(t *testing.T) {
	store := setupTestStore(t)
	occurred := time.Now()
	lat, lon := 1.25, 103.8

	primary := seedTestRecord(t, store, &database.RawRecord{
		Source: "ukmto", ReferenceID: "a", Title: "Full report",
		Description: strings.Repeat("x", 150),
		OccurredAt:  &occurred, Latitude: &lat, Longitude: &lon,
	})
	incidentID, err := store.EnsureCanonicalIncident(primary)
	if err != nil {
		t.Fatalf("ensure incident failed: %v", err)
	}

	secondary := seedTestRecord(t, store, &database.RawRecord{
		Source: "recaap", ReferenceID: "b",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
	})

	if _, err := ExecuteMerge(store, primary, secondary, 0.8, "test", "system", DefaultSourcePriorities); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	var incident database.CanonicalIncident
	if err := store.DB().First(&incident, incidentID).Error; err != nil {
		t.Fatalf("incident reload failed: %v", err)
	}
	if incident.RecordCount != 2 {
		t.Errorf("record count = %d, want 2", incident.RecordCount)
	}
}
