package dedup

import (
	"testing"
	"time"

	"github.com/seawatch/seawatch/internal/database"
)

func newTestFinder(t *testing.T, store *database.RecordStore) *CandidateFinder {
	t.Helper()
	return NewCandidateFinder(store, database.NewDefaultDedupSettings(), DefaultTuning())
}

func TestFindMatchRejectsIncompleteRecords(t *testing.T) {
	store := setupTestStore(t)
	finder := newTestFinder(t, store)
	lat, lon := 1.25, 103.8
	occurred := time.Now()

	t.Run("missing date", func(t *testing.T) {
		record := &database.RawRecord{Source: "recaap", Latitude: &lat, Longitude: &lon}
		result, err := finder.FindMatch(record)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Matched || result.Reason != "missing event date" {
			t.Errorf("result = %+v, want unmatched with missing-date reason", result)
		}
	})

	t.Run("sentinel coordinates", func(t *testing.T) {
		zero := 0.0
		record := &database.RawRecord{Source: "recaap", OccurredAt: &occurred, Latitude: &zero, Longitude: &zero}
		result, err := finder.FindMatch(record)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Matched || result.Reason != "missing or invalid coordinates" {
			t.Errorf("result = %+v, want unmatched with coordinates reason", result)
		}
	})
}

func TestFindMatchFindsNearbyRecord(t *testing.T) {
	store := setupTestStore(t)
	finder := newTestFinder(t, store)

	occurred := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	lat, lon := 1.25, 103.8
	existing := seedTestRecord(t, store, &database.RawRecord{
		Source: "ukmto", ReferenceID: "2025-101",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
		VesselName: "MV DELTA", IncidentTypeName: "Robbery",
	})

	// Same event six hours later and ~7 km away, reported by another feed.
	later := occurred.Add(6 * time.Hour)
	lat2, lon2 := 1.30, 103.84
	incoming := &database.RawRecord{
		ID: 999, Source: "recaap", ReferenceID: "SS-88",
		OccurredAt: &later, Latitude: &lat2, Longitude: &lon2,
		VesselName: "DELTA", IncidentTypeName: "Theft",
	}

	result, err := finder.FindMatch(incoming)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if !result.Matched {
		t.Fatalf("result = %+v, want a match", result)
	}
	if result.RecordID != existing.ID {
		t.Errorf("matched record = %d, want %d", result.RecordID, existing.ID)
	}
	if result.Confidence < 0.70 {
		t.Errorf("confidence = %v, want >= 0.70", result.Confidence)
	}
}

func TestFindMatchNoCandidateAboveThreshold(t *testing.T) {
	store := setupTestStore(t)
	finder := newTestFinder(t, store)

	occurred := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	lat, lon := 1.25, 103.8
	// A candidate at the edge of the window with a different vessel and type.
	edgeTime := occurred.Add(40 * time.Hour)
	edgeLat := 1.60 // ~39 km north
	seedTestRecord(t, store, &database.RawRecord{
		Source: "ukmto", ReferenceID: "2025-101",
		OccurredAt: &edgeTime, Latitude: &edgeLat, Longitude: &lon,
		VesselName: "ZEPHYR", IncidentTypeName: "Advisory",
	})

	incoming := &database.RawRecord{
		Source: "recaap", ReferenceID: "SS-88",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
		VesselName: "OCEAN STAR", IncidentTypeName: "Robbery",
	}

	result, err := finder.FindMatch(incoming)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if result.Matched {
		t.Errorf("result = %+v, want no match", result)
	}
	if result.Reason != "no candidate above threshold" {
		t.Errorf("reason = %q, want no-candidate reason", result.Reason)
	}
}

func TestFindMatchSkipsSameSourceReference(t *testing.T) {
	store := setupTestStore(t)
	finder := newTestFinder(t, store)

	occurred := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	lat, lon := 1.25, 103.8
	seedTestRecord(t, store, &database.RawRecord{
		Source: "recaap", ReferenceID: "SS-88",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
	})

	// A re-delivery of the same source report must not match its stored twin.
	incoming := &database.RawRecord{
		Source: "recaap", ReferenceID: "SS-88",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
	}

	result, err := finder.FindMatch(incoming)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if result.Matched {
		t.Errorf("result = %+v, re-delivered report matched itself", result)
	}
}

func TestFindMatchIgnoresMergedAwayRecords(t *testing.T) {
	store := setupTestStore(t)
	finder := newTestFinder(t, store)

	occurred := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	lat, lon := 1.25, 103.8
	primary := seedTestRecord(t, store, &database.RawRecord{
		Source: "ukmto", ReferenceID: "a", Title: "Full report",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
		VesselName: "DELTA", IncidentTypeName: "Robbery",
	})
	absorbed := seedTestRecord(t, store, &database.RawRecord{
		Source: "mschoa", ReferenceID: "b",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
		VesselName: "DELTA", IncidentTypeName: "Robbery",
	})
	if err := store.UpdateMergeState(absorbed.ID, database.MergeStatusMergedInto, &primary.ID, database.MergeStatusNone); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	incoming := &database.RawRecord{
		Source: "recaap", ReferenceID: "c",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
		VesselName: "DELTA", IncidentTypeName: "Theft",
	}

	result, err := finder.FindMatch(incoming)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if !result.Matched || result.RecordID != primary.ID {
		t.Errorf("result = %+v, want match against the surviving primary %d", result, primary.ID)
	}
}

func TestFindMatchDeterministicTiebreak(t *testing.T) {
	store := setupTestStore(t)
	finder := newTestFinder(t, store)

	occurred := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	lat, lon := 1.25, 103.8

	// Two byte-equal candidates from different feeds; the lower ID must win.
	first := seedTestRecord(t, store, &database.RawRecord{
		Source: "ukmto", ReferenceID: "a",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
		VesselName: "DELTA", IncidentTypeName: "Robbery",
	})
	seedTestRecord(t, store, &database.RawRecord{
		Source: "mschoa", ReferenceID: "b",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
		VesselName: "DELTA", IncidentTypeName: "Robbery",
	})

	incoming := &database.RawRecord{
		Source: "recaap", ReferenceID: "c",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
		VesselName: "DELTA", IncidentTypeName: "Robbery",
	}

	for i := 0; i < 3; i++ {
		result, err := finder.FindMatch(incoming)
		if err != nil {
			t.Fatalf("find failed: %v", err)
		}
		if !result.Matched || result.RecordID != first.ID {
			t.Errorf("attempt %d matched record %d, want lowest id %d", i, result.RecordID, first.ID)
		}
	}
}

func TestFindMatchCacheIsCorrectnessNeutral(t *testing.T) {
	store := setupTestStore(t)
	finder := newTestFinder(t, store)

	occurred := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	lat, lon := 1.25, 103.8
	existing := seedTestRecord(t, store, &database.RawRecord{
		Source: "ukmto", ReferenceID: "a",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
		VesselName: "MV DELTA", IncidentTypeName: "Robbery",
	})

	incoming := &database.RawRecord{
		Source: "recaap", ReferenceID: "b",
		OccurredAt: &occurred, Latitude: &lat, Longitude: &lon,
		VesselName: "DELTA", IncidentTypeName: "Robbery",
	}

	warm, err := finder.FindMatch(incoming)
	if err != nil {
		t.Fatalf("first find failed: %v", err)
	}

	finder.ClearCache()
	cold, err := finder.FindMatch(incoming)
	if err != nil {
		t.Fatalf("second find failed: %v", err)
	}

	if warm.Matched != cold.Matched || warm.RecordID != cold.RecordID || warm.Confidence != cold.Confidence {
		t.Errorf("cache changed the outcome: warm %+v vs cold %+v", warm, cold)
	}
	if !cold.Matched || cold.RecordID != existing.ID {
		t.Errorf("cold result = %+v, want match against %d", cold, existing.ID)
	}
}
