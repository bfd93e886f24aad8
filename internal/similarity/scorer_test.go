package similarity

import (
	"math"
	"testing"
	"time"

	"github.com/seawatch/seawatch/internal/database"
)

func testRecord(source string, occurredAt time.Time, lat, lon float64) *database.RawRecord {
	return &database.RawRecord{
		Source:     source,
		OccurredAt: &occurredAt,
		Latitude:   &lat,
		Longitude:  &lon,
	}
}

func TestScoreHardFailures(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	scorer := NewBatchScorer(72, 100)

	t.Run("missing event date", func(t *testing.T) {
		r1 := testRecord("ukmto", base, 1.25, 103.8)
		r2 := &database.RawRecord{Source: "recaap", Latitude: r1.Latitude, Longitude: r1.Longitude}
		score := scorer.Score(r1, r2)
		if score.Total != 0 || score.Reason != "missing event date" {
			t.Errorf("score = %+v, want zero total with missing-date reason", score)
		}
	})

	t.Run("null island coordinates", func(t *testing.T) {
		r1 := testRecord("ukmto", base, 1.25, 103.8)
		r2 := testRecord("recaap", base, 0, 0)
		score := scorer.Score(r1, r2)
		if score.Total != 0 || score.Reason != "missing or invalid coordinates" {
			t.Errorf("score = %+v, want zero total with invalid-coordinates reason", score)
		}
	})

	t.Run("outside time window", func(t *testing.T) {
		r1 := testRecord("ukmto", base, 1.25, 103.8)
		r2 := testRecord("recaap", base.Add(100*time.Hour), 1.25, 103.8)
		score := scorer.Score(r1, r2)
		if score.Total != 0 || score.Reason != "outside time window" {
			t.Errorf("score = %+v, want zero total with time-window reason", score)
		}
	})

	t.Run("outside distance window", func(t *testing.T) {
		r1 := testRecord("ukmto", base, 1.25, 103.8)
		r2 := testRecord("recaap", base.Add(time.Hour), 3.0, 103.8) // ~195 km north
		score := scorer.Score(r1, r2)
		if score.Total != 0 || score.Reason != "outside distance window" {
			t.Errorf("score = %+v, want zero total with distance-window reason", score)
		}
	})
}

func TestScoreComposite(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	scorer := NewBatchScorer(72, 100)

	// Same position, half the time window apart, matching vessel name
	// variants, identical incident type.
	r1 := testRecord("ukmto", base, 1.25, 103.8)
	r1.VesselName = "MV DELTA"
	r1.IncidentTypeName = "Robbery"
	r2 := testRecord("recaap", base.Add(36*time.Hour), 1.25, 103.8)
	r2.VesselName = "DELTA"
	r2.IncidentTypeName = "Robbery"

	score := scorer.Score(r1, r2)
	if score.Reason != "" {
		t.Fatalf("unexpected hard failure: %s", score.Reason)
	}
	if math.Abs(score.Time-0.5) > 1e-9 {
		t.Errorf("time component = %v, want 0.5", score.Time)
	}
	if math.Abs(score.Spatial-1) > 1e-9 {
		t.Errorf("spatial component = %v, want 1", score.Spatial)
	}
	if score.Vessel != 1 {
		t.Errorf("vessel component = %v, want 1", score.Vessel)
	}
	if score.IncidentType != 1 {
		t.Errorf("type component = %v, want 1", score.IncidentType)
	}

	// 0.4*0.5 + 0.4*1 + 0.15*1 + 0.05*1
	want := 0.8
	if math.Abs(score.Total-want) > 1e-9 {
		t.Errorf("total = %v, want %v", score.Total, want)
	}
}

func TestScoreVesselComponent(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	scorer := NewBatchScorer(72, 100)

	t.Run("imo match beats name mismatch", func(t *testing.T) {
		r1 := testRecord("ukmto", base, 1.25, 103.8)
		r1.VesselIMO = "9395044"
		r1.VesselName = "OCEAN STAR"
		r2 := testRecord("recaap", base, 1.25, 103.8)
		r2.VesselIMO = "9395044"
		r2.VesselName = "COMPLETELY DIFFERENT"

		if score := scorer.Score(r1, r2); score.Vessel != 1 {
			t.Errorf("vessel component = %v, want 1 on IMO match", score.Vessel)
		}
	})

	t.Run("no vessel identity is neutral", func(t *testing.T) {
		r1 := testRecord("ukmto", base, 1.25, 103.8)
		r2 := testRecord("recaap", base, 1.25, 103.8)

		if score := scorer.Score(r1, r2); score.Vessel != neutralVesselScore {
			t.Errorf("vessel component = %v, want neutral %v", score.Vessel, neutralVesselScore)
		}
	})

	t.Run("one-sided vessel name is a penalty", func(t *testing.T) {
		r1 := testRecord("ukmto", base, 1.25, 103.8)
		r1.VesselName = "OCEAN STAR"
		r2 := testRecord("recaap", base, 1.25, 103.8)

		if score := scorer.Score(r1, r2); score.Vessel != 0 {
			t.Errorf("vessel component = %v, want 0 when one side is unnamed", score.Vessel)
		}
	})
}

func TestCandidateWeightsDifferFromBatch(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	r1 := testRecord("ukmto", base, 1.25, 103.8)
	r1.VesselName = "DELTA"
	r2 := testRecord("recaap", base, 1.25, 103.8)
	r2.VesselName = "DELTA"
	r2.IncidentTypeName = "Robbery"
	r1.IncidentTypeName = "Robbery"

	batch := NewScorer(BatchWeights, 72, 100, nil).Score(r1, r2)
	candidate := NewScorer(CandidateWeights, 72, 100, nil).Score(r1, r2)

	// Perfect components make both totals 1 regardless of weights; perturb
	// the vessel component to observe the weight difference.
	r2.VesselName = "DELTA ONE"
	batch = NewScorer(BatchWeights, 72, 100, nil).Score(r1, r2)
	candidate = NewScorer(CandidateWeights, 72, 100, nil).Score(r1, r2)

	if batch.Vessel != candidate.Vessel {
		t.Fatalf("vessel components differ: %v vs %v", batch.Vessel, candidate.Vessel)
	}
	if batch.Total == candidate.Total {
		t.Errorf("batch and candidate totals should differ with imperfect vessel score, both %v", batch.Total)
	}
}

func TestWeightsSumToOne(t *testing.T) {
	for name, w := range map[string]Weights{"batch": BatchWeights, "candidate": CandidateWeights} {
		sum := w.Time + w.Spatial + w.Vessel + w.IncidentType
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("%s weights sum to %v, want 1", name, sum)
		}
	}
}
