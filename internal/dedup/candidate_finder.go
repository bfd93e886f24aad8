package dedup

import (
	"fmt"
	"log"
	"time"

	"github.com/seawatch/seawatch/internal/database"
	"github.com/seawatch/seawatch/internal/geo"
	"github.com/seawatch/seawatch/internal/similarity"
)

// MatchResult is the terminal outcome of a candidate search. "No match
// found" is a normal result, never an error; only infrastructure failures
// (store unreachable) surface as errors.
type MatchResult struct {
	Matched             bool             `json:"matched"`
	RecordID            uint             `json:"record_id,omitempty"`
	CanonicalIncidentID *uint            `json:"canonical_incident_id,omitempty"`
	Confidence          float64          `json:"confidence,omitempty"`
	Score               similarity.Score `json:"score"`
	OverrideRule        string           `json:"override_rule,omitempty"`
	Reason              string           `json:"reason,omitempty"`
}

// CandidateFinder matches a single newly-ingested record against existing
// records inside a spatio-temporal window. It is the ingest-time variant of
// the batch pairwise comparison.
type CandidateFinder struct {
	store       *database.RecordStore
	scorer      *similarity.Scorer
	rules       []OverrideRule
	cache       *RefCache
	threshold   float64
	windowHours float64
	radiusKm    float64
}

// NewCandidateFinder creates a finder configured from dedup settings and
// tuning. The reference cache lives for the finder's lifetime and is only a
// speed optimization.
func NewCandidateFinder(store *database.RecordStore, settings *database.DedupSettings, tuning *Tuning) *CandidateFinder {
	if tuning == nil {
		tuning = DefaultTuning()
	}
	return &CandidateFinder{
		store:       store,
		scorer:      similarity.NewScorer(similarity.CandidateWeights, settings.CandidateWindowHours, settings.CandidateRadiusKm, tuning.SynonymGroups),
		rules:       tuning.OverrideRules(),
		cache:       NewRefCache(),
		threshold:   settings.MatchThreshold,
		windowHours: settings.CandidateWindowHours,
		radiusKm:    settings.CandidateRadiusKm,
	}
}

// ClearCache discards the reference cache. Outcomes are unaffected; cached
// hits are always re-scored.
func (f *CandidateFinder) ClearCache() {
	f.cache.Clear()
}

// FindMatch searches for an existing record describing the same event.
// Records without a parseable date or valid coordinates are rejected
// immediately as NoMatch.
func (f *CandidateFinder) FindMatch(record *database.RawRecord) (*MatchResult, error) {
	if !record.HasOccurredAt() {
		return &MatchResult{Matched: false, Reason: "missing event date"}, nil
	}
	if !record.HasValidCoordinates() {
		return &MatchResult{Matched: false, Reason: "missing or invalid coordinates"}, nil
	}

	window := database.TimeWindow{
		From: record.OccurredAt.Add(-time.Duration(f.windowHours * float64(time.Hour))),
		To:   record.OccurredAt.Add(time.Duration(f.windowHours * float64(time.Hour))),
	}
	minLat, maxLat, minLon, maxLon := geo.BoundingBox(*record.Latitude, *record.Longitude, f.radiusKm)
	box := database.BoundingBox{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon}

	candidates, err := f.store.QueryCandidates(window, box)
	if err != nil {
		return nil, fmt.Errorf("candidate query failed: %w", err)
	}
	candidates = f.appendCachedCandidates(record, candidates)

	var best *database.RawRecord
	var bestScore similarity.Score
	var bestRule string

	for i := range candidates {
		candidate := &candidates[i]
		if candidate.ID == record.ID {
			continue
		}
		if candidate.Source == record.Source && candidate.ReferenceID == record.ReferenceID {
			continue
		}
		if candidate.MergeStatus == database.MergeStatusMergedInto {
			// The store excludes these; seeing one means the query or the
			// data is inconsistent. Flag it, don't repair.
			log.Printf("CandidateFinder: data-integrity warning: candidate %d has merge_status=merged_into", candidate.ID)
			continue
		}

		score := f.scorer.Score(record, candidate)
		if score.Reason != "" {
			continue
		}

		override := EvaluateOverrides(f.rules, record, candidate, score)
		if override.Decision == ForcedNonMatch {
			log.Printf("CandidateFinder: rule %s vetoed candidate %d: %s", override.Rule, candidate.ID, override.Reason)
			continue
		}
		eligible := score.Total >= f.threshold || override.Decision == ForcedMatch
		if !eligible {
			continue
		}

		// Highest total wins; equal totals resolve to the lowest candidate
		// id for determinism.
		if best == nil || score.Total > bestScore.Total ||
			(score.Total == bestScore.Total && candidate.ID < best.ID) {
			bestCopy := *candidate
			best = &bestCopy
			bestScore = score
			bestRule = override.Rule
		}
	}

	if best == nil {
		return &MatchResult{Matched: false, Score: bestScore, Reason: "no candidate above threshold"}, nil
	}

	f.rememberMatch(record, best)

	return &MatchResult{
		Matched:             true,
		RecordID:            best.ID,
		CanonicalIncidentID: best.CanonicalIncidentID,
		Confidence:          bestScore.Total,
		Score:               bestScore,
		OverrideRule:        bestRule,
	}, nil
}

// appendCachedCandidates adds records previously resolved for the same
// vessel identity in this finder's lifetime. Cached hits outside the window
// are harmless: scoring hard-fails them.
func (f *CandidateFinder) appendCachedCandidates(record *database.RawRecord, candidates []database.RawRecord) []database.RawRecord {
	present := make(map[uint]bool, len(candidates))
	for _, c := range candidates {
		present[c.ID] = true
	}

	for _, key := range f.cacheKeys(record) {
		id, ok := f.cache.Get(key)
		if !ok || present[id] {
			continue
		}
		cached, err := f.store.GetRecordByID(id)
		if err != nil {
			continue
		}
		if cached.MergeStatus == database.MergeStatusMergedInto {
			continue
		}
		candidates = append(candidates, *cached)
		present[id] = true
	}
	return candidates
}

func (f *CandidateFinder) rememberMatch(record, matched *database.RawRecord) {
	for _, key := range f.cacheKeys(record) {
		f.cache.Put(key, matched.ID)
	}
	for _, key := range f.cacheKeys(matched) {
		f.cache.Put(key, matched.ID)
	}
}

func (f *CandidateFinder) cacheKeys(record *database.RawRecord) []RefKey {
	var keys []RefKey
	if record.VesselIMO != "" {
		keys = append(keys, RefKey{Kind: ByIMO, Value: record.VesselIMO})
	}
	if name := similarity.NormalizeVesselName(record.VesselName); name != "" {
		keys = append(keys, RefKey{Kind: ByName, Value: name})
	}
	return keys
}
