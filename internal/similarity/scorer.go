package similarity

import (
	"github.com/seawatch/seawatch/internal/database"
	"github.com/seawatch/seawatch/internal/geo"
)

// Score is the composite similarity result for a candidate pair. All
// components are returned, never just the total, so callers can log and
// debug matching decisions. Reason is set when the total is forced to 0.
type Score struct {
	Total        float64 `json:"total"`
	Time         float64 `json:"time"`
	Spatial      float64 `json:"spatial"`
	Vessel       float64 `json:"vessel"`
	IncidentType float64 `json:"incident_type"`
	Reason       string  `json:"reason,omitempty"`
}

// Weights are the fixed convex-combination weights of the composite score.
// They must sum to 1 so the total stays in [0,1].
type Weights struct {
	Time         float64
	Spatial      float64
	Vessel       float64
	IncidentType float64
}

// BatchWeights are the weights used by the pairwise batch pipeline
var BatchWeights = Weights{Time: 0.4, Spatial: 0.4, Vessel: 0.15, IncidentType: 0.05}

// CandidateWeights are the weights used by ingest-time candidate matching
var CandidateWeights = Weights{Time: 0.4, Spatial: 0.4, Vessel: 0.1, IncidentType: 0.1}

// neutralVesselScore rewards pairs where neither source reported a vessel:
// absence of contradicting identity, rather than a raw 0 penalty.
const neutralVesselScore = 0.7

// Scorer computes composite similarity scores for record pairs
type Scorer struct {
	weights      Weights
	maxTimeHours float64
	maxDistKm    float64
	groupIndex   map[string]int
}

// NewScorer creates a scorer with the given weights and proximity windows.
// synonymGroups may be nil to use the default curated groups.
func NewScorer(weights Weights, maxTimeHours, maxDistKm float64, synonymGroups [][]string) *Scorer {
	groupIndex := defaultGroupIndex
	if synonymGroups != nil {
		groupIndex = buildGroupIndex(synonymGroups)
	}
	return &Scorer{
		weights:      weights,
		maxTimeHours: maxTimeHours,
		maxDistKm:    maxDistKm,
		groupIndex:   groupIndex,
	}
}

// NewBatchScorer creates a scorer with the batch pipeline defaults
func NewBatchScorer(maxTimeHours, maxDistKm float64) *Scorer {
	return NewScorer(BatchWeights, maxTimeHours, maxDistKm, nil)
}

// MaxTimeHours returns the scorer's time window
func (s *Scorer) MaxTimeHours() float64 { return s.maxTimeHours }

// MaxDistanceKm returns the scorer's distance window
func (s *Scorer) MaxDistanceKm() float64 { return s.maxDistKm }

// Score computes the composite similarity of two records. Input-quality
// problems (missing date, missing/invalid coordinates, out-of-window time or
// distance) short-circuit to a zero score with a machine-readable reason;
// vessel and type components are not computed in that case.
func (s *Scorer) Score(r1, r2 *database.RawRecord) Score {
	if !r1.HasOccurredAt() || !r2.HasOccurredAt() {
		return Score{Reason: "missing event date"}
	}
	if !r1.HasValidCoordinates() || !r2.HasValidCoordinates() {
		return Score{Reason: "missing or invalid coordinates"}
	}

	timeScore := geo.TimeProximity(r1.OccurredAt, r2.OccurredAt, s.maxTimeHours)
	if timeScore == 0 {
		return Score{Reason: "outside time window"}
	}

	spatialScore := geo.SpatialProximity(*r1.Latitude, *r1.Longitude, *r2.Latitude, *r2.Longitude, s.maxDistKm)
	if spatialScore == 0 {
		return Score{Reason: "outside distance window"}
	}

	vesselScore := s.vesselScore(r1, r2)
	typeScore := IncidentTypeSimilarityWith(r1.IncidentTypeName, r2.IncidentTypeName, s.groupIndex)

	total := s.weights.Time*timeScore +
		s.weights.Spatial*spatialScore +
		s.weights.Vessel*vesselScore +
		s.weights.IncidentType*typeScore

	return Score{
		Total:        total,
		Time:         timeScore,
		Spatial:      spatialScore,
		Vessel:       vesselScore,
		IncidentType: typeScore,
	}
}

// vesselScore is the max of IMO exact match and name similarity, with a
// neutral default when neither record carries any vessel identity
func (s *Scorer) vesselScore(r1, r2 *database.RawRecord) float64 {
	if IMOSimilarity(r1.VesselIMO, r2.VesselIMO) == 1 {
		return 1
	}
	if r1.VesselName == "" && r2.VesselName == "" {
		return neutralVesselScore
	}
	return VesselNameSimilarity(r1.VesselName, r2.VesselName)
}
