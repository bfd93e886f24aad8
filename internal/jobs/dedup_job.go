package jobs

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/seawatch/seawatch/internal/database"
	"github.com/seawatch/seawatch/internal/dedup"
	"github.com/seawatch/seawatch/internal/similarity"
)

// RunSummary is the stable contract a batch run reports to consumers.
// Invariants: MergesSucceeded <= MergesAttempted <= PotentialMatchesChecked,
// and HighConfidenceMatches + MediumConfidenceMatches <= PotentialMatchesChecked.
type RunSummary struct {
	RecordsAnalyzed         int       `json:"records_analyzed"`
	PotentialMatchesChecked int       `json:"potential_matches_checked"`
	HighConfidenceMatches   int       `json:"high_confidence_matches"`
	MediumConfidenceMatches int       `json:"medium_confidence_matches"`
	MergesAttempted         int       `json:"merges_attempted"`
	MergesSucceeded         int       `json:"merges_succeeded"`
	MergeErrors             int       `json:"merge_errors"`
	StartedAt               time.Time `json:"started_at"`
	FinishedAt              time.Time `json:"finished_at"`
}

// SummaryNotifier receives completed run summaries (e.g. the Slack notifier)
type SummaryNotifier interface {
	NotifyRunSummary(summary *RunSummary)
}

// ProgressFunc receives human-readable progress events during a run
type ProgressFunc func(event string)

// DedupJob is the batch deduplication orchestrator: it pulls a bounded
// recent window of records and merges cross-source pairs that describe the
// same real-world event. It is a scheduled bounded-work job, not a
// continuous service; records merged in one run are excluded from the next
// window's candidate set.
type DedupJob struct {
	db         *gorm.DB
	store      *database.RecordStore
	tuning     *dedup.Tuning
	notifier   SummaryNotifier
	onProgress ProgressFunc
}

// NewDedupJob creates a new deduplication job
func NewDedupJob(db *gorm.DB, tuning *dedup.Tuning) *DedupJob {
	if tuning == nil {
		tuning = dedup.DefaultTuning()
	}
	return &DedupJob{
		db:     db,
		store:  database.NewRecordStore(db),
		tuning: tuning,
	}
}

// SetNotifier attaches a summary notifier
func (j *DedupJob) SetNotifier(n SummaryNotifier) {
	j.notifier = n
}

// SetProgressFunc attaches a progress event callback
func (j *DedupJob) SetProgressFunc(fn ProgressFunc) {
	j.onProgress = fn
}

func (j *DedupJob) progress(format string, args ...interface{}) {
	if j.onProgress != nil {
		j.onProgress(fmt.Sprintf(format, args...))
	}
}

// Run executes one batch deduplication pass. A completed run always returns
// a summary, even when zero merges occurred; per-pair failures are counted,
// not fatal. Only a failed window query aborts the run.
func (j *DedupJob) Run() (*RunSummary, error) {
	summary := &RunSummary{StartedAt: time.Now()}

	settings, err := database.GetOrCreateDedupSettings(j.db)
	if err != nil {
		return nil, fmt.Errorf("failed to load dedup settings: %w", err)
	}

	if !settings.Enabled {
		log.Println("Deduplication is disabled, skipping")
		summary.FinishedAt = time.Now()
		j.persistRun(database.DedupRunStatusSkipped, summary, "")
		return summary, nil
	}

	since := time.Now().AddDate(0, 0, -settings.LookbackDays)
	records, err := j.store.QueryRecent(since, settings.MaxRecordsPerRun)
	if err != nil {
		summary.FinishedAt = time.Now()
		j.persistRun(database.DedupRunStatusFailed, summary, err.Error())
		return nil, fmt.Errorf("failed to query recent records: %w", err)
	}

	summary.RecordsAnalyzed = len(records)
	j.progress("analyzing %d records from the last %d days", len(records), settings.LookbackDays)

	scorer := similarity.NewScorer(similarity.BatchWeights,
		settings.MaxTimeWindowHours, settings.MaxDistanceKm, j.tuning.SynonymGroups)
	priorities := j.tuning.Priorities()

	// Each record participates in at most one merge per invocation; this
	// prevents chains of silent transitive merges in a single pass.
	consumed := make(map[uint]bool)

	for i := 0; i < len(records); i++ {
		if consumed[records[i].ID] {
			continue
		}
		for k := i + 1; k < len(records); k++ {
			a := &records[i]
			b := &records[k]

			if consumed[a.ID] {
				break
			}
			if consumed[b.ID] {
				continue
			}
			// Dedup only spans sources.
			if a.Source == b.Source {
				continue
			}
			if a.MergeStatus == database.MergeStatusMergedInto || b.MergeStatus == database.MergeStatusMergedInto {
				log.Printf("DedupJob: data-integrity warning: record %d or %d is merged_into but was returned by the window query",
					a.ID, b.ID)
				continue
			}

			summary.PotentialMatchesChecked++

			score := scorer.Score(a, b)
			if score.Total < settings.MatchThreshold {
				continue
			}

			if score.Total >= settings.HighConfidenceThreshold {
				summary.HighConfidenceMatches++
			} else {
				summary.MediumConfidenceMatches++
			}

			reason := fmt.Sprintf("composite score %.2f (time %.2f, space %.2f, vessel %.2f, type %.2f)",
				score.Total, score.Time, score.Spatial, score.Vessel, score.IncidentType)

			summary.MergesAttempted++
			outcome, err := dedup.ExecuteMerge(j.store, a, b, score.Total, reason, "system", priorities)
			if err != nil {
				summary.MergeErrors++
				if errors.Is(err, database.ErrMergeConflict) {
					// A concurrent run won the race on this record; soft
					// failure, the pair is simply skipped.
					log.Printf("DedupJob: merge conflict for records %d/%d: %v", a.ID, b.ID, err)
				} else {
					log.Printf("DedupJob: merge failed for records %d/%d: %v", a.ID, b.ID, err)
				}
				continue
			}

			summary.MergesSucceeded++
			consumed[outcome.Primary.ID] = true
			consumed[outcome.Secondary.ID] = true
			j.progress("merged record %s (%s) into %s (%s), confidence %.2f",
				outcome.Secondary.UUID, outcome.Secondary.Source,
				outcome.Primary.UUID, outcome.Primary.Source, score.Total)
		}
	}

	summary.FinishedAt = time.Now()
	j.persistRun(database.DedupRunStatusCompleted, summary, "")

	log.Printf("DedupJob: run complete: %d records, %d pairs checked, %d merges succeeded, %d errors",
		summary.RecordsAnalyzed, summary.PotentialMatchesChecked, summary.MergesSucceeded, summary.MergeErrors)

	if j.notifier != nil {
		j.notifier.NotifyRunSummary(summary)
	}

	return summary, nil
}

// persistRun writes the run summary for the dashboard. Persistence failures
// are logged, never fatal to the run.
func (j *DedupJob) persistRun(status database.DedupRunStatus, summary *RunSummary, errMsg string) {
	run := &database.DedupRun{
		Status:                  status,
		RecordsAnalyzed:         summary.RecordsAnalyzed,
		PotentialMatchesChecked: summary.PotentialMatchesChecked,
		HighConfidenceMatches:   summary.HighConfidenceMatches,
		MediumConfidenceMatches: summary.MediumConfidenceMatches,
		MergesAttempted:         summary.MergesAttempted,
		MergesSucceeded:         summary.MergesSucceeded,
		MergeErrors:             summary.MergeErrors,
		Error:                   errMsg,
		StartedAt:               summary.StartedAt,
		FinishedAt:              summary.FinishedAt,
	}
	if err := j.store.CreateRun(run); err != nil {
		log.Printf("DedupJob: failed to persist run summary: %v", err)
	}
}

// Start begins periodic deduplication passes
func (j *DedupJob) Start(stop <-chan struct{}) {
	settings, err := database.GetOrCreateDedupSettings(j.db)
	if err != nil {
		log.Printf("Failed to get dedup settings, using defaults: %v", err)
		settings = database.NewDefaultDedupSettings()
	}

	interval := time.Duration(settings.RunIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			summary, err := j.Run()
			if err != nil {
				log.Printf("Dedup job error: %v", err)
			} else if summary.MergesSucceeded > 0 {
				log.Printf("Dedup job: performed %d merges", summary.MergesSucceeded)
			}

			// Refresh interval from settings (in case it changed).
			newSettings, err := database.GetOrCreateDedupSettings(j.db)
			if err == nil && newSettings.RunIntervalMinutes != settings.RunIntervalMinutes {
				settings = newSettings
				interval = time.Duration(settings.RunIntervalMinutes) * time.Minute
				ticker.Reset(interval)
				log.Printf("Dedup interval updated to %d minutes", settings.RunIntervalMinutes)
			}

		case <-stop:
			log.Println("Dedup job stopped")
			return
		}
	}
}
