package notify

import (
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"
	"gorm.io/gorm"

	"github.com/seawatch/seawatch/internal/database"
	"github.com/seawatch/seawatch/internal/jobs"
	"github.com/seawatch/seawatch/internal/utils"
)

// SlackNotifier posts deduplication run summaries to a Slack channel.
// Settings are read from the database on every send, so enabling or
// rotating the token takes effect without a restart.
type SlackNotifier struct {
	db *gorm.DB
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(db *gorm.DB) *SlackNotifier {
	return &SlackNotifier{db: db}
}

// NotifyRunSummary posts a run summary. Failures are logged, never
// propagated: notification is best-effort and must not affect the run.
func (n *SlackNotifier) NotifyRunSummary(summary *jobs.RunSummary) {
	settings, err := database.GetSlackSettings(n.db)
	if err != nil {
		log.Printf("SlackNotifier: could not load settings: %v", err)
		return
	}
	if !settings.IsActive() {
		return
	}

	client := slack.New(settings.BotToken)
	_, _, err = client.PostMessage(settings.Channel,
		slack.MsgOptionText(formatRunSummary(summary), false))
	if err != nil {
		log.Printf("SlackNotifier: failed to post run summary: %v", err)
		return
	}
	log.Printf("SlackNotifier: posted run summary to %s", settings.Channel)
}

// formatRunSummary builds the Slack message for a run summary
func formatRunSummary(summary *jobs.RunSummary) string {
	var sb strings.Builder

	emoji := ":white_check_mark:"
	if summary.MergeErrors > 0 {
		emoji = ":warning:"
	}

	sb.WriteString(fmt.Sprintf("%s *Deduplication run complete* (%s)\n\n",
		emoji, utils.FormatDuration(summary.FinishedAt.Sub(summary.StartedAt))))
	sb.WriteString(fmt.Sprintf("• Records analyzed: %d\n", summary.RecordsAnalyzed))
	sb.WriteString(fmt.Sprintf("• Pairs checked: %d\n", summary.PotentialMatchesChecked))
	sb.WriteString(fmt.Sprintf("• High-confidence matches: %d\n", summary.HighConfidenceMatches))
	sb.WriteString(fmt.Sprintf("• Medium-confidence matches: %d\n", summary.MediumConfidenceMatches))
	sb.WriteString(fmt.Sprintf("• Merges: %d succeeded / %d attempted", summary.MergesSucceeded, summary.MergesAttempted))
	if summary.MergeErrors > 0 {
		sb.WriteString(fmt.Sprintf("\n• Merge errors: %d", summary.MergeErrors))
	}

	return sb.String()
}
