package reporter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/huddlenotify/huddlenotify/internal/models"
	"github.com/huddlenotify/huddlenotify/pkg/utils"
)

// Source is the history the reporter reads.
type Source interface {
	GetSpeakerSummarySince(since time.Time) ([]models.SpeakerSummary, error)
	GetLatestForParticipant(name string, since time.Time) (*models.VoiceEvent, error)
	CountFailedSince(since time.Time) (int64, error)
}

// Reporter handles report generation
type Reporter struct {
	repo Source
	now  func() time.Time
}

// New creates a new reporter
func New(repo Source) *Reporter {
	return &Reporter{
		repo: repo,
		now:  time.Now,
	}
}

// GenerateReport generates a report for the specified period
func (r *Reporter) GenerateReport(periodType string) (*models.Report, error) {
	period, err := r.Period(periodType)
	if err != nil {
		return nil, err
	}

	// Get raw counts from database (SQL does the COUNT)
	summaries, err := r.repo.GetSpeakerSummarySince(period.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to get speaker summary: %w", err)
	}

	var total int64
	for i := range summaries {
		total += summaries[i].EventCount

		latest, err := r.repo.GetLatestForParticipant(summaries[i].ParticipantName, period.Start)
		if err != nil {
			return nil, fmt.Errorf("failed to get last event for %q: %w", summaries[i].ParticipantName, err)
		}
		if latest != nil {
			summaries[i].LastSpokeAt = latest.Timestamp
		}
	}

	if total > 0 {
		for i := range summaries {
			summaries[i].Percentage = (float64(summaries[i].EventCount) / float64(total)) * 100.0
		}
	}

	failed, err := r.repo.CountFailedSince(period.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to count failed notifications: %w", err)
	}

	return &models.Report{
		Period:      *period,
		Speakers:    summaries,
		TotalEvents: total,
		Failed:      failed,
		GeneratedAt: r.now(),
	}, nil
}

// Period calculates the time range for a report period name
func (r *Reporter) Period(periodType string) (*models.ReportPeriod, error) {
	now := r.now()
	var start, end time.Time

	switch periodType {
	case "day", "today":
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end = start.Add(24 * time.Hour)

	case "week":
		// Start of week (Monday)
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(weekday - 1))
		end = start.AddDate(0, 0, 7)

	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)

	default:
		return nil, fmt.Errorf("invalid period type: %s (valid: day, week, month)", periodType)
	}

	return &models.ReportPeriod{
		Start: start,
		End:   end,
		Type:  periodType,
	}, nil
}

// FormatReportText formats the report as human-readable text
func (r *Reporter) FormatReportText(report *models.Report) string {
	output := fmt.Sprintf("Huddle Speaker Report - %s\n", report.Period.Type)
	output += fmt.Sprintf("Period: %s to %s\n",
		report.Period.Start.Format("2006-01-02 15:04"),
		report.Period.End.Format("2006-01-02 15:04"))
	output += fmt.Sprintf("Notifications: %d (failed: %d)\n\n", report.TotalEvents, report.Failed)

	if len(report.Speakers) == 0 {
		output += "No voice activity recorded for this period.\n"
		return output
	}

	output += fmt.Sprintf("%-30s %8s %10s %9s\n", "Participant", "Count", "Last", "Percent")
	output += fmt.Sprintf("%s\n", "--------------------------------------------------------------")

	for _, s := range report.Speakers {
		output += fmt.Sprintf("%-30s %8d %10s %8.1f%%\n",
			truncate(displayName(s.ParticipantName), 30),
			s.EventCount,
			utils.Ago(s.LastSpokeAt, report.GeneratedAt),
			s.Percentage)
	}

	return output
}

// FormatReportJSON formats the report as JSON
func (r *Reporter) FormatReportJSON(report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func displayName(name string) string {
	if name == "" {
		return "(hidden)"
	}
	return name
}

// truncate shortens s to maxLen runes
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
