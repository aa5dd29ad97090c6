package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ad/go-course-progress/internal/models"
)

const telegramTextLimit = 4000

// FormatDuration renders a duration as "2d 3h", "5m 10s" and so on.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 && days == 0 && hours == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}

// FormatTimeAgo renders t relative to now, e.g. "3 hours ago".
func FormatTimeAgo(t time.Time, now time.Time) string {
	diff := now.Sub(t)
	days := int(diff.Hours()) / 24
	hours := int(diff.Hours()) % 24
	minutes := int(diff.Minutes()) % 60

	switch {
	case days > 0:
		return plural(days, "day") + " ago"
	case hours > 0:
		return plural(hours, "hour") + " ago"
	case minutes > 0:
		return plural(minutes, "minute") + " ago"
	default:
		return "just now"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ProgressBar draws a ten-cell bar for a percentage.
func ProgressBar(pct int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct / 10
	return strings.Repeat("▓", filled) + strings.Repeat("░", 10-filled)
}

func statusIcon(s models.ProgressStatus) string {
	switch s {
	case models.StatusCompleted:
		return "✅"
	case models.StatusInProgress:
		return "⏳"
	default:
		return "⬜"
	}
}

func FormatProgress(p *models.CourseProgress, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s / %s\n", statusIcon(p.Status), p.UserID, p.CourseID)
	fmt.Fprintf(&sb, "%s %d%% (%d/%d units)\n", ProgressBar(p.ProgressPercentage), p.ProgressPercentage, p.CompletedUnits, p.TotalUnits)
	fmt.Fprintf(&sb, "Status: %s\n", p.Status)
	if p.StartedAt != nil {
		fmt.Fprintf(&sb, "Started: %s\n", FormatTimeAgo(*p.StartedAt, now))
	}
	if p.CompletedAt != nil {
		fmt.Fprintf(&sb, "Completed: %s\n", p.CompletedAt.Format(time.RFC3339))
		if p.StartedAt != nil {
			fmt.Fprintf(&sb, "Took: %s\n", FormatDuration(p.CompletedAt.Sub(*p.StartedAt)))
		}
	}
	if !p.LastAccessedAt.IsZero() {
		fmt.Fprintf(&sb, "Last activity: %s\n", FormatTimeAgo(p.LastAccessedAt, now))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func FormatOverrideResult(req OverrideRequest, result *OverrideResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Unit %s marked complete for %s in %s\n", req.UnitID, req.UserID, req.CourseID)
	fmt.Fprintf(&sb, "Audit: %s\n", result.AuditID)
	if result.Progress != nil {
		fmt.Fprintf(&sb, "Progress: %d%% (%s)\n", result.Progress.ProgressPercentage, result.Progress.Status)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(&sb, "⚠️ %s\n", w)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func FormatAuditEntries(entries []*models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries"
	}
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s %s → %s by %s\n", e.PerformedAt.Format("2006-01-02 15:04"), e.ActionType, e.TargetUserID, e.PerformedBy)
		fmt.Fprintf(&sb, "  %s\n", e.Reason)
	}
	return truncate(strings.TrimRight(sb.String(), "\n"))
}

func FormatCourseStats(s *CourseStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 %s (%s)\n", s.Title, s.CourseID)
	fmt.Fprintf(&sb, "Units: %d\n", s.TotalUnits)
	fmt.Fprintf(&sb, "Tracked users: %d\n", s.TrackedUsers)
	fmt.Fprintf(&sb, "⬜ Not started: %d\n", s.NotStartedUsers)
	fmt.Fprintf(&sb, "⏳ In progress: %d\n", s.InProgressUsers)
	fmt.Fprintf(&sb, "✅ Completed: %d\n", s.CompletedUsers)
	if s.TrackedUsers > 0 {
		fmt.Fprintf(&sb, "Average: %.1f%%\n", s.AveragePercentage)

		buckets := make([]int, 0, len(s.Distribution))
		for b := range s.Distribution {
			buckets = append(buckets, b)
		}
		sort.Ints(buckets)
		for _, b := range buckets {
			fmt.Fprintf(&sb, "  %3d%%+: %d\n", b, s.Distribution[b])
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func FormatRecalcReport(r *RecalcReport) string {
	if r == nil {
		return "No recalculation has run for this course"
	}
	var sb strings.Builder
	state := "finished"
	if r.IsRunning {
		state = fmt.Sprintf("running (batch %d/%d)", r.CurrentBatch, r.TotalBatches)
	}
	fmt.Fprintf(&sb, "🔄 Recalculation of %s: %s\n", r.CourseID, state)
	fmt.Fprintf(&sb, "Processed: %d/%d\n", r.Processed, r.TotalRecords)
	fmt.Fprintf(&sb, "Changed: %d\n", r.Changed)
	if r.ErrorCount > 0 {
		fmt.Fprintf(&sb, "Errors: %d\n", r.ErrorCount)
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "  %s\n", e)
		}
	}
	return truncate(strings.TrimRight(sb.String(), "\n"))
}

func truncate(msg string) string {
	if len(msg) > telegramTextLimit {
		return msg[:telegramTextLimit] + "\n... (truncated)"
	}
	return msg
}
