package models

import "time"

type CourseProgress struct {
	UserID             string         `json:"user_id"`
	CourseID           string         `json:"course_id"`
	Status             ProgressStatus `json:"status"`
	ProgressPercentage int            `json:"progress_percentage"`
	CompletedUnits     int            `json:"completed_units"`
	TotalUnits         int            `json:"total_units"`
	StartedAt          *time.Time     `json:"started_at"`
	CompletedAt        *time.Time     `json:"completed_at"`
	LastAccessedAt     time.Time      `json:"last_accessed_at"`
}

// Percentage rounds 100*completed/total half up. Zero units yields zero.
func Percentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return (200*completed + total) / (2 * total)
}

// StatusForPercentage derives the status from a percentage.
func StatusForPercentage(pct int) ProgressStatus {
	switch {
	case pct >= 100:
		return StatusCompleted
	case pct <= 0:
		return StatusNotStarted
	default:
		return StatusInProgress
	}
}

// Before reports whether s comes strictly earlier than other in the
// not_started -> in_progress -> completed order.
func (s ProgressStatus) Before(other ProgressStatus) bool {
	return s.rank() < other.rank()
}
