package models

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestPercentage_Examples(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{3, 0, 0},
		{0, 4, 0},
		{2, 4, 50},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{4, 4, 100},
		{5, 4, 100},
	}
	for _, tt := range tests {
		if got := Percentage(tt.completed, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", tt.completed, tt.total, got, tt.want)
		}
	}
}

func TestPercentage_MatchesRoundedRatio_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(1, 1000).Draw(t, "total")
		completed := rapid.IntRange(0, total).Draw(t, "completed")

		got := Percentage(completed, total)
		want := int(math.Floor(100*float64(completed)/float64(total) + 0.5))
		if got != want {
			t.Fatalf("Percentage(%d, %d) = %d, want %d", completed, total, got, want)
		}
		if got < 0 || got > 100 {
			t.Fatalf("percentage out of range: %d", got)
		}
	})
}

func TestStatusForPercentage_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pct := rapid.IntRange(0, 100).Draw(t, "pct")
		status := StatusForPercentage(pct)

		if (status == StatusCompleted) != (pct == 100) {
			t.Fatalf("completed must hold exactly at 100%%, pct=%d status=%s", pct, status)
		}
		if (status == StatusNotStarted) != (pct == 0) {
			t.Fatalf("not_started must hold exactly at 0%%, pct=%d status=%s", pct, status)
		}
	})
}

func TestStatusOrder(t *testing.T) {
	if !StatusNotStarted.Before(StatusInProgress) || !StatusInProgress.Before(StatusCompleted) {
		t.Error("Expected not_started < in_progress < completed")
	}
	if StatusCompleted.Before(StatusInProgress) {
		t.Error("completed must not come before in_progress")
	}
}
