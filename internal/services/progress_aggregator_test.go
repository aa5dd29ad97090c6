package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/models"
)

func TestAggregator_ZeroUnitCourse(t *testing.T) {
	env := newTestEnv(t)
	env.seedCourse(t, "empty")

	p, err := env.aggregator.Recalculate(context.Background(), "u1", "empty")
	require.NoError(t, err)
	require.Equal(t, 0, p.ProgressPercentage)
	require.Equal(t, models.StatusNotStarted, p.Status)
	require.Equal(t, 0, p.TotalUnits)
}

func TestAggregator_HalfDone(t *testing.T) {
	env := newTestEnv(t)
	env.seedCourse(t, "C", "unit1", "unit2", "unit3", "unit4")
	env.seedFact(t, "U", "unit1", "C", true)
	env.seedFact(t, "U", "unit2", "C", true)

	p, err := env.aggregator.Recalculate(context.Background(), "U", "C")
	require.NoError(t, err)
	require.Equal(t, 50, p.ProgressPercentage)
	require.Equal(t, models.StatusInProgress, p.Status)
	require.Equal(t, 2, p.CompletedUnits)
	require.Equal(t, 4, p.TotalUnits)
}

func TestAggregator_IgnoresIncompleteAndForeignFacts(t *testing.T) {
	env := newTestEnv(t)
	env.seedCourse(t, "C", "unit1", "unit2")
	env.seedFact(t, "U", "unit1", "C", false)
	// a fact recorded under C for a unit that is not part of C
	env.seedFact(t, "U", "stray", "C", true)

	p, err := env.aggregator.Recalculate(context.Background(), "U", "C")
	require.NoError(t, err)
	require.Equal(t, 0, p.CompletedUnits)
	require.Equal(t, models.StatusNotStarted, p.Status)
}

func TestAggregator_UnknownCourse(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.aggregator.Recalculate(context.Background(), "U", "ghost")
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)
}

func TestAggregator_NoFactsMeansZero(t *testing.T) {
	env := newTestEnv(t)
	env.seedCourse(t, "C", "unit1")

	p, err := env.aggregator.Recalculate(context.Background(), "nobody", "C")
	require.NoError(t, err)
	require.Equal(t, 0, p.ProgressPercentage)
	require.Equal(t, 1, p.TotalUnits)
}

func TestAggregator_MonotonicAsFactsAccumulate_Property(t *testing.T) {
	env := newTestEnv(t)
	var run int

	rapid.Check(t, func(rt *rapid.T) {
		run++
		courseID := fmt.Sprintf("course-%d", run)
		n := rapid.IntRange(1, 15).Draw(rt, "units")
		units := make([]string, n)
		for i := range units {
			units[i] = fmt.Sprintf("%s-u%d", courseID, i)
		}
		env.seedCourse(t, courseID, units...)

		order := rapid.Permutation(units).Draw(rt, "order")
		prev := -1
		for i, unitID := range order {
			env.seedFact(t, "learner", unitID, courseID, true)
			p, err := env.aggregator.Recalculate(context.Background(), "learner", courseID)
			if err != nil {
				rt.Fatalf("Recalculate failed: %v", err)
			}
			if p.ProgressPercentage < prev {
				rt.Fatalf("percentage dropped from %d to %d", prev, p.ProgressPercentage)
			}
			if p.CompletedUnits != i+1 {
				rt.Fatalf("expected %d completed units, got %d", i+1, p.CompletedUnits)
			}
			prev = p.ProgressPercentage
		}
		if prev != 100 {
			rt.Fatalf("expected 100%% once every unit is complete, got %d", prev)
		}
	})
}
