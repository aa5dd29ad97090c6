package services

import (
	"context"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/models"
)

type CourseStats struct {
	CourseID          string
	Title             string
	TotalUnits        int
	TrackedUsers      int
	NotStartedUsers   int
	InProgressUsers   int
	CompletedUsers    int
	AveragePercentage float64
	// percentage bucket (0, 10, ..., 100) -> users
	Distribution map[int]int
}

type StatisticsService struct {
	courseRepo   *db.CourseRepository
	progressRepo *db.ProgressRepository
}

func NewStatisticsService(courseRepo *db.CourseRepository, progressRepo *db.ProgressRepository) *StatisticsService {
	return &StatisticsService{
		courseRepo:   courseRepo,
		progressRepo: progressRepo,
	}
}

// CourseStatistics summarizes every stored progress record of the course.
func (s *StatisticsService) CourseStatistics(ctx context.Context, courseID string) (*CourseStats, error) {
	course, err := s.courseRepo.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, apperr.NotFound("statistics.course", "course "+courseID)
	}

	unitIDs, err := s.courseRepo.GetUnitIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}

	stats := &CourseStats{
		CourseID:     course.ID,
		Title:        course.Title,
		TotalUnits:   len(unitIDs),
		Distribution: make(map[int]int),
	}

	// One read, so the counts, the total and the distribution agree.
	records, err := s.progressRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	stats.TrackedUsers = len(records)
	if len(records) == 0 {
		return stats, nil
	}

	sum := 0
	for _, p := range records {
		switch p.Status {
		case models.StatusCompleted:
			stats.CompletedUsers++
		case models.StatusInProgress:
			stats.InProgressUsers++
		default:
			stats.NotStartedUsers++
		}
		sum += p.ProgressPercentage
		stats.Distribution[p.ProgressPercentage/10*10]++
	}
	stats.AveragePercentage = float64(sum) / float64(len(records))

	return stats, nil
}
