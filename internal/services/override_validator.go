package services

import (
	"context"
	"fmt"

	"github.com/ad/go-course-progress/internal/db"
)

const (
	IssueUnitNotFound       = "unit not found"
	IssueUnitCourseMismatch = "unit does not belong to course"
	IssueUserNotFound       = "user not found"

	WarningUserInactive = "user is deactivated"
	WarningNotEnrolled  = "user is not assigned to the course and has no progress in it"
)

// ValidationResult separates blocking issues from informational warnings.
type ValidationResult struct {
	IsValid  bool
	Issues   []string
	Warnings []string
}

// OverrideValidator checks whether a unit override is allowed. It never writes.
type OverrideValidator struct {
	courseRepo     *db.CourseRepository
	userRepo       *db.UserRepository
	assignmentRepo *db.AssignmentRepository
	progressRepo   *db.ProgressRepository
	completionRepo *db.CompletionRepository
}

func NewOverrideValidator(
	courseRepo *db.CourseRepository,
	userRepo *db.UserRepository,
	assignmentRepo *db.AssignmentRepository,
	progressRepo *db.ProgressRepository,
	completionRepo *db.CompletionRepository,
) *OverrideValidator {
	return &OverrideValidator{
		courseRepo:     courseRepo,
		userRepo:       userRepo,
		assignmentRepo: assignmentRepo,
		progressRepo:   progressRepo,
		completionRepo: completionRepo,
	}
}

// Validate runs the checks in order and stops at the first missing entity.
// Store failures are returned as errors, never as issues.
func (v *OverrideValidator) Validate(ctx context.Context, userID, unitID, courseID string, exec ...db.DBExecutor) (*ValidationResult, error) {
	result := &ValidationResult{}
	finish := func() (*ValidationResult, error) {
		result.IsValid = len(result.Issues) == 0
		return result, nil
	}

	unit, err := v.courseRepo.GetUnit(ctx, unitID, exec...)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		result.Issues = append(result.Issues, IssueUnitNotFound)
		return finish()
	}
	if unit.CourseID != courseID {
		result.Issues = append(result.Issues, IssueUnitCourseMismatch)
		return finish()
	}

	user, err := v.userRepo.GetByID(ctx, userID, exec...)
	if err != nil {
		return nil, err
	}
	if user == nil {
		result.Issues = append(result.Issues, IssueUserNotFound)
		return finish()
	}
	if !user.IsActive {
		result.Warnings = append(result.Warnings, WarningUserInactive)
	}

	assigned, err := v.assignmentRepo.Exists(ctx, userID, courseID, exec...)
	if err != nil {
		return nil, err
	}
	if !assigned {
		progress, err := v.progressRepo.Get(ctx, userID, courseID, exec...)
		if err != nil {
			return nil, err
		}
		if progress == nil {
			result.Warnings = append(result.Warnings, WarningNotEnrolled)
		}
	}

	fact, err := v.completionRepo.Get(ctx, userID, unitID, courseID, exec...)
	if err != nil {
		return nil, err
	}
	if fact != nil && fact.Completed {
		result.Warnings = append(result.Warnings, fmt.Sprintf("already completed via %s", fact.CompletionMethod))
	}

	return finish()
}
