package models

import "time"

type CompletionFact struct {
	UserID           string           `json:"user_id"`
	UnitID           string           `json:"unit_id"`
	CourseID         string           `json:"course_id"`
	Completed        bool             `json:"completed"`
	CompletionMethod CompletionMethod `json:"completion_method"`
	CompletedAt      *time.Time       `json:"completed_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
