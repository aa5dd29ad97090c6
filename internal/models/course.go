package models

import "time"

type Course struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// Section groups units inside a course.
type Section struct {
	ID       string
	CourseID string
	Title    string
	Position int
}

type Unit struct {
	ID        string
	SectionID string
	CourseID  string // resolved through the section
	Title     string
	Position  int
}

type Assignment struct {
	UserID     string
	CourseID   string
	AssignedAt time.Time
}
