package dto

import "time"

// CourseRequest payload for creating or updating a course.
type CourseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// EnrollRequest payload for POST /courses/enroll.
type EnrollRequest struct {
	AccessCode string `json:"access_code"`
}

// AssignmentRequest payload for creating or updating an assignment.
type AssignmentRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	MaxGrade    int        `json:"max_grade"`
}

// FeedbackRequest payload for POST /submissions/{id}/feedback.
type FeedbackRequest struct {
	Grade   int    `json:"grade"`
	Comment string `json:"comment"`
}
