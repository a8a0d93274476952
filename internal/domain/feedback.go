package domain

import "time"

// Feedback is a teacher's grade and comment on a submission.
type Feedback struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	AuthorID     string    `json:"author_id"`
	Grade        int       `json:"grade"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}
