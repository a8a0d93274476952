package domain

import "time"

// Assignment is a piece of work students submit files against.
type Assignment struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"course_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	MaxGrade    int        `json:"max_grade"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// SubmissionStatus tracks grading progress.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusGraded    SubmissionStatus = "graded"
)

// Submission is a student's upload for an assignment.
type Submission struct {
	ID           string           `json:"id"`
	AssignmentID string           `json:"assignment_id"`
	StudentID    string           `json:"student_id"`
	FileName     string           `json:"file_name"`
	MimeType     string           `json:"mime_type"`
	SizeBytes    int64            `json:"size_bytes"`
	Status       SubmissionStatus `json:"status"`
	Grade        *int             `json:"grade,omitempty"`
	SubmittedAt  time.Time        `json:"submitted_at"`
}

// Attachment is a local file about to be uploaded.
type Attachment struct {
	FileName string
	MimeType string
	Content  []byte
}

// FilePayload is a downloaded file; Content is base64 on the wire.
type FilePayload struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Content  string `json:"content"`
}
