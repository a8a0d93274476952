package domain

// CourseStatistics aggregates activity for one course.
type CourseStatistics struct {
	CourseID        string   `json:"course_id"`
	Students        int      `json:"students"`
	Assignments     int      `json:"assignments"`
	Submissions     int      `json:"submissions"`
	Graded          int      `json:"graded"`
	AverageGrade    *float64 `json:"average_grade,omitempty"`
	SubmissionRatio float64  `json:"submission_ratio"`
}
