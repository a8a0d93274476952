package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/spec-kit/classroom-client/internal/api/dto"
	"github.com/spec-kit/classroom-client/internal/domain"
	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

// CourseService wraps the course endpoints.
type CourseService struct {
	client SessionClient
}

// NewCourseService constructs the service.
func NewCourseService(client SessionClient) *CourseService {
	return &CourseService{client: client}
}

// List returns the courses visible to the caller: taught ones for teachers, enrolled ones for students.
func (s *CourseService) List(ctx context.Context) ([]domain.Course, error) {
	var courses []domain.Course
	if err := callJSON(ctx, s.client, http.MethodGet, "/courses", nil, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// Get fetches one course.
func (s *CourseService) Get(ctx context.Context, courseID string) (*domain.Course, error) {
	if err := requireID("course_id", courseID); err != nil {
		return nil, err
	}
	var course domain.Course
	if err := callJSON(ctx, s.client, http.MethodGet, resourcePath("courses", courseID), nil, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create adds a course owned by the calling teacher.
func (s *CourseService) Create(ctx context.Context, req dto.CourseRequest) (*domain.Course, error) {
	if err := validateCourse(&req); err != nil {
		return nil, err
	}
	var course domain.Course
	if err := callJSON(ctx, s.client, http.MethodPost, "/courses", req, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// Update replaces title and description.
func (s *CourseService) Update(ctx context.Context, courseID string, req dto.CourseRequest) (*domain.Course, error) {
	if err := requireID("course_id", courseID); err != nil {
		return nil, err
	}
	if err := validateCourse(&req); err != nil {
		return nil, err
	}
	var course domain.Course
	if err := callJSON(ctx, s.client, http.MethodPut, resourcePath("courses", courseID), req, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// Delete removes a course.
func (s *CourseService) Delete(ctx context.Context, courseID string) error {
	if err := requireID("course_id", courseID); err != nil {
		return err
	}
	return callJSON(ctx, s.client, http.MethodDelete, resourcePath("courses", courseID), nil, nil)
}

// Enroll joins the course identified by its access code.
func (s *CourseService) Enroll(ctx context.Context, accessCode string) (*domain.Course, error) {
	accessCode = strings.TrimSpace(accessCode)
	if accessCode == "" {
		return nil, apperrors.NewValidationError("access code is required", map[string]any{"field": "access_code"})
	}
	var course domain.Course
	if err := callJSON(ctx, s.client, http.MethodPost, "/courses/enroll", dto.EnrollRequest{AccessCode: accessCode}, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func validateCourse(req *dto.CourseRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if len(req.Title) > 200 {
		return apperrors.NewValidationError("title is too long", map[string]any{"field": "title"})
	}
	return nil
}
