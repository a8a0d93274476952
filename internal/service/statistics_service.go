package service

import (
	"context"
	"net/http"

	"github.com/spec-kit/classroom-client/internal/domain"
)

// StatisticsService reads aggregate course statistics.
type StatisticsService struct {
	client SessionClient
}

// NewStatisticsService constructs the service.
func NewStatisticsService(client SessionClient) *StatisticsService {
	return &StatisticsService{client: client}
}

// Course returns statistics for one course.
func (s *StatisticsService) Course(ctx context.Context, courseID string) (*domain.CourseStatistics, error) {
	if err := requireID("course_id", courseID); err != nil {
		return nil, err
	}
	var out domain.CourseStatistics
	if err := callJSON(ctx, s.client, http.MethodGet, resourcePath("statistics", "courses", courseID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
