package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/spec-kit/classroom-client/internal/api/dto"
	"github.com/spec-kit/classroom-client/internal/domain"
	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

// FeedbackService submits and reads grades and comments on submissions.
type FeedbackService struct {
	client SessionClient
}

// NewFeedbackService constructs the service.
func NewFeedbackService(client SessionClient) *FeedbackService {
	return &FeedbackService{client: client}
}

// Submit grades a submission.
func (s *FeedbackService) Submit(ctx context.Context, submissionID string, grade int, comment string) (*domain.Feedback, error) {
	if err := requireID("submission_id", submissionID); err != nil {
		return nil, err
	}
	if grade < 0 || grade > 100 {
		return nil, apperrors.NewValidationError("grade must be between 0 and 100", map[string]any{"field": "grade"})
	}
	req := dto.FeedbackRequest{Grade: grade, Comment: strings.TrimSpace(comment)}
	var out domain.Feedback
	if err := callJSON(ctx, s.client, http.MethodPost, resourcePath("submissions", submissionID, "feedback"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns all feedback left on a submission, oldest first.
func (s *FeedbackService) List(ctx context.Context, submissionID string) ([]domain.Feedback, error) {
	if err := requireID("submission_id", submissionID); err != nil {
		return nil, err
	}
	var out []domain.Feedback
	if err := callJSON(ctx, s.client, http.MethodGet, resourcePath("submissions", submissionID, "feedback"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
