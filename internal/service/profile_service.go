package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/spec-kit/classroom-client/internal/api/dto"
	"github.com/spec-kit/classroom-client/internal/domain"
	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

// ProfileService reads and edits the signed-in user's profile.
type ProfileService struct {
	client SessionClient
}

// NewProfileService constructs the service.
func NewProfileService(client SessionClient) *ProfileService {
	return &ProfileService{client: client}
}

// Get fetches the profile addressed by the token subject.
func (s *ProfileService) Get(ctx context.Context) (*domain.User, error) {
	userID, err := currentUserID(ctx, s.client)
	if err != nil {
		return nil, err
	}
	var user domain.User
	if err := callJSON(ctx, s.client, http.MethodGet, resourcePath("users", userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Update changes the provided fields only.
func (s *ProfileService) Update(ctx context.Context, req dto.UpdateProfileRequest) (*domain.User, error) {
	if req.Name == nil && req.AvatarURL == nil {
		return nil, apperrors.NewValidationError("nothing to update", nil)
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, apperrors.NewValidationError("name must not be empty", map[string]any{"field": "name"})
	}

	userID, err := currentUserID(ctx, s.client)
	if err != nil {
		return nil, err
	}
	var user domain.User
	if err := callJSON(ctx, s.client, http.MethodPut, resourcePath("users", userID), req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
