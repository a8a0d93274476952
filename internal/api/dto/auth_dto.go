package dto

import "github.com/spec-kit/classroom-client/internal/domain"

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest payload for POST /auth/register.
type RegisterRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

// SocialAuthRequest exchanges a provider token for a session.
type SocialAuthRequest struct {
	Provider    string `json:"provider"`
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token,omitempty"`
}

// PINVerifyRequest payload for POST /auth/pin/verify.
type PINVerifyRequest struct {
	Email string `json:"email"`
	PIN   string `json:"pin"`
}

// PasswordRecoverRequest payload for POST /auth/password/recover.
type PasswordRecoverRequest struct {
	Email string `json:"email"`
}

// PasswordSetRequest payload for POST /auth/password/set.
type PasswordSetRequest struct {
	Email    string `json:"email"`
	PIN      string `json:"pin"`
	Password string `json:"password"`
}

// AuthResponse is returned by every endpoint that opens a session.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// MessageResponse carries a human readable acknowledgement.
type MessageResponse struct {
	Detail string `json:"detail"`
}

// UpdateProfileRequest payload for PUT /users/{id}.
type UpdateProfileRequest struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}
