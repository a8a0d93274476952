package service

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/spec-kit/classroom-client/internal/api/dto"
	"github.com/spec-kit/classroom-client/internal/domain"
	"github.com/spec-kit/classroom-client/internal/events"
	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

const minPasswordLength = 8

// AuthService coordinates login, registration and password recovery flows.
type AuthService struct {
	client     SessionClient
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuthService builds the service. dispatcher may be nil.
func NewAuthService(client SessionClient, dispatcher events.Dispatcher, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{client: client, dispatcher: dispatcher, logger: logger}
}

// Login authenticates with email and password and stores the issued token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.SessionToken, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperrors.NewValidationError("password is required", map[string]any{"field": "password"})
	}

	var resp dto.AuthResponse
	req := dto.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := callJSON(ctx, s.client, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return s.startSession(ctx, resp, "password")
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*domain.SessionToken, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if err := validateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = domain.RoleStudent
	}
	if !req.Role.Valid() {
		return nil, apperrors.NewValidationError("role must be student or teacher", map[string]any{"field": "role"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	var resp dto.AuthResponse
	if err := callJSON(ctx, s.client, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return s.startSession(ctx, resp, "register")
}

// SocialLogin exchanges an identity-provider token for a backend session.
func (s *AuthService) SocialLogin(ctx context.Context, provider string, token *oauth2.Token) (*domain.SessionToken, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, apperrors.NewValidationError("provider is required", map[string]any{"field": "provider"})
	}
	if token == nil || !token.Valid() {
		return nil, apperrors.NewValidationError("provider token is missing or expired", map[string]any{"field": "token"})
	}

	req := dto.SocialAuthRequest{Provider: provider, AccessToken: token.AccessToken}
	if idToken, ok := token.Extra("id_token").(string); ok {
		req.IDToken = idToken
	}

	var resp dto.AuthResponse
	if err := callJSON(ctx, s.client, http.MethodPost, "/auth/social", req, &resp); err != nil {
		return nil, err
	}
	return s.startSession(ctx, resp, "social:"+provider)
}

// RequestPasswordRecovery asks the backend to send a recovery PIN.
func (s *AuthService) RequestPasswordRecovery(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	return callJSON(ctx, s.client, http.MethodPost, "/auth/password/recover",
		dto.PasswordRecoverRequest{Email: strings.TrimSpace(email)}, nil)
}

// VerifyPIN checks a recovery or confirmation PIN without consuming it.
func (s *AuthService) VerifyPIN(ctx context.Context, email, pin string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := validatePIN(pin); err != nil {
		return err
	}
	return callJSON(ctx, s.client, http.MethodPost, "/auth/pin/verify",
		dto.PINVerifyRequest{Email: strings.TrimSpace(email), PIN: pin}, nil)
}

// SetPassword replaces the password using a valid PIN.
func (s *AuthService) SetPassword(ctx context.Context, email, pin, password string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := validatePIN(pin); err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	return callJSON(ctx, s.client, http.MethodPost, "/auth/password/set",
		dto.PasswordSetRequest{Email: strings.TrimSpace(email), PIN: pin, Password: password}, nil)
}

// Logout forgets the stored token. Tokens are stateless JWTs so the backend is not called.
func (s *AuthService) Logout(ctx context.Context) error {
	subject, _ := currentUserID(ctx, s.client)
	if err := s.client.ClearToken(ctx); err != nil {
		return err
	}
	s.publish(ctx, events.Event{Type: events.EventSessionEnded, Subject: subject})
	return nil
}

// CurrentUserID returns the subject decoded from the stored token.
// It is a local hint only; the backend still authorizes every call.
func (s *AuthService) CurrentUserID(ctx context.Context) (string, error) {
	return currentUserID(ctx, s.client)
}

func (s *AuthService) startSession(ctx context.Context, resp dto.AuthResponse, method string) (*domain.SessionToken, error) {
	if strings.TrimSpace(resp.AccessToken) == "" {
		return nil, apperrors.NewInternalError(errEmptyToken)
	}
	if resp.TokenType != "" && !strings.EqualFold(resp.TokenType, "bearer") {
		return nil, apperrors.NewInternalError(errUnsupportedTokenType)
	}
	if err := s.client.SetToken(ctx, resp.AccessToken); err != nil {
		return nil, err
	}

	tok, err := s.client.Session(ctx)
	if err != nil {
		// opaque tokens still authorize requests; only the local hint is lost
		s.logger.Warn("session token not decodable", zap.Error(err))
		tok = &domain.SessionToken{Raw: resp.AccessToken}
	}

	s.publish(ctx, events.Event{
		Type:    events.EventSessionStarted,
		Subject: tok.Subject,
		Payload: events.SessionStartedPayload{Method: method, Role: tok.Role},
	})
	return tok, nil
}

func (s *AuthService) publish(ctx context.Context, evt events.Event) {
	if s.dispatcher == nil {
		return
	}
	evt.ID = uuid.NewString()
	evt.Timestamp = time.Now().UTC()
	if err := s.dispatcher.Publish(ctx, evt); err != nil {
		s.logger.Warn("session event subscribers failed", zap.String("event", string(evt.Type)), zap.Error(err))
	}
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.NewValidationError("password must be at least 8 characters", map[string]any{"field": "password"})
	}
	return nil
}

func validatePIN(pin string) error {
	if len(pin) != 6 {
		return apperrors.NewValidationError("pin must have 6 digits", map[string]any{"field": "pin"})
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return apperrors.NewValidationError("pin must have 6 digits", map[string]any{"field": "pin"})
		}
	}
	return nil
}
