package service

import (
	"context"
	"net/http"
	"net/mail"
	"net/url"
	"strings"

	"github.com/spec-kit/classroom-client/internal/domain"
	"github.com/spec-kit/classroom-client/internal/session"
	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

// SessionClient is the part of session.Client the services depend on.
type SessionClient interface {
	Dispatch(ctx context.Context, req session.Request) (*session.Response, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
	Session(ctx context.Context) (*domain.SessionToken, error)
}

// call dispatches req and decodes a 2xx JSON body into out (when non-nil).
func call(ctx context.Context, client SessionClient, req session.Request, out any) error {
	resp, err := client.Dispatch(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return resp.Err()
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(resp.Body) == 0 {
		return nil
	}
	if err := resp.DecodeJSON(out); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func callJSON(ctx context.Context, client SessionClient, method, path string, payload, out any) error {
	req, err := session.NewJSONRequest(method, path, payload)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return call(ctx, client, req, out)
}

// currentUserID returns the decoded subject of the stored token.
func currentUserID(ctx context.Context, client SessionClient) (string, error) {
	tok, err := client.Session(ctx)
	if err != nil {
		return "", err
	}
	return tok.Subject, nil
}

func resourcePath(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return "/" + strings.Join(escaped, "/")
}

func requireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewValidationError(field+" is required", map[string]any{"field": field})
	}
	return nil
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return apperrors.NewValidationError("email is required", map[string]any{"field": "email"})
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.NewValidationError("email is invalid", map[string]any{"field": "email"})
	}
	return nil
}
