package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/classroom-client/internal/domain"
)

var (
	ErrMalformedToken = errors.New("malformed session token")
	ErrNoSubject      = errors.New("session token has no subject")
)

// Decoder reads claims out of a session token without verifying its signature.
// The result is a hint for addressing per-user resources, never an authorization decision.
type Decoder struct {
	parser *jwt.Parser
}

// NewDecoder builds a decoder.
func NewDecoder() *Decoder {
	return &Decoder{parser: jwt.NewParser(jwt.WithJSONNumber())}
}

// Decode extracts subject, role and expiry from the raw token.
func (d *Decoder) Decode(raw string) (*domain.SessionToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMalformedToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := d.parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	subject, err := subjectOf(claims)
	if err != nil {
		return nil, err
	}

	token := &domain.SessionToken{Raw: raw, Subject: subject}
	if role, ok := claims["role"].(string); ok {
		token.Role = domain.Role(role)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		token.ExpiresAt = &t
	}
	return token, nil
}

// Subject returns only the subject claim.
func (d *Decoder) Subject(raw string) (string, error) {
	token, err := d.Decode(raw)
	if err != nil {
		return "", err
	}
	return token.Subject, nil
}

// subjectOf accepts string and numeric `sub` claims; some backends issue integer user ids.
func subjectOf(claims jwt.MapClaims) (string, error) {
	switch v := claims["sub"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case json.Number:
		return v.String(), nil
	}
	return "", ErrNoSubject
}
