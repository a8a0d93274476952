package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes shared by the client and the sandbox backend.
const (
	CodeValidation     = "VALIDATION_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeConflict       = "CONFLICT"
	CodeInternal       = "INTERNAL_ERROR"
	CodeSessionExpired = "SESSION_EXPIRED"
	CodeTransport      = "TRANSPORT_ERROR"
	CodeHTTP           = "HTTP_ERROR"
)

const (
	fallbackMessage  = "something went wrong, please try again later"
	transportMessage = "could not reach the server, please try again"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on Code so sentinel comparisons survive wrapping and copies.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code != "" && other.Code == e.Code
}

// ErrSessionExpired is returned when the server reports the bearer token as expired.
var ErrSessionExpired = &DomainError{
	Code:       CodeSessionExpired,
	Message:    "session expired, please log in again",
	HTTPStatus: http.StatusUnauthorized,
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewTransportError wraps a failure that produced no response at all.
func NewTransportError(err error) error {
	return &DomainError{
		Code:    CodeTransport,
		Message: "request failed",
		Err:     err,
	}
}

// errorBody covers both `{"detail": ...}` and `{"error": {"code", "message"}}` shapes.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Code   string          `json:"code"`
	Error  *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// ParseErrorBody extracts the server detail text and structured code from a response body.
// Non-JSON bodies yield empty values.
func ParseErrorBody(body []byte) (detail, code string) {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", ""
	}
	code = parsed.Code
	if len(parsed.Detail) > 0 {
		var text string
		if err := json.Unmarshal(parsed.Detail, &text); err == nil {
			detail = text
		} else {
			// validation errors sometimes arrive as a list of objects
			detail = string(parsed.Detail)
		}
	}
	if parsed.Error != nil {
		if detail == "" {
			detail = parsed.Error.Message
		}
		if code == "" {
			code = parsed.Error.Code
		}
	}
	return detail, code
}

// FromResponse maps a non-2xx response to a DomainError, preferring server-provided text.
func FromResponse(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	detail, code := ParseErrorBody(body)
	var details map[string]any
	if clientOnlyCode(code) {
		details = map[string]any{"server_code": code}
		code = ""
	}
	if code == "" {
		code = codeForStatus(status)
	}
	message := strings.TrimSpace(detail)
	if message == "" {
		message = fallbackMessage
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// clientOnlyCode reports codes the client assigns itself; a server echoing one
// must not be mistaken for a local session expiry or transport failure.
func clientOnlyCode(code string) bool {
	return code == CodeSessionExpired || code == CodeTransport
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	}
	if status >= 500 {
		return CodeInternal
	}
	return CodeHTTP
}

// UserMessage returns text suitable for showing to the person using the client.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return fallbackMessage
	}
	switch domainErr.Code {
	case CodeTransport:
		return transportMessage
	case CodeInternal:
		if domainErr.Message == "" || domainErr.Message == "internal server error" {
			return fallbackMessage
		}
	}
	if domainErr.Message == "" {
		return fallbackMessage
	}
	return domainErr.Message
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
