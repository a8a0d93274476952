package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/classroom-client/internal/domain"
	"github.com/spec-kit/classroom-client/internal/events"
	"github.com/spec-kit/classroom-client/internal/observability"
	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

// RequestIDHeader carries a per-call correlation id.
const RequestIDHeader = "X-Request-ID"

// ExpiryHandler is invoked once when the server reports the current token as expired.
type ExpiryHandler func()

// State is the session lifecycle position derived from the token slot.
type State string

const (
	// StateActive means a token is stored and requests are authorized.
	StateActive State = "active"
	// StateExpired means the slot is empty; requests go out unauthenticated
	// until a login stores a new token.
	StateExpired State = "expired"
)

// Options configure a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Store      TokenStore
	Detector   ExpiryDetector
	OnExpired  ExpiryHandler
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Events     events.Dispatcher
	UserAgent  string
}

// Client attaches the session token to outbound calls and handles expiry centrally.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    *guard
	detector  ExpiryDetector
	decoder   *Decoder
	onExpired atomic.Pointer[ExpiryHandler]
	logger    *zap.Logger
	metrics   *observability.Metrics
	events    events.Dispatcher
	userAgent string
}

// Request describes one call relative to the base URL.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	Body        []byte
	ContentType string
}

// Response is the raw server reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Err maps a non-2xx response to a DomainError; nil for 2xx.
func (r *Response) Err() error {
	if r == nil {
		return apperrors.NewInternalError(errors.New("nil response"))
	}
	return apperrors.FromResponse(r.StatusCode, r.Body)
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// NewJSONRequest encodes payload as the request body.
func NewJSONRequest(method, path string, payload any) (Request, error) {
	req := Request{Method: method, Path: path}
	if payload == nil {
		return req, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("encode request: %w", err)
	}
	req.Body = body
	req.ContentType = "application/json"
	return req, nil
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	if opts.Store == nil {
		return nil, errors.New("token store is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:   strings.TrimRight(base.String(), "/"),
		http:      httpClient,
		tokens:    &guard{store: opts.Store},
		detector:  opts.Detector,
		decoder:   NewDecoder(),
		logger:    logger,
		metrics:   opts.Metrics,
		events:    opts.Events,
		userAgent: opts.UserAgent,
	}
	if opts.OnExpired != nil {
		c.OnExpired(opts.OnExpired)
	}
	return c, nil
}

// OnExpired registers the expiry handler, replacing any previous one.
// Passing nil removes the handler.
func (c *Client) OnExpired(handler ExpiryHandler) {
	if handler == nil {
		c.onExpired.Store(nil)
		return
	}
	c.onExpired.Store(&handler)
}

// Dispatch sends the request with the stored token attached when there is one.
//
// A 401 carrying the expiry signal clears the token, fires the expiry handler and
// returns the response together with ErrSessionExpired. Any other status is returned
// untouched with a nil error. Transport failures return a TRANSPORT_ERROR and never
// touch the token. Nothing is retried.
func (c *Client) Dispatch(ctx context.Context, req Request) (*Response, error) {
	target, err := c.resolve(req)
	if err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	token, err := c.tokens.get(ctx)
	if err != nil {
		c.logger.Warn("read session token failed; sending unauthenticated", zap.Error(err))
		token = ""
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid request", map[string]any{"error": err.Error()})
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	} else {
		httpReq.Header.Del("Authorization")
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.RecordError(req.Path, method, apperrors.CodeTransport)
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, apperrors.NewTransportError(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.metrics.RecordError(req.Path, method, apperrors.CodeTransport)
		c.logger.Warn("read response failed",
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, apperrors.NewTransportError(err)
	}
	c.metrics.RecordRequest(req.Path, method, httpResp.StatusCode, time.Since(start))

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}

	if c.detector.Expired(resp.StatusCode, resp.Body) {
		c.metrics.RecordError(req.Path, method, apperrors.CodeSessionExpired)
		c.expire(ctx, token, method, req.Path, requestID)
		return resp, apperrors.ErrSessionExpired
	}

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID))
	return resp, nil
}

// expire clears the token that was sent and notifies observers. Responses that
// arrive after the slot already changed (a concurrent expiry or a new login)
// leave the store alone and do not fire the handler again.
func (c *Client) expire(ctx context.Context, sent, method, path, requestID string) {
	cleared, err := c.tokens.clearIf(ctx, sent)
	if err != nil {
		c.logger.Error("clear expired session token failed", zap.Error(err), zap.String("request_id", requestID))
		return
	}
	if !cleared {
		c.logger.Debug("stale expiry response ignored", zap.String("path", path), zap.String("request_id", requestID))
		return
	}

	c.logger.Info("session expired", zap.String("method", method), zap.String("path", path), zap.String("request_id", requestID))

	if c.events != nil {
		subject, _ := c.decoder.Subject(sent)
		evt := events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventSessionExpired,
			Subject:   subject,
			Timestamp: time.Now().UTC(),
			Payload:   events.SessionExpiredPayload{Method: method, Path: path},
		}
		if err := c.events.Publish(ctx, evt); err != nil {
			c.logger.Warn("session expired subscribers failed", zap.Error(err))
		}
	}

	if handler := c.onExpired.Load(); handler != nil && *handler != nil {
		(*handler)()
	}
}

func (c *Client) resolve(req Request) (string, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return "", apperrors.NewValidationError("request path is required", nil)
	}
	if strings.Contains(path, "://") || strings.HasPrefix(path, "//") {
		return "", apperrors.NewValidationError("request path must be relative to the base url", map[string]any{"path": path})
	}
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	return target, nil
}

// SetToken stores a freshly issued token, moving the session to Active.
func (c *Client) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.NewValidationError("token is empty", nil)
	}
	return c.tokens.set(ctx, token)
}

// ClearToken removes the stored token.
func (c *Client) ClearToken(ctx context.Context) error {
	return c.tokens.remove(ctx)
}

// Token returns the stored raw token, or "" when signed out.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.tokens.get(ctx)
}

// State reports the lifecycle position.
func (c *Client) State(ctx context.Context) (State, error) {
	token, err := c.tokens.get(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return StateExpired, nil
	}
	return StateActive, nil
}

// Session decodes the stored token. It returns ErrSessionExpired when no token is stored.
func (c *Client) Session(ctx context.Context) (*domain.SessionToken, error) {
	token, err := c.tokens.get(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, apperrors.ErrSessionExpired
	}
	return c.decoder.Decode(token)
}
