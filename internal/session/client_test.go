package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spec-kit/classroom-client/internal/events"
	"github.com/spec-kit/classroom-client/internal/observability"
	"github.com/spec-kit/classroom-client/internal/repository"
	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

var testDetector = ExpiryDetector{Code: "token_expired", Marker: "token expirado"}

type recordedRequest struct {
	auth      string
	hasAuth   bool
	path      string
	requestID string
}

type fakeBackend struct {
	server *httptest.Server
	mu     sync.Mutex
	seen   []recordedRequest
	hits   atomic.Int32
}

func newFakeBackend(t *testing.T, status int, body string) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	fb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.hits.Add(1)
		_, has := r.Header["Authorization"]
		fb.mu.Lock()
		fb.seen = append(fb.seen, recordedRequest{
			auth:      r.Header.Get("Authorization"),
			hasAuth:   has,
			path:      r.URL.Path,
			requestID: r.Header.Get(RequestIDHeader),
		})
		fb.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) last(t *testing.T) recordedRequest {
	t.Helper()
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.seen) == 0 {
		t.Fatal("backend saw no requests")
	}
	return fb.seen[len(fb.seen)-1]
}

func newTestClient(t *testing.T, baseURL string, store TokenStore, opts ...func(*Options)) *Client {
	t.Helper()
	o := Options{BaseURL: baseURL, Store: store, Detector: testDetector}
	for _, fn := range opts {
		fn(&o)
	}
	c, err := New(o)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func storeWith(t *testing.T, token string) *repository.MemoryTokenStore {
	t.Helper()
	store := repository.NewMemoryTokenStore()
	if token != "" {
		if err := store.Set(context.Background(), token); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	return store
}

func storedToken(t *testing.T, store TokenStore) string {
	t.Helper()
	tok, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	return tok
}

func TestDispatchAttachesBearerAndPassesThrough(t *testing.T) {
	backend := newFakeBackend(t, http.StatusOK, `{"ok":true}`)
	store := storeWith(t, "T1")
	var fired atomic.Int32
	client := newTestClient(t, backend.server.URL, store, func(o *Options) {
		o.OnExpired = func() { fired.Add(1) }
	})

	resp, err := client.Dispatch(context.Background(), Request{Method: http.MethodGet, Path: "/auth/protected"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != `{"ok":true}` {
		t.Fatalf("response altered: %d %s", resp.StatusCode, resp.Body)
	}

	seen := backend.last(t)
	if seen.auth != "Bearer T1" {
		t.Fatalf("authorization = %q", seen.auth)
	}
	if seen.path != "/auth/protected" {
		t.Fatalf("path = %q", seen.path)
	}
	if seen.requestID == "" {
		t.Fatal("request id header missing")
	}
	if got := storedToken(t, store); got != "T1" {
		t.Fatalf("token changed to %q", got)
	}
	if fired.Load() != 0 {
		t.Fatal("expiry handler fired on success")
	}
}

func TestDispatchWithoutTokenSendsNoAuthorization(t *testing.T) {
	backend := newFakeBackend(t, http.StatusOK, `{}`)
	client := newTestClient(t, backend.server.URL, storeWith(t, ""))

	req := Request{Path: "/courses", Header: http.Header{"Authorization": []string{"Bearer stale"}}}
	if _, err := client.Dispatch(context.Background(), req); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if backend.last(t).hasAuth {
		t.Fatal("authorization header must not be sent without a token")
	}
}

func TestDispatchExpiredClearsTokenAndFiresOnce(t *testing.T) {
	backend := newFakeBackend(t, http.StatusUnauthorized, `{"detail":"token expirado"}`)
	store := storeWith(t, "T1")
	var fired atomic.Int32
	client := newTestClient(t, backend.server.URL, store, func(o *Options) {
		o.OnExpired = func() { fired.Add(1) }
	})

	resp, err := client.Dispatch(context.Background(), Request{Path: "/courses"})
	if !errors.Is(err, apperrors.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected the 401 response back, got %+v", resp)
	}
	if got := storedToken(t, store); got != "" {
		t.Fatalf("token not cleared: %q", got)
	}
	if fired.Load() != 1 {
		t.Fatalf("handler fired %d times, want 1", fired.Load())
	}
	if backend.hits.Load() != 1 {
		t.Fatalf("request retried: %d hits", backend.hits.Load())
	}

	state, err := client.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state != StateExpired {
		t.Fatalf("state = %q", state)
	}
}

func TestDispatchStructuredExpiryCode(t *testing.T) {
	backend := newFakeBackend(t, http.StatusUnauthorized, `{"detail":"Signature has expired","code":"token_expired"}`)
	store := storeWith(t, "T1")
	client := newTestClient(t, backend.server.URL, store)

	if _, err := client.Dispatch(context.Background(), Request{Path: "/courses"}); !errors.Is(err, apperrors.ErrSessionExpired) {
		t.Fatalf("err = %v", err)
	}
	if got := storedToken(t, store); got != "" {
		t.Fatalf("token not cleared: %q", got)
	}
}

func TestDispatchNonExpiryErrorsPassThrough(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"401 without marker", http.StatusUnauthorized, `{"detail":"invalid credentials"}`},
		{"403 forbidden", http.StatusForbidden, `{"detail":"forbidden"}`},
		{"500 mentioning marker", http.StatusInternalServerError, `{"detail":"token expirado"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newFakeBackend(t, tc.status, tc.body)
			store := storeWith(t, "T1")
			var fired atomic.Int32
			client := newTestClient(t, backend.server.URL, store, func(o *Options) {
				o.OnExpired = func() { fired.Add(1) }
			})

			resp, err := client.Dispatch(context.Background(), Request{Path: "/courses"})
			if err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if resp.StatusCode != tc.status || string(resp.Body) != tc.body {
				t.Fatalf("response altered: %d %s", resp.StatusCode, resp.Body)
			}
			if got := storedToken(t, store); got != "T1" {
				t.Fatalf("token changed to %q", got)
			}
			if fired.Load() != 0 {
				t.Fatal("handler must not fire")
			}

			var de *apperrors.DomainError
			if !errors.As(resp.Err(), &de) || de.HTTPStatus != tc.status {
				t.Fatalf("resp.Err() = %v", resp.Err())
			}
		})
	}
}

func TestOnExpiredLastWriterWins(t *testing.T) {
	backend := newFakeBackend(t, http.StatusUnauthorized, `{"detail":"token expirado"}`)
	store := storeWith(t, "T1")
	client := newTestClient(t, backend.server.URL, store)

	var first, second atomic.Int32
	client.OnExpired(func() { first.Add(1) })
	client.OnExpired(func() { second.Add(1) })

	_, _ = client.Dispatch(context.Background(), Request{Path: "/courses"})

	if first.Load() != 0 {
		t.Fatal("replaced handler fired")
	}
	if second.Load() != 1 {
		t.Fatalf("latest handler fired %d times", second.Load())
	}

	client.OnExpired(nil)
	if err := client.SetToken(context.Background(), "T2"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	_, _ = client.Dispatch(context.Background(), Request{Path: "/courses"})
	if second.Load() != 1 {
		t.Fatal("removed handler fired")
	}
}

func TestTransportFailureKeepsToken(t *testing.T) {
	backend := newFakeBackend(t, http.StatusOK, `{}`)
	url := backend.server.URL
	backend.server.Close()

	store := storeWith(t, "T1")
	metrics := observability.NewMetrics()
	var fired atomic.Int32
	client := newTestClient(t, url, store, func(o *Options) {
		o.OnExpired = func() { fired.Add(1) }
		o.Metrics = metrics
	})

	resp, err := client.Dispatch(context.Background(), Request{Path: "/courses"})
	if resp != nil {
		t.Fatalf("expected no response, got %+v", resp)
	}
	var de *apperrors.DomainError
	if !errors.As(err, &de) || de.Code != apperrors.CodeTransport {
		t.Fatalf("err = %v, want transport error", err)
	}
	if got := storedToken(t, store); got != "T1" {
		t.Fatalf("token changed to %q", got)
	}
	if fired.Load() != 0 {
		t.Fatal("handler fired on transport failure")
	}
	if metrics.Snapshot().Errors["/courses|GET|"+apperrors.CodeTransport] != 1 {
		t.Fatalf("transport error not recorded: %+v", metrics.Snapshot().Errors)
	}
}

func TestConcurrentExpiryFiresOnce(t *testing.T) {
	backend := newFakeBackend(t, http.StatusUnauthorized, `{"detail":"token expirado"}`)
	store := storeWith(t, "T1")
	var fired atomic.Int32
	client := newTestClient(t, backend.server.URL, store, func(o *Options) {
		o.OnExpired = func() { fired.Add(1) }
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Dispatch(context.Background(), Request{Path: "/courses"})
			if err != nil && !errors.Is(err, apperrors.ErrSessionExpired) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if fired.Load() != 1 {
		t.Fatalf("handler fired %d times, want 1", fired.Load())
	}
}

func TestStaleExpiryKeepsNewerToken(t *testing.T) {
	store := storeWith(t, "T1")
	var client *Client
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a new login lands while this request is in flight
		if err := client.SetToken(r.Context(), "T2"); err != nil {
			t.Errorf("set token: %v", err)
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"token expirado"}`))
	}))
	defer server.Close()

	var fired atomic.Int32
	client = newTestClient(t, server.URL, store, func(o *Options) {
		o.OnExpired = func() { fired.Add(1) }
	})

	_, err := client.Dispatch(context.Background(), Request{Path: "/courses"})
	if !errors.Is(err, apperrors.ErrSessionExpired) {
		t.Fatalf("err = %v", err)
	}
	if got := storedToken(t, store); got != "T2" {
		t.Fatalf("newer token was wiped: %q", got)
	}
	if fired.Load() != 0 {
		t.Fatal("handler fired for a stale response")
	}
}

func TestExpiryPublishesEvent(t *testing.T) {
	backend := newFakeBackend(t, http.StatusUnauthorized, `{"detail":"token expirado"}`)
	dispatcher := events.NewInMemoryDispatcher()
	var got []events.Event
	dispatcher.Subscribe(events.EventSessionExpired, func(_ context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	})

	token := signedToken(t, map[string]any{"sub": "42"})
	client := newTestClient(t, backend.server.URL, storeWith(t, token), func(o *Options) {
		o.Events = dispatcher
	})
	_, _ = client.Dispatch(context.Background(), Request{Method: http.MethodPost, Path: "/courses"})

	if len(got) != 1 {
		t.Fatalf("events = %d, want 1", len(got))
	}
	if got[0].Subject != "42" {
		t.Fatalf("subject = %q", got[0].Subject)
	}
	payload, ok := got[0].Payload.(events.SessionExpiredPayload)
	if !ok || payload.Method != http.MethodPost || payload.Path != "/courses" {
		t.Fatalf("payload = %+v", got[0].Payload)
	}
}

func TestBaseURLPrefixAndQuery(t *testing.T) {
	var path, rawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		rawQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	client := newTestClient(t, server.URL+"/api/", storeWith(t, ""))

	req := Request{Path: "courses", Query: map[string][]string{"page": {"2"}}}
	if _, err := client.Dispatch(context.Background(), req); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if path != "/api/courses" {
		t.Fatalf("path = %q", path)
	}
	if rawQuery != "page=2" {
		t.Fatalf("query = %q", rawQuery)
	}
}

func TestDispatchRejectsAbsolutePaths(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1", storeWith(t, "T1"))
	_, err := client.Dispatch(context.Background(), Request{Path: "https://evil.example.com/steal"})
	var de *apperrors.DomainError
	if !errors.As(err, &de) || de.Code != apperrors.CodeValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{BaseURL: "::bad", Store: repository.NewMemoryTokenStore()}); err == nil {
		t.Fatal("expected base url error")
	}
	if _, err := New(Options{BaseURL: "http://localhost"}); err == nil {
		t.Fatal("expected missing store error")
	}
}

func TestSessionDecodesStoredToken(t *testing.T) {
	client := newTestClient(t, "http://localhost", storeWith(t, ""))
	if _, err := client.Session(context.Background()); !errors.Is(err, apperrors.ErrSessionExpired) {
		t.Fatalf("empty slot err = %v", err)
	}

	token := signedToken(t, map[string]any{"sub": "7", "role": "teacher"})
	if err := client.SetToken(context.Background(), token); err != nil {
		t.Fatalf("set token: %v", err)
	}
	sess, err := client.Session(context.Background())
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if sess.Subject != "7" || sess.Role != "teacher" {
		t.Fatalf("session = %+v", sess)
	}
	state, _ := client.State(context.Background())
	if state != StateActive {
		t.Fatalf("state = %q", state)
	}
}
