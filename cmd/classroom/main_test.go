package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/classroom-client/internal/config"
	"github.com/spec-kit/classroom-client/internal/domain"
	"github.com/spec-kit/classroom-client/internal/repository"
	"github.com/spec-kit/classroom-client/internal/sandbox"
)

func startBackend(t *testing.T) (*sandbox.Server, string) {
	t.Helper()
	srv := sandbox.New(config.SandboxConfig{JWTSecret: "cli-test", TokenTTLMinutes: 5, BcryptCost: 4}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Listener(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return srv, "http://" + ln.Addr().String()
}

func setupEnv(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token")
	t.Setenv("API_BASE_URL", baseURL)
	t.Setenv("TOKEN_STORE", config.StoreFile)
	t.Setenv("TOKEN_FILE", tokenFile)
	t.Setenv("DOWNLOAD_DIR", filepath.Join(dir, "downloads"))
	t.Setenv("LOG_LEVEL", "error")
	return tokenFile
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUsageAndUnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t)
	if code != 2 || !strings.Contains(stderr, "usage: classroom") {
		t.Fatalf("code = %d stderr = %q", code, stderr)
	}
	code, _, stderr = runCLI(t, "bogus")
	if code != 2 || !strings.Contains(stderr, `unknown command "bogus"`) {
		t.Fatalf("code = %d stderr = %q", code, stderr)
	}
}

func TestRegisterCreateAndListCourses(t *testing.T) {
	_, baseURL := startBackend(t)
	setupEnv(t, baseURL)

	code, stdout, stderr := runCLI(t, "register", "-name", "Teach", "-email", "t@example.com", "-password", "password123", "-role", "teacher")
	if code != 0 {
		t.Fatalf("register code = %d stderr = %q", code, stderr)
	}
	if !strings.Contains(stdout, "(teacher)") {
		t.Fatalf("register stdout = %q", stdout)
	}

	code, stdout, stderr = runCLI(t, "course-create", "-title", "Chemistry")
	if code != 0 {
		t.Fatalf("course-create code = %d stderr = %q", code, stderr)
	}
	var course domain.Course
	if err := json.Unmarshal([]byte(stdout), &course); err != nil {
		t.Fatalf("decode course: %v (%q)", err, stdout)
	}

	code, stdout, _ = runCLI(t, "courses")
	if code != 0 {
		t.Fatalf("courses code = %d", code)
	}
	var courses []domain.Course
	if err := json.Unmarshal([]byte(stdout), &courses); err != nil || len(courses) != 1 || courses[0].ID != course.ID {
		t.Fatalf("courses = %q err = %v", stdout, err)
	}

	code, _, _ = runCLI(t, "logout")
	if code != 0 {
		t.Fatalf("logout code = %d", code)
	}
	code, _, stderr = runCLI(t, "courses")
	if code != 1 || stderr == "" {
		t.Fatalf("signed out courses code = %d stderr = %q", code, stderr)
	}
}

func TestExpiredSessionPrintsNoticeOnce(t *testing.T) {
	srv, baseURL := startBackend(t)
	tokenFile := setupEnv(t, baseURL)

	stale, err := srv.IssueToken("someone", domain.RoleStudent, -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	store := repository.NewFileTokenStore(tokenFile)
	if err := store.Set(context.Background(), stale); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	code, _, stderr := runCLI(t, "courses")
	if code != 1 {
		t.Fatalf("code = %d", code)
	}
	if n := strings.Count(stderr, expiredNotice); n != 1 {
		t.Fatalf("notice printed %d times: %q", n, stderr)
	}
	if got, _ := store.Get(context.Background()); got != "" {
		t.Fatalf("stale token left on disk: %q", got)
	}
}

func TestValidationErrorsAreReadable(t *testing.T) {
	_, baseURL := startBackend(t)
	setupEnv(t, baseURL)

	code, _, stderr := runCLI(t, "grade", "-grade", "150", "sub-1")
	if code != 1 || !strings.Contains(stderr, "grade must be between 0 and 100") {
		t.Fatalf("code = %d stderr = %q", code, stderr)
	}
	code, _, stderr = runCLI(t, "course")
	if code != 1 || !strings.Contains(stderr, "expected <course-id>") {
		t.Fatalf("code = %d stderr = %q", code, stderr)
	}
}
