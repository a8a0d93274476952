package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spec-kit/classroom-client/internal/domain"
	"github.com/spec-kit/classroom-client/internal/repository"
	"github.com/spec-kit/classroom-client/internal/session"
)

func TestSafeFileName(t *testing.T) {
	cases := []struct {
		name     string
		fileName string
		fallback string
		want     string
	}{
		{"plain name", "report.pdf", "sub-1", "report.pdf"},
		{"server path stripped", "../../etc/passwd", "sub-1", "passwd"},
		{"windows separators", `C:\Users\a\notes.txt`, "sub-1", "notes.txt"},
		{"empty uses id", "", "sub-1", "sub-1.bin"},
		{"dot uses id", "..", "sub-1", "sub-1.bin"},
		{"id path stripped", "", "../../x", "x.bin"},
		{"nothing usable", "/", "..", "download.bin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := safeFileName(tc.fileName, tc.fallback); got != tc.want {
				t.Fatalf("safeFileName(%q, %q) = %q, want %q", tc.fileName, tc.fallback, got, tc.want)
			}
		})
	}
}

func TestDownloadWithoutFileNameStaysInDir(t *testing.T) {
	content := []byte("hello")
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.EscapedPath(), "/file") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.FilePayload{
			MimeType: "text/plain",
			Content:  base64.StdEncoding.EncodeToString(content),
		})
	}))
	t.Cleanup(backend.Close)

	client, err := session.New(session.Options{BaseURL: backend.URL, Store: repository.NewMemoryTokenStore()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	svc := NewAssignmentService(client)
	dir := t.TempDir()

	for _, tc := range []struct {
		submissionID string
		want         string
	}{
		{"sub-1", "sub-1.bin"},
		{"../../x", "x.bin"},
	} {
		path, err := svc.DownloadSubmission(context.Background(), tc.submissionID, dir)
		if err != nil {
			t.Fatalf("download %q: %v", tc.submissionID, err)
		}
		if path != filepath.Join(dir, tc.want) {
			t.Fatalf("download %q wrote %s, want %s", tc.submissionID, path, filepath.Join(dir, tc.want))
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if string(got) != string(content) {
			t.Fatalf("content = %q", got)
		}
	}
}
