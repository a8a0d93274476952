package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spec-kit/classroom-client/internal/api/dto"
	"github.com/spec-kit/classroom-client/internal/domain"
	"github.com/spec-kit/classroom-client/internal/session"
	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

// MaxAttachmentBytes caps the raw size of a submitted file.
const MaxAttachmentBytes = 10 << 20

// AssignmentService wraps assignment CRUD and the submission round-trip.
type AssignmentService struct {
	client SessionClient
}

// NewAssignmentService constructs the service.
func NewAssignmentService(client SessionClient) *AssignmentService {
	return &AssignmentService{client: client}
}

// List returns the assignments of a course.
func (s *AssignmentService) List(ctx context.Context, courseID string) ([]domain.Assignment, error) {
	if err := requireID("course_id", courseID); err != nil {
		return nil, err
	}
	var out []domain.Assignment
	if err := callJSON(ctx, s.client, http.MethodGet, resourcePath("courses", courseID, "assignments"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one assignment.
func (s *AssignmentService) Get(ctx context.Context, assignmentID string) (*domain.Assignment, error) {
	if err := requireID("assignment_id", assignmentID); err != nil {
		return nil, err
	}
	var out domain.Assignment
	if err := callJSON(ctx, s.client, http.MethodGet, resourcePath("assignments", assignmentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create adds an assignment to a course.
func (s *AssignmentService) Create(ctx context.Context, courseID string, req dto.AssignmentRequest) (*domain.Assignment, error) {
	if err := requireID("course_id", courseID); err != nil {
		return nil, err
	}
	if err := validateAssignment(&req); err != nil {
		return nil, err
	}
	var out domain.Assignment
	if err := callJSON(ctx, s.client, http.MethodPost, resourcePath("courses", courseID, "assignments"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces an assignment's editable fields.
func (s *AssignmentService) Update(ctx context.Context, assignmentID string, req dto.AssignmentRequest) (*domain.Assignment, error) {
	if err := requireID("assignment_id", assignmentID); err != nil {
		return nil, err
	}
	if err := validateAssignment(&req); err != nil {
		return nil, err
	}
	var out domain.Assignment
	if err := callJSON(ctx, s.client, http.MethodPut, resourcePath("assignments", assignmentID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an assignment.
func (s *AssignmentService) Delete(ctx context.Context, assignmentID string) error {
	if err := requireID("assignment_id", assignmentID); err != nil {
		return err
	}
	return callJSON(ctx, s.client, http.MethodDelete, resourcePath("assignments", assignmentID), nil, nil)
}

// Submit uploads a file as multipart/form-data. The file part carries the
// base64-encoded content, as the backend expects.
func (s *AssignmentService) Submit(ctx context.Context, assignmentID string, file domain.Attachment) (*domain.Submission, error) {
	if err := requireID("assignment_id", assignmentID); err != nil {
		return nil, err
	}
	if err := validateAttachment(&file); err != nil {
		return nil, err
	}

	body, contentType, err := encodeSubmission(file)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	req := session.Request{
		Method:      http.MethodPost,
		Path:        resourcePath("assignments", assignmentID, "submissions"),
		Body:        body,
		ContentType: contentType,
	}
	var out domain.Submission
	if err := call(ctx, s.client, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSubmissions returns every submission for teachers and the caller's own for students.
func (s *AssignmentService) ListSubmissions(ctx context.Context, assignmentID string) ([]domain.Submission, error) {
	if err := requireID("assignment_id", assignmentID); err != nil {
		return nil, err
	}
	var out []domain.Submission
	if err := callJSON(ctx, s.client, http.MethodGet, resourcePath("assignments", assignmentID, "submissions"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DownloadSubmission fetches the submitted file and writes it under dir.
// It returns the path of the written file.
func (s *AssignmentService) DownloadSubmission(ctx context.Context, submissionID, dir string) (string, error) {
	if err := requireID("submission_id", submissionID); err != nil {
		return "", err
	}
	if strings.TrimSpace(dir) == "" {
		return "", apperrors.NewValidationError("download directory is required", map[string]any{"field": "dir"})
	}

	var payload domain.FilePayload
	if err := callJSON(ctx, s.client, http.MethodGet, resourcePath("submissions", submissionID, "file"), nil, &payload); err != nil {
		return "", err
	}
	content, err := base64.StdEncoding.DecodeString(payload.Content)
	if err != nil {
		return "", apperrors.NewInternalError(fmt.Errorf("decode file content: %w", err))
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", apperrors.NewInternalError(err)
	}
	path := filepath.Join(dir, safeFileName(payload.FileName, submissionID))
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return path, nil
}

func encodeSubmission(file domain.Attachment) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("file_name", file.FileName); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("mime_type", file.MimeType); err != nil {
		return nil, "", err
	}
	part, err := w.CreateFormFile("file", file.FileName)
	if err != nil {
		return nil, "", err
	}
	enc := base64.NewEncoder(base64.StdEncoding, part)
	if _, err := enc.Write(file.Content); err != nil {
		return nil, "", err
	}
	if err := enc.Close(); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func validateAssignment(req *dto.AssignmentRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if req.MaxGrade == 0 {
		req.MaxGrade = 100
	}
	if req.MaxGrade < 0 || req.MaxGrade > 100 {
		return apperrors.NewValidationError("max grade must be between 1 and 100", map[string]any{"field": "max_grade"})
	}
	return nil
}

func validateAttachment(file *domain.Attachment) error {
	file.FileName = filepath.Base(strings.TrimSpace(file.FileName))
	if file.FileName == "" || file.FileName == "." || file.FileName == string(filepath.Separator) {
		return apperrors.NewValidationError("file name is required", map[string]any{"field": "file_name"})
	}
	if len(file.Content) == 0 {
		return apperrors.NewValidationError("file is empty", map[string]any{"field": "file"})
	}
	if len(file.Content) > MaxAttachmentBytes {
		return apperrors.NewValidationError("file is too large", map[string]any{"field": "file", "max_bytes": MaxAttachmentBytes})
	}
	if file.MimeType == "" {
		file.MimeType = mime.TypeByExtension(filepath.Ext(file.FileName))
	}
	if file.MimeType == "" {
		file.MimeType = "application/octet-stream"
	}
	return nil
}

// safeFileName strips directories so neither a server-chosen name nor the
// fallback id can escape the download dir.
func safeFileName(name, fallback string) string {
	if base := baseName(name); base != "" {
		return base
	}
	if base := baseName(fallback); base != "" {
		return base + ".bin"
	}
	return "download.bin"
}

func baseName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch base {
	case "", ".", "..", "/":
		return ""
	}
	return base
}
