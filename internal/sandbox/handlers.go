package sandbox

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/classroom-client/internal/api/dto"
	"github.com/spec-kit/classroom-client/internal/domain"
	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

const maxUploadBytes = 16 << 20

func (s *Server) live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive", "service": "classroom-sandbox"})
}

func (s *Server) issue(c *fiber.Ctx, status int, user *domain.User) error {
	token, _, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.Status(status).JSON(dto.AuthResponse{AccessToken: token, TokenType: "bearer"})
}

// login handles POST /auth/login.
func (s *Server) login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	user, err := s.store.Authenticate(req.Email, req.Password)
	if err != nil {
		return err
	}
	return s.issue(c, http.StatusOK, user)
}

// register handles POST /auth/register.
func (s *Server) register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		return apperrors.NewValidationError("name, email and a password of 8+ characters required", nil)
	}
	if req.Role == "" {
		req.Role = domain.RoleStudent
	}
	if !req.Role.Valid() {
		return apperrors.NewValidationError("invalid role", nil)
	}
	user, err := s.store.CreateUser(req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		return err
	}
	return s.issue(c, http.StatusCreated, user)
}

// social handles POST /auth/social.
func (s *Server) social(c *fiber.Ctx) error {
	var req dto.SocialAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	provider := strings.ToLower(req.Provider)
	if provider != "google" && provider != "github" {
		return apperrors.NewValidationError("unsupported provider", map[string]any{"provider": req.Provider})
	}
	if req.AccessToken == "" {
		return apperrors.NewUnauthorized("provider token required")
	}
	user, err := s.store.SocialUser(provider, req.AccessToken)
	if err != nil {
		return err
	}
	return s.issue(c, http.StatusOK, user)
}

// recoverPassword handles POST /auth/password/recover. The PIN is logged instead of mailed.
func (s *Server) recoverPassword(c *fiber.Ctx) error {
	var req dto.PasswordRecoverRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return apperrors.NewValidationError("email required", nil)
	}
	pin, err := s.store.IssuePIN(req.Email)
	if err != nil {
		return err
	}
	if pin != "" {
		s.logger.Info("recovery pin issued", zap.String("email", req.Email), zap.String("pin", pin))
		if s.pinSink != nil {
			s.pinSink(req.Email, pin)
		}
	}
	return c.JSON(dto.MessageResponse{Detail: "if the account exists a pin was sent"})
}

// verifyPIN handles POST /auth/pin/verify.
func (s *Server) verifyPIN(c *fiber.Ctx) error {
	var req dto.PINVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := s.store.VerifyPIN(req.Email, req.PIN); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Detail: "pin valid"})
}

// setPassword handles POST /auth/password/set.
func (s *Server) setPassword(c *fiber.Ctx) error {
	var req dto.PasswordSetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.Password) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters", nil)
	}
	if err := s.store.SetPassword(req.Email, req.PIN, req.Password); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Detail: "password updated"})
}

func (s *Server) protectedPing(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user_id": principal.UserID, "role": principal.Role})
}

func (s *Server) getUser(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	user, err := s.store.User(principal.UserID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (s *Server) updateUser(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := s.store.UpdateUser(principal.UserID, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (s *Server) listCourses(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(s.store.ListCourses(principal.UserID))
}

func (s *Server) getCourse(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	course, err := s.store.Course(principal.UserID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(course)
}

func parseCourse(c *fiber.Ctx) (dto.CourseRequest, error) {
	var req dto.CourseRequest
	if err := c.BodyParser(&req); err != nil {
		return req, apperrors.NewValidationError("invalid payload", nil)
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return req, apperrors.NewValidationError("title required", nil)
	}
	return req, nil
}

func (s *Server) createCourse(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	req, err := parseCourse(c)
	if err != nil {
		return err
	}
	course, err := s.store.CreateCourse(principal.UserID, req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(course)
}

func (s *Server) updateCourse(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	req, err := parseCourse(c)
	if err != nil {
		return err
	}
	course, err := s.store.UpdateCourse(principal.UserID, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(course)
}

func (s *Server) deleteCourse(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCourse(principal.UserID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) enroll(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.EnrollRequest
	if err := c.BodyParser(&req); err != nil || req.AccessCode == "" {
		return apperrors.NewValidationError("access_code required", nil)
	}
	course, err := s.store.Enroll(principal.UserID, req.AccessCode)
	if err != nil {
		return err
	}
	return c.JSON(course)
}

func (s *Server) listAssignments(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	items, err := s.store.ListAssignments(principal.UserID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (s *Server) getAssignment(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	a, err := s.store.Assignment(principal.UserID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func parseAssignment(c *fiber.Ctx) (dto.AssignmentRequest, error) {
	var req dto.AssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return req, apperrors.NewValidationError("invalid payload", nil)
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return req, apperrors.NewValidationError("title required", nil)
	}
	if req.MaxGrade <= 0 || req.MaxGrade > 100 {
		return req, apperrors.NewValidationError("max_grade must be between 1 and 100", nil)
	}
	return req, nil
}

func (s *Server) createAssignment(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	req, err := parseAssignment(c)
	if err != nil {
		return err
	}
	a, err := s.store.CreateAssignment(principal.UserID, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(a)
}

func (s *Server) updateAssignment(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	req, err := parseAssignment(c)
	if err != nil {
		return err
	}
	a, err := s.store.UpdateAssignment(principal.UserID, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (s *Server) deleteAssignment(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAssignment(principal.UserID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// submit handles the multipart upload; the file part holds base64 text.
func (s *Server) submit(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file part required", nil)
	}
	if header.Size > maxUploadBytes {
		return apperrors.NewValidationError("file too large", map[string]any{"max_bytes": maxUploadBytes})
	}
	f, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer f.Close()

	encoded, err := io.ReadAll(f)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	content, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return apperrors.NewValidationError("file content must be base64", nil)
	}

	fileName := c.FormValue("file_name", header.Filename)
	mimeType := c.FormValue("mime_type", "application/octet-stream")
	sub, err := s.store.Submit(principal.UserID, c.Params("id"), fileName, mimeType, content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(sub)
}

func (s *Server) listSubmissions(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	items, err := s.store.ListSubmissions(principal.UserID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (s *Server) submissionFile(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	sub, content, err := s.store.SubmissionFile(principal.UserID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(domain.FilePayload{
		FileName: sub.FileName,
		MimeType: sub.MimeType,
		Content:  base64.StdEncoding.EncodeToString(content),
	})
}

func (s *Server) addFeedback(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Grade < 0 || req.Grade > 100 {
		return apperrors.NewValidationError("grade must be between 0 and 100", nil)
	}
	fb, err := s.store.AddFeedback(principal.UserID, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fb)
}

func (s *Server) listFeedback(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	items, err := s.store.ListFeedback(principal.UserID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (s *Server) courseStatistics(c *fiber.Ctx) error {
	principal, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	stats, err := s.store.CourseStatistics(principal.UserID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
