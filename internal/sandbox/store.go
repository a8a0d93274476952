package sandbox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/classroom-client/internal/api/dto"
	"github.com/spec-kit/classroom-client/internal/domain"
	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

const pinTTL = 15 * time.Minute

type userRecord struct {
	domain.User
	PasswordHash string
}

type submissionRecord struct {
	domain.Submission
	Content []byte
}

type pinRecord struct {
	code      string
	expiresAt time.Time
}

// Store is the sandbox's in-memory state. Every method enforces the
// backend's ownership rules and returns DomainErrors ready to render.
type Store struct {
	mu           sync.RWMutex
	bcryptCost   int
	now          func() time.Time
	users        map[string]*userRecord
	usersByEmail map[string]string
	courses      map[string]*domain.Course
	courseByCode map[string]string
	enrollments  map[string]map[string]struct{}
	assignments  map[string]*domain.Assignment
	submissions  map[string]*submissionRecord
	feedback     map[string][]domain.Feedback
	pins         map[string]pinRecord
}

// NewStore returns an empty store.
func NewStore(bcryptCost int) *Store {
	return &Store{
		bcryptCost:   bcryptCost,
		now:          time.Now,
		users:        map[string]*userRecord{},
		usersByEmail: map[string]string{},
		courses:      map[string]*domain.Course{},
		courseByCode: map[string]string{},
		enrollments:  map[string]map[string]struct{}{},
		assignments:  map[string]*domain.Assignment{},
		submissions:  map[string]*submissionRecord{},
		feedback:     map[string][]domain.Feedback{},
		pins:         map[string]pinRecord{},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser registers an account.
func (s *Store) CreateUser(name, email, password string, role domain.Role) (*domain.User, error) {
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUserLocked(name, email, hash, role)
}

func (s *Store) createUserLocked(name, email, hash string, role domain.Role) (*domain.User, error) {
	key := normalizeEmail(email)
	if _, exists := s.usersByEmail[key]; exists {
		return nil, apperrors.NewConflict("email already registered", nil)
	}
	rec := &userRecord{
		User: domain.User{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(name),
			Email:     key,
			Role:      role,
			CreatedAt: s.now().UTC(),
		},
		PasswordHash: hash,
	}
	s.users[rec.ID] = rec
	s.usersByEmail[key] = rec.ID
	user := rec.User
	return &user, nil
}

// Authenticate checks email and password.
func (s *Store) Authenticate(email, password string) (*domain.User, error) {
	s.mu.RLock()
	id, ok := s.usersByEmail[normalizeEmail(email)]
	var rec userRecord
	if ok {
		rec = *s.users[id]
	}
	s.mu.RUnlock()

	if !ok || rec.PasswordHash == "" || ComparePassword(rec.PasswordHash, password) != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	user := rec.User
	return &user, nil
}

// SocialUser finds or creates the account bound to a provider identity.
// The sandbox cannot verify provider tokens, so the token itself names the identity.
func (s *Store) SocialUser(provider, accessToken string) (*domain.User, error) {
	sum := sha256.Sum256([]byte(provider + ":" + accessToken))
	handle := hex.EncodeToString(sum[:6])
	email := fmt.Sprintf("%s@%s.sandbox", handle, provider)

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.usersByEmail[email]; ok {
		user := s.users[id].User
		return &user, nil
	}
	return s.createUserLocked(provider+" user "+handle, email, "", domain.RoleStudent)
}

// IssuePIN creates a recovery PIN for the email. Unknown emails get ("", nil)
// so callers cannot probe which accounts exist.
func (s *Store) IssuePIN(email string) (string, error) {
	key := normalizeEmail(email)
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByEmail[key]; !ok {
		return "", nil
	}
	s.pins[key] = pinRecord{code: code, expiresAt: s.now().Add(pinTTL)}
	return code, nil
}

// VerifyPIN checks a PIN without consuming it.
func (s *Store) VerifyPIN(email, pin string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verifyPINLocked(normalizeEmail(email), pin)
}

func (s *Store) verifyPINLocked(key, pin string) error {
	rec, ok := s.pins[key]
	if !ok || rec.code != pin || s.now().After(rec.expiresAt) {
		return apperrors.NewValidationError("invalid or expired pin", nil)
	}
	return nil
}

// SetPassword consumes the PIN and replaces the password hash.
func (s *Store) SetPassword(email, pin, password string) error {
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	key := normalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.verifyPINLocked(key, pin); err != nil {
		return err
	}
	id, ok := s.usersByEmail[key]
	if !ok {
		return apperrors.NewNotFound("user", nil)
	}
	s.users[id].PasswordHash = hash
	delete(s.pins, key)
	return nil
}

// User returns a profile; callers may only read their own.
func (s *Store) User(callerID, userID string) (*domain.User, error) {
	if callerID != userID {
		return nil, apperrors.NewForbidden("cannot access another user's profile")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, apperrors.NewNotFound("user", nil)
	}
	user := rec.User
	return &user, nil
}

// UpdateUser edits the caller's own profile.
func (s *Store) UpdateUser(callerID, userID string, req dto.UpdateProfileRequest) (*domain.User, error) {
	if callerID != userID {
		return nil, apperrors.NewForbidden("cannot edit another user's profile")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return nil, apperrors.NewNotFound("user", nil)
	}
	if req.Name != nil {
		rec.Name = strings.TrimSpace(*req.Name)
	}
	if req.AvatarURL != nil {
		rec.AvatarURL = *req.AvatarURL
	}
	user := rec.User
	return &user, nil
}

func (s *Store) roleOf(userID string) domain.Role {
	if rec, ok := s.users[userID]; ok {
		return rec.Role
	}
	return ""
}

func (s *Store) courseLocked(courseID string) (*domain.Course, error) {
	course, ok := s.courses[courseID]
	if !ok {
		return nil, apperrors.NewNotFound("course", map[string]any{"id": courseID})
	}
	return course, nil
}

func (s *Store) canViewLocked(userID string, course *domain.Course) bool {
	if course.TeacherID == userID {
		return true
	}
	_, enrolled := s.enrollments[course.ID][userID]
	return enrolled
}

func (s *Store) ownedCourseLocked(userID, courseID string) (*domain.Course, error) {
	course, err := s.courseLocked(courseID)
	if err != nil {
		return nil, err
	}
	if course.TeacherID != userID {
		return nil, apperrors.NewForbidden("only the course teacher may do this")
	}
	return course, nil
}

// ListCourses returns taught courses for teachers and enrolled courses for students.
func (s *Store) ListCourses(userID string) []domain.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Course{}
	for _, c := range s.courses {
		if s.canViewLocked(userID, c) {
			course := *c
			if course.TeacherID != userID {
				course.AccessCode = ""
			}
			out = append(out, course)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Course returns one visible course.
func (s *Store) Course(userID, courseID string) (*domain.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.courseLocked(courseID)
	if err != nil {
		return nil, err
	}
	if !s.canViewLocked(userID, c) {
		return nil, apperrors.NewForbidden("not enrolled in this course")
	}
	course := *c
	if course.TeacherID != userID {
		course.AccessCode = ""
	}
	return &course, nil
}

// CreateCourse adds a course for a teacher.
func (s *Store) CreateCourse(userID string, req dto.CourseRequest) (*domain.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roleOf(userID) != domain.RoleTeacher {
		return nil, apperrors.NewForbidden("teacher role required")
	}
	now := s.now().UTC()
	course := &domain.Course{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		TeacherID:   userID,
		AccessCode:  strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8]),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.courses[course.ID] = course
	s.courseByCode[course.AccessCode] = course.ID
	s.enrollments[course.ID] = map[string]struct{}{}
	out := *course
	return &out, nil
}

// UpdateCourse edits a course owned by the caller.
func (s *Store) UpdateCourse(userID, courseID string, req dto.CourseRequest) (*domain.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	course, err := s.ownedCourseLocked(userID, courseID)
	if err != nil {
		return nil, err
	}
	course.Title = req.Title
	course.Description = req.Description
	course.UpdatedAt = s.now().UTC()
	out := *course
	return &out, nil
}

// DeleteCourse removes a course and everything under it.
func (s *Store) DeleteCourse(userID, courseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	course, err := s.ownedCourseLocked(userID, courseID)
	if err != nil {
		return err
	}
	for id, a := range s.assignments {
		if a.CourseID == courseID {
			s.deleteAssignmentLocked(id)
		}
	}
	delete(s.courseByCode, course.AccessCode)
	delete(s.enrollments, courseID)
	delete(s.courses, courseID)
	return nil
}

// Enroll adds a student to the course with the given access code.
func (s *Store) Enroll(userID, accessCode string) (*domain.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roleOf(userID) != domain.RoleStudent {
		return nil, apperrors.NewForbidden("student role required")
	}
	courseID, ok := s.courseByCode[strings.ToUpper(strings.TrimSpace(accessCode))]
	if !ok {
		return nil, apperrors.NewNotFound("course", map[string]any{"access_code": accessCode})
	}
	if _, enrolled := s.enrollments[courseID][userID]; enrolled {
		return nil, apperrors.NewConflict("already enrolled", nil)
	}
	s.enrollments[courseID][userID] = struct{}{}
	course := *s.courses[courseID]
	course.AccessCode = ""
	return &course, nil
}

// ListAssignments returns a visible course's assignments.
func (s *Store) ListAssignments(userID, courseID string) ([]domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	course, err := s.courseLocked(courseID)
	if err != nil {
		return nil, err
	}
	if !s.canViewLocked(userID, course) {
		return nil, apperrors.NewForbidden("not enrolled in this course")
	}
	out := []domain.Assignment{}
	for _, a := range s.assignments {
		if a.CourseID == courseID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) visibleAssignmentLocked(userID, assignmentID string) (*domain.Assignment, *domain.Course, error) {
	a, ok := s.assignments[assignmentID]
	if !ok {
		return nil, nil, apperrors.NewNotFound("assignment", map[string]any{"id": assignmentID})
	}
	course, err := s.courseLocked(a.CourseID)
	if err != nil {
		return nil, nil, err
	}
	if !s.canViewLocked(userID, course) {
		return nil, nil, apperrors.NewForbidden("not enrolled in this course")
	}
	return a, course, nil
}

// Assignment returns one visible assignment.
func (s *Store) Assignment(userID, assignmentID string) (*domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, _, err := s.visibleAssignmentLocked(userID, assignmentID)
	if err != nil {
		return nil, err
	}
	out := *a
	return &out, nil
}

// CreateAssignment adds an assignment to an owned course.
func (s *Store) CreateAssignment(userID, courseID string, req dto.AssignmentRequest) (*domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ownedCourseLocked(userID, courseID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	a := &domain.Assignment{
		ID:          uuid.NewString(),
		CourseID:    courseID,
		Title:       req.Title,
		Description: req.Description,
		DueAt:       req.DueAt,
		MaxGrade:    req.MaxGrade,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.assignments[a.ID] = a
	out := *a
	return &out, nil
}

// UpdateAssignment edits an assignment in an owned course.
func (s *Store) UpdateAssignment(userID, assignmentID string, req dto.AssignmentRequest) (*domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, course, err := s.visibleAssignmentLocked(userID, assignmentID)
	if err != nil {
		return nil, err
	}
	if course.TeacherID != userID {
		return nil, apperrors.NewForbidden("only the course teacher may do this")
	}
	a.Title = req.Title
	a.Description = req.Description
	a.DueAt = req.DueAt
	a.MaxGrade = req.MaxGrade
	a.UpdatedAt = s.now().UTC()
	out := *a
	return &out, nil
}

// DeleteAssignment removes an assignment with its submissions.
func (s *Store) DeleteAssignment(userID, assignmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, course, err := s.visibleAssignmentLocked(userID, assignmentID)
	if err != nil {
		return err
	}
	if course.TeacherID != userID {
		return apperrors.NewForbidden("only the course teacher may do this")
	}
	s.deleteAssignmentLocked(assignmentID)
	return nil
}

func (s *Store) deleteAssignmentLocked(assignmentID string) {
	for id, sub := range s.submissions {
		if sub.AssignmentID == assignmentID {
			delete(s.feedback, id)
			delete(s.submissions, id)
		}
	}
	delete(s.assignments, assignmentID)
}

// Submit stores a student's file for an assignment.
func (s *Store) Submit(userID, assignmentID, fileName, mimeType string, content []byte) (*domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, course, err := s.visibleAssignmentLocked(userID, assignmentID)
	if err != nil {
		return nil, err
	}
	if course.TeacherID == userID {
		return nil, apperrors.NewForbidden("teachers cannot submit")
	}
	rec := &submissionRecord{
		Submission: domain.Submission{
			ID:           uuid.NewString(),
			AssignmentID: assignmentID,
			StudentID:    userID,
			FileName:     fileName,
			MimeType:     mimeType,
			SizeBytes:    int64(len(content)),
			Status:       domain.SubmissionStatusSubmitted,
			SubmittedAt:  s.now().UTC(),
		},
		Content: content,
	}
	s.submissions[rec.ID] = rec
	out := rec.Submission
	return &out, nil
}

// ListSubmissions returns all submissions for the teacher, own ones for a student.
func (s *Store) ListSubmissions(userID, assignmentID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, course, err := s.visibleAssignmentLocked(userID, assignmentID)
	if err != nil {
		return nil, err
	}
	out := []domain.Submission{}
	for _, sub := range s.submissions {
		if sub.AssignmentID != assignmentID {
			continue
		}
		if course.TeacherID == userID || sub.StudentID == userID {
			out = append(out, sub.Submission)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// submissionLocked returns the submission with its course when the caller may see it.
func (s *Store) submissionLocked(userID, submissionID string) (*submissionRecord, *domain.Course, error) {
	sub, ok := s.submissions[submissionID]
	if !ok {
		return nil, nil, apperrors.NewNotFound("submission", map[string]any{"id": submissionID})
	}
	a := s.assignments[sub.AssignmentID]
	course, err := s.courseLocked(a.CourseID)
	if err != nil {
		return nil, nil, err
	}
	if course.TeacherID != userID && sub.StudentID != userID {
		return nil, nil, apperrors.NewForbidden("not allowed to access this submission")
	}
	return sub, course, nil
}

// SubmissionFile returns the stored file.
func (s *Store) SubmissionFile(userID, submissionID string) (*domain.Submission, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, _, err := s.submissionLocked(userID, submissionID)
	if err != nil {
		return nil, nil, err
	}
	out := sub.Submission
	return &out, append([]byte(nil), sub.Content...), nil
}

// AddFeedback grades a submission; only the course teacher may.
func (s *Store) AddFeedback(userID, submissionID string, req dto.FeedbackRequest) (*domain.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, course, err := s.submissionLocked(userID, submissionID)
	if err != nil {
		return nil, err
	}
	if course.TeacherID != userID {
		return nil, apperrors.NewForbidden("only the course teacher may grade")
	}
	if maxGrade := s.assignments[sub.AssignmentID].MaxGrade; maxGrade > 0 && req.Grade > maxGrade {
		return nil, apperrors.NewValidationError("grade exceeds the assignment maximum", map[string]any{"max_grade": maxGrade})
	}
	fb := domain.Feedback{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		AuthorID:     userID,
		Grade:        req.Grade,
		Comment:      req.Comment,
		CreatedAt:    s.now().UTC(),
	}
	s.feedback[submissionID] = append(s.feedback[submissionID], fb)
	grade := req.Grade
	sub.Grade = &grade
	sub.Status = domain.SubmissionStatusGraded
	return &fb, nil
}

// ListFeedback returns feedback oldest first.
func (s *Store) ListFeedback(userID, submissionID string) ([]domain.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, _, err := s.submissionLocked(userID, submissionID); err != nil {
		return nil, err
	}
	return append([]domain.Feedback{}, s.feedback[submissionID]...), nil
}

// CourseStatistics aggregates a course for its teacher.
func (s *Store) CourseStatistics(userID, courseID string) (*domain.CourseStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.ownedCourseLocked(userID, courseID); err != nil {
		return nil, err
	}

	stats := &domain.CourseStatistics{CourseID: courseID, Students: len(s.enrollments[courseID])}
	assignmentIDs := map[string]struct{}{}
	for id, a := range s.assignments {
		if a.CourseID == courseID {
			assignmentIDs[id] = struct{}{}
		}
	}
	stats.Assignments = len(assignmentIDs)

	var gradeSum int
	for _, sub := range s.submissions {
		if _, ok := assignmentIDs[sub.AssignmentID]; !ok {
			continue
		}
		stats.Submissions++
		if sub.Grade != nil {
			stats.Graded++
			gradeSum += *sub.Grade
		}
	}
	if stats.Graded > 0 {
		avg := float64(gradeSum) / float64(stats.Graded)
		stats.AverageGrade = &avg
	}
	if expected := stats.Students * stats.Assignments; expected > 0 {
		stats.SubmissionRatio = float64(stats.Submissions) / float64(expected)
	}
	return stats, nil
}
