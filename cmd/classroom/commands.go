package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/spec-kit/classroom-client/internal/api/dto"
	"github.com/spec-kit/classroom-client/internal/domain"
	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"login", "sign in with email and password", runLogin},
	{"social-login", "sign in with an identity provider token", runSocialLogin},
	{"register", "create an account and sign in", runRegister},
	{"logout", "forget the stored session", runLogout},
	{"whoami", "show the signed-in profile", runWhoami},
	{"profile-update", "change display name or avatar", runProfileUpdate},
	{"recover", "request a password recovery pin", runRecover},
	{"verify-pin", "check a recovery pin", runVerifyPIN},
	{"set-password", "set a new password with a recovery pin", runSetPassword},
	{"courses", "list your courses", runCourses},
	{"course", "show one course", runCourse},
	{"course-create", "create a course (teacher)", runCourseCreate},
	{"course-update", "edit a course (teacher)", runCourseUpdate},
	{"course-delete", "delete a course (teacher)", runCourseDelete},
	{"enroll", "join a course by access code (student)", runEnroll},
	{"assignments", "list a course's assignments", runAssignments},
	{"assignment-create", "add an assignment (teacher)", runAssignmentCreate},
	{"assignment-delete", "delete an assignment (teacher)", runAssignmentDelete},
	{"submit", "upload a file for an assignment (student)", runSubmit},
	{"submissions", "list submissions for an assignment", runSubmissions},
	{"download", "save a submitted file locally", runDownload},
	{"feedback", "list feedback on a submission", runFeedback},
	{"grade", "grade a submission (teacher)", runGrade},
	{"stats", "show course statistics (teacher)", runStats},
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: classroom <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	sorted := append([]command(nil), commands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	for _, c := range sorted {
		fmt.Fprintf(w, "  %-18s %s\n", c.name, c.summary)
	}
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("%s: %v", fs.Name(), err), nil)
	}
	return nil
}

// positional returns the single positional argument named field.
func positional(fs *flag.FlagSet, field string) (string, error) {
	if fs.NArg() != 1 {
		return "", apperrors.NewValidationError(fmt.Sprintf("%s: expected <%s>", fs.Name(), field), nil)
	}
	return fs.Arg(0), nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readPassword takes the password from the flag, then CLASSROOM_PASSWORD, then stdin.
func readPassword(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CLASSROOM_PASSWORD"); env != "" {
		return env
	}
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := parse(fs, args); err != nil {
		return err
	}
	tok, err := a.auth.Login(ctx, *email, readPassword(*password))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s (%s)\n", tok.Subject, tok.Role)
	return nil
}

func runSocialLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("social-login")
	provider := fs.String("provider", "", "google or github")
	accessToken := fs.String("token", "", "provider access token")
	idToken := fs.String("id-token", "", "provider id token")
	if err := parse(fs, args); err != nil {
		return err
	}
	tok := &oauth2.Token{AccessToken: *accessToken, TokenType: "Bearer"}
	if *idToken != "" {
		tok = tok.WithExtra(map[string]any{"id_token": *idToken})
	}
	session, err := a.auth.SocialLogin(ctx, *provider, tok)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s (%s)\n", session.Subject, session.Role)
	return nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	role := fs.String("role", string(domain.RoleStudent), "student or teacher")
	if err := parse(fs, args); err != nil {
		return err
	}
	tok, err := a.auth.Register(ctx, dto.RegisterRequest{
		Name:     *name,
		Email:    *email,
		Password: readPassword(*password),
		Role:     domain.Role(*role),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered and signed in as %s (%s)\n", tok.Subject, tok.Role)
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func runWhoami(ctx context.Context, a *app, _ []string) error {
	user, err := a.profile.Get(ctx)
	if err != nil {
		return err
	}
	return a.print(user)
}

func runProfileUpdate(ctx context.Context, a *app, args []string) error {
	fs := newFlags("profile-update")
	name := fs.String("name", "", "new display name")
	avatar := fs.String("avatar", "", "new avatar url")
	if err := parse(fs, args); err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			req.Name = name
		case "avatar":
			req.AvatarURL = avatar
		}
	})
	user, err := a.profile.Update(ctx, req)
	if err != nil {
		return err
	}
	return a.print(user)
}

func runRecover(ctx context.Context, a *app, args []string) error {
	fs := newFlags("recover")
	email := fs.String("email", "", "account email")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.auth.RequestPasswordRecovery(ctx, *email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "if the account exists a recovery pin was sent")
	return nil
}

func runVerifyPIN(ctx context.Context, a *app, args []string) error {
	fs := newFlags("verify-pin")
	email := fs.String("email", "", "account email")
	pin := fs.String("pin", "", "6 digit pin")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.auth.VerifyPIN(ctx, *email, *pin); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "pin is valid")
	return nil
}

func runSetPassword(ctx context.Context, a *app, args []string) error {
	fs := newFlags("set-password")
	email := fs.String("email", "", "account email")
	pin := fs.String("pin", "", "6 digit pin")
	password := fs.String("password", "", "new password")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.auth.SetPassword(ctx, *email, *pin, readPassword(*password)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "password updated")
	return nil
}

func runCourses(ctx context.Context, a *app, _ []string) error {
	courses, err := a.courses.List(ctx)
	if err != nil {
		return err
	}
	return a.print(courses)
}

func runCourse(ctx context.Context, a *app, args []string) error {
	fs := newFlags("course")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := positional(fs, "course-id")
	if err != nil {
		return err
	}
	course, err := a.courses.Get(ctx, id)
	if err != nil {
		return err
	}
	return a.print(course)
}

func runCourseCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlags("course-create")
	title := fs.String("title", "", "course title")
	description := fs.String("description", "", "course description")
	if err := parse(fs, args); err != nil {
		return err
	}
	course, err := a.courses.Create(ctx, dto.CourseRequest{Title: *title, Description: *description})
	if err != nil {
		return err
	}
	return a.print(course)
}

func runCourseUpdate(ctx context.Context, a *app, args []string) error {
	fs := newFlags("course-update")
	title := fs.String("title", "", "course title")
	description := fs.String("description", "", "course description")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := positional(fs, "course-id")
	if err != nil {
		return err
	}
	course, err := a.courses.Update(ctx, id, dto.CourseRequest{Title: *title, Description: *description})
	if err != nil {
		return err
	}
	return a.print(course)
}

func runCourseDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlags("course-delete")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := positional(fs, "course-id")
	if err != nil {
		return err
	}
	if err := a.courses.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "course deleted")
	return nil
}

func runEnroll(ctx context.Context, a *app, args []string) error {
	fs := newFlags("enroll")
	if err := parse(fs, args); err != nil {
		return err
	}
	code, err := positional(fs, "access-code")
	if err != nil {
		return err
	}
	course, err := a.courses.Enroll(ctx, code)
	if err != nil {
		return err
	}
	return a.print(course)
}

func runAssignments(ctx context.Context, a *app, args []string) error {
	fs := newFlags("assignments")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := positional(fs, "course-id")
	if err != nil {
		return err
	}
	items, err := a.assignments.List(ctx, id)
	if err != nil {
		return err
	}
	return a.print(items)
}

func runAssignmentCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlags("assignment-create")
	title := fs.String("title", "", "assignment title")
	description := fs.String("description", "", "instructions")
	due := fs.String("due", "", "due date, RFC 3339")
	maxGrade := fs.Int("max-grade", 100, "highest grade")
	if err := parse(fs, args); err != nil {
		return err
	}
	courseID, err := positional(fs, "course-id")
	if err != nil {
		return err
	}
	req := dto.AssignmentRequest{Title: *title, Description: *description, MaxGrade: *maxGrade}
	if *due != "" {
		t, err := time.Parse(time.RFC3339, *due)
		if err != nil {
			return apperrors.NewValidationError("due must be an RFC 3339 timestamp", map[string]any{"field": "due"})
		}
		req.DueAt = &t
	}
	assignment, err := a.assignments.Create(ctx, courseID, req)
	if err != nil {
		return err
	}
	return a.print(assignment)
}

func runAssignmentDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlags("assignment-delete")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := positional(fs, "assignment-id")
	if err != nil {
		return err
	}
	if err := a.assignments.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "assignment deleted")
	return nil
}

func runSubmit(ctx context.Context, a *app, args []string) error {
	fs := newFlags("submit")
	path := fs.String("file", "", "file to upload")
	mimeType := fs.String("mime", "", "mime type, guessed from the extension when empty")
	if err := parse(fs, args); err != nil {
		return err
	}
	assignmentID, err := positional(fs, "assignment-id")
	if err != nil {
		return err
	}
	if *path == "" {
		return apperrors.NewValidationError("submit: -file is required", map[string]any{"field": "file"})
	}
	content, err := os.ReadFile(*path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperrors.NewValidationError("file not found: "+*path, nil)
		}
		return apperrors.NewInternalError(err)
	}
	sub, err := a.assignments.Submit(ctx, assignmentID, domain.Attachment{
		FileName: filepath.Base(*path),
		MimeType: *mimeType,
		Content:  content,
	})
	if err != nil {
		return err
	}
	return a.print(sub)
}

func runSubmissions(ctx context.Context, a *app, args []string) error {
	fs := newFlags("submissions")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := positional(fs, "assignment-id")
	if err != nil {
		return err
	}
	items, err := a.assignments.ListSubmissions(ctx, id)
	if err != nil {
		return err
	}
	return a.print(items)
}

func runDownload(ctx context.Context, a *app, args []string) error {
	fs := newFlags("download")
	dir := fs.String("dir", a.cfg.Storage.DownloadDir, "target directory")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := positional(fs, "submission-id")
	if err != nil {
		return err
	}
	path, err := a.assignments.DownloadSubmission(ctx, id, *dir)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, path)
	return nil
}

func runFeedback(ctx context.Context, a *app, args []string) error {
	fs := newFlags("feedback")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := positional(fs, "submission-id")
	if err != nil {
		return err
	}
	items, err := a.feedback.List(ctx, id)
	if err != nil {
		return err
	}
	return a.print(items)
}

func runGrade(ctx context.Context, a *app, args []string) error {
	fs := newFlags("grade")
	grade := fs.Int("grade", -1, "grade between 0 and 100")
	comment := fs.String("comment", "", "feedback text")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := positional(fs, "submission-id")
	if err != nil {
		return err
	}
	fb, err := a.feedback.Submit(ctx, id, *grade, *comment)
	if err != nil {
		return err
	}
	return a.print(fb)
}

func runStats(ctx context.Context, a *app, args []string) error {
	fs := newFlags("stats")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := positional(fs, "course-id")
	if err != nil {
		return err
	}
	stats, err := a.stats.Course(ctx, id)
	if err != nil {
		return err
	}
	return a.print(stats)
}
