package sandbox

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/classroom-client/internal/domain"
)

// registerRoutes wires HTTP routes.
func (s *Server) registerRoutes(app *fiber.App) {
	app.Get("/health/live", s.live)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", s.login)
	authGroup.Post("/register", s.register)
	authGroup.Post("/social", s.social)
	authGroup.Post("/pin/verify", s.verifyPIN)
	authGroup.Post("/password/recover", s.recoverPassword)
	authGroup.Post("/password/set", s.setPassword)

	protected := app.Group("", authenticate(s.tokens))
	protected.Get("/auth/protected", s.protectedPing)

	protected.Get("/users/:id", s.getUser)
	protected.Put("/users/:id", s.updateUser)

	protected.Get("/courses", s.listCourses)
	protected.Post("/courses", requireRole(domain.RoleTeacher), s.createCourse)
	protected.Post("/courses/enroll", requireRole(domain.RoleStudent), s.enroll)
	protected.Get("/courses/:id", s.getCourse)
	protected.Put("/courses/:id", requireRole(domain.RoleTeacher), s.updateCourse)
	protected.Delete("/courses/:id", requireRole(domain.RoleTeacher), s.deleteCourse)

	protected.Get("/courses/:id/assignments", s.listAssignments)
	protected.Post("/courses/:id/assignments", requireRole(domain.RoleTeacher), s.createAssignment)
	protected.Get("/assignments/:id", s.getAssignment)
	protected.Put("/assignments/:id", requireRole(domain.RoleTeacher), s.updateAssignment)
	protected.Delete("/assignments/:id", requireRole(domain.RoleTeacher), s.deleteAssignment)

	protected.Get("/assignments/:id/submissions", s.listSubmissions)
	protected.Post("/assignments/:id/submissions", requireRole(domain.RoleStudent), s.submit)
	protected.Get("/submissions/:id/file", s.submissionFile)

	protected.Get("/submissions/:id/feedback", s.listFeedback)
	protected.Post("/submissions/:id/feedback", requireRole(domain.RoleTeacher), s.addFeedback)

	protected.Get("/statistics/courses/:id", requireRole(domain.RoleTeacher), s.courseStatistics)
}
