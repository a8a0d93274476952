package sandbox

import (
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/classroom-client/internal/config"
	"github.com/spec-kit/classroom-client/internal/domain"
)

// Server is an in-memory classroom backend serving the routes the client consumes.
type Server struct {
	app     *fiber.App
	store   *Store
	tokens  *TokenManager
	logger  *zap.Logger
	pinSink func(email, pin string)
}

// Option customises a Server.
type Option func(*Server)

// WithPINSink receives every recovery PIN the server issues.
func WithPINSink(fn func(email, pin string)) Option {
	return func(s *Server) { s.pinSink = fn }
}

// New builds the fiber app with middlewares and routes registered.
func New(cfg config.SandboxConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  NewStore(cfg.BcryptCost),
		tokens: NewTokenManager(cfg.JWTSecret, cfg.TokenTTLMinutes),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Immutable: the store keeps params and form values past the handler.
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
		BodyLimit:             maxUploadBytes + 1<<20,
	})
	app.Use(requestLogger(logger))
	app.Use(errorHandlingMiddleware(logger))
	s.registerRoutes(app)
	s.app = app
	return s
}

// App exposes the underlying fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("sandbox listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Listener serves on an existing listener until Shutdown.
func (s *Server) Listener(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// IssueToken signs a token for userID whose expiry is ttl from now.
// A negative ttl yields an already expired token.
func (s *Server) IssueToken(userID string, role domain.Role, ttl time.Duration) (string, error) {
	token, _, err := s.tokens.generate(userID, role, s.tokens.now().Add(ttl))
	return token, err
}
