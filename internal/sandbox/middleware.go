package sandbox

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/classroom-client/internal/domain"
	apperrors "github.com/spec-kit/classroom-client/pkg/util"
)

const principalKey = "auth_principal"

// Expiry signal the client recognises: a structured code plus the legacy detail text.
const (
	ExpiredCode   = "token_expired"
	ExpiredDetail = "token expirado"
)

// Principal represents the authenticated caller.
type Principal struct {
	UserID string
	Role   domain.Role
}

func errorHandlingMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := toDomainError(err)
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.Error(domainErr))
				}
				body := fiber.Map{"detail": domainErr.Message, "code": domainErr.Code}
				if len(domainErr.Details) > 0 {
					body["details"] = domainErr.Details
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(body)
				err = nil
			}
		}()
		return c.Next()
	}
}

func toDomainError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return apperrors.NewDomainError(apperrors.CodeHTTP, fe.Message, fe.Code, nil)
	}
	return apperrors.ToDomainError(err)
}

func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.String("request_id", c.Get("X-Request-ID")),
			zap.Duration("duration", time.Since(start)))
		return err
	}
}

// authenticate validates bearer tokens. Expired tokens get the expiry signal;
// every other failure gets a plain 401.
func authenticate(tokens *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return apperrors.NewUnauthorized("missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.NewUnauthorized("invalid authorization header")
		}

		claims, err := tokens.ParseToken(parts[1])
		if errors.Is(err, errTokenExpired) {
			return apperrors.NewDomainError(ExpiredCode, ExpiredDetail, http.StatusUnauthorized, nil)
		}
		if err != nil {
			return apperrors.NewUnauthorized("invalid token")
		}

		c.Locals(principalKey, &Principal{UserID: claims.Subject, Role: claims.Role})
		return c.Next()
	}
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// requireRole ensures the principal has one of the allowed roles.
func requireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden(string(allowed[0]) + " role required")
		}
		return c.Next()
	}
}

func mustPrincipal(c *fiber.Ctx) (*Principal, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}
