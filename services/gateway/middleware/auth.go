package middleware

import (
	"strings"

	"github.com/dax-side/ecommerce-microservices-api/pkg/auth"
	generalDomain "github.com/dax-side/ecommerce-microservices-api/pkg/domain"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	localUserID = "userId"
	localRole   = "role"
)

func bearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.Split(c.Get(fiber.HeaderAuthorization), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func authenticate(c *fiber.Ctx, secret string, logger *zap.Logger) error {
	token, ok := bearerToken(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: Invalid header format"})
	}

	claims, err := auth.Parse(secret, token)
	if err != nil {
		mylogger.Debug(c.UserContext(), logger, "token rejected", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: Invalid token"})
	}

	c.Locals(localUserID, claims.UserID)
	c.Locals(localRole, claims.Role)
	return c.Next()
}

// NewAuthMiddleware requires a valid bearer token and stores its user id
// and role on the request.
func NewAuthMiddleware(secret string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missed header"})
		}

		return authenticate(c, secret, logger)
	}
}

// NewOptionalAuthMiddleware lets anonymous requests through. A token that
// is present must still be valid.
func NewOptionalAuthMiddleware(secret string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}

		return authenticate(c, secret, logger)
	}
}

func NewAdminMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden: admin only"})
		}

		return c.Next()
	}
}

// NewSelfOrAdminMiddleware allows admins and the user whose id is in the
// given route parameter.
func NewSelfOrAdminMiddleware(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) && UserID(c) != c.Params(param) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden: not your account"})
		}

		return c.Next()
	}
}

// UserID is empty for anonymous requests.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

func IsAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals(localRole).(string)
	return role == generalDomain.RoleAdmin
}
