package middleware

import (
	"strings"

	"lendloop/internal/models"
	"lendloop/internal/services"
	"lendloop/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const actorKey = "actor"

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			logger.FromFiber(c).Debug("JWT validation failed", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		actor, err := services.ActorFromClaims(claims)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		c.Locals(actorKey, actor)
		c.Locals("user_id", actor.UserID)
		return c.Next()
	}
}

// AdminRequired rejects requests whose actor is not a site admin. It must be
// mounted after AuthRequired. The token's is_admin claim is not trusted; the
// stored user decides.
func AdminRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Admin privileges required",
			})
		}
		isAdmin, err := authService.IsSiteAdmin(c.UserContext(), actor.UserID)
		if err != nil {
			logger.FromFiber(c).Error("admin check failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not verify admin privileges",
			})
		}
		if !isAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Admin privileges required",
			})
		}
		actor.IsAdmin = true
		c.Locals(actorKey, actor)
		return c.Next()
	}
}

// ActorFrom returns the actor stored by AuthRequired.
func ActorFrom(c *fiber.Ctx) (models.Actor, bool) {
	actor, ok := c.Locals(actorKey).(models.Actor)
	return actor, ok
}
