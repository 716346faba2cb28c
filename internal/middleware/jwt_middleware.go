package middleware

import (
	"errors"
	"strings"

	"toko/internal/apperrors"
	"toko/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Locals keys set by AuthRequired.
const (
	UserIDLocal   = "user_id"
	UsernameLocal = "username"
)

// AuthRequired is a Fiber middleware to check for a valid bearer token.
func AuthRequired(authService *services.AuthService, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperrors.Respond(c, apperrors.Unauthorized("authorization header is required", nil))
		}

		// Expected format: "Bearer <token>"
		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		tokenString = strings.TrimSpace(tokenString)
		if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			return apperrors.Respond(c, apperrors.Unauthorized(
				"authorization header format must be 'Bearer <token>'",
				errors.New("malformed authorization header"),
			))
		}

		claims, err := authService.ValidateToken(tokenString)
		if err != nil {
			logger.Debug("rejected bearer token",
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return apperrors.Respond(c, err)
		}

		c.Locals(UserIDLocal, claims["user_id"])
		c.Locals(UsernameLocal, claims["username"])

		return c.Next()
	}
}
