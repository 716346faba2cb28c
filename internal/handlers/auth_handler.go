package handlers

import (
	"errors"
	"fmt"

	"toko/internal/apperrors"
	"toko/internal/models"
	"toko/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
		logger:      logger,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var user models.User
	if err := c.BodyParser(&user); err != nil {
		h.logger.Debug("invalid register body", zap.Error(err))
		return apperrors.Respond(c, apperrors.New(apperrors.KindInvalidInput, "invalid request body", err))
	}

	if err := h.validate.Struct(user); err != nil {
		return apperrors.Respond(c, validationFailed(err))
	}

	if err := h.authService.RegisterUser(c.UserContext(), &user); err != nil {
		if apperrors.KindOf(err) == apperrors.KindInternal {
			h.logger.Error("could not register user", zap.String("username", user.Username), zap.Error(err))
		}
		return apperrors.Respond(c, err)
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))

	// Never echo the password hash.
	user.Password = ""
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("invalid login body", zap.Error(err))
		return apperrors.Respond(c, apperrors.New(apperrors.KindInvalidInput, "invalid request body", err))
	}

	if err := h.validate.Struct(req); err != nil {
		return apperrors.Respond(c, validationFailed(err))
	}

	token, err := h.authService.LoginUser(c.UserContext(), req.Username, req.Password)
	if err != nil {
		h.logger.Info("login failed", zap.String("username", req.Username), zap.Error(err))
		return apperrors.Respond(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
	})
}

func validationFailed(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperrors.New(apperrors.KindInvalidInput, "validation failed", err)
	}

	fields := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		fields[e.Field()] = fmt.Sprintf("failed on the '%s' tag", e.Tag())
	}
	return apperrors.InvalidFields("validation failed", fields, err)
}
