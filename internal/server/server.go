package server

import (
	"context"
	"errors"
	"time"

	"toko/internal/apperrors"
	"toko/internal/config"
	"toko/internal/handlers"
	"toko/internal/middleware"
	"toko/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// multipartOverhead is the room left above MaxUploadSize for form fields and
// multipart framing.
const multipartOverhead = 1 << 20

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the HTTP app is composed from.
type Deps struct {
	Config         *config.Config
	Logger         *zap.Logger
	ProductService *services.ProductService
	AuthService    *services.AuthService
	// Uploads is the filesystem holding Config.UploadDir.
	Uploads      afero.Fs
	HealthChecks map[string]HealthCheck
}

// New builds the Fiber app with every route registered.
func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "toko",
		// Params, form values and paths outlive the request in logs, metric
		// labels and the repositories.
		Immutable:    true,
		BodyLimit:    int(d.Config.MaxUploadSize) + multipartOverhead,
		ErrorHandler: ErrorHandler(d.Logger),
	})

	app.Use(requestid.New(requestid.Config{ContextKey: apperrors.RequestIDLocal}))
	app.Use(middleware.RequestLogger(d.Logger))
	if d.Config.MetricsEnabled {
		app.Use(middleware.Metrics())
	}
	// Inside the observers so recovered panics are logged and counted.
	app.Use(recover.New())

	if d.Config.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	app.Get("/health", healthHandler(d.HealthChecks))

	app.Use("/uploads", filesystem.New(filesystem.Config{
		Root: afero.NewHttpFs(d.Uploads).Dir(d.Config.UploadDir),
	}))

	authHandler := handlers.NewAuthHandler(d.AuthService, d.Logger)
	authHandler.RegisterRoutes(app)

	productHandler := handlers.NewProductHandler(d.ProductService, d.Config.BaseURL, d.Logger)
	productHandler.RegisterRoutes(app, middleware.AuthRequired(d.AuthService, d.Logger))

	return app
}

// ErrorHandler renders errors that escape the handlers, such as unmatched
// routes, oversized bodies and recovered panics, as error envelopes.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			if fiberErr.Code >= fiber.StatusInternalServerError {
				logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
			}
			return apperrors.RespondStatus(c, fiberErr.Code, fiberErr.Message)
		}

		if apperrors.KindOf(err) == apperrors.KindInternal {
			logger.Error("unhandled error", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		}
		return apperrors.Respond(c, err)
	}
}

func healthHandler(checks map[string]HealthCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
		defer cancel()

		status, code := "healthy", fiber.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status, code = "unhealthy", fiber.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		body := fiber.Map{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		}
		if len(results) > 0 {
			body["checks"] = results
		}
		return c.Status(code).JSON(body)
	}
}
