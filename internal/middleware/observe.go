package middleware

import (
	"strconv"
	"time"

	"toko/internal/apperrors"
	"toko/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// settle runs the app error handler for err so that the final status code is
// known before it is observed.
func settle(c *fiber.Ctx, err error) {
	if err == nil {
		return
	}
	if herr := c.App().ErrorHandler(c, err); herr != nil {
		_ = c.SendStatus(fiber.StatusInternalServerError)
	}
}

// RequestLogger logs one line per request with its status and latency.
// Method and path are copied since the request buffers are reused once the
// handler returns.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		settle(c, err)

		status := c.Response().StatusCode()
		fields := []zap.Field{
			zap.String("method", utils.CopyString(c.Method())),
			zap.String("path", utils.CopyString(c.Path())),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if id, ok := c.Locals(apperrors.RequestIDLocal).(string); ok {
			fields = append(fields, zap.String("request_id", id))
		}
		if userID := c.Locals(UserIDLocal); userID != nil {
			fields = append(fields, zap.Any("user_id", userID))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request completed", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
		return nil
	}
}

// Metrics records request counts and durations labelled by route pattern.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		settle(c, err)

		// Label values are retained by the collectors.
		method := utils.CopyString(c.Method())
		route := utils.CopyString(c.Route().Path)
		if route == "" {
			route = "unknown"
		}
		status := strconv.Itoa(c.Response().StatusCode())

		metrics.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
		return nil
	}
}
