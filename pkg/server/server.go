package server

import (
	"context"
	"errors"
	"time"

	"github.com/dax-side/ecommerce-microservices-api/pkg/apperr"
	"github.com/dax-side/ecommerce-microservices-api/pkg/config"
	"github.com/dax-side/ecommerce-microservices-api/pkg/metrics"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Options struct {
	Service  string
	HTTP     config.HTTP
	Logger   *zap.Logger
	Registry *prometheus.Registry
}

// New builds a fiber app with tracing, panic recovery, request metrics,
// /health and /metrics already mounted.
func New(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               opts.Service,
		ReadTimeout:           opts.HTTP.ReadTimeout,
		WriteTimeout:          opts.HTTP.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(otelfiber.Middleware())

	if opts.Registry != nil {
		app.Use(metrics.NewHTTPMetrics(opts.Registry, opts.Service).Middleware())
		app.Get("/metrics", metrics.Handler(opts.Registry))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "OK",
			"service": opts.Service,
		})
	})

	return app
}

// ErrorHandler renders errors returned by handlers as {"error": msg} with
// the status of their apperr kind.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		return WriteError(c, logger, err)
	}
}

// WriteError logs err and writes it with its mapped status.
func WriteError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	code := apperr.HTTPStatus(err)

	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("http_code", code),
		zap.Error(err),
	}
	if code >= fiber.StatusInternalServerError {
		mylogger.Error(c.UserContext(), logger, "request failed", fields...)
	} else {
		mylogger.Warn(c.UserContext(), logger, "request rejected", fields...)
	}

	return c.Status(code).JSON(fiber.Map{
		"error": apperr.PublicMessage(err),
	})
}

// Run serves app on addr until ctx is done, then shuts it down within 5s.
func Run(ctx context.Context, app *fiber.App, addr string, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP service listening", zap.String("addr", addr))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}

	logger.Info("HTTP app stopped gracefully")
	return nil
}
