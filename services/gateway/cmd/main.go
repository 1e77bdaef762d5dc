package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/dax-side/ecommerce-microservices-api/pkg/config"
	"github.com/dax-side/ecommerce-microservices-api/pkg/metrics"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/pkg/server"
	"github.com/dax-side/ecommerce-microservices-api/pkg/utils"
	"github.com/dax-side/ecommerce-microservices-api/services/gateway/internal/transport/http"
	"github.com/dax-side/ecommerce-microservices-api/services/gateway/internal/transport/http/handler"
	"github.com/dax-side/ecommerce-microservices-api/services/gateway/internal/upstream"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const serviceName = "gateway-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()
	if cfg.JWT.Secret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := cfg.Logger(serviceName)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, serviceName, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to init trace: %v", err)
	}

	registry := metrics.NewRegistry()
	upstreamMetrics := upstream.NewMetrics(registry)

	upstreams := handler.Upstreams{
		Users:    upstream.New("user", cfg.Services.UserURL, cfg.Breaker, cfg.HTTP.ProxyTimeout, logger, upstreamMetrics),
		Products: upstream.New("product", cfg.Services.ProductURL, cfg.Breaker, cfg.HTTP.ProxyTimeout, logger, upstreamMetrics),
		Orders:   upstream.New("order", cfg.Services.OrderURL, cfg.Breaker, cfg.HTTP.ProxyTimeout, logger, upstreamMetrics),
	}

	app := server.New(server.Options{
		Service:  serviceName,
		HTTP:     cfg.HTTP,
		Logger:   logger,
		Registry: registry,
	})

	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Limiter.Max,
		Expiration: cfg.Limiter.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Try again later.",
			})
		},
	}))

	http.RegisterRoutes(app, handler.NewGatewayHandler(upstreams, logger), upstreams, cfg.JWT.Secret, logger)

	logger.Info("Gateway service started!")

	if err := server.Run(ctx, app, cfg.HTTP.Port, logger); err != nil {
		mylogger.Error(ctx, logger, "HTTP server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error shutting down telemetry", zap.Error(err))
	} else {
		mylogger.Info(shutdownCtx, logger, "Telemetry stopped correctly")
	}
}
