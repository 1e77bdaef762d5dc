package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/dax-side/ecommerce-microservices-api/pkg/cache"
	"github.com/dax-side/ecommerce-microservices-api/pkg/config"
	"github.com/dax-side/ecommerce-microservices-api/pkg/db"
	"github.com/dax-side/ecommerce-microservices-api/pkg/metrics"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/dax-side/ecommerce-microservices-api/pkg/server"
	"github.com/dax-side/ecommerce-microservices-api/pkg/utils"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/repository"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/service"
	userHttp "github.com/dax-side/ecommerce-microservices-api/services/user/internal/transport/http"
	"github.com/dax-side/ecommerce-microservices-api/services/user/internal/transport/http/handler"
	"github.com/dax-side/ecommerce-microservices-api/services/user/pkg/validator"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const serviceName = "user-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.MustLoad()

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
		log.Fatalf("Error init tracer: %v", err)
	}

	if err := db.Migrate(cfg.Postgres.URL, cfg.Postgres.MigrationsPath, logger); err != nil {
		log.Fatalf("Error applying migrations: %v", err)
	}

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres, logger)
	if err != nil {
		log.Fatalf("Error creating new postgres DB: %v", err)
	}

	rdb := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	userService := service.NewCachedUserService(
		service.NewUserService(repository.NewUserRepository(pool, logger), validator.NewValidator(), logger),
		cache.NewRedisCache(rdb, logger),
	)

	app := server.New(server.Options{
		Service:  serviceName,
		HTTP:     cfg.HTTP,
		Logger:   logger,
		Registry: metrics.NewRegistry(),
	})
	userHttp.RegisterRoutes(app, handler.NewUserHandler(userService, logger))

	if err := server.Run(ctx, app, cfg.HTTP.Port, logger); err != nil {
		mylogger.Error(ctx, logger, "HTTP server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close redis client", zap.Error(err))
	}

	pool.Close()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error stopping telemetry", zap.Error(err))
	} else {
		mylogger.Info(shutdownCtx, logger, "Telemetry closed correctly")
	}
}
