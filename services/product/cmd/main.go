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
	pkgKafka "github.com/dax-side/ecommerce-microservices-api/pkg/kafka"
	"github.com/dax-side/ecommerce-microservices-api/pkg/metrics"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	outbox "github.com/dax-side/ecommerce-microservices-api/pkg/outbox/repository"
	"github.com/dax-side/ecommerce-microservices-api/pkg/outbox/worker"
	"github.com/dax-side/ecommerce-microservices-api/pkg/server"
	"github.com/dax-side/ecommerce-microservices-api/pkg/utils"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/repository"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/service"
	productHttp "github.com/dax-side/ecommerce-microservices-api/services/product/internal/transport/http"
	"github.com/dax-side/ecommerce-microservices-api/services/product/internal/transport/http/handler"
	productKafka "github.com/dax-side/ecommerce-microservices-api/services/product/internal/transport/kafka"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const serviceName = "product-service"

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

	productRepository := repository.NewProductRepository(pool, logger)
	outboxRepository := outbox.NewOutboxRepository(logger)
	productService := service.NewCachedProductService(
		service.NewProductService(productRepository, outboxRepository, pool, logger),
		cache.NewRedisCache(rdb, logger),
	)

	kafkaProducer, err := pkgKafka.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepository, kafkaProducer, logger)
	go outboxProcessor.Start(ctx)

	consumer := productKafka.NewConsumer(productService, logger)
	go func() {
		if err := consumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.Group(serviceName+"-group")); err != nil {
			mylogger.Error(ctx, logger, "Kafka consumer stopped", zap.Error(err))
		}
	}()

	app := server.New(server.Options{
		Service:  serviceName,
		HTTP:     cfg.HTTP,
		Logger:   logger,
		Registry: metrics.NewRegistry(),
	})
	productHttp.RegisterRoutes(app, handler.NewProductHandler(productService, logger))

	if err := server.Run(ctx, app, cfg.HTTP.Port, logger); err != nil {
		mylogger.Error(ctx, logger, "HTTP server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := kafkaProducer.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close kafka producer", zap.Error(err))
	}

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
