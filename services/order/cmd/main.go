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
	"github.com/dax-side/ecommerce-microservices-api/pkg/httpclient"
	pkgKafka "github.com/dax-side/ecommerce-microservices-api/pkg/kafka"
	"github.com/dax-side/ecommerce-microservices-api/pkg/metrics"
	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	outboxRepository "github.com/dax-side/ecommerce-microservices-api/pkg/outbox/repository"
	"github.com/dax-side/ecommerce-microservices-api/pkg/outbox/worker"
	"github.com/dax-side/ecommerce-microservices-api/pkg/server"
	"github.com/dax-side/ecommerce-microservices-api/pkg/utils"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/client"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/repository"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/service"
	orderHttp "github.com/dax-side/ecommerce-microservices-api/services/order/internal/transport/http"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/transport/http/handler"
	"github.com/dax-side/ecommerce-microservices-api/services/order/internal/transport/kafka"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const serviceName = "order-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := cfg.Logger(serviceName)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, serviceName, cfg.Env)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	if err := db.Migrate(cfg.Postgres.URL, cfg.Postgres.MigrationsPath, logger); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres, logger)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	redisClient := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	orderCache := cache.NewRedisCache(redisClient, logger)

	registry := metrics.NewRegistry()

	downstream := httpclient.New(httpclient.Settings{
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
		Interval:     cfg.Breaker.Interval,
		CoolDown:     cfg.Breaker.CoolDown,
		CallTimeout:  cfg.Breaker.CallTimeout,
		MaxRetries:   cfg.Breaker.MaxRetries,
		RetryBackoff: httpclient.DefaultSettings().RetryBackoff,
	}, logger, registry)

	productClient := client.NewProductClient(cfg.Services.ProductURL, downstream)

	orderRepo := repository.NewOrderRepository(pool, logger)
	outboxRepo := outboxRepository.NewOutboxRepository(logger)
	orderService := service.NewCachedOrderService(
		service.NewOrderService(pool, logger, orderRepo, outboxRepo, service.NewLineValidator(productClient)),
		orderCache,
	)

	kafkaProducer, err := pkgKafka.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepo, kafkaProducer, logger)
	go outboxProcessor.Start(ctx)

	consumer := kafka.NewConsumer(orderService, logger)
	go func() {
		if err := consumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.Group(serviceName+"-group")); err != nil {
			mylogger.Error(ctx, logger, "Kafka consumer stopped", zap.Error(err))
		}
	}()

	app := server.New(server.Options{
		Service:  serviceName,
		HTTP:     cfg.HTTP,
		Logger:   logger,
		Registry: registry,
	})
	orderHttp.RegisterRoutes(app, handler.NewOrderHandler(orderService, logger))

	if err := server.Run(ctx, app, cfg.HTTP.Port, logger); err != nil {
		mylogger.Error(ctx, logger, "HTTP server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := kafkaProducer.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close kafka producer", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close redis client", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	} else {
		mylogger.Info(shutdownCtx, logger, "Successfully down telemetry")
	}

	pool.Close()
}
