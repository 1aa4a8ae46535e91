package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rl1809/order-pipeline/internal/adapter/handler"
	"github.com/rl1809/order-pipeline/internal/adapter/payment"
	"github.com/rl1809/order-pipeline/internal/adapter/queue"
	"github.com/rl1809/order-pipeline/internal/adapter/storage"
	"github.com/rl1809/order-pipeline/internal/config"
	"github.com/rl1809/order-pipeline/internal/core/service"
	"github.com/rl1809/order-pipeline/internal/port"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.With().Str("service", "order-pipeline").Logger()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open mysql")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mysql")
	}
	logger.Info().Msg("connected to mysql")

	// Redis (sweeper lock)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	logger.Info().Msg("connected to redis")

	// Repositories
	inventory := storage.NewMySQLInventoryRepository(db)
	orders := storage.NewMySQLOrderRepository(db)
	payments := storage.NewMySQLPaymentRepository(db)
	txManager := storage.NewMySQLTxManager(db)
	locker := storage.NewRedisLocker(rdb)

	// Payment gateway
	registry := payment.NewRegistry(
		payment.NewIyzicoProvider(cfg.GatewayTimeout),
		payment.NewStripeProvider(cfg.GatewayTimeout),
	)

	// Compensation handling: Kafka when brokers are configured,
	// otherwise the in-process queue.
	compensation := service.NewCompensationHandler(inventory, logger)

	var (
		taskQueue   taskQueueCloser
		kafkaWorker *queue.KafkaWorker
	)
	if len(cfg.KafkaBrokers) > 0 {
		kq := queue.NewKafkaQueue(cfg.KafkaBrokers, cfg.KafkaTopic)
		kafkaWorker = queue.NewKafkaWorker(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, compensation, logger)
		kafkaWorker.Start(ctx)
		taskQueue = kq
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("using kafka task queue")
	} else {
		mq := queue.NewMemoryQueue(cfg.QueueSize)
		mq.StartWorkers(ctx, cfg.WorkerCount, compensation, logger)
		taskQueue = memoryQueueCloser{mq}
		logger.Info().Int("workers", cfg.WorkerCount).Msg("using in-process task queue")
	}

	fulfillment := service.NewFulfillmentService(
		inventory, orders, payments, registry, taskQueue, txManager,
		service.FulfillmentOptions{ReservationTTL: cfg.ReservationTTL},
		logger,
	)

	// Reservation sweeper
	sweeper := service.NewSweeper(inventory, locker, cfg.SweepInterval, cfg.SweepLockTTL, logger)
	go sweeper.Run(ctx)

	// HTTP server
	httpHandler := handler.NewHTTPHandler(fulfillment)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/orders", httpHandler.PlaceOrder)
	mux.HandleFunc("/api/orders/list", httpHandler.ListOrders)
	mux.HandleFunc("/api/orders/payments", httpHandler.ListPayments)

	httpServer := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: mux,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPPort).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info().Msg("http server stopped")

	cancel()
	if kafkaWorker != nil {
		kafkaWorker.Stop()
	}
	taskQueue.Close()
	logger.Info().Msg("task queue drained")

	rdb.Close()
	db.Close()
	logger.Info().Msg("connections closed")
}

// taskQueueCloser is what main needs from either queue wiring.
type taskQueueCloser interface {
	port.TaskQueue
	Close() error
}

// memoryQueueCloser adapts MemoryQueue's Close() to the error-returning
// shape shared with the Kafka queue.
type memoryQueueCloser struct {
	*queue.MemoryQueue
}

func (m memoryQueueCloser) Close() error {
	m.MemoryQueue.Close()
	return nil
}
