package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ardhiansyah/veloria/internal/common/config"
	"github.com/ardhiansyah/veloria/internal/common/db"
	"github.com/ardhiansyah/veloria/internal/common/kafka"
	"github.com/ardhiansyah/veloria/internal/common/logger"
	"github.com/ardhiansyah/veloria/internal/common/middleware"
	"github.com/ardhiansyah/veloria/internal/common/redis"
	"github.com/ardhiansyah/veloria/internal/stats"
	"github.com/ardhiansyah/veloria/pkg/outbox"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.Load("stats")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("stats-service")
	defer log.SyncAll()

	// Connect to database
	database, err := db.Connect(cfg.Database, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Connect to Redis
	redisClient, err := redis.Connect(cfg.Redis, log)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Kafka producer feeds the outbox relay
	producer := kafka.NewProducer(cfg.Kafka, log)
	defer producer.Close()

	// Initialize repositories
	repo := stats.NewRepository(database.DB)
	outboxRepo := outbox.NewRepository(database.DB, log)

	clock := stats.SystemClock{}

	// Incremental event recorder (fire-and-forget increments)
	recorder := stats.NewRecorder(repo, redisClient, log, stats.RecorderConfig{
		QueueSize: cfg.Stats.RecorderQueueSize,
		Workers:   cfg.Stats.RecorderWorkers,
		Timeout:   cfg.Stats.RecorderTimeout,
		Clock:     clock,
	})

	// Reconciliation engine
	reconciler := stats.NewReconciler(repo, database, outboxRepo, redisClient, clock, log)

	// Query service and HTTP handler
	service := stats.NewService(repo, reconciler, redisClient, log, stats.ServiceConfig{
		QueryTimeout: cfg.Stats.QueryTimeout,
		CacheTTL:     cfg.Stats.CacheTTL,
		Clock:        clock,
	})
	handler := stats.NewHandler(service, clock)

	// HTTP server
	mux := http.NewServeMux()

	var httpHandler http.Handler = mux
	httpHandler = middleware.CORS(httpHandler)
	httpHandler = middleware.Logging(log)(httpHandler)
	httpHandler = middleware.Recovery(log)(httpHandler)

	stats.SetupRoutes(mux, handler, cfg.JWT.Secret, cfg.Stats.ServiceKeyHash)

	server := &http.Server{
		Addr:         ":" + cfg.Service.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Stats API starting on port %s", cfg.Service.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Background workers share one cancellable context
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	// Kafka consumers, one per domain event topic
	var consumers []*kafka.Consumer
	for _, topic := range stats.EventTopics {
		consumer := kafka.NewConsumer(cfg.Kafka, topic, log)
		consumers = append(consumers, consumer)

		go func(topic string, consumer *kafka.Consumer) {
			log.Infof("Consuming domain events from topic %s", topic)
			for {
				select {
				case <-workerCtx.Done():
					return
				default:
					err := consumer.Consume(workerCtx, func(ctx context.Context, key, value []byte) error {
						return recorder.ProcessEvent(value)
					})
					if err != nil && workerCtx.Err() == nil {
						log.Errorf("Error consuming from %s: %v", topic, err)
						time.Sleep(5 * time.Second)
					}
				}
			}
		}(topic, consumer)
	}

	// Outbox relay publishes stats.day_synced events
	relay := outbox.NewRelay(outboxRepo, producer, log, 2*time.Second)
	go relay.Run(workerCtx)

	// Daily scheduler reconciles yesterday once no more events can land in it
	go runDailySync(workerCtx, reconciler, cfg.Stats.SyncHourUTC, log)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down stats service...")

	cancelWorkers()
	for _, consumer := range consumers {
		consumer.Close()
	}

	// Drain queued increments before closing the database
	recorder.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Stats service exited gracefully")
}

// runDailySync reconciles yesterday's snapshot once per day at syncHour UTC.
// Only closed days are scheduled automatically; same-day sync stays a manual
// admin action because it can race with in-flight increments.
func runDailySync(ctx context.Context, reconciler *stats.Reconciler, syncHour int, log *logger.Logger) {
	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), syncHour, 0, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}

		syncCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		if _, err := reconciler.SyncYesterday(syncCtx); err != nil {
			log.Errorf("Scheduled reconciliation failed: %v", err)
		}
		cancel()
	}
}
