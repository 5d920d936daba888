package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/unclebandit/flowsend-backend/internal/cache"
	"github.com/unclebandit/flowsend-backend/internal/config"
	"github.com/unclebandit/flowsend-backend/internal/db"
	"github.com/unclebandit/flowsend-backend/internal/metrics"
	"github.com/unclebandit/flowsend-backend/internal/notifier"
	"github.com/unclebandit/flowsend-backend/internal/queue"
	"github.com/unclebandit/flowsend-backend/internal/repository"
	"github.com/unclebandit/flowsend-backend/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}
	cfg := config.Load()

	if cfg.RabbitMQURL == "" {
		log.Fatal("RABBITMQ_URL is required for the worker")
	}

	conn, err := db.Open()
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	jobRepo := &repository.JobRepository{DB: conn}
	failureRepo := &repository.FailureRecordRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}

	var dedupe cache.DedupeIndex = cache.NewInMemoryDedupeIndex()
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal("failed to connect to redis:", err)
		}
		dedupe = cache.NewRedisDedupeIndex(client)
	}

	q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, dedupe, cfg.MaxRetries)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ:", err)
	}
	defer q.Close()

	n := notifier.NewWebhookNotifier(cfg.WebhookBaseURL, cfg.NotifyTimeout)
	worker := service.NewWorker(jobRepo, failureRepo, campaignRepo, &service.MockSender{}, n)
	worker.SendTimeout = cfg.SendTimeout
	worker.NotifyTimeout = cfg.NotifyTimeout

	metrics.StartMetricsServer(cfg.MetricsAddr)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("shutdown signal received, stopping worker...")
		cancel()
	}()

	workerID := uuid.NewString()
	log.Println("Worker", workerID, "running, waiting for messages...")

	if err := q.Consume(ctx, worker.Process); err != nil && err != context.Canceled {
		log.Fatal("consumer stopped:", err)
	}
	log.Println("worker stopped gracefully")
}
