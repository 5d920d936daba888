// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/unclebandit/flowsend-backend/internal/cache"
	"github.com/unclebandit/flowsend-backend/internal/config"
	"github.com/unclebandit/flowsend-backend/internal/controller"
	"github.com/unclebandit/flowsend-backend/internal/db"
	"github.com/unclebandit/flowsend-backend/internal/handler"
	"github.com/unclebandit/flowsend-backend/internal/metrics"
	"github.com/unclebandit/flowsend-backend/internal/notifier"
	"github.com/unclebandit/flowsend-backend/internal/queue"
	"github.com/unclebandit/flowsend-backend/internal/repository"
	"github.com/unclebandit/flowsend-backend/internal/service"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}
	cfg := config.Load()

	conn, err := db.Open()
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	userRepo := &repository.UserRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	jobRepo := &repository.JobRepository{DB: conn}
	failureRepo := &repository.FailureRecordRepository{DB: conn}

	q := buildQueue(cfg)

	dispatcher := &service.Dispatcher{
		CampaignRepo: campaignRepo,
		JobRepo:      jobRepo,
		Resolver:     &service.AllUsersResolver{UserRepo: userRepo},
		Queue:        q,
	}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		JobRepo:      jobRepo,
		FailureRepo:  failureRepo,
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		Dispatcher:      dispatcher,
	}

	campaignHandler := &handler.CampaignHandler{
		Service: campaignService,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without a broker, jobs are processed inside this process;
	// cancelling ctx stops deliveries and pending retries on shutdown.
	inMem, _ := q.(*queue.InMemoryQueue)
	if inMem != nil {
		n := notifier.NewWebhookNotifier(cfg.WebhookBaseURL, cfg.NotifyTimeout)
		worker := service.NewWorker(jobRepo, failureRepo, campaignRepo, &service.MockSender{}, n)
		worker.SendTimeout = cfg.SendTimeout
		worker.NotifyTimeout = cfg.NotifyTimeout
		if err := inMem.Consume(ctx, worker.Process); err != nil {
			log.Fatal("failed to start in-memory consumer:", err)
		}
		log.Println("⚠️ RABBITMQ_URL not set, processing jobs in-process")
	}

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Post("/campaigns/{id}/start", campaignController.StartCampaign)
	r.Get("/campaigns/{id}", campaignHandler.GetCampaignWithStats)
	r.Get("/campaigns/{id}/jobs", campaignHandler.ListCampaignJobs)
	r.Get("/campaigns/{id}/failures", campaignHandler.ListCampaignFailures)
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: ":" + cfg.ServerPort, Handler: r}
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("shutdown signal received, stopping server...")
		cancel()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		srv.Shutdown(shutdownCtx)
	}()

	log.Println("🚀 Server running on :" + cfg.ServerPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
	if inMem != nil {
		inMem.Wait()
	}
	log.Println("server stopped gracefully")
}

func buildQueue(cfg *config.Config) queue.Queue {
	if cfg.RabbitMQURL == "" {
		return queue.NewInMemoryQueue()
	}

	var dedupe cache.DedupeIndex = cache.NewInMemoryDedupeIndex()
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal("failed to connect to redis:", err)
		}
		dedupe = cache.NewRedisDedupeIndex(client)
		log.Println("✅ Connected to redis")
	}

	q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, dedupe, cfg.MaxRetries)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ:", err)
	}
	log.Println("✅ Connected to RabbitMQ")
	return q
}
