package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hust-open-atom-club/lkml-bot/internal/api"
	"github.com/hust-open-atom-club/lkml-bot/internal/config"
	"github.com/hust-open-atom-club/lkml-bot/internal/feed"
	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/distlock"
	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/httpretry"
	"github.com/hust-open-atom-club/lkml-bot/internal/pkg/logger"
	"github.com/hust-open-atom-club/lkml-bot/internal/platform"
	"github.com/hust-open-atom-club/lkml-bot/internal/platform/discord"
	"github.com/hust-open-atom-club/lkml-bot/internal/platform/feishu"
	"github.com/hust-open-atom-club/lkml-bot/internal/repository/postgres"
	"github.com/hust-open-atom-club/lkml-bot/internal/service/filter"
	"github.com/hust-open-atom-club/lkml-bot/internal/service/patchcard"
	"github.com/hust-open-atom-club/lkml-bot/internal/service/subsystem"
	"github.com/hust-open-atom-club/lkml-bot/internal/service/thread"
	"github.com/hust-open-atom-club/lkml-bot/internal/worker"
)

func main() {
	log.Println("Starting LKML patch bot...")

	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logger.DEBUG)
	}
	if os.Getenv("LOG_REDACT_PII") == "false" {
		logger.SetRedactPII(false)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	db, err := postgres.Open(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	// Redis is optional; without it the cycle lock falls back to a
	// Postgres advisory lock.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Redis unavailable, falling back to Postgres advisory lock: %v", err)
			redisClient = nil
		} else {
			log.Println("Connected to Redis")
		}
		cancel()
	}

	// Repositories
	messageRepo := postgres.NewFeedMessageRepo(db)
	cardRepo := postgres.NewPatchCardRepo(db)
	threadRepo := postgres.NewPatchThreadRepo(db)
	filterRepo := postgres.NewFilterRepo(db)
	filterConfigRepo := postgres.NewFilterConfigRepo(db)
	subsystemRepo := postgres.NewSubsystemRepo(db)
	operationLogRepo := postgres.NewOperationLogRepo(db)

	// Platform clients
	retryClient := httpretry.NewRetryClient(&http.Client{Timeout: cfg.Discord.Timeout()}, 3)
	var cardClients []platform.PatchCardClient
	var threadClients []platform.ThreadClient
	if cfg.Discord.Enabled {
		dc := discord.NewClient(cfg.Discord.BotToken, cfg.Discord.ChannelID, cfg.Discord.APIBaseURL, retryClient)
		cardClients = append(cardClients, dc)
		threadClients = append(threadClients, dc)
		log.Println("Discord client enabled")
	}
	if cfg.Feishu.Enabled {
		fc := feishu.NewClient(cfg.Feishu.WebhookURL, httpretry.NewRetryClient(&http.Client{Timeout: cfg.Feishu.Timeout()}, 3))
		cardClients = append(cardClients, fc)
		threadClients = append(threadClients, fc)
		log.Println("Feishu client enabled")
	}
	if len(cardClients) == 0 {
		log.Println("Warning: no platform enabled, patch cards will not be delivered")
	}
	sender := platform.NewMultiPlatformSender(cardClients, threadClients)

	// Services
	ccFetcher := feed.NewCCFetcher(retryClient)
	filterSvc := filter.NewService(filterRepo, filterConfigRepo, cardRepo, messageRepo, ccFetcher)
	cardSvc := patchcard.NewService(cardRepo, messageRepo, filterSvc, sender,
		time.Duration(cfg.Monitoring.ThreadTimeoutHours)*time.Hour)
	threadSvc := thread.NewService(threadRepo, messageRepo, cardSvc, sender)
	subsystemSvc := subsystem.NewService(subsystemRepo, operationLogRepo)

	// Seed subscriptions from config before the first cycle.
	if len(cfg.Monitoring.ManualSubsystems) > 0 {
		op := subsystem.Operator{Name: "config"}
		if _, err := subsystemSvc.Subscribe(context.Background(), op, cfg.Monitoring.ManualSubsystems); err != nil {
			log.Fatalf("Failed to seed subsystem subscriptions: %v", err)
		}
		log.Printf("Seeded subsystem subscriptions: %v", cfg.Monitoring.ManualSubsystems)
	}

	// Feed pipeline
	fetcher := feed.NewFetcher(retryClient)
	processor := feed.NewProcessor(fetcher, messageRepo, subsystemSvc, cardSvc, threadSvc,
		cfg.Monitoring.LastUpdateAt)
	monitor := feed.NewMonitor(processor, subsystemSvc, cfg.Monitoring.FeedURL)

	lock := distlock.NewLock(redisClient, db, "lkml-bot:monitor-cycle", cfg.Monitoring.Interval())
	scheduler := worker.NewScheduler(monitor, sender, subsystemSvc, lock, worker.SchedulerConfig{
		Interval:     cfg.Monitoring.Interval(),
		MaxNewsCount: cfg.Monitoring.MaxNewsCount,
	})
	scheduler.Start()

	// Admin API
	health := api.NewHealthChecker(db, redisClient)
	handlers := api.NewHandlers(scheduler, threadSvc, subsystemSvc, filterSvc, health)
	server := api.NewServer(handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Admin API listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down...", sig)
	case err := <-errCh:
		log.Printf("Admin API failed: %v", err)
	}

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
}
