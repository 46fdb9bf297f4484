package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"academy/internal/attendance"
	"academy/internal/config"
	"academy/internal/logging"
	"academy/internal/notify"
	"academy/internal/queue"
	"academy/internal/store"
)

// Worker sends check-in notices from the queue and sweeps lapsed QR sessions.
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		redisClient, err := store.NewRedis(cfg.RedisAddr)
		if err != nil {
			logger.Fatal("redis connect failed", zap.Error(err))
		}
		defer redisClient.Close()
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}

	repo := attendance.NewRepository(db.Client)
	svc := attendance.NewService(repo, attendance.Options{
		Location: cfg.Location(),
		BaseURL:  cfg.PublicBaseURL,
		Logger:   logger.Named("attendance"),
	})

	sweeper := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := sweeper.AddFunc(cfg.ExpirySweep, func() {
		sweepCtx, done := context.WithTimeout(ctx, 30*time.Second)
		defer done()
		n, err := svc.ExpireStale(sweepCtx)
		if err != nil {
			logger.Warn("expiry sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("expired stale sessions", zap.Int64("count", n))
		}
	}); err != nil {
		logger.Fatal("invalid expiry schedule", zap.String("spec", cfg.ExpirySweep), zap.Error(err))
	}
	sweeper.Start()
	defer func() { <-sweeper.Stop().Done() }()

	client := notify.New(cfg.MessagingURL, cfg.MessagingToken, cfg.MessagingSkip, logger.Named("notify"))
	if !cfg.MessagingSkip {
		if err := client.Health(ctx); err != nil {
			logger.Warn("messaging gateway not available", zap.Error(err))
		} else {
			logger.Info("messaging gateway connected")
		}
	}

	logger.Info("worker started, waiting for messages")
	h := notify.NewHandler(repo, client, cfg.Location(), logger.Named("notify"))
	if err := h.Run(ctx, q); err != nil {
		logger.Error("queue consume failed", zap.Error(err))
	}
	logger.Info("worker stopped")
}
