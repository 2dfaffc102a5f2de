package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/config"
	"github.com/stemsi/oralexam/internal/database"
	"github.com/stemsi/oralexam/internal/handler"
	"github.com/stemsi/oralexam/internal/logger"
	"github.com/stemsi/oralexam/internal/middleware"
	"github.com/stemsi/oralexam/internal/notify"
	"github.com/stemsi/oralexam/internal/repository"
	"github.com/stemsi/oralexam/internal/router"
	"github.com/stemsi/oralexam/internal/service"
	"github.com/stemsi/oralexam/internal/storage"
	"github.com/stemsi/oralexam/internal/validator"
	"github.com/stemsi/oralexam/internal/worker"
)

const (
	janitorInterval = time.Minute
	loginRateLimit  = 10 // attempts per minute per IP
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting oral exam backend")

	if cfg.AdminPasswordHash == "" {
		log.Warn().Msg("ADMIN_PASSWORD_HASH is not set; admin login is disabled")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Blob Storage ──────────────────────────────────────────────────
	blobs, err := newBlobStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open blob storage")
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	responseRepo := repository.NewResponseRepository(pool)
	settingRepo := repository.NewSettingRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	redisStore := service.NewRedisStore(rdb)
	authService := service.NewAuthService(cfg, redisStore)
	settingService := service.NewSettingService(settingRepo, cfg, log)
	questionService := service.NewQuestionService(questionRepo, log)
	attemptService := service.NewAttemptService(attemptRepo, responseRepo, blobs, redisStore, settingService, log)
	mediaService := service.NewMediaService(cfg, blobs)
	sessions := service.NewSessionManager(questionService, attemptService, redisStore, cfg.SessionIdleTTL, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService, log),
		Exam:     handler.NewExamHandler(sessions, authService, cfg, log),
		WS:       handler.NewWSHandler(sessions, log, cfg.AllowedOrigins),
		Question: handler.NewQuestionHandler(questionService),
		Media:    handler.NewMediaHandler(mediaService),
		Attempt:  handler.NewAttemptHandler(attemptService, log),
		Setting:  handler.NewSettingHandler(settingService),
		Monitor:  handler.NewMonitorHandler(rdb, sessions, log),
		System:   handler.NewSystemHandler(pool, rdb, sessions, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workersDone := make(chan struct{})
	workerCount := 0

	go func() {
		sessions.RunJanitor(workerCtx, janitorInterval)
		workersDone <- struct{}{}
	}()
	workerCount++

	if cfg.Telegram.BotToken == "" {
		log.Info().Msg("TELEGRAM_BOT_TOKEN is not set; response notifications are disabled")
	} else if sender, err := notify.NewTelegramClient(cfg.Telegram.APIBase, cfg.Telegram.BotToken); err != nil {
		log.Error().Err(err).Msg("Telegram bot unavailable; response notifications are disabled")
	} else {
		log.Info().Str("bot", sender.BotName()).Msg("Telegram notifications enabled")
		notifyWorker := worker.NewNotifyWorker(rdb, attemptService, settingService, blobs, sender, log)
		go func() {
			notifyWorker.Start(workerCtx)
			workersDone <- struct{}{}
		}()
		workerCount++
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	loginLimiter := middleware.NewRateLimiter(loginRateLimit, time.Minute)
	defer loginLimiter.Close()
	r := router.SetupRouter(authService, handlers, loginLimiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop countdowns so no goroutine outlives the process state.
	sessions.Shutdown()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	for i := 0; i < workerCount; i++ {
		<-workersDone
	}

	log.Info().Msg("Shutdown complete")
}

// newBlobStore opens the store selected by STORAGE_DRIVER.
func newBlobStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.BlobStore, error) {
	if cfg.Storage.Driver == config.StorageDriverMinio {
		client, err := database.NewMinioClient(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return storage.NewMinioStore(client, cfg.Storage.MinioBucket), nil
	}
	disk, err := storage.NewDiskStore(cfg.Storage.Dir)
	if err != nil {
		return nil, err
	}
	log.Info().Str("dir", cfg.Storage.Dir).Msg("Using disk storage")
	return disk, nil
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
