package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"kindred/backend/internal/admin"
	"kindred/backend/internal/analysis"
	"kindred/backend/internal/api/handler"
	"kindred/backend/internal/auth"
	"kindred/backend/internal/chathub"
	"kindred/backend/internal/community"
	"kindred/backend/internal/config"
	"kindred/backend/internal/guard"
	"kindred/backend/internal/intake"
	"kindred/backend/internal/journal"
	"kindred/backend/internal/ledger"
	"kindred/backend/internal/localization"
	"kindred/backend/internal/moderation"
	"kindred/backend/internal/rewrite"
	"kindred/backend/internal/scheduler"
	"kindred/backend/internal/session"
	"kindred/backend/internal/storage"
	"kindred/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// backends groups everything that differs between the postgres and the
// in-memory driver.
type backends struct {
	storage     storage.Storage
	suspensions moderation.SuspensionStore
	revoker     auth.Revoker
	notifier    chathub.Notifier
	relay       *chathub.Relay
}

func setupDependencies(cfg *config.Config, hub *chathub.Hub) backends {
	if cfg.StorageDriver == config.DriverMemory {
		log.Println("WARNING: Using in-memory storage, data is lost on restart")
		return backends{
			storage:     storage.NewMemory(),
			suspensions: moderation.NewMemorySuspensionStore(),
			revoker:     auth.NewMemoryRevoker(),
			notifier:    hub,
		}
	}

	// 1. PostgreSQL
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}
	s := storage.NewStorageService(db)
	if err := s.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// 2. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	relay := chathub.NewRelay(hub, rdb, chathub.DefaultRelayChannel)
	return backends{
		storage:     s,
		suspensions: moderation.NewRedisSuspensionStore(rdb),
		revoker:     auth.NewRedisRevoker(rdb),
		notifier:    relay,
		relay:       relay,
	}
}

func setupAlerter(cfg *config.Config) moderation.Alerter {
	if cfg.TelegramBotToken == "" {
		log.Println("WARNING: TELEGRAM_BOT_TOKEN not set, moderation alerts are disabled")
		return nil
	}
	bot, err := telegram.NewBot(cfg.TelegramBotToken)
	if err != nil {
		log.Printf("ERROR: Failed to start Telegram bot, alerts are disabled: %v", err)
		return nil
	}
	return telegram.NewNotifier(bot, cfg.TelegramAdminChatID, cfg.TelegramSpecialistChatID)
}

func main() {
	log.Println("Starting Kindred Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Сховища та хаб змін
	hub := chathub.NewHub()
	b := setupDependencies(cfg, hub)
	if b.relay != nil {
		go func() {
			if err := b.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("ERROR: Change relay stopped: %v", err)
			}
		}()
	}

	// 2. Сервіси
	// Speak falls back to the fixed acknowledgment without a client.
	llm, err := rewrite.NewClient(cfg)
	if err != nil {
		log.Printf("WARNING: Text generation disabled: %v", err)
		llm = nil
	}
	loc, err := localization.Bundled()
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	g := guard.Default()
	mod := moderation.NewService(b.storage, b.suspensions, setupAlerter(cfg), b.notifier)
	l := ledger.NewLedger(b.storage, hub, b.notifier)
	console := admin.NewConsole(b.storage, hub, b.notifier, mod, analysis.NewScanner(g))

	h := handler.NewHandler(handler.Handler{
		Auth:       auth.NewService(b.storage, b.revoker, cfg),
		Intake:     intake.NewService(g, rewrite.NewRewriter(llm, cfg.RewriteTimeout), l, mod),
		Ledger:     l,
		Matcher:    ledger.NewCoordinator(b.storage, b.notifier),
		Session:    session.New(b.storage, hub, b.notifier, g, mod),
		Moderation: mod,
		Journal:    journal.NewService(b.storage),
		Board:      community.NewBoard(b.storage, hub, b.notifier, g, mod),
		Admin:      console,
		Localizer:  loc,
	})

	// 3. Планувальник
	sched := scheduler.New(console, b.storage)
	if err := sched.Start(cfg.JournalScanSchedule, cfg.BanSweepSchedule); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// 4. Налаштування Gin та роутингу
	r := gin.Default()
	h.Register(r)

	// WriteTimeout stays zero: WebSocket streams are long-lived.
	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()
	log.Printf("INFO: Listening on %s", cfg.HTTPAddr)

	<-ctx.Done()
	log.Println("INFO: Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Graceful shutdown failed: %v", err)
	}
}
