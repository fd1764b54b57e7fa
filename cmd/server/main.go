package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"chatcore/internal/config"
	"chatcore/internal/httpserver"
	"chatcore/internal/logging"
	"chatcore/internal/metrics"
	"chatcore/internal/realtime"
	"chatcore/internal/security"
	"chatcore/internal/service"
	"chatcore/internal/store/postgres"
	"chatcore/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	var (
		db    *sql.DB
		repos httpserver.Repos
	)
	switch cfg.DatabaseDriver {
	case "postgres":
		db, err = postgres.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("open database", zap.Error(err))
		}
		if err := postgres.Migrate(db); err != nil {
			logger.Fatal("run migrations", zap.Error(err))
		}
		repos = httpserver.Repos{
			Identities:    postgres.NewIdentityRepo(db),
			Profiles:      postgres.NewProfileRepo(db),
			Conversations: postgres.NewConversationRepo(db),
			Memberships:   postgres.NewMembershipRepo(db),
			Messages:      postgres.NewMessageRepo(db),
			Receipts:      postgres.NewReceiptRepo(db),
		}
	default:
		db, err = sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("open database", zap.Error(err))
		}
		if err := sqlite.Migrate(db); err != nil {
			logger.Fatal("run migrations", zap.Error(err))
		}
		repos = httpserver.Repos{
			Identities:    sqlite.NewIdentityRepo(db),
			Profiles:      sqlite.NewProfileRepo(db),
			Conversations: sqlite.NewConversationRepo(db),
			Memberships:   sqlite.NewMembershipRepo(db),
			Messages:      sqlite.NewMessageRepo(db),
			Receipts:      sqlite.NewReceiptRepo(db),
		}
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	passwordHasher := security.NewPasswordHasher(cfg.BcryptCost)

	hub := realtime.NewHub(collector)

	router := httpserver.NewRouter(cfg, repos, hub, tokenSvc, passwordHasher, collector, registry, logger)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sweeper := service.NewOrphanSweeper(repos.Conversations, collector, logger, cfg.OrphanMinAge)
	go sweeper.Run(sweepCtx, cfg.OrphanSweepEvery)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server",
			zap.String("addr", cfg.HTTPAddr()),
			zap.String("driver", cfg.DatabaseDriver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
