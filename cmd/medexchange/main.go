// Package main запускает HTTP-сервер биржи излишков медикаментов.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/config"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/credential"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/handler"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/matching"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/middleware"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/notify"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/repository"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/service"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/session"
)

type storage interface {
	service.Repository
	credential.Repository
	io.Closer
}

type notifier interface {
	service.Notifier
	io.Closer
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := openRepository(cfg)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	sessionStorage, err := openSessionStorage(cfg)
	if err != nil {
		sugar.Fatalw("session storage initialization error", "error", err.Error())
	}

	n := newNotifier(cfg, logger)
	defer n.Close()

	creds := credential.NewStore(repo, cfg.BcryptCost, logger)
	sessions := session.NewManager(creds, sessionStorage, logger)
	engine := matching.NewEngine(cfg.MatchThreshold, logger)
	svc := service.NewService(repo, engine, n, logger)

	clientMiddleware := middleware.NewClientMiddleware(cfg.CookieSecret)
	h := handler.NewHandler(svc, sessions, logger, clientMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	svc.StartExpirySweep(ctx, cfg.ExpirySweepInterval)

	g.Go(func() error {
		sugar.Infow("starting medexchange server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// openRepository выбирает PostgreSQL, если задан DATABASE_URI, иначе встроенный SQLite.
func openRepository(cfg *config.Config) (storage, error) {
	if cfg.DatabaseURI != "" {
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}

	repo, err := repository.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func openSessionStorage(cfg *config.Config) (session.Storage, error) {
	if cfg.RedisAddress == "" {
		fs, err := session.NewFileStorage(cfg.SessionDir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return session.NewRedisStorage(client, cfg.SessionTTL), nil
}

func newNotifier(cfg *config.Config, logger *zap.Logger) notifier {
	switch {
	case len(cfg.KafkaBrokers) > 0:
		logger.Info("publishing matches to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
		return notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
	case cfg.MatchWebhookURL != "":
		logger.Info("posting matches to webhook", zap.String("url", cfg.MatchWebhookURL))
		return notify.NewWebhookClient(cfg.MatchWebhookURL)
	}
	return notify.NewLogNotifier(logger)
}
