package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vedran77/studychat/internal/assistant"
	"github.com/vedran77/studychat/internal/config"
	"github.com/vedran77/studychat/internal/database"
	"github.com/vedran77/studychat/internal/domain"
	"github.com/vedran77/studychat/internal/logger"
	"github.com/vedran77/studychat/internal/repository"
	"github.com/vedran77/studychat/internal/repository/memory"
	postgresrepo "github.com/vedran77/studychat/internal/repository/postgres"
	sqliterepo "github.com/vedran77/studychat/internal/repository/sqlite"
	"github.com/vedran77/studychat/internal/service"
	"github.com/vedran77/studychat/internal/transport/http/handlers"
	"github.com/vedran77/studychat/internal/transport/ws"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Repositories
	userRepo, messageRepo, closeStore, err := openStore(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer closeStore.Close()

	ai, err := assistant.New(cfg.AI)
	if err != nil {
		return fmt.Errorf("building assistant: %w", err)
	}
	zlog.Info("assistant ready", zap.String("provider", cfg.AI.Provider), zap.String("model", cfg.AI.Model))

	// WebSocket hub
	hub := ws.NewHub(zlog)
	if cfg.Redis.URL != "" {
		relay, err := ws.NewRedisRelay(cfg.Redis.URL, zlog)
		if err != nil {
			return err
		}
		defer relay.Close()
		if err := relay.Ping(ctx); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		hub.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx, hub.Deliver); err != nil {
				zlog.Error("redis relay stopped", zap.Error(err))
			}
		}()
		zlog.Info("redis relay enabled")
	}
	notifier := ws.NewHubNotifier(hub, zlog)

	// Services
	parser := domain.NewIntentParser(cfg.AI.Tag)
	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret)
	authService.SetTokenTTL(cfg.Auth.TokenTTL)
	messageService := service.NewMessageService(messageRepo, userRepo, ai, parser, zlog)
	messageService.SetNotifier(notifier)
	typingService := service.NewTypingService()
	typingService.SetNotifier(notifier)

	// Routes
	router := handlers.NewRouter(handlers.Routes{
		Auth:     handlers.NewAuthHandler(authService, zlog),
		Messages: handlers.NewMessageHandler(messageService, zlog),
		WS: ws.ServeWS(hub, &ws.Dispatcher{
			Messages:  messageService,
			Typing:    typingService,
			Parser:    parser,
			RateRPS:   cfg.WS.RateRPS,
			RateBurst: cfg.WS.RateBurst,
			Log:       zlog,
		}, cfg.Auth.JWTSecret),
		Metrics:   promhttp.Handler(),
		JWTSecret: cfg.Auth.JWTSecret,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (repository.UserRepository, repository.MessageRepository, io.Closer, error) {
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		zlog.Info("connected to postgres", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.Name))
		return postgresrepo.NewUserRepo(pool), postgresrepo.NewMessageRepo(pool), closerFunc(pool.Close), nil

	case "sqlite":
		db, err := sqliterepo.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		zlog.Info("opened sqlite store", zap.String("path", cfg.Database.SQLitePath))
		return sqliterepo.NewUserRepo(db), sqliterepo.NewMessageRepo(db), db, nil

	default:
		zlog.Warn("using in-memory store; data is lost on restart")
		return memory.NewUserRepo(), memory.NewMessageRepo(), closerFunc(func() {}), nil
	}
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
