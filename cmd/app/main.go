package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"stars_referral_bot/internal/api"
	"stars_referral_bot/internal/bot"
	"stars_referral_bot/internal/middleware"
	"stars_referral_bot/internal/notify"
	"stars_referral_bot/internal/repository"
	"stars_referral_bot/internal/service"
	"stars_referral_bot/pkg/auth"
	"stars_referral_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, closeRegistry, err := newRegistry(ctx, cfg)
	if err != nil {
		zapLogger.Fatal("Failed to initialize registry", zap.Error(err))
	}
	defer closeRegistry()

	referralService := service.NewReferralService(registry)
	userService := service.NewUserService(registry)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Telegram", zap.Error(err))
	}
	botAPI.Debug = cfg.Telegram.Debug

	loc, err := time.LoadLocation(cfg.Telegram.Timezone)
	if err != nil {
		zapLogger.Warn("Unknown timezone, using UTC", zap.String("timezone", cfg.Telegram.Timezone), zap.Error(err))
		loc = time.UTC
	}

	dispatcher := notify.NewDispatcher(cfg.Notify)
	bot.NewNotifier(botAPI, cfg.Telegram.LogsChatID, loc).Register(dispatcher)
	feed := api.NewReferralFeed()
	dispatcher.Register(notify.KindReferrerNotification, feed)

	dispatchDone := make(chan struct{})
	go func() {
		dispatcher.Run(context.Background())
		close(dispatchDone)
	}()

	b := bot.New(botAPI, botAPI.Self.UserName, cfg.Telegram, loc, referralService, userService, dispatcher)

	if !cfg.Telegram.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.RouterDeps{
		Referrals:     referralService,
		Users:         userService,
		Publisher:     dispatcher,
		Feed:          feed,
		Auth:          auth.NewTelegramAuth(cfg.Telegram.Token, cfg.Server.AuthDebug),
		Authorization: middleware.NewAuthorization(cfg.Admin.TelegramIDs),
		BotUsername:   botAPI.Self.UserName,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx)
	})
	g.Go(func() error {
		zapLogger.Info("Starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLogger.Error("Shutting down after error", zap.Error(err))
	}

	dispatcher.Close()
	select {
	case <-dispatchDone:
	case <-time.After(shutdownTimeout):
		zapLogger.Warn("Notification queue not drained before shutdown")
	}
	zapLogger.Info("Stopped")
}

func newRegistry(ctx context.Context, cfg *Config) (service.UserRegistry, func(), error) {
	switch cfg.Storage.Driver {
	case StoragePostgres:
		repo, err := repository.New(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	default:
		return repository.NewMemoryRegistry(), func() {}, nil
	}
}
