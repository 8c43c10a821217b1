package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"clipfeed/internal/api"
	"clipfeed/internal/auth"
	"clipfeed/internal/config"
	"clipfeed/internal/crypto"
	apihttp "clipfeed/internal/http"
	"clipfeed/internal/inbox"
	"clipfeed/internal/logging"
	"clipfeed/internal/session"
	"clipfeed/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	kv, closeKV, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("storage open", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer closeKV()

	sealer, err := crypto.NewSealer(cfg.SealKey)
	if err != nil {
		logger.Fatal("seal key", zap.Error(err))
	}

	store := session.NewStore(kv,
		session.WithLogger(logger),
		session.WithSealer(sealer),
		session.WithStorageTimeout(cfg.StorageTimeout),
		session.WithNavigator(session.NavigatorFunc(func() {
			logger.Info("navigate", zap.String("route", "/home"))
		})),
	)

	// La sesión se restaura antes de aceptar cualquier request.
	snap := store.Init(ctx)
	logger.Info("session restored", zap.String("state", snap.State().String()))

	apiClient := api.NewClient(cfg.APIBaseURL, cfg.APITimeout, logger)
	authSvc := auth.NewService(apiClient, store, clockwork.NewRealClock(), cfg.TokenRefreshSkew, logger)
	inboxSvc := inbox.NewService(apiClient, authSvc, store, logger)
	badge := inbox.NewBadge(apiClient, authSvc, store, logger)
	go func() {
		if err := badge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("badge stopped", zap.Error(err))
		}
	}()

	sessionHandler := apihttp.NewSessionHandler(logger, store, authSvc)
	inboxHandler := apihttp.NewInboxHandler(logger, inboxSvc, badge)
	router := apihttp.NewRouter(logger, sessionHandler, inboxHandler)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("starting session agent", zap.String("addr", cfg.HTTPAddr))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
