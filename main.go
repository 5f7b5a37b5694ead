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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lernguide/internal/api"
	"lernguide/internal/auth"
	"lernguide/internal/config"
	"lernguide/internal/logging"
	"lernguide/internal/medium"
	"lernguide/internal/metrics"
	"lernguide/internal/service/generation"
	"lernguide/internal/service/study"
	"lernguide/internal/session"
	"lernguide/internal/store"
)

func main() {
	cfgPath := os.Getenv("LERNGUIDE_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		FilePath:    cfg.Logging.FilePath,
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("opening session storage", zap.String("driver", cfg.Storage.Driver))
	m, err := medium.Open(cfg)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer m.Close()

	mt := metrics.New()
	st := store.New(m, cfg.Storage.Key, logger, mt)
	ctl := session.New(st, session.Options{
		Debounce: time.Duration(cfg.BasicConfig.SaveDebounceMS) * time.Millisecond,
		Logger:   logger,
		Metrics:  mt,
	})
	if _, err := ctl.Start(ctx); err != nil {
		logger.Fatal("check prior session", zap.Error(err))
	}

	gen, err := generation.New(ctx, cfg, logger)
	if err != nil {
		logger.Warn("generation disabled", zap.Error(err))
		gen = generation.Unavailable{Err: err}
	}
	studyService := study.NewService(ctl, gen, study.Options{Logger: logger, Metrics: mt})
	authService := auth.NewService(cfg.APIToken, 24*time.Hour)
	handlers := api.NewHandler(ctl, studyService, authService, api.Options{
		MaxUploadBytes: cfg.BasicConfig.MaxUploadBytes,
		Logger:         logger,
		Metrics:        mt,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger), api.CORS(cfg.CORS.AllowOrigins), api.RateLimit(20, 40))
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("starting graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := ctl.Close(shutdownCtx); err != nil {
		logger.Warn("final session save failed", zap.Error(err))
	}
}
