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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/snaptranslate/auth-service/internal/config"
	"github.com/snaptranslate/auth-service/internal/events"
	"github.com/snaptranslate/auth-service/internal/httpserver"
	"github.com/snaptranslate/auth-service/internal/logging"
	"github.com/snaptranslate/auth-service/internal/middleware"
	"github.com/snaptranslate/auth-service/internal/notify"
	"github.com/snaptranslate/auth-service/internal/otp"
	"github.com/snaptranslate/auth-service/internal/registry"
	"github.com/snaptranslate/auth-service/internal/repo"
	"github.com/snaptranslate/auth-service/internal/service"
	"github.com/snaptranslate/auth-service/internal/stats"
	"github.com/snaptranslate/auth-service/internal/tokens"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LOG_LEVEL)

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	store := repo.New(db)
	issuer := &tokens.Issuer{
		AccessSecret:  []byte(cfg.JWT_SECRET),
		RefreshSecret: []byte(cfg.REFRESH_SECRET),
	}

	notifier := notify.NewSMTP(cfg.SMTP_HOST, cfg.SMTP_PORT, cfg.SMTP_USER, cfg.SMTP_PASSWORD, cfg.FROM_EMAIL)

	var producer *events.Producer
	if cfg.KAFKA_ADDRESS != "" {
		producer = events.NewProducer([]string{cfg.KAFKA_ADDRESS}, events.TopicUserEvents)
	} else {
		logger.Warn("KAFKA_ADDRESS not set, user events disabled")
	}

	var statsStore stats.Store
	if cfg.ES_URL != "" {
		esClient, err := stats.NewClient(cfg.ES_URL, cfg.ES_USER, cfg.ES_PASSWORD)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
		statsStore = stats.NewRecorder(esClient)
	} else {
		logger.Warn("ES_URL not set, usage stats disabled")
	}

	svc := &service.AuthService{
		Store:    store,
		Issuer:   issuer,
		Registry: &registry.Registry{Store: store, Issuer: issuer},
		OTP:      &otp.Manager{Store: store, Notifier: notifier},
		Stats:    statsStore,
	}
	if producer != nil {
		svc.Events = producer
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID(), httpserver.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		Auth:   &httpserver.AuthHTTP{Svc: svc},
		Admin:  &httpserver.AdminHTTP{Svc: svc},
		AuthMw: middleware.New(issuer),
	})

	srv := &http.Server{
		Addr:         cfg.ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()
	logger.Info("server started", "addr", cfg.ADDR)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	logger.Info("shutdown complete")
}
