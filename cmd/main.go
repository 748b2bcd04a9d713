package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairchat/backend/internal/api/handler"
	"pairchat/backend/internal/auth"
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/messaging"
	"pairchat/backend/internal/metrics"
	"pairchat/backend/internal/relationship"
	"pairchat/backend/internal/storage"
	"pairchat/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: could not load .env:", err)
	}

	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}
	if cfg.Log.Mode == "prod" || cfg.Log.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Store
	db, err := storage.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to open database", "error", err)
	}
	if err := storage.Migrate(db); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}
	store := storage.NewStorageService(db)

	// 2. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 3. Hub, optionally shared across instances through Redis
	var bus chathub.Bus
	if cfg.Redis.Addr != "" {
		redisBus, err := chathub.NewRedisBus(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal("failed to connect Redis", "addr", cfg.Redis.Addr, "error", err)
		}
		defer redisBus.Close()
		bus = redisBus
	}
	hub := chathub.NewHub(bus, m, log)
	if err := hub.Run(ctx); err != nil {
		log.Fatal("failed to start hub forwarder", "error", err)
	}

	// 4. Services
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	authSvc := auth.NewService(store, tokens, log)
	rel := relationship.NewService(store, hub, m, log)
	msgs := messaging.NewService(store, hub, m, log, cfg.Chat)

	var tgNotifier *telegram.Notifier
	if cfg.Telegram.BotToken != "" {
		bot, err := telegram.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			log.Fatal("failed to start Telegram bot", "error", err)
		}
		tgNotifier = telegram.NewNotifier(bot, hub, store, log)
		rel.WithAlerter(tgNotifier)
		msgs.WithAlerter(tgNotifier)
		log.Info("telegram alerts enabled", "bot", bot.Self.UserName)
	}

	// 5. HTTP
	h := handler.NewHandler(authSvc, rel, msgs, hub, store, cfg.Chat, cfg.Server.AllowedOrigins, log)
	router := handler.NewRouter(h, cfg.Server.AllowedOrigins, reg)

	server := &http.Server{
		Addr:           cfg.Server.Addr,
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if tgNotifier != nil {
		tgNotifier.Wait()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
