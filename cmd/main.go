package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorlink/backend/internal/api/handler"
	"tutorlink/backend/internal/auth"
	"tutorlink/backend/internal/chathub"
	"tutorlink/backend/internal/config"
	"tutorlink/backend/internal/localization"
	"tutorlink/backend/internal/logging"
	"tutorlink/backend/internal/presence"
	"tutorlink/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func setupDependencies(cfg config.Config) (*gorm.DB, *redis.Client) {
	db, err := storage.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("failed to open database")
	}
	if err := storage.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	if cfg.Redis.Addr == "" {
		log.Info().Msg("REDIS_ADDR not set, presence mirror disabled")
		return db, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect Redis")
	}

	log.Info().Msg("database and Redis connections established, migrations complete")
	return db, rdb
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("could not read .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	log.Info().Str("port", cfg.Port).Msg("starting TutorLink chat backend")

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	localizer, err := localization.Embedded()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load translations")
	}

	tracker := presence.NewTracker(s)
	hub := chathub.NewHub(s, tracker, localizer, chathub.NewMetrics(reg))
	authn := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, s)

	h := handler.NewHandler(hub, s, authn, tracker, cfg.WS, cfg.CORSAllowedOrigins)
	r := handler.NewRouter(h, handler.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Gatherer:       reg,
		RateRPS:        cfg.RateRPS,
		RateBurst:      cfg.RateBurst,
	})

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked sockets are not tracked by http.Server.Shutdown. Once the hub
	// is stopping it refuses upgrades that are still in flight.
	if err := hub.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("chat sessions did not drain in time")
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}
