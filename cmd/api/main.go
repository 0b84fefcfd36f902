package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "fundingportal/api/swagger" // swagger docs
	"fundingportal/internal/cache"
	"fundingportal/internal/config"
	"fundingportal/internal/database"
	"fundingportal/internal/logger"
	"fundingportal/internal/metrics"
	"fundingportal/internal/reaper"
	"fundingportal/internal/repository"
	"fundingportal/internal/server"
	"fundingportal/internal/storage"
	"fundingportal/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// @title           Funding Portal API
// @version         1.0
// @description     Applicant wizard, document uploads and admin review for the funding portal.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Options{DevMode: true})
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(logger.Options{
		DevMode:  !cfg.IsProduction(),
		Level:    cfg.LogLevel,
		FilePath: cfg.LogFile,
	})
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewConnection(cfg.DSN(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	log.Info().Msg("connected to PostgreSQL")

	var rdb *redis.Client
	if rdb, err = cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, login rate limiting disabled")
		rdb = nil
	} else {
		defer rdb.Close()
	}

	store, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("upload directory unavailable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Set up WebSocket Hub
	hub := websocket.NewHub(log, cfg.CORSOrigins)
	go hub.Run(ctx)

	router := server.New(server.Deps{
		Config:  cfg,
		DB:      db,
		Store:   store,
		Logger:  log,
		Metrics: m,
		Redis:   rdb,
		Hub:     hub,
	})

	sessionReaper := reaper.New(repository.NewSessionRepository(db), m, log, nil)
	if err := sessionReaper.Start(cfg.ReaperSchedule); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.ReaperSchedule).Msg("invalid reaper schedule")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	sessionReaper.Stop(shutdownCtx)
}
