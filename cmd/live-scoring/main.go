package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/archive"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/config"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/consumer"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/engine"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/handlers"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/hub"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/retry"
	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// no logger configuration yet
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger()
	logger.Info("starting live-scoring", "addr", cfg.Server.Addr)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Redis
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to parse Redis URL", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.Password != "" {
		redisOpts.Password = cfg.Redis.Password
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	m := metrics.New()
	h := hub.New(logger.With("component", "hub"), m)

	st := store.NewRedisStore(redisClient, store.RedisOptions{
		ChangeStream:       cfg.Redis.ChangeStream,
		ChangeStreamMaxLen: cfg.Redis.ChangeStreamMaxLen,
		ArchivedTTL:        cfg.Redis.ArchivedTTL,
	})

	rules, err := cfg.Engine.Rules()
	if err != nil {
		logger.Error("invalid engine rules", "error", err)
		os.Exit(1)
	}
	opts := []engine.Option{
		engine.WithPublisher(h),
		engine.WithLogger(logger.With("component", "engine")),
		engine.WithMetrics(m),
		engine.WithMaxAttempts(cfg.Engine.MaxAttempts),
		engine.WithBackoff(retry.ExponentialBackoff(cfg.Engine.BackoffBase, 2, cfg.Engine.BackoffMax, 0.2)),
		engine.WithRules(rules),
		engine.WithRecentOvers(cfg.Engine.RecentOvers),
	}

	checks := map[string]handlers.Pinger{"redis": st}

	// Connect to the archive, if configured
	if cfg.Archive.Enabled() {
		pg, err := archive.NewPostgres(cfg.Archive.DSN)
		if err != nil {
			logger.Error("failed to connect to archive", "error", err)
			os.Exit(1)
		}
		defer pg.Close()

		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare archive schema", "error", err)
			os.Exit(1)
		}
		opts = append(opts, engine.WithArchiver(pg))
		checks["archive"] = pg
		logger.Info("connected to archive")
	}

	eng := engine.New(st, opts...)

	go h.Run(ctx)

	// Commits from other instances reach local subscribers through the stream
	streamConsumer := consumer.NewStreamConsumer(redisClient, h, cfg.Redis.ChangeStream, logger.With("component", "consumer"), m)
	go func() {
		if err := streamConsumer.Start(ctx); err != nil {
			logger.Error("change stream consumer stopped", "error", err)
		}
	}()

	handler := handlers.NewHandler(ctx, eng, h, checks, handlers.Config{
		CORSOrigins:     cfg.Server.CORSOrigins,
		SubmitRateLimit: cfg.Server.SubmitRateLimit,
		SubmitRateBurst: cfg.Server.SubmitRateBurst,
		ClientBuffer:    cfg.Hub.ClientBuffer,
	}, logger.With("component", "http"), m)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())
	}

	// Stop hub, consumer and websocket pumps
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("could not stop server", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
