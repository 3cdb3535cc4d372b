package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mansoorceksport/imgcrop/internal/config"
	"github.com/mansoorceksport/imgcrop/internal/repository"
	"github.com/mansoorceksport/imgcrop/internal/server"
	"github.com/mansoorceksport/imgcrop/internal/service"
	"github.com/mansoorceksport/imgcrop/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	log.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "err", err)
	}
	logger.Info("starting image file server", "web_root", cfg.Storage.WebRoot)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelProvider, err := telemetry.Initialize(ctx, telemetry.Config{
		Enabled:        cfg.OTEL.Enabled,
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: cfg.OTEL.ServiceVersion,
		Environment:    cfg.OTEL.Environment,
		Endpoint:       cfg.OTEL.Endpoint,
		URLPathPrefix:  cfg.OTEL.URLPathPrefix,
		Headers:        cfg.OTEL.Headers,
		Insecure:       cfg.OTEL.Insecure,
		SampleRatio:    cfg.OTEL.SampleRatio,
		MetricInterval: cfg.OTEL.MetricInterval,
	})
	if err != nil {
		logger.Warn("failed to initialize OpenTelemetry", "err", err)
	}
	if otelProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelProvider.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", "err", err)
			}
		}()
	}

	deps := server.AppDependencies{
		Config: cfg,
		FS:     afero.NewOsFs(),
		Logger: logger,
	}

	// Redis is only needed for idempotent replays
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to Redis", "addr", cfg.Redis.Addr, "err", err)
		}
		deps.ReplayCache = repository.NewRedisReplayCache(redisClient)
		logger.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	if cfg.S3.Enabled() {
		mirror, err := repository.NewSeaweedS3Mirror(ctx, cfg.S3)
		if err != nil {
			logger.Warn("S3 mirror disabled", "err", err)
		} else {
			deps.Mirror = mirror
			logger.Info("mirroring saved images", "bucket", cfg.S3.Bucket)
		}
	}

	app := server.NewApp(deps)

	files := repository.NewLocalFileStore(deps.FS)
	paths := service.NewPathResolver(cfg.Storage)
	sweeper := service.NewTempSweeper(files, paths.TempDir(), cfg.Storage.TempTTL, cfg.Storage.SweepInterval, logger.WithPrefix("sweeper"))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Server.Port)
		return app.Listen(":" + cfg.Server.Port)
	})

	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server stopped", "err", err)
	}
	logger.Info("server stopped")
}
