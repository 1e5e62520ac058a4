package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/veranemoloko/tgdl-core/internal/analytics"
	h "github.com/veranemoloko/tgdl-core/internal/api/http"
	"github.com/veranemoloko/tgdl-core/internal/cdn"
	cfgpkg "github.com/veranemoloko/tgdl-core/internal/config"
	"github.com/veranemoloko/tgdl-core/internal/identity"
	repo "github.com/veranemoloko/tgdl-core/internal/repository"
	svc "github.com/veranemoloko/tgdl-core/internal/service"
	"github.com/veranemoloko/tgdl-core/internal/tokencache"
)

func main() {
	cfg, err := cfgpkg.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfgpkg.SetupLogger(cfg)
	slog.Info("configuration loaded successfully")

	retention, err := cfgpkg.LoadRetentionPolicy(cfg.RetentionFile)
	if err != nil {
		slog.Error("failed to load retention policy", "error", err)
		os.Exit(1)
	}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb, err = newRedis(cfg)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	store, err := newStore(cfg, rdb)
	if err != nil {
		slog.Error("failed to initialize aggregate store", "error", err)
		os.Exit(1)
	}

	minter, err := identity.NewJWTMinter(cfg.TokenSigningKey, cfg.TokenIssuer)
	if err != nil {
		slog.Error("failed to initialize token minter", "error", err)
		os.Exit(1)
	}
	tokens := tokencache.New(minter, tokencache.WithLogger(logger))

	var infoCache cdn.InfoCache = cdn.NewMemoryInfoCache()
	if cfg.FileInfoCache == cfgpkg.CacheRedis {
		infoCache = cdn.NewRedisInfoCache(rdb, logger)
	}

	cdnClient, err := cdn.NewClient(cdn.Config{
		BaseURL:               cfg.CDNBaseURL,
		APIKey:                cfg.CDNAPIKey,
		Timeout:               cfg.CDNTimeout,
		HealthTimeout:         cfg.CDNHealthTimeout,
		FileInfoTTL:           cfg.FileInfoTTL,
		AvailabilityBatchSize: cfg.AvailabilityBatchSize,
		AvailabilityPause:     cfg.AvailabilityPause,
	}, tokens, infoCache, retention, logger)
	if err != nil {
		slog.Error("failed to initialize cdn client", "error", err)
		os.Exit(1)
	}

	sink, nc, err := newSink(cfg, logger)
	if err != nil {
		slog.Error("failed to initialize analytics sink", "error", err)
		os.Exit(1)
	}
	if nc != nil {
		defer nc.Close()
	}
	dispatcher := analytics.NewDispatcher(sink, cfg.EventBuffer, logger)

	batchService := svc.NewBatchService(store, cdnClient, dispatcher, svc.Options{
		Retention:           retention,
		MaxURLsPerBatch:     cfg.MaxURLsPerBatch,
		DeliveryConcurrency: cfg.DeliveryConcurrency,
		DeliveryURLTimeout:  cfg.DeliveryURLTimeout,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	batchService.StartCleanup(ctx, cfg.CleanupInterval)

	// terminal transitions resolve delivery inline, which may take a full CDN call
	writeTimeout := cfg.HTTPTimeout
	if cfg.CDNTimeout+5*time.Second > writeTimeout {
		writeTimeout = cfg.CDNTimeout + 5*time.Second
	}

	router := h.NewRouter(batchService, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  cfg.HTTPTimeout,
	}

	go func() {
		slog.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	} else {
		slog.Info("server stopped gracefully")
	}

	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		slog.Error("analytics shutdown failed", "error", err)
	}
}

func newRedis(cfg *cfgpkg.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func newStore(cfg *cfgpkg.Config, rdb *redis.Client) (repo.AggregateStore, error) {
	if cfg.StoreBackend == cfgpkg.StoreRedis {
		return repo.NewRedisStore(rdb), nil
	}
	return repo.NewFileStore(cfg.StateFile)
}

// newSink publishes to NATS when a URL is configured and logs otherwise.
func newSink(cfg *cfgpkg.Config, logger *slog.Logger) (analytics.Sink, *nats.Conn, error) {
	if cfg.NATSURL == "" {
		return analytics.NewLogSink(logger), nil, nil
	}

	nc, err := analytics.Connect(cfg.NATSURL, logger)
	if err != nil {
		return nil, nil, err
	}
	return analytics.NewNATSSink(nc, cfg.NATSSubject), nc, nil
}
