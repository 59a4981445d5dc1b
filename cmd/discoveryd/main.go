package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kolabhq/kolab-discovery/internal/auth"
	"github.com/kolabhq/kolab-discovery/internal/cache/querycache"
	"github.com/kolabhq/kolab-discovery/internal/cache/redisstore"
	"github.com/kolabhq/kolab-discovery/internal/core/config"
	"github.com/kolabhq/kolab-discovery/internal/core/httpclient"
	"github.com/kolabhq/kolab-discovery/internal/core/observability"
	"github.com/kolabhq/kolab-discovery/internal/geocode"
	"github.com/kolabhq/kolab-discovery/internal/invalidation/kafkaconsumer"
	"github.com/kolabhq/kolab-discovery/internal/logger"
	"github.com/kolabhq/kolab-discovery/internal/mutation"
	"github.com/kolabhq/kolab-discovery/internal/resolver"
	"github.com/kolabhq/kolab-discovery/internal/router"
	"github.com/kolabhq/kolab-discovery/internal/server"
	"github.com/kolabhq/kolab-discovery/internal/source"
	"github.com/kolabhq/kolab-discovery/internal/source/rpcsource"
	"github.com/kolabhq/kolab-discovery/internal/source/tablesource"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   os.Getenv("LOG_CONSOLE") != "",
		Component: "discoveryd",
	}, os.Stderr)
	log := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpc := httpclient.NewOutbound(cfg.RequestTimeout)

	backend, err := source.NewBackend(cfg.BackendURL, cfg.BackendAPIKey, httpc)
	if err != nil {
		log.Error("backend setup failed", "err", err)
		return 1
	}

	geocoder, err := geocode.New(cfg.GeocoderURL, httpc, log)
	if err != nil {
		log.Error("geocoder setup failed", "err", err)
		return 1
	}

	var shared resolver.SharedStore
	if cfg.RedisAddr != "" {
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Error("redis setup failed", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()
		shared = rc
		log.Info("shared cache tier enabled", "addr", cfg.RedisAddr)
	}

	cache := querycache.New(
		querycache.WithTTL(cfg.CacheTTL),
		querycache.WithCapacity(cfg.CacheCapacity),
	)

	res := resolver.New(resolver.Config{
		Logger:    log,
		Primary:   rpcsource.New(backend, log),
		Fallback:  tablesource.New(backend, log),
		Cache:     cache,
		Shared:    shared,
		SharedTTL: cfg.CacheTTL,
		FeedLimit: cfg.FeedLimit,
		MapLimit:  cfg.MapLimit,
	})

	actors := auth.NewBackendResolver(backend, log)
	pipe := mutation.New(log, backend, geocoder, res)

	if cfg.Invalidation.Enabled {
		consumer := kafkaconsumer.New(
			kafkaconsumer.NewConfig(cfg.Invalidation.Brokers, cfg.Invalidation.Topic, cfg.Invalidation.GroupID),
			log, res,
		)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error("invalidation consumer stopped", "err", err)
			}
		}()
	}

	h := router.NewHandler(log, res, pipe, actors)

	log.Info("starting discovery service", "version", version, "addr", cfg.Addr)
	if err := server.Run(ctx, cfg, log, h); err != nil {
		log.Error("server failed", "err", err)
		return 1
	}
	return 0
}
