package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/yourorg/map-api/internal/auth"
	"github.com/yourorg/map-api/internal/clustercache"
	"github.com/yourorg/map-api/internal/env"
	"github.com/yourorg/map-api/internal/events"
	"github.com/yourorg/map-api/internal/geo"
	"github.com/yourorg/map-api/internal/logger"
	"github.com/yourorg/map-api/internal/redisx"
	"github.com/yourorg/map-api/internal/refresh"
	"github.com/yourorg/map-api/internal/store"
)

func main() {
	log := logger.New("map-api")

	port := env.GetInt("PORT", 4003)
	dsn := env.Must("DATABASE_URL")

	st, err := store.Open(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := st.Migrate(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("migrate")
	}
	cancel()

	// Ingestion reports listing mutations through the internal endpoint;
	// the publisher carries them to the cache invalidator.
	pub := events.NewInMemory(256)

	var cache *clustercache.Cache
	var warm *refresh.Warmer
	if addr := env.GetStr("REDIS_ADDR", ""); addr != "" {
		rdb := redisx.New(addr, env.GetStr("REDIS_PASSWORD", ""), env.GetInt("REDIS_DB", 0))
		cache = clustercache.New(rdb,
			env.GetDur("CLUSTER_CACHE_TTL", time.Hour),
			env.GetDur("CLUSTER_CACHE_STALE_AFTER", time.Minute),
			log)
		warm = refresh.New(256, env.GetInt("WARM_WORKERS", 2), 4, func(ctx context.Context, j refresh.Job) {
			eng := geo.NewEngine(st.Scope(j.UserID), log)
			res, err := eng.Aggregate(ctx, j.BBox, j.Zoom, j.Filter)
			if err != nil {
				log.Warn().Err(err).Str("key", j.Key).Msg("cluster warm failed")
				return
			}
			cache.Put(ctx, j.Key, res)
		})

		inv := &refresh.Invalidator{Pub: pub, Cache: cache, Log: log}
		go inv.Run(context.Background())
	}

	verifier := auth.StaticVerifier{env.Must("AUTH_TOKEN"): env.GetStr("AUTH_USER", "default")}

	router := BuildRouter(RouterDeps{Store: st, Cache: cache, Warm: warm, Pub: pub, Verifier: verifier, Log: log})

	log.Info().Int("port", port).Msg("map-api listening")
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), logger.Middleware(log)(router)); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
