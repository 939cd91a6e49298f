package main

import (
	"net/http"

	"github.com/rs/zerolog/log"

	server "homematch/internal/adapters/http_server"
	"homematch/internal/adapters/nearby"
	"homematch/internal/adapters/observability"
	redisad "homematch/internal/adapters/redis"
	"homematch/internal/app"
	"homematch/internal/embedding"
	"homematch/internal/poi"
	"homematch/internal/shared"
	"homematch/internal/storage/postgres"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// listing store
	repo, err := postgres.New(cfg.PostgresDSN, cfg.MaxConns, cfg.MaxIdle)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	embedder, err := embedding.New(embedding.Config{
		Endpoints: cfg.EmbedEndpoints,
		Model:     cfg.EmbedModel,
		Attempts:  cfg.EmbedAttempts,
		RPS:       cfg.EmbedRPS,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("embedding client init failed")
	}
	embedder.AttachRepository(repo)

	places, err := nearby.New(cfg.PlacesBase, cfg.PlacesKey, cfg.PlacesRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("places client init failed")
	}
	engine := poi.NewEngine(places, cache, poi.Config{
		Debounce:     cfg.POIDebounce,
		GroupRadiusM: cfg.POIGroupRadiusM,
		MaxInFlight:  int64(cfg.POIMaxInFlight),
		TTL:          cfg.POICacheTTL,
	})

	svc := app.NewSearchService(repo, embedder, engine, cache, cfg.CacheTTL)
	svc.SetSimilarityThreshold(cfg.SimilarityThreshold)

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{S: svc})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
