package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"homematch/internal/adapters/observability"
	"homematch/internal/app"
	"homematch/internal/embedding"
	"homematch/internal/shared"
	"homematch/internal/storage/postgres"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Strs("endpoints", cfg.EmbedEndpoints).
		Int("workers", cfg.IndexWorkers).
		Int("batch", cfg.IndexBatch).
		Msg("indexer starting")

	repo, err := postgres.New(cfg.PostgresDSN, cfg.MaxConns, cfg.MaxIdle)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	embedder, err := embedding.New(embedding.Config{
		Endpoints: cfg.EmbedEndpoints,
		Model:     cfg.EmbedModel,
		Attempts:  cfg.EmbedAttempts,
		RPS:       cfg.EmbedRPS,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("embedding client init failed")
	}

	idx := app.NewIndexService(repo, embedder)

	// keep draining until a batch comes back empty
	for {
		report, err := idx.ReindexMissing(ctx, cfg.IndexBatch, cfg.IndexWorkers)
		if err != nil {
			log.Fatal().Err(err).Msg("reindex failed")
		}
		log.Info().
			Int("scanned", report.Scanned).
			Int("updated", report.Updated).
			Int("failed", report.Failed).
			Msg("batch done")
		if report.Scanned == 0 || report.Updated == 0 {
			break
		}
	}
	log.Info().Msg("indexing completed")
}
