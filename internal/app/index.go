package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"homematch/internal/domain"
)

// IndexService recomputes listing embeddings in bulk. It walks the rows
// that have no stored vector, embeds their text through the failover
// client and writes the vectors back.
type IndexService struct {
	repo     domain.ListingRepository
	embedder domain.Embedder
}

func NewIndexService(repo domain.ListingRepository, emb domain.Embedder) *IndexService {
	return &IndexService{repo: repo, embedder: emb}
}

// IndexReport summarises one reindex run.
type IndexReport struct {
	Scanned int
	Updated int
	Failed  int
}

// ReindexMissing processes up to limit unembedded listings with at most
// workers concurrent embedding calls. Per-listing failures are logged
// and counted, not fatal; the run only aborts when the listing store
// itself is unreachable or the context ends.
func (s *IndexService) ReindexMissing(ctx context.Context, limit, workers int) (IndexReport, error) {
	if workers <= 0 {
		workers = 4
	}

	listings, err := s.repo.ListMissingEmbeddings(ctx, limit)
	if err != nil {
		return IndexReport{}, fmt.Errorf("list missing embeddings: %w", err)
	}

	var (
		mu     sync.Mutex
		report = IndexReport{Scanned: len(listings)}
		sem    = semaphore.NewWeighted(int64(workers))
		wg     sync.WaitGroup
	)

	for i := range listings {
		p := listings[i]
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return report, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			if err := s.indexOne(ctx, &p); err != nil {
				log.Warn().Err(err).Int64("listing", p.ID).Msg("reindex failed")
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return
			}
			mu.Lock()
			report.Updated++
			mu.Unlock()
		}()
	}
	wg.Wait()
	return report, nil
}

func (s *IndexService) indexOne(ctx context.Context, p *domain.Property) error {
	vecs, err := s.embedder.Embed(ctx, []string{EmbeddingText(p)})
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if err := s.repo.UpdateEmbedding(ctx, p.ID, vecs[0]); err != nil {
		return fmt.Errorf("store vector: %w", err)
	}
	return nil
}

// EmbeddingText flattens a listing into the text the embedding model
// sees. Structured fields are spelled out so the vector carries them.
func EmbeddingText(p *domain.Property) string {
	parts := []string{p.Title, p.Description}
	if p.Type != "" {
		parts = append(parts, string(p.Type))
	}
	if p.Location != nil {
		parts = append(parts, *p.Location)
	}
	if p.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("%d bedrooms", *p.Bedrooms))
	}
	if p.Bathrooms != nil {
		parts = append(parts, fmt.Sprintf("%d bathrooms", *p.Bathrooms))
	}
	for _, f := range p.Features {
		parts = append(parts, string(f))
	}
	return strings.Join(parts, ". ")
}
