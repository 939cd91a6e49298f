package domain

import "context"

// ListingRepository is the ranked-retrieval service the engine augments.
type ListingRepository interface {
	Search(ctx context.Context, q ListingQuery) (ListingResult, error)
	GetListing(ctx context.Context, id int64) (*Property, error)
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error
	ListMissingEmbeddings(ctx context.Context, limit int) ([]Property, error)
	LogSearch(ctx context.Context, entry SearchLog) error
}

// POIProvider is the upstream points-of-interest service.
type POIProvider interface {
	// Nearby fetches a single category around a point.
	Nearby(ctx context.Context, loc Coords, category POICategory, radiusM float64) ([]POI, error)
	// NearbyMulti fetches several categories in one upstream call; the
	// batching engine uses it to serve a whole geographic group at once.
	NearbyMulti(ctx context.Context, loc Coords, categories []POICategory, radiusM float64) (map[POICategory][]POI, error)
}

// Embedder turns text into similarity vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Cache is the shared key-value store (Redis in production). Staleness
// is bounded by TTL, not by any consistency protocol; concurrent writers
// to the same key are tolerated, last write wins.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
