package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"homematch/internal/adapters/observability"
	"homematch/internal/analyzer"
	"homematch/internal/domain"
	"homematch/internal/embedding"
	"homematch/internal/poi"
	"homematch/internal/scoring"
)

// Match reason labels attached to composed results.
const (
	ReasonPriceMatch      = "Price within budget"
	ReasonBedroomsMatch   = "Bedrooms match"
	ReasonBathroomsMatch  = "Bathrooms match"
	ReasonTypeMatch       = "Property type match"
	ReasonLocationMatch   = "Location match"
	ReasonFeatureMatch    = "Requested features present"
	ReasonContentRelevant = "Content relevant"
	ReasonSimilarListing  = "Semantically similar"
	ReasonGoodAmenities   = "Well served by nearby amenities"
)

// Composer blend weights. Without an embedding the similarity share is
// folded into the other two terms.
const (
	weightText       = 0.40
	weightSimilarity = 0.35
	weightContext    = 0.25

	keywordOnlyText    = 0.65
	keywordOnlyContext = 0.35
)

const (
	defaultPageSize      = 20
	defaultCandidates    = 50
	defaultNearbyRadiusM = 1000
	topContextPOIs       = 10
)

// SearchRequest is one composed search call. Explicit filters win over
// whatever the analyzer extracts from the query text.
type SearchRequest struct {
	Query   string
	Filters domain.SearchFilters
	Page    int
}

// SearchService runs the full pipeline: analyze, retrieve, attach POI
// context, compose and paginate.
type SearchService struct {
	repo     domain.ListingRepository
	embedder *embedding.Client
	pois     *poi.Engine
	cache    domain.Cache
	cacheTTL time.Duration

	pageSize            int
	candidates          int
	similarityThreshold float64
}

func NewSearchService(repo domain.ListingRepository, emb *embedding.Client, pois *poi.Engine, cache domain.Cache, cacheTTL time.Duration) *SearchService {
	return &SearchService{
		repo:       repo,
		embedder:   emb,
		pois:       pois,
		cache:      cache,
		cacheTTL:   cacheTTL,
		pageSize:   defaultPageSize,
		candidates: defaultCandidates,
	}
}

// SetSimilarityThreshold filters vector retrieval below the given cosine
// similarity. Zero disables the cut-off.
func (s *SearchService) SetSimilarityThreshold(v float64) { s.similarityThreshold = v }

// Search executes one query end to end. Only listing-store failures
// surface as errors; embedding and POI trouble degrade the ranking
// instead.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (domain.SearchPage, domain.SemanticAnalysis, error) {
	start := time.Now()

	analysis := analyzer.Analyze(req.Query)
	filters := mergeFilters(req.Filters, analysis.Filters)

	candidates, semantic, err := s.retrieve(ctx, req.Query, filters, analysis.Keywords)
	if err != nil {
		return domain.SearchPage{}, analysis, err
	}

	matches := s.compose(ctx, candidates, filters, analysis.Keywords, semantic)

	page := req.Page
	if page < 1 {
		page = 1
	}
	out := paginate(matches, page, s.pageSize)
	out.Semantic = semantic
	out.TookMS = time.Since(start).Milliseconds()

	mode := "keyword"
	if semantic {
		mode = "semantic"
	}
	observability.ObserveSearch(mode, time.Since(start))

	// best-effort logging, detached from the request
	entry := domain.SearchLog{
		Query:       req.Query,
		Filters:     filters,
		Keywords:    analysis.Keywords,
		ResultCount: out.Total,
		TookMS:      out.TookMS,
	}
	for _, m := range out.Items {
		entry.ListingIDs = append(entry.ListingIDs, m.ID)
	}
	go func() {
		logCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.LogSearch(logCtx, entry); err != nil {
			log.Warn().Err(err).Msg("search log write failed")
		}
	}()

	return out, analysis, nil
}

// retrieve fetches the candidate window, semantically when the embedding
// service cooperates, by keyword rank otherwise.
func (s *SearchService) retrieve(ctx context.Context, query string, filters domain.SearchFilters, keywords []string) ([]domain.RankedListing, bool, error) {
	if s.embedder != nil && strings.TrimSpace(query) != "" {
		res, err := s.embedder.Search(ctx, embedding.SearchOptions{
			Query:               query,
			Filters:             filters,
			Keywords:            keywords,
			Limit:               s.candidates,
			SimilarityThreshold: s.similarityThreshold,
		})
		if err == nil {
			return res.Listings, true, nil
		}
		if !errors.Is(err, domain.ErrAllEndpointsFailed) && !errors.Is(err, domain.ErrNotConfigured) {
			return nil, false, err
		}
		log.Warn().Err(err).Msg("embedding unavailable, falling back to keyword search")
	}

	res, err := s.repo.Search(ctx, domain.ListingQuery{
		Filters:  filters,
		Keywords: keywords,
		Limit:    s.candidates,
	})
	if err != nil {
		return nil, false, err
	}
	return res.Listings, false, nil
}

// compose blends the three ranking signals, drops zero-scoring listings
// and sorts the survivors. POI context is gathered concurrently; the
// batching engine underneath collapses the fan-out into grouped upstream
// calls.
func (s *SearchService) compose(ctx context.Context, candidates []domain.RankedListing, filters domain.SearchFilters, keywords []string, semantic bool) []domain.ListingMatch {
	contexts := s.contextScores(ctx, candidates)

	matches := make([]domain.ListingMatch, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		textScore, matched := keywordOverlap(&c.Property, keywords)
		ctxScore := contexts[c.ID]

		var score float64
		if semantic {
			score = weightText*textScore + weightSimilarity*c.Similarity + weightContext*ctxScore
		} else {
			score = keywordOnlyText*textScore + keywordOnlyContext*ctxScore
		}
		if score <= 0 {
			continue
		}

		m := domain.ListingMatch{
			Property:      c.Property,
			Score:         score,
			MatchKeywords: matched,
			MatchReasons:  matchReasons(&c.Property, filters, textScore, c.Similarity, ctxScore),
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	return matches
}

// contextScores fans out one POI context computation per candidate with
// coordinates. Listings without a position, or whose lookups come back
// empty, score zero and simply carry no context term.
func (s *SearchService) contextScores(ctx context.Context, candidates []domain.RankedListing) map[int64]float64 {
	out := make(map[int64]float64, len(candidates))
	if s.pois == nil {
		return out
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := range candidates {
		p := &candidates[i].Property
		loc, ok := p.Coordinates()
		if !ok {
			continue
		}
		wg.Add(1)
		go func(id int64, p *domain.Property, loc domain.Coords) {
			defer wg.Done()
			score := s.contextScore(ctx, p, loc)
			mu.Lock()
			out[id] = score
			mu.Unlock()
		}(p.ID, p, loc)
	}
	wg.Wait()
	return out
}

// contextScore fetches every POI category around the listing, scores each
// hit for this property and averages the diversified top slice.
func (s *SearchService) contextScore(ctx context.Context, p *domain.Property, loc domain.Coords) float64 {
	var mu sync.Mutex
	var wg sync.WaitGroup
	var scored []domain.ScoredPOI

	for _, cat := range domain.AllPOICategories {
		wg.Add(1)
		go func(cat domain.POICategory) {
			defer wg.Done()
			pois := s.pois.Nearby(ctx, loc, cat, defaultNearbyRadiusM)
			local := make([]domain.ScoredPOI, 0, len(pois))
			for _, hit := range pois {
				d := distanceTo(hit, loc)
				local = append(local, domain.ScoredPOI{
					POI:       hit,
					DistanceM: d,
					Relevance: scoring.Score(hit, p, d),
				})
			}
			mu.Lock()
			scored = append(scored, local...)
			mu.Unlock()
		}(cat)
	}
	wg.Wait()

	if len(scored) == 0 {
		return 0
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Relevance != scored[j].Relevance {
			return scored[i].Relevance > scored[j].Relevance
		}
		return scored[i].ID < scored[j].ID
	})
	top := scoring.Diversify(scored, 0)
	if len(top) > topContextPOIs {
		top = top[:topContextPOIs]
	}
	sum := 0.0
	for _, sp := range top {
		sum += sp.Relevance
	}
	return sum / float64(len(top))
}

// NearbyPOIs serves the listing-detail amenity view: every category
// around the listing, scored for that listing, diversified.
func (s *SearchService) NearbyPOIs(ctx context.Context, id int64, radiusM float64) ([]domain.ScoredPOI, error) {
	p, err := s.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	loc, ok := p.Coordinates()
	if !ok {
		return nil, fmt.Errorf("%w: listing %d has no coordinates", domain.ErrNotFound, id)
	}
	if s.pois == nil {
		return nil, nil
	}
	if radiusM <= 0 {
		radiusM = defaultNearbyRadiusM
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var scored []domain.ScoredPOI
	for _, cat := range domain.AllPOICategories {
		wg.Add(1)
		go func(cat domain.POICategory) {
			defer wg.Done()
			pois := s.pois.Nearby(ctx, loc, cat, radiusM)
			local := make([]domain.ScoredPOI, 0, len(pois))
			for _, hit := range pois {
				d := distanceTo(hit, loc)
				local = append(local, domain.ScoredPOI{POI: hit, DistanceM: d, Relevance: scoring.Score(hit, p, d)})
			}
			mu.Lock()
			scored = append(scored, local...)
			mu.Unlock()
		}(cat)
	}
	wg.Wait()

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Relevance != scored[j].Relevance {
			return scored[i].Relevance > scored[j].Relevance
		}
		return scored[i].ID < scored[j].ID
	})
	return scoring.Diversify(scored, 0), nil
}

// GetListing reads through the shared cache.
func (s *SearchService) GetListing(ctx context.Context, id int64) (*domain.Property, error) {
	key := fmt.Sprintf("listing:%d", id)
	var p domain.Property
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &p); ok {
			return &p, nil
		}
	}
	got, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, got, int(s.cacheTTL.Seconds()))
	}
	return got, nil
}

// ---- composition helpers ----

// mergeFilters overlays analyzer output under the caller's explicit
// filters; explicit values always win.
func mergeFilters(explicit, extracted domain.SearchFilters) domain.SearchFilters {
	merged := explicit
	if merged.MinPrice == nil {
		merged.MinPrice = extracted.MinPrice
	}
	if merged.MaxPrice == nil {
		merged.MaxPrice = extracted.MaxPrice
	}
	if merged.Bedrooms == nil {
		merged.Bedrooms = extracted.Bedrooms
	}
	if merged.Bathrooms == nil {
		merged.Bathrooms = extracted.Bathrooms
	}
	if merged.PropertyType == nil {
		merged.PropertyType = extracted.PropertyType
	}
	if merged.Location == nil {
		merged.Location = extracted.Location
	}
	if merged.MinArea == nil {
		merged.MinArea = extracted.MinArea
	}
	if merged.MaxArea == nil {
		merged.MaxArea = extracted.MaxArea
	}
	if len(merged.Features) == 0 {
		merged.Features = extracted.Features
	}
	return merged
}

// keywordOverlap scores how much of the query vocabulary the listing text
// covers and returns the matched terms.
func keywordOverlap(p *domain.Property, keywords []string) (float64, []string) {
	if len(keywords) == 0 {
		return 0.5, nil // neutral when the query carried no usable terms
	}
	text := strings.ToLower(p.Title + " " + p.Description)
	if p.Location != nil {
		text += " " + strings.ToLower(*p.Location)
	}
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return float64(len(matched)) / float64(len(keywords)), matched
}

func matchReasons(p *domain.Property, f domain.SearchFilters, textScore, similarity, ctxScore float64) []string {
	var reasons []string
	if p.Price != nil &&
		(f.MinPrice != nil || f.MaxPrice != nil) &&
		(f.MinPrice == nil || *p.Price >= *f.MinPrice) &&
		(f.MaxPrice == nil || *p.Price <= *f.MaxPrice) {
		reasons = append(reasons, ReasonPriceMatch)
	}
	if f.Bedrooms != nil && p.Bedrooms != nil && *p.Bedrooms == *f.Bedrooms {
		reasons = append(reasons, ReasonBedroomsMatch)
	}
	if f.Bathrooms != nil && p.Bathrooms != nil && *p.Bathrooms == *f.Bathrooms {
		reasons = append(reasons, ReasonBathroomsMatch)
	}
	if f.PropertyType != nil && p.Type == *f.PropertyType {
		reasons = append(reasons, ReasonTypeMatch)
	}
	if f.Location != nil && p.Location != nil &&
		strings.Contains(strings.ToLower(*p.Location), strings.ToLower(*f.Location)) {
		reasons = append(reasons, ReasonLocationMatch)
	}
	if len(f.Features) > 0 {
		all := true
		for _, tag := range f.Features {
			if !p.HasFeature(tag) {
				all = false
				break
			}
		}
		if all {
			reasons = append(reasons, ReasonFeatureMatch)
		}
	}
	if textScore > 0.5 {
		reasons = append(reasons, ReasonContentRelevant)
	}
	if similarity > 0.6 {
		reasons = append(reasons, ReasonSimilarListing)
	}
	if ctxScore > 0.5 {
		reasons = append(reasons, ReasonGoodAmenities)
	}
	return reasons
}

func paginate(matches []domain.ListingMatch, page, size int) domain.SearchPage {
	total := len(matches)
	totalPages := (total + size - 1) / size

	startIdx := (page - 1) * size
	if startIdx > total {
		startIdx = total
	}
	end := startIdx + size
	if end > total {
		end = total
	}
	return domain.SearchPage{
		Items:      matches[startIdx:end],
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
	}
}

func distanceTo(p domain.POI, loc domain.Coords) float64 {
	return poi.Haversine(loc, p.Coords)
}
