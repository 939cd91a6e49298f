package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"homematch/internal/domain"
)

func embedServer(t *testing.T, hits *int32, fail bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		vecs := make([][]float32, len(req.Texts))
		for i := range vecs {
			vecs[i] = []float32{0.1, 0.2, 0.3}
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: vecs, ModelUsed: req.Model})
	}))
}

func newTestClient(t *testing.T, endpoints ...string) *Client {
	t.Helper()
	c, err := New(Config{Endpoints: endpoints, Attempts: 2, RPS: 1000})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestEmbed_FailoverAndPromotion(t *testing.T) {
	var aHits, bHits int32
	a := embedServer(t, &aHits, true)
	defer a.Close()
	b := embedServer(t, &bHits, false)
	defer b.Close()

	c := newTestClient(t, a.URL, b.URL)
	ctx := context.Background()

	vecs, err := c.Embed(ctx, []string{"2 bed flat london"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 3 {
		t.Fatalf("unexpected vectors: %v", vecs)
	}
	if got := atomic.LoadInt32(&aHits); got != 2 {
		t.Fatalf("endpoint A hits = %d, want 2 (bounded retry)", got)
	}
	if got := atomic.LoadInt32(&bHits); got != 1 {
		t.Fatalf("endpoint B hits = %d, want 1", got)
	}
	if c.Preferred() != b.URL {
		t.Fatalf("preferred = %s, want %s after promotion", c.Preferred(), b.URL)
	}

	// Next call (different text, so no cache) goes straight to B.
	if _, err := c.Embed(ctx, []string{"another query"}); err != nil {
		t.Fatalf("Embed after promotion: %v", err)
	}
	if got := atomic.LoadInt32(&aHits); got != 2 {
		t.Fatalf("endpoint A hits = %d after promotion, want still 2", got)
	}
}

func TestEmbed_AllEndpointsFailed(t *testing.T) {
	var aHits, bHits int32
	a := embedServer(t, &aHits, true)
	defer a.Close()
	b := embedServer(t, &bHits, true)
	defer b.Close()

	c := newTestClient(t, a.URL, b.URL)
	_, err := c.Embed(context.Background(), []string{"q"})
	if !errors.Is(err, domain.ErrAllEndpointsFailed) {
		t.Fatalf("err = %v, want ErrAllEndpointsFailed", err)
	}
	if aHits != 2 || bHits != 2 {
		t.Fatalf("hits = (%d, %d), want (2, 2)", aHits, bHits)
	}
}

func TestEmbed_CacheHitShortCircuits(t *testing.T) {
	var hits int32
	s := embedServer(t, &hits, false)
	defer s.Close()

	c := newTestClient(t, s.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Embed(ctx, []string{"same exact text"}); err != nil {
			t.Fatalf("Embed #%d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("upstream hits = %d, want 1 (cache short-circuit)", got)
	}

	// Exact-match only: trailing whitespace is a different key.
	if _, err := c.Embed(ctx, []string{"same exact text "}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("upstream hits = %d, want 2 (no fuzzy matching)", got)
	}
}

func TestEmbed_CacheExpiry(t *testing.T) {
	var hits int32
	s := embedServer(t, &hits, false)
	defer s.Close()

	c := newTestClient(t, s.URL)
	base := time.Now()
	c.now = func() time.Time { return base }

	ctx := context.Background()
	if _, err := c.Embed(ctx, []string{"q"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}

	// A read just past the TTL must be a miss and refetch.
	c.now = func() time.Time { return base.Add(defaultCacheTTL + time.Second) }
	if _, err := c.Embed(ctx, []string{"q"}); err != nil {
		t.Fatalf("Embed after expiry: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("upstream hits = %d, want 2 (expired entry ignored)", got)
	}
}

type fakeRepo struct {
	gotQuery domain.ListingQuery
	result   domain.ListingResult
}

func (f *fakeRepo) Search(ctx context.Context, q domain.ListingQuery) (domain.ListingResult, error) {
	f.gotQuery = q
	return f.result, nil
}
func (f *fakeRepo) GetListing(ctx context.Context, id int64) (*domain.Property, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeRepo) UpdateEmbedding(ctx context.Context, id int64, emb []float32) error { return nil }
func (f *fakeRepo) ListMissingEmbeddings(ctx context.Context, limit int) ([]domain.Property, error) {
	return nil, nil
}
func (f *fakeRepo) LogSearch(ctx context.Context, entry domain.SearchLog) error { return nil }

func TestSearch_NotConfigured(t *testing.T) {
	var hits int32
	s := embedServer(t, &hits, false)
	defer s.Close()

	c := newTestClient(t, s.URL)
	_, err := c.Search(context.Background(), SearchOptions{Query: "q"})
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSearch_DelegatesToRepository(t *testing.T) {
	var hits int32
	s := embedServer(t, &hits, false)
	defer s.Close()

	repo := &fakeRepo{result: domain.ListingResult{
		Listings: []domain.RankedListing{{Property: domain.Property{ID: 7}, Similarity: 0.9}},
		Total:    1,
	}}
	c := newTestClient(t, s.URL)
	c.AttachRepository(repo)

	out, err := c.Search(context.Background(), SearchOptions{Query: "2 bed flat", Limit: 10, SimilarityThreshold: 0.3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if out.Total != 1 || len(out.Listings) != 1 || out.Listings[0].ID != 7 {
		t.Fatalf("unexpected result: %+v", out)
	}
	if len(repo.gotQuery.Embedding) != 3 {
		t.Fatalf("repository did not receive the query embedding: %+v", repo.gotQuery)
	}
	if repo.gotQuery.SimilarityThreshold != 0.3 || repo.gotQuery.Limit != 10 {
		t.Fatalf("options not threaded through: %+v", repo.gotQuery)
	}
}
