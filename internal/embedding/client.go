// Package embedding talks to the external embedding service fleet:
// ordered failover across endpoints, bounded per-endpoint retry, and an
// exact-match TTL cache in front of the whole chain.
package embedding

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"homematch/internal/adapters/observability"
	"homematch/internal/domain"
)

const (
	defaultAttempts = 2
	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = time.Hour
	defaultModel    = "primary"
)

type Config struct {
	Endpoints []string // priority order; first is the initial preferred
	Model     string
	Attempts  int // attempts per endpoint before advancing
	Timeout   time.Duration
	CacheTTL  time.Duration
	RPS       int
}

type cacheEntry struct {
	vectors [][]float32
	at      time.Time
}

type Client struct {
	endpoints []string
	model     string
	attempts  int
	timeout   time.Duration
	cacheTTL  time.Duration
	hc        *http.Client
	rl        *rate.Limiter

	repo domain.ListingRepository

	mu        sync.Mutex
	preferred int // index into endpoints, promoted on non-primary success
	cache     map[string]cacheEntry

	now func() time.Time
}

func New(cfg Config) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("embedding: at least one endpoint is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 20
	}
	return &Client{
		endpoints: cfg.Endpoints,
		model:     cfg.Model,
		attempts:  cfg.Attempts,
		timeout:   cfg.Timeout,
		cacheTTL:  cfg.CacheTTL,
		hc:        &http.Client{Timeout: cfg.Timeout},
		rl:        rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS),
		cache:     map[string]cacheEntry{},
		now:       time.Now,
	}, nil
}

// AttachRepository wires the listing store that Search delegates to.
func (c *Client) AttachRepository(repo domain.ListingRepository) { c.repo = repo }

// wire contract of the embedding service
type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	ModelUsed  string      `json:"model_used"`
	Cached     bool        `json:"cached"`
}

// Embed converts texts to vectors. A cache hit on the exact input
// short-circuits the entire failover chain; otherwise endpoints are
// tried preferred-first, each with bounded retry, and a success on a
// non-preferred endpoint promotes it for later calls.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	key := cacheKey(c.model, texts)
	if vecs, ok := c.cached(key); ok {
		observability.ObserveCache("embedding", "hit")
		return vecs, nil
	}
	observability.ObserveCache("embedding", "miss")

	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	order := c.endpointOrder()
	var lastErr error
	for _, idx := range order {
		url := c.endpoints[idx]
		vecs, err := c.embedOne(ctx, url, texts)
		if err == nil {
			c.promote(idx)
			c.store(key, vecs)
			return vecs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Warn().Str("endpoint", url).Err(err).Msg("embedding endpoint exhausted, failing over")
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrAllEndpointsFailed, lastErr)
}

// embedOne issues up to c.attempts requests against a single endpoint.
func (c *Client) embedOne(ctx context.Context, url string, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts, Model: c.model})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < c.attempts; i++ {
		if i > 0 && !sleepCtx(ctx, backoff(i-1)) {
			return nil, ctx.Err()
		}
		vecs, err := c.doRequest(ctx, url, body)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, url string, body []byte) ([][]float32, error) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, strings.TrimRight(url, "/")+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("embedding", url, 0, time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()
	observability.ObserveExternal("embedding", url, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("embedding endpoint %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embedding endpoint %s: decode: %w", url, err)
	}
	if len(out.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding endpoint %s: empty response", url)
	}
	return out.Embeddings, nil
}

// endpointOrder returns indices to try: preferred first, then the rest
// in configured priority order.
func (c *Client) endpointOrder() []int {
	c.mu.Lock()
	pref := c.preferred
	c.mu.Unlock()

	order := make([]int, 0, len(c.endpoints))
	order = append(order, pref)
	for i := range c.endpoints {
		if i != pref {
			order = append(order, i)
		}
	}
	return order
}

func (c *Client) promote(idx int) {
	c.mu.Lock()
	c.preferred = idx
	c.mu.Unlock()
}

// Preferred reports the endpoint currently tried first.
func (c *Client) Preferred() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoints[c.preferred]
}

func (c *Client) cached(key string) ([][]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.at) >= c.cacheTTL {
		delete(c.cache, key) // lazy expiry on read
		return nil, false
	}
	return e.vectors, true
}

func (c *Client) store(key string, vecs [][]float32) {
	c.mu.Lock()
	c.cache[key] = cacheEntry{vectors: vecs, at: c.now()}
	c.mu.Unlock()
}

// cacheKey is content-addressed over the exact inputs; no normalization,
// so only byte-identical requests collide.
func cacheKey(model string, texts []string) string {
	h := sha1.New()
	io.WriteString(h, model)
	for _, t := range texts {
		h.Write([]byte{0})
		io.WriteString(h, t)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SearchOptions is a semantic retrieval request against the attached
// listing store.
type SearchOptions struct {
	Query               string
	Filters             domain.SearchFilters
	Keywords            []string
	Limit               int
	Offset              int
	SimilarityThreshold float64
}

// SearchResult carries the ranked candidates plus timing.
type SearchResult struct {
	Listings []domain.RankedListing
	Total    int
	Elapsed  time.Duration
}

// Search embeds the query and delegates ranked retrieval to the
// attached repository. ErrNotConfigured when no repository is attached;
// ErrAllEndpointsFailed propagates so the caller can fall back to
// non-semantic search.
func (c *Client) Search(ctx context.Context, opts SearchOptions) (SearchResult, error) {
	if c.repo == nil {
		return SearchResult{}, fmt.Errorf("%w: no listing repository attached", domain.ErrNotConfigured)
	}
	start := time.Now()

	vecs, err := c.Embed(ctx, []string{opts.Query})
	if err != nil {
		return SearchResult{}, err
	}

	res, err := c.repo.Search(ctx, domain.ListingQuery{
		Embedding:           vecs[0],
		Filters:             opts.Filters,
		Keywords:            opts.Keywords,
		Limit:               opts.Limit,
		Offset:              opts.Offset,
		SimilarityThreshold: opts.SimilarityThreshold,
	})
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Listings: res.Listings, Total: res.Total, Elapsed: time.Since(start)}, nil
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff doubles from 100ms per retry attempt.
func backoff(i int) time.Duration {
	return time.Duration(1<<i) * 100 * time.Millisecond
}
