// Package poi retrieves points of interest around property locations.
// Concurrent nearby requests are debounced, geographically grouped and
// served by one upstream call per group; results are cached at two
// tiers (process-local map, shared store). Upstream failures degrade to
// empty results - a ranked page without POI context beats no page.
package poi

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"homematch/internal/adapters/observability"
	"homematch/internal/domain"
)

const (
	defaultDebounce     = 50 * time.Millisecond
	defaultGroupRadiusM = 500.0
	defaultMaxInFlight  = 3
	defaultTTL          = 24 * time.Hour
	upstreamTimeout     = 15 * time.Second
)

type Config struct {
	Debounce     time.Duration
	GroupRadiusM float64 // two requests closer than this share a group
	MaxInFlight  int64   // concurrent upstream group calls
	TTL          time.Duration
}

type localEntry struct {
	pois []domain.POI
	at   time.Time
}

// pending is one caller's outstanding retrieval; its channel is
// fulfilled exactly once by the batch processor.
type pending struct {
	loc      domain.Coords
	category domain.POICategory
	radiusM  float64
	done     chan []domain.POI
}

// Engine owns the caches and the batching queue for its lifetime.
// Entries self-expire; there is no teardown beyond letting it go.
type Engine struct {
	provider domain.POIProvider
	shared   domain.Cache // optional second tier
	debounce time.Duration
	groupRad float64
	ttl      time.Duration
	sem      *semaphore.Weighted

	mu    sync.Mutex
	queue []*pending
	armed bool
	local map[string]localEntry

	now func() time.Time
}

func NewEngine(provider domain.POIProvider, shared domain.Cache, cfg Config) *Engine {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.GroupRadiusM <= 0 {
		cfg.GroupRadiusM = defaultGroupRadiusM
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return &Engine{
		provider: provider,
		shared:   shared,
		debounce: cfg.Debounce,
		groupRad: cfg.GroupRadiusM,
		ttl:      cfg.TTL,
		sem:      semaphore.NewWeighted(cfg.MaxInFlight),
		local:    map[string]localEntry{},
		now:      time.Now,
	}
}

// Nearby returns POIs of one category around a location, sorted by
// distance ascending. It never fails: upstream or cache trouble is
// logged and yields an empty slice. Cancelling ctx abandons the wait
// but not the shared upstream call serving the batch group.
func (e *Engine) Nearby(ctx context.Context, loc domain.Coords, category domain.POICategory, radiusM float64) []domain.POI {
	key := cacheKey(loc, category, radiusM)

	if pois, ok := e.localGet(key); ok {
		observability.ObserveCache("poi_local", "hit")
		return pois
	}
	observability.ObserveCache("poi_local", "miss")

	if e.shared != nil {
		var pois []domain.POI
		ok, err := e.shared.Get(ctx, key, &pois)
		if err != nil {
			log.Warn().Str("key", key).Err(err).Msg("shared poi cache read failed, bypassing")
		} else if ok {
			observability.ObserveCache("poi_shared", "hit")
			e.localPut(key, pois) // backfill
			return pois
		} else {
			observability.ObserveCache("poi_shared", "miss")
		}
	}

	req := &pending{loc: loc, category: category, radiusM: radiusM, done: make(chan []domain.POI, 1)}
	e.enqueue(req)

	select {
	case pois := <-req.done:
		return pois
	case <-ctx.Done():
		return nil
	}
}

func (e *Engine) enqueue(req *pending) {
	e.mu.Lock()
	e.queue = append(e.queue, req)
	if !e.armed {
		e.armed = true
		time.AfterFunc(e.debounce, e.dispatch)
	}
	e.mu.Unlock()
}

// dispatch drains the queue, groups geographically and launches one
// upstream call per group. Requests arriving from here on start a new
// batch with a fresh timer.
func (e *Engine) dispatch() {
	e.mu.Lock()
	batch := e.queue
	e.queue = nil
	e.armed = false
	e.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	for _, g := range groupByProximity(batch, e.groupRad) {
		go e.processGroup(g)
	}
}

// groupByProximity greedily clusters requests: each ungrouped request
// seeds a group and pulls in every later request within the threshold
// of the seed. A request joins at most one group.
func groupByProximity(batch []*pending, thresholdM float64) [][]*pending {
	var groups [][]*pending
	used := make([]bool, len(batch))
	for i, seed := range batch {
		if used[i] {
			continue
		}
		used[i] = true
		g := []*pending{seed}
		for j := i + 1; j < len(batch); j++ {
			if used[j] {
				continue
			}
			if Haversine(seed.loc, batch[j].loc) < thresholdM {
				used[j] = true
				g = append(g, batch[j])
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// processGroup issues the single upstream call for a group and fans the
// response back out. Runs detached from caller contexts: other group
// members may still be waiting even if one caller gave up.
func (e *Engine) processGroup(g []*pending) {
	ctx, cancel := context.WithTimeout(context.Background(), upstreamTimeout)
	defer cancel()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		e.deliverEmpty(g)
		return
	}
	defer e.sem.Release(1)

	locs := make([]domain.Coords, len(g))
	maxRadius := 0.0
	catSet := map[domain.POICategory]bool{}
	var cats []domain.POICategory
	for i, req := range g {
		locs[i] = req.loc
		if req.radiusM > maxRadius {
			maxRadius = req.radiusM
		}
		if !catSet[req.category] {
			catSet[req.category] = true
			cats = append(cats, req.category)
		}
	}

	start := time.Now()
	resp, err := e.provider.NearbyMulti(ctx, centroid(locs), cats, maxRadius)
	observability.ObserveExternalErr("poi", "nearby_multi", err, time.Since(start))
	if err != nil {
		// failure isolation is per-group: these callers get an empty
		// result, other groups are unaffected
		log.Warn().Int("group_size", len(g)).Err(err).Msg("poi upstream call failed")
		e.deliverEmpty(g)
		return
	}

	for _, req := range g {
		pois := withinRadius(resp[req.category], req.loc, req.radiusM)
		e.cachePut(ctx, cacheKey(req.loc, req.category, req.radiusM), pois)
		req.done <- pois
	}
}

func (e *Engine) deliverEmpty(g []*pending) {
	for _, req := range g {
		req.done <- nil
	}
}

// withinRadius filters to the request's own radius (not the group's)
// and sorts by distance from the request's own location.
func withinRadius(pois []domain.POI, loc domain.Coords, radiusM float64) []domain.POI {
	type withDist struct {
		poi  domain.POI
		dist float64
	}
	kept := make([]withDist, 0, len(pois))
	for _, p := range pois {
		if d := Haversine(loc, p.Coords); d <= radiusM {
			kept = append(kept, withDist{p, d})
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].dist < kept[j].dist })
	out := make([]domain.POI, len(kept))
	for i, k := range kept {
		out[i] = k.poi
	}
	return out
}

func (e *Engine) localGet(key string) ([]domain.POI, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.local[key]
	if !ok {
		return nil, false
	}
	if e.now().Sub(entry.at) >= e.ttl {
		delete(e.local, key) // lazy expiry
		return nil, false
	}
	return entry.pois, true
}

func (e *Engine) localPut(key string, pois []domain.POI) {
	e.mu.Lock()
	e.local[key] = localEntry{pois: pois, at: e.now()}
	e.mu.Unlock()
}

func (e *Engine) cachePut(ctx context.Context, key string, pois []domain.POI) {
	e.localPut(key, pois)
	if e.shared == nil {
		return
	}
	if err := e.shared.Set(ctx, key, pois, int(e.ttl.Seconds())); err != nil {
		log.Warn().Str("key", key).Err(err).Msg("shared poi cache write failed")
	}
}
