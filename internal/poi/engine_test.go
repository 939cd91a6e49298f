package poi

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"homematch/internal/domain"
)

func ptr[T any](v T) *T { return &v }

// fakeProvider serves canned POIs and records upstream call shapes.
type fakeProvider struct {
	mu       sync.Mutex
	calls    []providerCall
	pois     map[domain.POICategory][]domain.POI
	fail     bool
	inFlight int32
	maxSeen  int32
	delay    time.Duration
}

type providerCall struct {
	loc     domain.Coords
	cats    []domain.POICategory
	radiusM float64
}

func (f *fakeProvider) Nearby(ctx context.Context, loc domain.Coords, c domain.POICategory, r float64) ([]domain.POI, error) {
	out, err := f.NearbyMulti(ctx, loc, []domain.POICategory{c}, r)
	if err != nil {
		return nil, err
	}
	return out[c], nil
}

func (f *fakeProvider) NearbyMulti(ctx context.Context, loc domain.Coords, cats []domain.POICategory, r float64) (map[domain.POICategory][]domain.POI, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&f.maxSeen)
		if cur <= prev || atomic.CompareAndSwapInt32(&f.maxSeen, prev, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, providerCall{loc: loc, cats: cats, radiusM: r})
	f.mu.Unlock()

	if f.fail {
		return nil, errors.New("provider down")
	}
	out := map[domain.POICategory][]domain.POI{}
	for _, c := range cats {
		out[c] = f.pois[c]
	}
	return out, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// memCache is an in-memory domain.Cache used as the shared tier.
type memCache struct {
	mu    sync.Mutex
	data  map[string][]domain.POI
	fails bool
}

func newMemCache() *memCache { return &memCache{data: map[string][]domain.POI{}} }

func (m *memCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if m.fails {
		return false, errors.New("cache down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return false, nil
	}
	*(dst.(*[]domain.POI)) = v
	return true, nil
}

func (m *memCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if m.fails {
		return errors.New("cache down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = v.([]domain.POI)
	return nil
}

func (m *memCache) Del(ctx context.Context, key string) error { return nil }

var baseLoc = domain.Coords{Lat: 51.5074, Lng: -0.1278}

func poiAt(id string, cat domain.POICategory, lat, lng float64) domain.POI {
	return domain.POI{ID: id, Name: id, Category: cat, Coords: domain.Coords{Lat: lat, Lng: lng}}
}

func testEngine(p domain.POIProvider, shared domain.Cache) *Engine {
	return NewEngine(p, shared, Config{Debounce: 10 * time.Millisecond})
}

func TestNearby_BatchingIdempotence(t *testing.T) {
	prov := &fakeProvider{pois: map[domain.POICategory][]domain.POI{
		domain.CategorySchool: {poiAt("s1", domain.CategorySchool, 51.5080, -0.1280)},
	}}
	e := testEngine(prov, nil)

	const callers = 5
	results := make([][]domain.POI, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Nearby(context.Background(), baseLoc, domain.CategorySchool, 2000)
		}(i)
	}
	wg.Wait()

	if got := prov.callCount(); got != 1 {
		t.Fatalf("upstream calls = %d, want exactly 1 for %d concurrent identical requests", got, callers)
	}
	for i, r := range results {
		if len(r) != 1 || r[0].ID != "s1" {
			t.Fatalf("caller %d got %v, want identical single result", i, r)
		}
	}
}

func TestNearby_GeographicGrouping(t *testing.T) {
	// 5 locations inside ~500m of each other, 2 categories each:
	// 10 requests, 1 upstream multi-category call.
	prov := &fakeProvider{pois: map[domain.POICategory][]domain.POI{
		domain.CategorySchool:    {poiAt("s1", domain.CategorySchool, 51.5076, -0.1279)},
		domain.CategoryTransport: {poiAt("t1", domain.CategoryTransport, 51.5078, -0.1281)},
	}}
	e := testEngine(prov, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		loc := domain.Coords{Lat: baseLoc.Lat + float64(i)*0.0005, Lng: baseLoc.Lng}
		for _, cat := range []domain.POICategory{domain.CategorySchool, domain.CategoryTransport} {
			wg.Add(1)
			go func(loc domain.Coords, cat domain.POICategory) {
				defer wg.Done()
				e.Nearby(context.Background(), loc, cat, 1500)
			}(loc, cat)
		}
	}
	wg.Wait()

	if got := prov.callCount(); got != 1 {
		t.Fatalf("upstream calls = %d, want 1 for one geographic group", got)
	}
	prov.mu.Lock()
	call := prov.calls[0]
	prov.mu.Unlock()
	if len(call.cats) != 2 {
		t.Fatalf("grouped call categories = %v, want union of 2", call.cats)
	}
}

func TestNearby_DistantRequestsSplitGroups(t *testing.T) {
	prov := &fakeProvider{pois: map[domain.POICategory][]domain.POI{}}
	e := testEngine(prov, nil)

	far := domain.Coords{Lat: baseLoc.Lat + 0.1, Lng: baseLoc.Lng} // ~11km away
	var wg sync.WaitGroup
	for _, loc := range []domain.Coords{baseLoc, far} {
		wg.Add(1)
		go func(loc domain.Coords) {
			defer wg.Done()
			e.Nearby(context.Background(), loc, domain.CategoryPark, 500)
		}(loc)
	}
	wg.Wait()

	if got := prov.callCount(); got != 2 {
		t.Fatalf("upstream calls = %d, want 2 for distant locations", got)
	}
}

func TestNearby_OwnRadiusFilterAndSort(t *testing.T) {
	// Upstream returns POIs at ~150m and ~1100m; a 300m request must
	// only see the near one even when grouped with a 2km request.
	near := poiAt("near", domain.CategoryPark, 51.5087, -0.1278) // ~145m north
	far := poiAt("far", domain.CategoryPark, 51.5174, -0.1278)   // ~1.1km north
	prov := &fakeProvider{pois: map[domain.POICategory][]domain.POI{
		domain.CategoryPark: {far, near}, // deliberately unsorted
	}}
	e := testEngine(prov, nil)

	var small, large []domain.POI
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); small = e.Nearby(context.Background(), baseLoc, domain.CategoryPark, 300) }()
	go func() { defer wg.Done(); large = e.Nearby(context.Background(), baseLoc, domain.CategoryPark, 2000) }()
	wg.Wait()

	if len(small) != 1 || small[0].ID != "near" {
		t.Fatalf("300m request got %v, want only the near POI", small)
	}
	if len(large) != 2 || large[0].ID != "near" || large[1].ID != "far" {
		t.Fatalf("2km request got %v, want both sorted by distance", large)
	}
}

func TestNearby_UpstreamFailureYieldsEmpty(t *testing.T) {
	prov := &fakeProvider{fail: true}
	e := testEngine(prov, nil)

	got := e.Nearby(context.Background(), baseLoc, domain.CategorySchool, 500)
	if len(got) != 0 {
		t.Fatalf("got %v, want empty on upstream failure", got)
	}
}

func TestNearby_LocalCacheHitSkipsUpstream(t *testing.T) {
	prov := &fakeProvider{pois: map[domain.POICategory][]domain.POI{
		domain.CategorySchool: {poiAt("s1", domain.CategorySchool, 51.5076, -0.1279)},
	}}
	e := testEngine(prov, nil)
	ctx := context.Background()

	e.Nearby(ctx, baseLoc, domain.CategorySchool, 1000)
	e.Nearby(ctx, baseLoc, domain.CategorySchool, 1000)

	if got := prov.callCount(); got != 1 {
		t.Fatalf("upstream calls = %d, want 1 (second read cached)", got)
	}
}

func TestNearby_ExpiredEntryTriggersRefetch(t *testing.T) {
	prov := &fakeProvider{pois: map[domain.POICategory][]domain.POI{
		domain.CategorySchool: {poiAt("s1", domain.CategorySchool, 51.5076, -0.1279)},
	}}
	e := testEngine(prov, nil)
	base := time.Now()
	e.now = func() time.Time { return base }
	ctx := context.Background()

	e.Nearby(ctx, baseLoc, domain.CategorySchool, 1000)

	// 25h later with a 24h TTL: physically present but unusable.
	e.now = func() time.Time { return base.Add(25 * time.Hour) }
	got := e.Nearby(ctx, baseLoc, domain.CategorySchool, 1000)

	if prov.callCount() != 2 {
		t.Fatalf("upstream calls = %d, want 2 (expired entry ignored)", prov.callCount())
	}
	if len(got) != 1 {
		t.Fatalf("refetch returned %v", got)
	}
}

func TestNearby_SharedCacheHitBackfillsLocal(t *testing.T) {
	prov := &fakeProvider{}
	shared := newMemCache()
	e := testEngine(prov, shared)
	ctx := context.Background()

	key := cacheKey(baseLoc, domain.CategoryGym, 800)
	want := []domain.POI{poiAt("g1", domain.CategoryGym, 51.5076, -0.1279)}
	if err := shared.Set(ctx, key, want, 60); err != nil {
		t.Fatalf("seed shared cache: %v", err)
	}

	got := e.Nearby(ctx, baseLoc, domain.CategoryGym, 800)
	if len(got) != 1 || got[0].ID != "g1" {
		t.Fatalf("got %v from shared tier, want g1", got)
	}
	if prov.callCount() != 0 {
		t.Fatalf("upstream called despite shared hit")
	}
	if _, ok := e.localGet(key); !ok {
		t.Fatalf("shared hit did not backfill the local tier")
	}
}

func TestNearby_SharedCacheFailureBypassed(t *testing.T) {
	prov := &fakeProvider{pois: map[domain.POICategory][]domain.POI{
		domain.CategoryPark: {poiAt("p1", domain.CategoryPark, 51.5076, -0.1279)},
	}}
	shared := newMemCache()
	shared.fails = true
	e := testEngine(prov, shared)

	got := e.Nearby(context.Background(), baseLoc, domain.CategoryPark, 1000)
	if len(got) != 1 {
		t.Fatalf("cache failure should not break retrieval, got %v", got)
	}
}

func TestNearby_ConcurrencyBound(t *testing.T) {
	prov := &fakeProvider{delay: 30 * time.Millisecond}
	e := NewEngine(prov, nil, Config{Debounce: 10 * time.Millisecond, MaxInFlight: 2})

	// 6 far-apart locations -> 6 groups competing for 2 slots.
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		loc := domain.Coords{Lat: baseLoc.Lat + float64(i)*0.5, Lng: baseLoc.Lng}
		wg.Add(1)
		go func(loc domain.Coords) {
			defer wg.Done()
			e.Nearby(context.Background(), loc, domain.CategoryPark, 500)
		}(loc)
	}
	wg.Wait()

	if max := atomic.LoadInt32(&prov.maxSeen); max > 2 {
		t.Fatalf("max concurrent upstream calls = %d, want <= 2", max)
	}
	if prov.callCount() != 6 {
		t.Fatalf("upstream calls = %d, want 6", prov.callCount())
	}
}
