// Package scoring computes 0..1 relevance of a point of interest for a
// specific property. Pure functions, no I/O; out-of-range inputs are
// clamped, never rejected.
package scoring

import (
	"math"
	"time"

	"homematch/internal/domain"
)

// Term weights. They sum to 1, so the weighted sum needs clamping only
// against modifier-induced overshoot.
const (
	weightAffinity   = 0.35
	weightDistance   = 0.25
	weightQuality    = 0.15
	weightPopularity = 0.10
	weightAgeGroup   = 0.10
	weightPriceTier  = 0.05

	maxRelevantDistanceM = 1000.0
	defaultQuality       = 0.6
	defaultPopularity    = 0.3
)

// Score rates a POI for a property at the given distance in metres.
func Score(poi domain.POI, p *domain.Property, distanceM float64) float64 {
	arch := Classify(p)
	occ := ClassifyOccupants(p)

	base := affinity(arch, poi.Category)
	dist := distanceScore(distanceM)
	quality := qualityScore(poi)
	popularity := popularityScore(poi)
	age := clamp01(base * modifier(occ, poi.Category))
	tier := priceTierScore(poi, p)

	s := weightAffinity*base +
		weightDistance*dist +
		weightQuality*quality +
		weightPopularity*popularity +
		weightAgeGroup*age +
		weightPriceTier*tier
	return clamp01(s)
}

// ScoreAt is the context-aware variant: time of day, day of week and
// season nudge category relevance (an evening search cares more about
// restaurants, a summer one about parks).
func ScoreAt(poi domain.POI, p *domain.Property, distanceM float64, at time.Time) float64 {
	s := Score(poi, p, distanceM) * contextMultiplier(poi.Category, at)
	return clamp01(s)
}

func contextMultiplier(c domain.POICategory, at time.Time) float64 {
	m := 1.0
	switch h := at.Hour(); {
	case h >= 17 && h <= 23:
		if c == domain.CategoryRestaurant || c == domain.CategoryNightlife {
			m *= 1.2
		}
	case h >= 6 && h <= 10:
		if c == domain.CategoryTransport {
			m *= 1.2
		}
	}
	if wd := at.Weekday(); wd == time.Saturday || wd == time.Sunday {
		if c == domain.CategoryPark || c == domain.CategoryShopping {
			m *= 1.15
		}
	}
	switch at.Month() {
	case time.June, time.July, time.August:
		if c == domain.CategoryPark {
			m *= 1.2
		}
	case time.December, time.January, time.February:
		if c == domain.CategoryGym {
			m *= 1.1
		}
	}
	return m
}

// distanceScore decays linearly from 1 at the property to 0 at 1 km.
func distanceScore(d float64) float64 {
	if d < 0 {
		d = 0
	}
	if d >= maxRelevantDistanceM {
		return 0
	}
	return 1 - d/maxRelevantDistanceM
}

func qualityScore(poi domain.POI) float64 {
	if poi.Rating == nil {
		return defaultQuality
	}
	return clamp01(*poi.Rating / 5)
}

func popularityScore(poi domain.POI) float64 {
	if poi.ReviewCount == nil || *poi.ReviewCount <= 0 {
		return defaultPopularity
	}
	return clamp01(math.Log10(float64(*poi.ReviewCount)) / 2)
}

// priceTierScore gives luxury listings a nudge toward highly rated POIs
// and away from poorly rated ones; budget listings get the muted
// inverse. Everything else sits at the neutral midpoint.
func priceTierScore(poi domain.POI, p *domain.Property) float64 {
	const neutral = 0.5
	if p.Price == nil || poi.Rating == nil {
		return neutral
	}
	r := *poi.Rating
	switch {
	case *p.Price >= luxuryPriceThreshold:
		if r >= 4.5 {
			return 1.0
		}
		if r < 3.5 {
			return 0.0
		}
	case *p.Price <= budgetPriceThreshold:
		if r >= 4.5 {
			return 0.35
		}
		if r < 3.5 {
			return 0.65
		}
	}
	return neutral
}

// Diversify enforces a per-category cap (greedy, over a relevance-sorted
// list) so one dominant category cannot crowd out variety. The input
// must already be sorted by relevance descending.
func Diversify(sorted []domain.ScoredPOI, perCategory int) []domain.ScoredPOI {
	if perCategory <= 0 {
		perCategory = 3
	}
	counts := map[domain.POICategory]int{}
	out := make([]domain.ScoredPOI, 0, len(sorted))
	for _, sp := range sorted {
		if counts[sp.Category] >= perCategory {
			continue
		}
		counts[sp.Category]++
		out = append(out, sp)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
