package analyzer

import (
	"testing"

	"homematch/internal/domain"
)

func TestAnalyze_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		a := Analyze(q)
		if a.Confidence != 0 {
			t.Fatalf("empty query confidence = %d, want 0", a.Confidence)
		}
		f := a.Filters
		if f.MinPrice != nil || f.MaxPrice != nil || f.Bedrooms != nil ||
			f.Bathrooms != nil || f.PropertyType != nil || f.Location != nil ||
			f.MinArea != nil || f.MaxArea != nil || len(f.Features) != 0 {
			t.Fatalf("empty query extracted filters: %+v", f)
		}
		if a.Intent != "General property search" {
			t.Fatalf("unexpected intent %q", a.Intent)
		}
		if a.Sentiment != domain.SentimentNeutral {
			t.Fatalf("unexpected sentiment %q", a.Sentiment)
		}
	}
}

func TestAnalyze_FullScenario(t *testing.T) {
	a := Analyze("2 bed apartment in london under £400k")

	if a.Filters.Bedrooms == nil || *a.Filters.Bedrooms != 2 {
		t.Fatalf("bedrooms = %v, want 2", a.Filters.Bedrooms)
	}
	if a.Filters.PropertyType == nil || *a.Filters.PropertyType != domain.TypeApartment {
		t.Fatalf("type = %v, want apartment", a.Filters.PropertyType)
	}
	if a.Filters.Location == nil || *a.Filters.Location != "london" {
		t.Fatalf("location = %v, want london", a.Filters.Location)
	}
	if a.Filters.MaxPrice == nil || *a.Filters.MaxPrice != 400000 {
		t.Fatalf("maxPrice = %v, want 400000", a.Filters.MaxPrice)
	}
	if a.Filters.MinPrice != nil {
		t.Fatalf("minPrice = %v, want nil", *a.Filters.MinPrice)
	}
	if a.Confidence <= 50 {
		t.Fatalf("confidence = %d, want > 50", a.Confidence)
	}
}

func TestAnalyze_PriceRangeNormalized(t *testing.T) {
	for _, q := range []string{
		"flat 300k - 500k",
		"flat 500k - 300k", // reversed bounds normalize
		"flat between £300,000 and £500,000",
	} {
		a := Analyze(q)
		if a.Filters.MinPrice == nil || a.Filters.MaxPrice == nil {
			t.Fatalf("%q: missing price bounds: %+v", q, a.Filters)
		}
		if *a.Filters.MinPrice != 300000 || *a.Filters.MaxPrice != 500000 {
			t.Fatalf("%q: range = [%v, %v], want [300000, 500000]",
				q, *a.Filters.MinPrice, *a.Filters.MaxPrice)
		}
	}
}

func TestAnalyze_PriceMagnitudeHeuristic(t *testing.T) {
	cases := []struct {
		q    string
		want float64
	}{
		{"house under £400k", 400000},
		{"house under £400", 400000}, // <= 3 digits read as thousands
		{"house under £250,000", 250000},
		{"house under £2500", 2500}, // 4+ digits taken at face value
	}
	for _, c := range cases {
		a := Analyze(c.q)
		if a.Filters.MaxPrice == nil || *a.Filters.MaxPrice != c.want {
			t.Fatalf("%q: maxPrice = %v, want %v", c.q, a.Filters.MaxPrice, c.want)
		}
	}
}

func TestAnalyze_DirectionalPrices(t *testing.T) {
	a := Analyze("house over £600k")
	if a.Filters.MinPrice == nil || *a.Filters.MinPrice != 600000 {
		t.Fatalf("minPrice = %v, want 600000", a.Filters.MinPrice)
	}
	if a.Filters.MaxPrice != nil {
		t.Fatalf("maxPrice = %v, want nil", *a.Filters.MaxPrice)
	}

	a = Analyze("flat around £200k")
	if a.Filters.MinPrice == nil || a.Filters.MaxPrice == nil {
		t.Fatalf("around: missing bounds: %+v", a.Filters)
	}
	if *a.Filters.MinPrice != 180000 || *a.Filters.MaxPrice != 220000 {
		t.Fatalf("around: [%v, %v], want [180000, 220000]",
			*a.Filters.MinPrice, *a.Filters.MaxPrice)
	}
}

func TestAnalyze_BedRangeIsNotAPrice(t *testing.T) {
	a := Analyze("2 - 3 bed house")
	if a.Filters.MinPrice != nil || a.Filters.MaxPrice != nil {
		t.Fatalf("bed range read as price: %+v", a.Filters)
	}
	if a.Filters.Bedrooms == nil {
		t.Fatalf("bedrooms not extracted")
	}
}

func TestAnalyze_SpelledOutCounts(t *testing.T) {
	a := Analyze("three bedroom house with two bathrooms")
	if a.Filters.Bedrooms == nil || *a.Filters.Bedrooms != 3 {
		t.Fatalf("bedrooms = %v, want 3", a.Filters.Bedrooms)
	}
	if a.Filters.Bathrooms == nil || *a.Filters.Bathrooms != 2 {
		t.Fatalf("bathrooms = %v, want 2", a.Filters.Bathrooms)
	}
}

func TestAnalyze_TypeSynonymOrder(t *testing.T) {
	// "flat" appears before "house" in the rule table, so a query naming
	// both resolves to apartment. That ordering is policy, not accident.
	a := Analyze("flat or house in leeds")
	if a.Filters.PropertyType == nil || *a.Filters.PropertyType != domain.TypeApartment {
		t.Fatalf("type = %v, want apartment (first-match policy)", a.Filters.PropertyType)
	}
}

func TestAnalyze_FeaturesAndSuggestions(t *testing.T) {
	a := Analyze("family house with garden and parking")
	want := []domain.FeatureTag{domain.FeatureGarden, domain.FeatureParking, domain.FeatureFamily}
	if len(a.Filters.Features) != len(want) {
		t.Fatalf("features = %v, want %v", a.Filters.Features, want)
	}
	for i, f := range want {
		if a.Filters.Features[i] != f {
			t.Fatalf("features[%d] = %v, want %v", i, a.Filters.Features[i], f)
		}
	}
	found := false
	for _, s := range a.Suggestions {
		if s == "Near schools" {
			found = true
		}
	}
	if !found {
		t.Fatalf("family query should suggest schools, got %v", a.Suggestions)
	}
	if len(a.Suggestions) > 5 {
		t.Fatalf("too many suggestions: %v", a.Suggestions)
	}
}

func TestAnalyze_SizeClasses(t *testing.T) {
	a := Analyze("spacious house")
	if a.Filters.MinArea == nil || *a.Filters.MinArea != 1000 {
		t.Fatalf("spacious: minArea = %v, want 1000", a.Filters.MinArea)
	}
	a = Analyze("huge house")
	if a.Filters.MinArea == nil || *a.Filters.MinArea != 1500 {
		t.Fatalf("huge: minArea = %v, want 1500", a.Filters.MinArea)
	}
	a = Analyze("cozy flat")
	if a.Filters.MaxArea == nil || *a.Filters.MaxArea != 600 {
		t.Fatalf("cozy: maxArea = %v, want 600", a.Filters.MaxArea)
	}
}

func TestAnalyze_Sentiment(t *testing.T) {
	cases := []struct {
		q    string
		want domain.Sentiment
	}{
		{"beautiful dream home in a lovely area", domain.SentimentPositive},
		{"avoid noisy cramped flats", domain.SentimentNegative},
		{"2 bed flat in london", domain.SentimentNeutral},
		{"beautiful but noisy", domain.SentimentNeutral}, // tie
	}
	for _, c := range cases {
		if got := Analyze(c.q).Sentiment; got != c.want {
			t.Fatalf("%q: sentiment = %q, want %q", c.q, got, c.want)
		}
	}
}

func TestAnalyze_Keywords(t *testing.T) {
	a := Analyze("looking for a modern flat in london")
	for _, kw := range a.Keywords {
		if kw == "looking" || kw == "for" || kw == "in" {
			t.Fatalf("stop word %q leaked into keywords %v", kw, a.Keywords)
		}
	}
	found := false
	for _, kw := range a.Keywords {
		if kw == "modern" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected keyword 'modern' in %v", a.Keywords)
	}
}

func TestAnalyze_ConfidenceCapped(t *testing.T) {
	a := Analyze("beautiful spacious modern 3 bed 2 bath family house with garden and parking in richmond between £500k and £800k")
	if a.Confidence > 100 {
		t.Fatalf("confidence = %d, want <= 100", a.Confidence)
	}
	if a.Confidence != 100 {
		t.Fatalf("confidence = %d, want 100 for a fully-specified query", a.Confidence)
	}
}
