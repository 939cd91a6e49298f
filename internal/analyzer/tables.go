package analyzer

import (
	"regexp"

	"homematch/internal/domain"
)

// Match tables. Order matters: within each table the first matching row
// wins, and that ordering is deliberate, documented policy (see the
// analyzer tests), not an accident of map iteration.

type typeRule struct {
	re *regexp.Regexp
	t  domain.PropertyType
}

var typeRules = []typeRule{
	{regexp.MustCompile(`\b(flat|apartment|apt)s?\b`), domain.TypeApartment},
	{regexp.MustCompile(`\b(house|home|detached|semi[- ]detached)s?\b`), domain.TypeHouse},
	{regexp.MustCompile(`\bstudios?\b`), domain.TypeStudio},
	{regexp.MustCompile(`\bpenthouses?\b`), domain.TypePenthouse},
	{regexp.MustCompile(`\bmaisonettes?\b`), domain.TypeMaisonette},
	{regexp.MustCompile(`\bbungalows?\b`), domain.TypeBungalow},
	{regexp.MustCompile(`\bcottages?\b`), domain.TypeCottage},
	{regexp.MustCompile(`\btown ?houses?\b`), domain.TypeTownhouse},
}

var spelledNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

var (
	bedroomRe  = regexp.MustCompile(`\b(\d+|one|two|three|four|five|six|seven|eight|nine|ten)[\s-]*(?:bed(?:room)?s?|br)\b`)
	bathroomRe = regexp.MustCompile(`\b(\d+|one|two|three|four|five|six|seven|eight|nine|ten)[\s-]*bath(?:room)?s?\b`)
)

// Price patterns, checked in order; the first hit wins.
const num = `£?\s*(\d+(?:,\d{3})*(?:\.\d+)?k?)`

type priceRule struct {
	re   *regexp.Regexp
	kind string // max | min | range | around
}

var priceRules = []priceRule{
	{regexp.MustCompile(`between\s*` + num + `\s*(?:and|to|-)\s*` + num), "range"},
	{regexp.MustCompile(num + `\s*(?:-|to)\s*` + num), "range"},
	{regexp.MustCompile(`(?:under|below|up\s*to|max(?:imum)?|budget(?:\s*of)?|<)\s*` + num), "max"},
	{regexp.MustCompile(`(?:over|above|min(?:imum)?|from|at\s*least|>)\s*` + num), "min"},
	{regexp.MustCompile(`around\s*` + num), "around"},
	{regexp.MustCompile(`£\s*(\d+(?:,\d{3})*(?:\.\d+)?k?)`), "max"},
}

// Curated place names and zone tokens, longest names first so that
// "canary wharf" wins over any shorter token inside it.
var knownLocations = []string{
	"canary wharf", "notting hill", "covent garden", "crystal palace",
	"london", "manchester", "birmingham", "leeds", "liverpool",
	"bristol", "sheffield", "glasgow", "edinburgh", "cardiff",
	"shoreditch", "camden", "islington", "hackney", "croydon",
	"richmond", "wimbledon", "greenwich", "brixton", "clapham",
	"stratford", "barking", "ealing", "hammersmith",
	"zone 1", "zone 2", "zone 3", "zone 4", "zone 5", "zone 6",
}

type featureRule struct {
	re         *regexp.Regexp
	tag        domain.FeatureTag
	suggestion string
}

var featureRules = []featureRule{
	{regexp.MustCompile(`\b(garden|outdoor\s+space|patio)s?\b`), domain.FeatureGarden, "Properties with gardens"},
	{regexp.MustCompile(`\b(parking|garage|driveway)s?\b`), domain.FeatureParking, "Off-street parking"},
	{regexp.MustCompile(`\b(modern|contemporary|new[- ]build)\b`), domain.FeatureModern, "Modern developments"},
	{regexp.MustCompile(`\b(famil(?:y|ies)|kids?|children)\b`), domain.FeatureFamily, "Near schools"},
	{regexp.MustCompile(`\b(luxur(?:y|ious)|premium|high[- ]end|upmarket)\b`), domain.FeatureLuxury, "Premium listings"},
	{regexp.MustCompile(`\b(pet[- ]friendly|pets?\s+allowed|dog|cat)s?\b`), domain.FeaturePetFriendly, "Pet-friendly homes"},
	{regexp.MustCompile(`\b(transport|tube|train|station|commut\w+|bus)\b`), domain.FeatureTransport, "Near transport links"},
	{regexp.MustCompile(`\b(balcon(?:y|ies)|terrace)s?\b`), domain.FeatureBalcony, "With balcony or terrace"},
	{regexp.MustCompile(`\b(period|victorian|georgian|edwardian)\b`), domain.FeaturePeriod, "Period properties"},
}

// Size classes, ordered so "huge" is tried before the generic large
// synonyms it would otherwise shadow.
const (
	smallMaxAreaSqft = 600
	largeMinAreaSqft = 1000
	hugeMinAreaSqft  = 1500
)

var (
	hugeRe  = regexp.MustCompile(`\b(huge|massive|enormous)\b`)
	largeRe = regexp.MustCompile(`\b(spacious|large|big|roomy)\b`)
	smallRe = regexp.MustCompile(`\b(cozy|cosy|small|compact)\b`)
)

var positiveWords = map[string]bool{
	"love": true, "great": true, "beautiful": true, "perfect": true,
	"dream": true, "amazing": true, "stunning": true, "lovely": true,
	"wonderful": true, "ideal": true, "charming": true,
}

var negativeWords = map[string]bool{
	"hate": true, "avoid": true, "terrible": true, "awful": true,
	"bad": true, "noisy": true, "cramped": true, "dingy": true,
	"ugly": true,
}

var stopWords = map[string]bool{
	"i": true, "want": true, "need": true, "looking": true, "for": true,
	"a": true, "an": true, "the": true, "in": true, "on": true,
	"at": true, "to": true, "with": true, "and": true, "or": true,
	"but": true, "is": true, "are": true, "was": true, "were": true,
	"near": true, "around": true, "under": true, "over": true,
}

// Points each extraction category contributes to confidence (capped 100).
const (
	pointsPrice     = 20
	pointsBedrooms  = 15
	pointsBathrooms = 10
	pointsType      = 20
	pointsLocation  = 20
	pointsFeatures  = 10
	pointsSize      = 5
)
