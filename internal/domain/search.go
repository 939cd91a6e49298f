package domain

// Sentiment is the coarse tone of a query.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// SearchFilters is the structured form of a query. All fields are
// optional; a new value is built per request and never mutated after
// construction.
type SearchFilters struct {
	Query        *string       `json:"query,omitempty"`
	MinPrice     *float64      `json:"minPrice,omitempty"`
	MaxPrice     *float64      `json:"maxPrice,omitempty"`
	Bedrooms     *int          `json:"bedrooms,omitempty"`
	Bathrooms    *int          `json:"bathrooms,omitempty"`
	PropertyType *PropertyType `json:"propertyType,omitempty"`
	Location     *string       `json:"location,omitempty"`
	MinArea      *float64      `json:"minArea,omitempty"`
	MaxArea      *float64      `json:"maxArea,omitempty"`
	Features     []FeatureTag  `json:"features,omitempty"`
}

// SemanticAnalysis is the analyzer's request-scoped output.
type SemanticAnalysis struct {
	Intent      string        `json:"intent"`
	Filters     SearchFilters `json:"filters"`
	Suggestions []string      `json:"suggestions,omitempty"` // at most 5
	Confidence  int           `json:"confidence"`            // 0..100
	Keywords    []string      `json:"keywords,omitempty"`
	Sentiment   Sentiment     `json:"sentiment"`
}

// ListingQuery is what the engine hands the listing repository: an
// opaque ranked-retrieval request the engine augments, not implements.
type ListingQuery struct {
	Embedding           []float32
	Filters             SearchFilters
	Keywords            []string
	Limit               int
	Offset              int
	SimilarityThreshold float64
}

// RankedListing is a repository row with its retrieval-time ranks.
type RankedListing struct {
	Property
	TextRank   float64 `db:"text_rank"`
	Similarity float64 `db:"similarity"`
}

// ListingResult is the repository's answer before composition.
type ListingResult struct {
	Listings []RankedListing
	Total    int
}

// SearchLog records one executed search for later analysis. Logging is
// best-effort; failures never surface to the caller.
type SearchLog struct {
	Query       string
	Filters     SearchFilters
	Keywords    []string
	ResultCount int
	ListingIDs  []int64
	TookMS      int64
}
