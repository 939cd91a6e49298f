package domain

// POICategory is the closed set of amenity categories the POI provider
// understands. Adding a category means extending the scorer's affinity
// tables too, which the exhaustive switches there make a compile-visible
// gap rather than a silent default.
type POICategory string

const (
	CategorySchool      POICategory = "school"
	CategoryTransport   POICategory = "transport"
	CategorySupermarket POICategory = "supermarket"
	CategoryRestaurant  POICategory = "restaurant"
	CategoryHospital    POICategory = "hospital"
	CategoryPark        POICategory = "park"
	CategoryGym         POICategory = "gym"
	CategoryNightlife   POICategory = "nightlife"
	CategoryShopping    POICategory = "shopping"
)

// AllPOICategories lists every category in a fixed order, used when a
// caller wants "everything nearby".
var AllPOICategories = []POICategory{
	CategorySchool, CategoryTransport, CategorySupermarket,
	CategoryRestaurant, CategoryHospital, CategoryPark,
	CategoryGym, CategoryNightlife, CategoryShopping,
}

// POI is one point of interest as returned by the upstream provider.
// Distance to a reference point is always computed, never stored.
type POI struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Category    POICategory `json:"category"`
	Rating      *float64    `json:"rating,omitempty"` // 0..5
	ReviewCount *int        `json:"reviewCount,omitempty"`
	Coords      Coords      `json:"coords"`
}

// ScoredPOI pairs a POI with its computed distance from a property and
// its relevance for that property.
type ScoredPOI struct {
	POI
	DistanceM float64 `json:"distanceM"`
	Relevance float64 `json:"relevance"`
}
