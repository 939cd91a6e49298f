package domain

import (
	"database/sql/driver"
	"encoding/json"
)

// PropertyType is the closed set of listing types the platform knows about.
// Free-text synonyms ("flat", "home", "detached") are resolved by the
// analyzer; downstream code only ever sees one of these values.
type PropertyType string

const (
	TypeHouse      PropertyType = "house"
	TypeApartment  PropertyType = "apartment"
	TypeStudio     PropertyType = "studio"
	TypePenthouse  PropertyType = "penthouse"
	TypeBungalow   PropertyType = "bungalow"
	TypeCottage    PropertyType = "cottage"
	TypeMaisonette PropertyType = "maisonette"
	TypeTownhouse  PropertyType = "townhouse"
)

// FeatureTag is a canonical feature extracted from listing text or a query.
type FeatureTag string

const (
	FeatureGarden      FeatureTag = "garden"
	FeatureParking     FeatureTag = "parking"
	FeatureModern      FeatureTag = "modern"
	FeatureFamily      FeatureTag = "family"
	FeatureLuxury      FeatureTag = "luxury"
	FeaturePetFriendly FeatureTag = "pet-friendly"
	FeatureTransport   FeatureTag = "transport"
	FeatureBalcony     FeatureTag = "balcony"
	FeaturePeriod      FeatureTag = "period"
)

type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Property is the listing entity as read from the store. The engine never
// mutates it; derived fields (score, reasons) live on ListingMatch views.
type Property struct {
	ID          int64        `json:"id" db:"id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description" db:"description"`
	Price       *float64     `json:"price,omitempty" db:"price"`
	Bedrooms    *int         `json:"bedrooms,omitempty" db:"bedrooms"`
	Bathrooms   *int         `json:"bathrooms,omitempty" db:"bathrooms"`
	AreaSqft    *float64     `json:"areaSqft,omitempty" db:"area_sqft"`
	Type        PropertyType `json:"propertyType,omitempty" db:"property_type"`
	Location    *string      `json:"location,omitempty" db:"location"`
	Lat         *float64     `json:"lat,omitempty" db:"latitude"`
	Lng         *float64     `json:"lng,omitempty" db:"longitude"`
	Features    FeatureList  `json:"features,omitempty" db:"features"`
}

// Coordinates returns the property position and whether one is stored.
func (p *Property) Coordinates() (Coords, bool) {
	if p.Lat == nil || p.Lng == nil {
		return Coords{}, false
	}
	return Coords{Lat: *p.Lat, Lng: *p.Lng}, true
}

// HasFeature reports whether the listing carries the given canonical tag.
func (p *Property) HasFeature(tag FeatureTag) bool {
	for _, f := range p.Features {
		if f == tag {
			return true
		}
	}
	return false
}

// FeatureList is a JSON-column list of canonical feature tags.
type FeatureList []FeatureTag

func (f FeatureList) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

func (f *FeatureList) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), f)
	}
	return json.Unmarshal(b, f)
}

// ListingMatch is the per-request view the composer attaches derived
// ranking data to. The embedded Property is shared, never written.
type ListingMatch struct {
	Property
	Score         float64  `json:"score"`
	MatchReasons  []string `json:"matchReasons,omitempty"`
	MatchKeywords []string `json:"matchKeywords,omitempty"`
}

// SearchPage is one page of composed results. Total and TotalPages are
// computed over the full filtered set, before pagination.
type SearchPage struct {
	Items      []ListingMatch `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
	TookMS     int64          `json:"tookMs"`
	Semantic   bool           `json:"semantic"`
}
