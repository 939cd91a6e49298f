package scoring

import "homematch/internal/domain"

// Archetype is the coarse property class that selects a base affinity
// table. Classification looks at stated type, bedrooms and price.
type Archetype int

const (
	FamilyHouse Archetype = iota
	StudioApartment
	LuxuryApartment
	StandardApartment
	SharedHouse
)

// OccupantGroup is the inferred likely occupant, derived from bedroom
// count and feature tags only.
type OccupantGroup int

const (
	YoungProfessional OccupantGroup = iota
	Family
	Retiree
)

const (
	luxuryPriceThreshold = 800_000
	budgetPriceThreshold = 200_000
	sharedHouseBedrooms  = 5
)

// Classify resolves a property to its archetype.
func Classify(p *domain.Property) Archetype {
	beds := 0
	if p.Bedrooms != nil {
		beds = *p.Bedrooms
	}
	price := 0.0
	if p.Price != nil {
		price = *p.Price
	}

	switch p.Type {
	case domain.TypeStudio:
		return StudioApartment
	case domain.TypeHouse, domain.TypeBungalow, domain.TypeCottage,
		domain.TypeTownhouse, domain.TypeMaisonette:
		if beds >= sharedHouseBedrooms {
			return SharedHouse
		}
		return FamilyHouse
	case domain.TypeApartment, domain.TypePenthouse:
		if price >= luxuryPriceThreshold || p.Type == domain.TypePenthouse {
			return LuxuryApartment
		}
		return StandardApartment
	}

	// No stated type: fall back to shape.
	if beds == 0 {
		return StudioApartment
	}
	if beds >= 3 {
		return FamilyHouse
	}
	return StandardApartment
}

// ClassifyOccupants infers the likely occupant group.
func ClassifyOccupants(p *domain.Property) OccupantGroup {
	beds := 0
	if p.Bedrooms != nil {
		beds = *p.Bedrooms
	}
	if p.HasFeature(domain.FeatureFamily) || beds >= 3 {
		return Family
	}
	if beds == 2 && p.HasFeature(domain.FeatureGarden) && !p.HasFeature(domain.FeatureModern) {
		return Retiree
	}
	return YoungProfessional
}

// Base affinity per archetype and POI category. Categories missing from
// a table score the 0.5 default.
const defaultAffinity = 0.5

var baseAffinity = map[Archetype]map[domain.POICategory]float64{
	FamilyHouse: {
		domain.CategorySchool:      0.9,
		domain.CategoryPark:        0.85,
		domain.CategorySupermarket: 0.75,
		domain.CategoryHospital:    0.65,
		domain.CategoryTransport:   0.6,
		domain.CategoryShopping:    0.6,
		domain.CategoryRestaurant:  0.5,
		domain.CategoryGym:         0.5,
		domain.CategoryNightlife:   0.2,
	},
	StudioApartment: {
		domain.CategoryTransport:   0.9,
		domain.CategoryNightlife:   0.8,
		domain.CategoryRestaurant:  0.8,
		domain.CategoryGym:         0.75,
		domain.CategorySupermarket: 0.7,
		domain.CategoryShopping:    0.7,
		domain.CategoryPark:        0.5,
		domain.CategoryHospital:    0.4,
		domain.CategorySchool:      0.2,
	},
	LuxuryApartment: {
		domain.CategoryRestaurant:  0.9,
		domain.CategoryShopping:    0.85,
		domain.CategoryGym:         0.8,
		domain.CategoryNightlife:   0.7,
		domain.CategoryTransport:   0.7,
		domain.CategoryPark:        0.65,
		domain.CategorySchool:      0.5,
		domain.CategorySupermarket: 0.5,
		domain.CategoryHospital:    0.5,
	},
	StandardApartment: {
		domain.CategoryTransport:   0.8,
		domain.CategorySupermarket: 0.75,
		domain.CategoryRestaurant:  0.7,
		domain.CategoryShopping:    0.65,
		domain.CategoryPark:        0.6,
		domain.CategoryGym:         0.6,
		domain.CategoryNightlife:   0.55,
		domain.CategorySchool:      0.5,
		domain.CategoryHospital:    0.5,
	},
	SharedHouse: {
		domain.CategoryTransport:   0.85,
		domain.CategoryNightlife:   0.75,
		domain.CategorySupermarket: 0.7,
		domain.CategoryGym:         0.7,
		domain.CategoryRestaurant:  0.7,
		domain.CategoryShopping:    0.6,
		domain.CategoryPark:        0.55,
		domain.CategoryHospital:    0.45,
		domain.CategorySchool:      0.3,
	},
}

// Occupant-group multipliers applied to category affinity before the
// age term is folded in. Categories not listed multiply by 1.
var occupantModifier = map[OccupantGroup]map[domain.POICategory]float64{
	Family: {
		domain.CategorySchool:      1.3,
		domain.CategoryPark:        1.2,
		domain.CategorySupermarket: 1.1,
		domain.CategoryNightlife:   0.5,
	},
	YoungProfessional: {
		domain.CategoryNightlife:  1.3,
		domain.CategoryGym:        1.2,
		domain.CategoryTransport:  1.2,
		domain.CategoryRestaurant: 1.15,
		domain.CategorySchool:     0.6,
	},
	Retiree: {
		domain.CategoryHospital:    1.3,
		domain.CategoryPark:        1.2,
		domain.CategorySupermarket: 1.1,
		domain.CategoryNightlife:   0.4,
	},
}

func affinity(a Archetype, c domain.POICategory) float64 {
	if v, ok := baseAffinity[a][c]; ok {
		return v
	}
	return defaultAffinity
}

func modifier(g OccupantGroup, c domain.POICategory) float64 {
	if v, ok := occupantModifier[g][c]; ok {
		return v
	}
	return 1.0
}
