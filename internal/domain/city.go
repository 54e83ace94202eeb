package domain

import (
	"fmt"
	"sort"
)

// City is immutable reference data describing a monitored city.
type City struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Governorate string   `json:"governorate,omitempty"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Population  int      `json:"population,omitempty"`
	Hotspots    []string `json:"hotspots,omitempty"`
}

// Well-known city IDs used by the fallback scorer.
const (
	CapitalCityID = 0 // Tunis
	SecondCityID  = 1 // Ariana
)

// Default map position when no location is known (Tunis center).
const (
	DefaultCenterLat = 36.8065
	DefaultCenterLng = 10.1815
)

// DefaultCities returns the built-in Tunisian city table, used when no
// database is configured.
func DefaultCities() []City {
	return []City{
		{
			ID:          0,
			Name:        "Tunis",
			Governorate: "Tunis",
			Lat:         36.8065,
			Lng:         10.1815,
			Population:  638845,
			Hotspots:    []string{"Bab Bhar", "Lac", "Belvédère", "Avenue Habib Bourguiba"},
		},
		{
			ID:          1,
			Name:        "Ariana",
			Governorate: "Ariana",
			Lat:         36.8625,
			Lng:         10.1956,
			Population:  114486,
			Hotspots:    []string{"Cité Ennasr", "Ariana Ville", "Riadh Andalous"},
		},
		{
			ID:          2,
			Name:        "Sfax",
			Governorate: "Sfax",
			Lat:         34.7406,
			Lng:         10.7603,
			Population:  330440,
			Hotspots:    []string{"Sfax Médina", "Route de l'Aéroport", "Route de Tunis"},
		},
		{
			ID:          3,
			Name:        "Sousse",
			Governorate: "Sousse",
			Lat:         35.8254,
			Lng:         10.6360,
			Population:  221530,
			Hotspots:    []string{"Port El Kantaoui", "Sousse Médina", "Boulevard 14 Janvier"},
		},
	}
}

// CityIndex provides read-only lookup over the city reference data.
// Built once at startup and shared by every service.
type CityIndex struct {
	byID    map[int]City
	ordered []City
}

// NewCityIndex builds an index over the given cities, ordered by id.
func NewCityIndex(cities []City) *CityIndex {
	idx := &CityIndex{byID: make(map[int]City, len(cities))}
	for _, c := range cities {
		idx.byID[c.ID] = c
	}
	for _, c := range idx.byID {
		idx.ordered = append(idx.ordered, c)
	}
	sort.Slice(idx.ordered, func(i, j int) bool {
		return idx.ordered[i].ID < idx.ordered[j].ID
	})
	return idx
}

// Get returns the city with the given id.
func (idx *CityIndex) Get(id int) (City, bool) {
	c, ok := idx.byID[id]
	return c, ok
}

// All returns every known city ordered by id. The returned slice must not be
// mutated.
func (idx *CityIndex) All() []City {
	return idx.ordered
}

// Len returns the number of known cities.
func (idx *CityIndex) Len() int {
	return len(idx.ordered)
}

// Has reports whether a city with the given id exists.
func (idx *CityIndex) Has(id int) bool {
	_, ok := idx.byID[id]
	return ok
}

func (c City) String() string {
	return fmt.Sprintf("%s (#%d)", c.Name, c.ID)
}
