package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/MedKhalil95/TrafficPrediction/internal/domain"
)

// SelectionPhase is the city-selection slot state.
type SelectionPhase int

const (
	Unselected SelectionPhase = iota
	SelectionLoading
	SelectionLoaded
)

func (p SelectionPhase) String() string {
	switch p {
	case SelectionLoading:
		return "loading"
	case SelectionLoaded:
		return "loaded"
	default:
		return "unselected"
	}
}

// Selection is the current city-selection slot. Traffic stays nil when the
// live fetch failed; the static city attributes still render.
type Selection struct {
	Phase   SelectionPhase      `json:"phase"`
	City    domain.City         `json:"city,omitempty"`
	Traffic *domain.CityTraffic `json:"traffic,omitempty"`
}

// RoutePhase is the ETA/route slot state.
type RoutePhase int

const (
	RouteNoLocation RoutePhase = iota
	RouteLocationKnown
	RouteRequested
	RouteReady
	RouteFailed
)

func (p RoutePhase) String() string {
	switch p {
	case RouteLocationKnown:
		return "location_known"
	case RouteRequested:
		return "requested"
	case RouteReady:
		return "ready"
	case RouteFailed:
		return "failed"
	default:
		return "no_location"
	}
}

// RouteState is the current ETA/route slot.
type RouteState struct {
	Phase  RoutePhase       `json:"phase"`
	Result *domain.RouteETA `json:"result,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

// TrafficClient covers the remote calls MapState issues.
type TrafficClient interface {
	TrafficForCity(ctx context.Context, cityID int) (domain.CityTraffic, error)
	CalculateETA(ctx context.Context, origin domain.UserLocation, cityID int, req domain.PredictionRequest) (domain.RouteETA, error)
}

// MapSurface receives rendering intents; pixel-level drawing belongs to the
// presentation layer. NopSurface stands in when no surface is bound.
type MapSurface interface {
	PlaceMarker(id string, lat, lng float64, label string)
	RemoveMarker(id string)
	DrawPolyline(id string, coords []domain.LatLng)
	SetView(lat, lng float64, zoom int)
	FitBounds(coords []domain.LatLng)
}

// NopSurface discards all rendering intents.
type NopSurface struct{}

func (NopSurface) PlaceMarker(string, float64, float64, string) {}
func (NopSurface) RemoveMarker(string)                          {}
func (NopSurface) DrawPolyline(string, []domain.LatLng)         {}
func (NopSurface) SetView(float64, float64, int)                {}
func (NopSurface) FitBounds([]domain.LatLng)                    {}

const (
	selectionMarkerID = "selection"
	routeLineID       = "route"
	routeDestMarkerID = "route-destination"

	cityZoom = 12
)

func overlayMarkerID(cityID int) string {
	return fmt.Sprintf("city-%d", cityID)
}

// MapState owns the city-marker lifecycle, selected-city traffic loading and
// the ETA/route pipeline. Stale responses are discarded through per-slot
// monotonic tokens: last request wins, not last response.
type MapState struct {
	client  TrafficClient
	geoloc  *GeoLocator
	form    *FormSync
	surface MapSurface
	cities  *domain.CityIndex
	cache   *gocache.Cache
	log     *slog.Logger

	mu         sync.Mutex
	selToken   uint64
	sel        Selection
	routeToken uint64
	route      RouteState
	showAll    bool
}

// NewMapState creates the map-state controller. trafficTTL bounds how long a
// per-city traffic snapshot is reused before refetching.
func NewMapState(client TrafficClient, geoloc *GeoLocator, form *FormSync, surface MapSurface, cities *domain.CityIndex, trafficTTL time.Duration, log *slog.Logger) *MapState {
	if surface == nil {
		surface = NopSurface{}
	}
	return &MapState{
		client:  client,
		geoloc:  geoloc,
		form:    form,
		surface: surface,
		cities:  cities,
		cache:   gocache.New(trafficTTL, 2*trafficTTL),
		log:     log,
	}
}

// SelectCity transitions the selection slot to Loading and fetches live
// traffic for the city. A newer SelectCity issued before the fetch resolves
// supersedes this one; the stale response is discarded. Fetch failure is
// non-fatal: the selection lands in Loaded with nil traffic.
func (s *MapState) SelectCity(ctx context.Context, cityID int) error {
	city, ok := s.cities.Get(cityID)
	if !ok {
		return fmt.Errorf("mapstate: unknown city id %d", cityID)
	}

	s.mu.Lock()
	s.selToken++
	token := s.selToken
	s.sel = Selection{Phase: SelectionLoading, City: city}
	s.mu.Unlock()

	traffic, err := s.cityTraffic(ctx, cityID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.selToken {
		return nil // superseded by a newer selection
	}

	sel := Selection{Phase: SelectionLoaded, City: city}
	if err != nil {
		s.log.Warn("city traffic fetch failed, showing static city data",
			slog.Int("city", cityID), slog.Any("error", err))
	} else {
		sel.Traffic = &traffic
	}
	s.sel = sel

	s.surface.PlaceMarker(selectionMarkerID, city.Lat, city.Lng, city.Name)
	s.surface.SetView(city.Lat, city.Lng, cityZoom)
	return nil
}

// ClearSelection resets the selection slot and removes the selection marker.
// The show-all overlay, if active, is left untouched.
func (s *MapState) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selToken++ // invalidates any in-flight fetch
	s.sel = Selection{Phase: Unselected}
	s.surface.RemoveMarker(selectionMarkerID)
}

// Selection returns the current selection slot.
func (s *MapState) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// SetShowAllCities toggles the all-cities overlay. Enabling fetches traffic
// for every known city as independent per-city requests; cities whose fetch
// fails are omitted without aborting the rest. Disabling removes the overlay
// markers.
func (s *MapState) SetShowAllCities(ctx context.Context, enabled bool) {
	s.mu.Lock()
	if s.showAll == enabled {
		s.mu.Unlock()
		return
	}
	s.showAll = enabled
	s.mu.Unlock()

	if !enabled {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, c := range s.cities.All() {
			s.surface.RemoveMarker(overlayMarkerID(c.ID))
		}
		return
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[int]domain.CityTraffic)
	)
	for _, city := range s.cities.All() {
		wg.Add(1)
		go func(c domain.City) {
			defer wg.Done()
			traffic, err := s.cityTraffic(ctx, c.ID)
			if err != nil {
				s.log.Warn("overlay traffic fetch failed, omitting city marker",
					slog.Int("city", c.ID), slog.Any("error", err))
				return
			}
			mu.Lock()
			results[c.ID] = traffic
			mu.Unlock()
		}(city)
	}
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.showAll {
		return // toggled off while fetching
	}
	for _, c := range s.cities.All() {
		traffic, ok := results[c.ID]
		if !ok {
			continue
		}
		label := fmt.Sprintf("%s: %s", c.Name, domain.Describe(traffic.Level).Label)
		s.surface.PlaceMarker(overlayMarkerID(c.ID), c.Lat, c.Lng, label)
	}
}

// ShowAllCities reports whether the overlay is active.
func (s *MapState) ShowAllCities() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showAll
}

// RequestETA issues a route/ETA request from the user's location to the city,
// keyed on the current form values. It requires a real (non-degraded) known
// location. Failure is terminal for the request: it surfaces to the caller
// and nothing is drawn, because a wrong route is worse than no route.
func (s *MapState) RequestETA(ctx context.Context, cityID int) error {
	loc, ok := s.geoloc.Location()
	if !ok {
		return fmt.Errorf("mapstate: eta requires a known location")
	}
	if loc.Degraded {
		return fmt.Errorf("mapstate: eta refused for substituted default location")
	}
	city, ok := s.cities.Get(cityID)
	if !ok {
		return fmt.Errorf("mapstate: unknown city id %d", cityID)
	}
	req := s.form.Request()

	s.mu.Lock()
	s.routeToken++
	token := s.routeToken
	s.route = RouteState{Phase: RouteRequested}
	s.mu.Unlock()

	result, err := s.client.CalculateETA(ctx, loc, cityID, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.routeToken {
		return nil // superseded
	}
	if err != nil {
		s.route = RouteState{Phase: RouteFailed, Reason: err.Error()}
		return fmt.Errorf("mapstate: eta request failed: %w", err)
	}

	s.route = RouteState{Phase: RouteReady, Result: &result}
	s.surface.DrawPolyline(routeLineID, result.Route.Coordinates)
	s.surface.PlaceMarker(routeDestMarkerID, city.Lat, city.Lng,
		fmt.Sprintf("%s, arrive %s", city.Name, result.ETA.ArrivalTime))
	s.surface.FitBounds(result.Route.Coordinates)
	return nil
}

// Route returns the current ETA/route slot. The pre-request phases are
// derived from the locator so the slot tracks geolocation without extra
// bookkeeping.
func (s *MapState) Route() RouteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.route.Phase != RouteNoLocation {
		return s.route
	}
	if _, ok := s.geoloc.Location(); ok {
		return RouteState{Phase: RouteLocationKnown}
	}
	return RouteState{Phase: RouteNoLocation}
}

func (s *MapState) cityTraffic(ctx context.Context, cityID int) (domain.CityTraffic, error) {
	key := fmt.Sprintf("traffic:%d", cityID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(domain.CityTraffic), nil
	}
	traffic, err := s.client.TrafficForCity(ctx, cityID)
	if err != nil {
		return domain.CityTraffic{}, err
	}
	s.cache.SetDefault(key, traffic)
	return traffic, nil
}
