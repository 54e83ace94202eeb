package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/MedKhalil95/TrafficPrediction/internal/domain"
	"github.com/MedKhalil95/TrafficPrediction/internal/geo"
)

// Location failure taxonomy, mirroring the device geolocation API.
var (
	ErrPermissionDenied    = errors.New("geolocator: permission denied")
	ErrLocationUnavailable = errors.New("geolocator: position unavailable")
	ErrLocationTimeout     = errors.New("geolocator: timeout")
)

// LocationProvider is the device-location collaborator.
type LocationProvider interface {
	RequestLocation(ctx context.Context) (domain.UserLocation, error)
}

// StaticProvider always reports a fixed position. Used for headless
// deployments configured through the environment.
type StaticProvider struct {
	Lat, Lng float64
	Accuracy float64
}

func (p StaticProvider) RequestLocation(ctx context.Context) (domain.UserLocation, error) {
	return domain.UserLocation{Lat: p.Lat, Lng: p.Lng, Accuracy: p.Accuracy}, nil
}

// UnavailableProvider always fails with ErrLocationUnavailable.
type UnavailableProvider struct{}

func (UnavailableProvider) RequestLocation(ctx context.Context) (domain.UserLocation, error) {
	return domain.UserLocation{}, ErrLocationUnavailable
}

// GeoLocator wraps location acquisition and owns the last-known location.
type GeoLocator struct {
	provider LocationProvider
	log      *slog.Logger

	mu  sync.Mutex
	loc *domain.UserLocation
}

// NewGeoLocator creates a locator backed by the given provider.
func NewGeoLocator(provider LocationProvider, log *slog.Logger) *GeoLocator {
	return &GeoLocator{provider: provider, log: log}
}

// Locate acquires the device location through the configured provider.
func (g *GeoLocator) Locate(ctx context.Context) (domain.UserLocation, error) {
	return g.LocateVia(ctx, g.provider)
}

// LocateVia acquires a location through an explicit provider and applies the
// acquisition policy: permission denials surface and leave the location
// unset; unavailable/timeout failures substitute the documented capital
// default, marked degraded and logged, never silently treated as a real
// user-reported position.
func (g *GeoLocator) LocateVia(ctx context.Context, provider LocationProvider) (domain.UserLocation, error) {
	loc, err := provider.RequestLocation(ctx)
	switch {
	case err == nil:
		loc.Degraded = false
	case errors.Is(err, ErrPermissionDenied):
		return domain.UserLocation{}, err
	default:
		g.log.Warn("location unavailable, substituting capital default",
			slog.Any("error", err))
		loc = domain.UserLocation{
			Lat:      domain.DefaultCenterLat,
			Lng:      domain.DefaultCenterLng,
			Degraded: true,
		}
	}

	g.mu.Lock()
	g.loc = &loc
	g.mu.Unlock()
	return loc, nil
}

// Location returns the last-known location, if set.
func (g *GeoLocator) Location() (domain.UserLocation, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loc == nil {
		return domain.UserLocation{}, false
	}
	return *g.loc, true
}

// ClearLocation forgets the stored location so a fresh request is required.
func (g *GeoLocator) ClearLocation() {
	g.mu.Lock()
	g.loc = nil
	g.mu.Unlock()
}

// NearestCity scans the city set for the minimum great-circle distance to
// loc. Ties break toward the lowest city id; false on an empty set.
func NearestCity(loc domain.UserLocation, cities []domain.City) (domain.City, bool) {
	var (
		best     domain.City
		bestDist float64
		found    bool
	)
	for _, c := range cities {
		d := geo.DistanceKm(loc.Lat, loc.Lng, c.Lat, c.Lng)
		if !found || d < bestDist || (d == bestDist && c.ID < best.ID) {
			best, bestDist, found = c, d, true
		}
	}
	return best, found
}
