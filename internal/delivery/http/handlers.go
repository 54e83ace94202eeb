package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MedKhalil95/TrafficPrediction/internal/domain"
	"github.com/MedKhalil95/TrafficPrediction/internal/geo"
	"github.com/MedKhalil95/TrafficPrediction/internal/service"
	"github.com/MedKhalil95/TrafficPrediction/pkg/utils"
)

// StatusClient covers the remote maintenance calls proxied by the handler.
type StatusClient interface {
	SystemStatus(ctx context.Context) (domain.SystemStatus, error)
	ForceUpdate(ctx context.Context) error
}

// Handler contains all HTTP handlers
type Handler struct {
	orch   *service.Orchestrator
	mapSt  *service.MapState
	form   *service.FormSync
	geoloc *service.GeoLocator
	status StatusClient
	repo   domain.DataRepository
	cities *domain.CityIndex
}

// NewHandler creates a new handler
func NewHandler(orch *service.Orchestrator, mapSt *service.MapState, form *service.FormSync, geoloc *service.GeoLocator, status StatusClient, repo domain.DataRepository, cities *domain.CityIndex) *Handler {
	return &Handler{
		orch:   orch,
		mapSt:  mapSt,
		form:   form,
		geoloc: geoloc,
		status: status,
		repo:   repo,
		cities: cities,
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	if err := h.repo.Health(c.Context()); err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Storage unavailable")
	}
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "traffic-advisor",
		"cities":  h.cities.Len(),
	})
}

// Predict resolves a traffic prediction for the posted request. Remote
// failures degrade to the local estimate; provenance is reported in the
// payload, never as an error.
func (h *Handler) Predict(c *fiber.Ctx) error {
	var req domain.PredictionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	res, err := h.orch.RequestPrediction(c.Context(), req)
	if err != nil {
		// Validation failures enumerate every violated constraint.
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"source":          res.Source,
		"prediction":      res.Level,
		"traffic_level":   res.Info(),
		"city":            res.City,
		"recommendations": res.Recommendations,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

// ListCities returns the city reference table
func (h *Handler) ListCities(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"cities":  h.cities.All(),
	})
}

// GetCity returns one city by id
func (h *Handler) GetCity(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid city id")
	}
	city, ok := h.cities.Get(id)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "City not found")
	}
	return c.JSON(city)
}

// SelectCity loads live traffic for a city and marks it selected
func (h *Handler) SelectCity(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid city id")
	}
	if err := h.mapSt.SelectCity(c.Context(), id); err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"selection": h.mapSt.Selection(),
	})
}

// ClearSelection resets the selected-city slot
func (h *Handler) ClearSelection(c *fiber.Ctx) error {
	h.mapSt.ClearSelection()
	return c.JSON(fiber.Map{"success": true})
}

type overlayRequest struct {
	Enabled bool `json:"enabled"`
}

// SetOverlay toggles the all-cities traffic overlay
func (h *Handler) SetOverlay(c *fiber.Ctx) error {
	var req overlayRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	h.mapSt.SetShowAllCities(c.Context(), req.Enabled)
	return c.JSON(fiber.Map{
		"success": true,
		"enabled": h.mapSt.ShowAllCities(),
	})
}

type locateRequest struct {
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Accuracy float64  `json:"accuracy"`
	Failure  string   `json:"failure"`
}

type reportedOutcome struct {
	loc domain.UserLocation
	err error
}

func (p reportedOutcome) RequestLocation(ctx context.Context) (domain.UserLocation, error) {
	return p.loc, p.err
}

// Locate resolves the user's location. The browser reports its geolocation
// outcome in the body; with an empty body the configured provider is asked.
func (h *Handler) Locate(c *fiber.Ctx) error {
	var (
		loc domain.UserLocation
		err error
	)

	var req locateRequest
	if len(c.Body()) > 0 {
		if parseErr := c.BodyParser(&req); parseErr != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	switch {
	case req.Lat != nil && req.Lng != nil:
		reported := domain.UserLocation{Lat: *req.Lat, Lng: *req.Lng, Accuracy: req.Accuracy}
		loc, err = h.geoloc.LocateVia(c.Context(), reportedOutcome{loc: reported})
	case req.Failure != "":
		loc, err = h.geoloc.LocateVia(c.Context(), reportedOutcome{err: failureError(req.Failure)})
	default:
		loc, err = h.geoloc.Locate(c.Context())
	}
	if err != nil {
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	}

	resp := fiber.Map{
		"success":  true,
		"location": loc,
	}
	if nearest, ok := service.NearestCity(loc, h.cities.All()); ok {
		resp["nearest_city"] = nearest
		resp["nearest_distance_km"] = utils.RoundTo(distanceTo(loc, nearest), 1)
	}
	return c.JSON(resp)
}

func distanceTo(loc domain.UserLocation, city domain.City) float64 {
	return geo.DistanceKm(loc.Lat, loc.Lng, city.Lat, city.Lng)
}

func failureError(kind string) error {
	switch kind {
	case "permission-denied":
		return service.ErrPermissionDenied
	case "timeout":
		return service.ErrLocationTimeout
	default:
		return service.ErrLocationUnavailable
	}
}

// RequestETA computes a route and arrival estimate to a city
func (h *Handler) RequestETA(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid city id")
	}
	if err := h.mapSt.RequestETA(c.Context(), id); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.JSON(fiber.Map{
		"success": true,
		"route":   h.mapSt.Route(),
	})
}

// GetState returns the current prediction, selection, route and location for
// the presentation layer to bind to.
func (h *Handler) GetState(c *fiber.Ctx) error {
	state := fiber.Map{
		"success":   true,
		"selection": h.mapSt.Selection(),
		"route":     h.mapSt.Route(),
		"overlay":   h.mapSt.ShowAllCities(),
		"form":      h.form.Request(),
	}
	if pred, ok := h.orch.CurrentPrediction(); ok {
		state["prediction"] = pred
		state["traffic_level"] = pred.Info()
	}
	if loc, ok := h.geoloc.Location(); ok {
		state["location"] = loc
	}
	return c.JSON(state)
}

type formRequest struct {
	Hour    *int `json:"hour"`
	Day     *int `json:"day"`
	City    *int `json:"city"`
	Weather *int `json:"weather"`
}

// UpdateForm applies partial field changes; submissions are debounced so a
// burst of edits yields one prediction request.
func (h *Handler) UpdateForm(c *fiber.Ctx) error {
	var req formRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Hour != nil {
		h.form.SetHour(*req.Hour)
	}
	if req.Day != nil {
		h.form.SetDay(*req.Day)
	}
	if req.City != nil {
		h.form.SetCity(*req.City)
	}
	if req.Weather != nil {
		h.form.SetWeather(*req.Weather)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"form":    h.form.Request(),
	})
}

// SyncFormTime resets the form's hour/day from the current wall clock
func (h *Handler) SyncFormTime(c *fiber.Ctx) error {
	h.form.SyncToCurrentTime()
	return c.JSON(fiber.Map{
		"success": true,
		"form":    h.form.Request(),
	})
}

// SystemStatus proxies the remote service's status report
func (h *Handler) SystemStatus(c *fiber.Ctx) error {
	status, err := h.status.SystemStatus(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "Failed to fetch system status")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"status":  status,
	})
}

// ForceUpdate asks the remote service to refresh its dataset
func (h *Handler) ForceUpdate(c *fiber.Ctx) error {
	if err := h.status.ForceUpdate(c.Context()); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "Force update failed")
	}
	return c.JSON(fiber.Map{"success": true})
}
