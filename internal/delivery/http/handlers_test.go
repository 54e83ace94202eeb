package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	gohttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MedKhalil95/TrafficPrediction/internal/domain"
	"github.com/MedKhalil95/TrafficPrediction/internal/repository/postgres"
	"github.com/MedKhalil95/TrafficPrediction/internal/service"
	"github.com/MedKhalil95/TrafficPrediction/internal/upstream"
)

type stubRemote struct {
	predictErr error
	trafficErr error
}

func (s stubRemote) Predict(ctx context.Context, req domain.PredictionRequest) (upstream.RemotePrediction, error) {
	if s.predictErr != nil {
		return upstream.RemotePrediction{}, s.predictErr
	}
	return upstream.RemotePrediction{
		Level:           domain.LevelMedium,
		Recommendations: []string{"Check real-time traffic updates"},
	}, nil
}

func (s stubRemote) TrafficForCity(ctx context.Context, cityID int) (domain.CityTraffic, error) {
	if s.trafficErr != nil {
		return domain.CityTraffic{}, s.trafficErr
	}
	return domain.CityTraffic{Level: domain.LevelLow, LevelText: "Low"}, nil
}

func (s stubRemote) CalculateETA(ctx context.Context, origin domain.UserLocation, cityID int, req domain.PredictionRequest) (domain.RouteETA, error) {
	return domain.RouteETA{
		Route: domain.Route{Coordinates: []domain.LatLng{{Lat: origin.Lat, Lng: origin.Lng}}},
		ETA:   domain.ETA{ArrivalTime: "15:00"},
	}, nil
}

func (s stubRemote) SystemStatus(ctx context.Context) (domain.SystemStatus, error) {
	return domain.SystemStatus{DatasetSize: 10000, ModelExists: true}, nil
}

func (s stubRemote) ForceUpdate(ctx context.Context) error { return nil }

func newTestApp(t *testing.T, remote stubRemote) *fiber.App {
	t.Helper()

	logg := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := postgres.NewMemoryRepository()
	cities := domain.NewCityIndex(domain.DefaultCities())

	orch := service.NewOrchestrator(remote, repo, cities, logg)
	geoloc := service.NewGeoLocator(service.UnavailableProvider{}, logg)
	form := service.NewFormSync(time.Hour, nil)
	mapState := service.NewMapState(remote, geoloc, form, service.NopSurface{}, cities, time.Minute, logg)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	SetupRoutes(app, NewHandler(orch, mapState, form, geoloc, remote, repo, cities))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*gohttp.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, stubRemote{})
	resp, body := doJSON(t, app, "GET", "/health", nil)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(4), body["cities"])
}

func TestPredictRemote(t *testing.T) {
	app := newTestApp(t, stubRemote{})
	resp, body := doJSON(t, app, "POST", "/api/v1/predict",
		domain.PredictionRequest{Hour: 13, Day: 1, CityID: 3})

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "remote", body["source"])
	assert.Equal(t, float64(domain.LevelMedium), body["prediction"])

	level := body["traffic_level"].(map[string]any)
	assert.Equal(t, "Medium", level["level"])
	assert.Equal(t, "#ffc107", level["color"])
}

func TestPredictDegradesToFallback(t *testing.T) {
	app := newTestApp(t, stubRemote{predictErr: errors.New("upstream down")})
	resp, body := doJSON(t, app, "POST", "/api/v1/predict",
		domain.PredictionRequest{Hour: 17, Day: 4, CityID: 0, Weather: 1})

	// Degradation is a provenance signal, not an error.
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "fallback", body["source"])
	assert.Equal(t, float64(domain.LevelHigh), body["prediction"])
}

func TestPredictValidationListsAllViolations(t *testing.T) {
	app := newTestApp(t, stubRemote{})
	resp, body := doJSON(t, app, "POST", "/api/v1/predict",
		domain.PredictionRequest{Hour: 99, Day: 8, CityID: 55, Weather: 7})

	assert.Equal(t, 400, resp.StatusCode)
	msg := body["error"].(string)
	assert.Contains(t, msg, "hour")
	assert.Contains(t, msg, "day")
	assert.Contains(t, msg, "city")
	assert.Contains(t, msg, "weather")
}

func TestListAndGetCities(t *testing.T) {
	app := newTestApp(t, stubRemote{})

	resp, body := doJSON(t, app, "GET", "/api/v1/cities", nil)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Len(t, body["cities"].([]any), 4)

	resp, body = doJSON(t, app, "GET", "/api/v1/cities/2", nil)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Sfax", body["name"])

	resp, _ = doJSON(t, app, "GET", "/api/v1/cities/42", nil)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestSelectAndClear(t *testing.T) {
	app := newTestApp(t, stubRemote{})

	resp, body := doJSON(t, app, "POST", "/api/v1/cities/1/select", nil)
	assert.Equal(t, 200, resp.StatusCode)
	sel := body["selection"].(map[string]any)
	assert.Equal(t, "Ariana", sel["city"].(map[string]any)["name"])
	assert.NotNil(t, sel["traffic"])

	resp, _ = doJSON(t, app, "DELETE", "/api/v1/selection", nil)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestSelectCityTrafficFailureStillLoads(t *testing.T) {
	app := newTestApp(t, stubRemote{trafficErr: errors.New("no data")})

	resp, body := doJSON(t, app, "POST", "/api/v1/cities/2/select", nil)
	assert.Equal(t, 200, resp.StatusCode)

	// Static city attributes render even when the live fetch failed.
	sel := body["selection"].(map[string]any)
	assert.Equal(t, "Sfax", sel["city"].(map[string]any)["name"])
	assert.Nil(t, sel["traffic"])
}

func TestLocateReported(t *testing.T) {
	app := newTestApp(t, stubRemote{})
	resp, body := doJSON(t, app, "POST", "/api/v1/locate",
		map[string]any{"lat": 36.87, "lng": 10.20, "accuracy": 30})

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Ariana", body["nearest_city"].(map[string]any)["name"])
}

func TestLocatePermissionDenied(t *testing.T) {
	app := newTestApp(t, stubRemote{})
	resp, _ := doJSON(t, app, "POST", "/api/v1/locate",
		map[string]any{"failure": "permission-denied"})
	assert.Equal(t, 403, resp.StatusCode)
}

func TestETARequiresLocation(t *testing.T) {
	app := newTestApp(t, stubRemote{})
	resp, _ := doJSON(t, app, "POST", "/api/v1/eta/1", nil)
	assert.Equal(t, 502, resp.StatusCode)
}

func TestETAAfterLocate(t *testing.T) {
	app := newTestApp(t, stubRemote{})

	resp, _ := doJSON(t, app, "POST", "/api/v1/locate",
		map[string]any{"lat": 36.8, "lng": 10.18})
	require.Equal(t, 200, resp.StatusCode)

	resp, body := doJSON(t, app, "POST", "/api/v1/eta/1", nil)
	assert.Equal(t, 200, resp.StatusCode)
	route := body["route"].(map[string]any)
	assert.NotNil(t, route["result"])
}

func TestStateAggregates(t *testing.T) {
	app := newTestApp(t, stubRemote{})

	resp, body := doJSON(t, app, "GET", "/api/v1/state", nil)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, "selection")
	assert.Contains(t, body, "route")
	assert.Contains(t, body, "form")
	assert.NotContains(t, body, "prediction")

	_, _ = doJSON(t, app, "POST", "/api/v1/predict",
		domain.PredictionRequest{Hour: 13, Day: 1, CityID: 3})
	_, body = doJSON(t, app, "GET", "/api/v1/state", nil)
	assert.Contains(t, body, "prediction")
}

func TestFormUpdateAndSync(t *testing.T) {
	app := newTestApp(t, stubRemote{})

	resp, body := doJSON(t, app, "POST", "/api/v1/form",
		map[string]any{"hour": 17, "city": 2})
	assert.Equal(t, 200, resp.StatusCode)
	form := body["form"].(map[string]any)
	assert.Equal(t, float64(17), form["hour"])
	assert.Equal(t, float64(2), form["city"])

	resp, body = doJSON(t, app, "POST", "/api/v1/form/sync-time", nil)
	assert.Equal(t, 200, resp.StatusCode)
	form = body["form"].(map[string]any)
	day := int(form["day"].(float64))
	assert.GreaterOrEqual(t, day, 0)
	assert.LessOrEqual(t, day, 6)
}

func TestSystemStatusProxy(t *testing.T) {
	app := newTestApp(t, stubRemote{})
	resp, body := doJSON(t, app, "GET", "/api/v1/status", nil)
	assert.Equal(t, 200, resp.StatusCode)
	status := body["status"].(map[string]any)
	assert.Equal(t, float64(10000), status["dataset_size"])
	assert.Equal(t, true, status["model_exists"])
}

func TestForceUpdateProxy(t *testing.T) {
	app := newTestApp(t, stubRemote{})
	resp, body := doJSON(t, app, "POST", "/api/v1/force-update", nil)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, true, body["success"])
}
