// Package upstream is the typed client for the remote traffic prediction
// service. It reports transport and protocol failures to callers; the
// fallback policy lives in the service layer.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MedKhalil95/TrafficPrediction/internal/domain"
	"github.com/MedKhalil95/TrafficPrediction/pkg/utils"
)

// Failure taxonomy. Transport covers unreachable hosts and timeouts;
// protocol covers non-2xx statuses, malformed bodies and success:false
// envelopes.
var (
	ErrTransport = errors.New("upstream: transport failure")
	ErrProtocol  = errors.New("upstream: protocol failure")
)

// Client talks to the remote prediction service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// HTTPClient exposes the underlying client for transport-level test hooks.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// RemotePrediction is the payload of a successful predict call.
type RemotePrediction struct {
	Level           domain.TrafficLevel
	Recommendations []string
}

type predictResponse struct {
	Success      bool   `json:"success"`
	Error        string `json:"error"`
	Prediction   int    `json:"prediction"`
	TrafficLevel struct {
		Level   string `json:"level"`
		Color   string `json:"color"`
		Message string `json:"message"`
	} `json:"traffic_level"`
	Recommendations []string `json:"recommendations"`
}

// Predict requests a traffic prediction for the serialized request.
func (c *Client) Predict(ctx context.Context, req domain.PredictionRequest) (RemotePrediction, error) {
	var resp predictResponse
	if err := c.post(ctx, "/api/traffic-prediction", req, &resp); err != nil {
		return RemotePrediction{}, err
	}
	if !resp.Success {
		return RemotePrediction{}, fmt.Errorf("%w: predict: %s", ErrProtocol, resp.Error)
	}
	if resp.Prediction < int(domain.LevelLow) || resp.Prediction > int(domain.LevelHigh) {
		return RemotePrediction{}, fmt.Errorf("%w: predict: level %d out of range", ErrProtocol, resp.Prediction)
	}
	return RemotePrediction{
		Level:           domain.TrafficLevel(resp.Prediction),
		Recommendations: resp.Recommendations,
	}, nil
}

type cityTrafficResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Traffic struct {
		Level      int     `json:"level"`
		LevelText  string  `json:"level_text"`
		Color      string  `json:"color"`
		Speed      float64 `json:"speed"`
		Congestion float64 `json:"congestion"`
		ExtraTime  float64 `json:"extra_time"`
	} `json:"traffic"`
}

// TrafficForCity fetches the live traffic snapshot for one city.
func (c *Client) TrafficForCity(ctx context.Context, cityID int) (domain.CityTraffic, error) {
	var resp cityTrafficResponse
	if err := c.get(ctx, fmt.Sprintf("/api/city-traffic/%d", cityID), &resp); err != nil {
		return domain.CityTraffic{}, err
	}
	if !resp.Success {
		return domain.CityTraffic{}, fmt.Errorf("%w: city traffic %d: %s", ErrProtocol, cityID, resp.Error)
	}
	return domain.CityTraffic{
		Level:      domain.TrafficLevel(resp.Traffic.Level),
		LevelText:  resp.Traffic.LevelText,
		Color:      resp.Traffic.Color,
		SpeedKmh:   resp.Traffic.Speed,
		Congestion: utils.Clamp(resp.Traffic.Congestion, 0, 100),
		ExtraTime:  resp.Traffic.ExtraTime,
	}, nil
}

type etaRequest struct {
	Origin  domain.LatLng `json:"origin"`
	CityID  int           `json:"city"`
	Hour    int           `json:"hour"`
	Day     int           `json:"day"`
	Weather int           `json:"weather"`
}

type etaResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Route   domain.Route `json:"route"`
	City    domain.City  `json:"city"`
	ETA     domain.ETA   `json:"eta"`
}

// CalculateETA requests a route and arrival estimate from origin to the city,
// adjusted for the request's time/day/weather.
func (c *Client) CalculateETA(ctx context.Context, origin domain.UserLocation, cityID int, req domain.PredictionRequest) (domain.RouteETA, error) {
	body := etaRequest{
		Origin:  domain.LatLng{Lat: origin.Lat, Lng: origin.Lng},
		CityID:  cityID,
		Hour:    req.Hour,
		Day:     req.Day,
		Weather: req.Weather,
	}
	var resp etaResponse
	if err := c.post(ctx, "/api/calculate-eta", body, &resp); err != nil {
		return domain.RouteETA{}, err
	}
	if !resp.Success {
		return domain.RouteETA{}, fmt.Errorf("%w: eta: %s", ErrProtocol, resp.Error)
	}
	if len(resp.Route.Coordinates) == 0 {
		return domain.RouteETA{}, fmt.Errorf("%w: eta: empty route geometry", ErrProtocol)
	}
	resp.Route.DistanceKm = utils.RoundTo(resp.Route.DistanceKm, 1)
	return domain.RouteETA{
		Route: resp.Route,
		ETA:   resp.ETA,
		City:  resp.City,
	}, nil
}

type statusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Status  struct {
		LastUpdate  string `json:"last_update"`
		NextUpdate  string `json:"next_update"`
		DatasetSize int    `json:"dataset_size"`
	} `json:"status"`
	Files struct {
		Model struct {
			Exists bool `json:"exists"`
		} `json:"model"`
	} `json:"files"`
}

// SystemStatus reports the remote service's dataset and model state.
func (c *Client) SystemStatus(ctx context.Context) (domain.SystemStatus, error) {
	var resp statusResponse
	if err := c.get(ctx, "/api/system-status", &resp); err != nil {
		return domain.SystemStatus{}, err
	}
	if !resp.Success {
		return domain.SystemStatus{}, fmt.Errorf("%w: status: %s", ErrProtocol, resp.Error)
	}
	return domain.SystemStatus{
		LastUpdate:  resp.Status.LastUpdate,
		NextUpdate:  resp.Status.NextUpdate,
		DatasetSize: resp.Status.DatasetSize,
		ModelExists: resp.Files.Model.Exists,
	}, nil
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ForceUpdate asks the remote service to refresh its dataset now.
func (c *Client) ForceUpdate(ctx context.Context) error {
	var resp envelope
	if err := c.post(ctx, "/api/force-update", struct{}{}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: force update: %s", ErrProtocol, resp.Error)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("upstream: failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("upstream: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("upstream: failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s %s: status %d", ErrProtocol, req.Method, req.URL.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: decode: %v", ErrProtocol, req.Method, req.URL.Path, err)
	}
	return nil
}
