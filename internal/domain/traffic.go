package domain

import (
	"errors"
	"fmt"
)

// TrafficLevel is the ordinal congestion category.
type TrafficLevel int

const (
	LevelLow    TrafficLevel = 0
	LevelMedium TrafficLevel = 1
	LevelHigh   TrafficLevel = 2
)

// LevelInfo carries the display semantics derived from a traffic level.
// These attributes are always computed through Describe, never stored.
type LevelInfo struct {
	Label    string `json:"level"`
	Color    string `json:"color"`
	Message  string `json:"message"`
	LoadBand string `json:"load_band"`
	Advisory string `json:"advisory"`
}

var levelTable = map[TrafficLevel]LevelInfo{
	LevelLow: {
		Label:    "Low",
		Color:    "#28a745",
		Message:  "Traffic is light",
		LoadBand: "10-30%",
		Advisory: "Smooth driving conditions",
	},
	LevelMedium: {
		Label:    "Medium",
		Color:    "#ffc107",
		Message:  "Moderate traffic expected",
		LoadBand: "40-70%",
		Advisory: "Allow a small time buffer",
	},
	LevelHigh: {
		Label:    "High",
		Color:    "#dc3545",
		Message:  "Heavy traffic - consider alternate routes",
		LoadBand: "75-100%",
		Advisory: "Prefer public transport or delay the trip",
	},
}

var unknownLevel = LevelInfo{
	Label:    "Unknown",
	Color:    "#6c757d",
	Message:  "Traffic data unavailable",
	LoadBand: "Unknown",
	Advisory: "No advisory available",
}

// Describe maps a traffic level to its display attributes. Out-of-range
// levels yield the defined unknown tuple rather than failing, so remote and
// fallback results render identically whenever their levels match.
func Describe(level TrafficLevel) LevelInfo {
	if info, ok := levelTable[level]; ok {
		return info
	}
	return unknownLevel
}

// Weather condition codes accepted in prediction requests.
const (
	WeatherClear = 0
	WeatherRain  = 1
	WeatherFog   = 2
)

// Day indices follow the 0=Monday .. 6=Sunday convention, rotated from Go's
// Sunday-first time.Weekday.
const (
	FridayIndex   = 4
	SaturdayIndex = 5
	SundayIndex   = 6
)

// PredictionRequest is the canonical input for one traffic prediction.
// Immutable once submitted.
type PredictionRequest struct {
	Hour    int `json:"hour"`
	Day     int `json:"day"`
	CityID  int `json:"city"`
	Weather int `json:"weather"`
}

// Validate checks every constraint and reports all violations at once, not
// just the first.
func (r PredictionRequest) Validate(cities *CityIndex) error {
	var errs []error
	if r.Hour < 0 || r.Hour > 23 {
		errs = append(errs, fmt.Errorf("hour %d out of range [0,23]", r.Hour))
	}
	if r.Day < 0 || r.Day > 6 {
		errs = append(errs, fmt.Errorf("day %d out of range [0,6]", r.Day))
	}
	if cities != nil && !cities.Has(r.CityID) {
		errs = append(errs, fmt.Errorf("unknown city id %d", r.CityID))
	}
	if r.Weather < WeatherClear || r.Weather > WeatherFog {
		errs = append(errs, fmt.Errorf("weather %d out of range [0,2]", r.Weather))
	}
	return errors.Join(errs...)
}

// Source identifies the provenance of a prediction result.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// PredictionResult is one resolved prediction. Never mutated after creation;
// a newer result for the same request stream supersedes it wholesale.
type PredictionResult struct {
	Source          Source            `json:"source"`
	Level           TrafficLevel      `json:"prediction"`
	Recommendations []string          `json:"recommendations"`
	City            City              `json:"city"`
	Request         PredictionRequest `json:"request"`
}

// Info returns the display attributes for the result's level.
func (r PredictionResult) Info() LevelInfo {
	return Describe(r.Level)
}

// CityTraffic is the live per-city traffic detail reported by the remote
// service. Optional on a selected city: fetch failure leaves it nil and the
// static city attributes still render.
type CityTraffic struct {
	Level      TrafficLevel `json:"level"`
	LevelText  string       `json:"level_text"`
	Color      string       `json:"color"`
	SpeedKmh   float64      `json:"speed"`
	Congestion float64      `json:"congestion"`
	ExtraTime  float64      `json:"extra_time"`
}

// UserLocation is the device-reported position. Set at most once per
// geolocation success; Degraded marks a substituted default that must never
// feed an ETA computation.
type UserLocation struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy,omitempty"`
	Degraded bool    `json:"degraded,omitempty"`
}

// LatLng is one route coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Route is the geometry and adjusted duration returned by the remote ETA
// service. Route geometry has no local approximation.
type Route struct {
	Coordinates      []LatLng `json:"coordinates"`
	DistanceKm       float64  `json:"distance"`
	AdjustedDuration float64  `json:"adjusted_duration"`
}

// ETA summarises a traffic-adjusted arrival estimate.
type ETA struct {
	DistanceKm      float64 `json:"distance_km"`
	DepartureTime   string  `json:"departure_time"`
	ArrivalTime     string  `json:"arrival_time"`
	TotalTravelTime string  `json:"total_travel_time"`
	DelayMinutes    float64 `json:"delay_minutes"`
	TrafficImpact   string  `json:"traffic_impact"`
}

// RouteETA is the full result of one ETA request for a
// (location, city, request) triple.
type RouteETA struct {
	Route Route `json:"route"`
	ETA   ETA   `json:"eta"`
	City  City  `json:"city"`
}

// SystemStatus mirrors the remote service's status report.
type SystemStatus struct {
	LastUpdate  string `json:"last_update"`
	NextUpdate  string `json:"next_update"`
	DatasetSize int    `json:"dataset_size"`
	ModelExists bool   `json:"model_exists"`
}
