// Package predictor implements the deterministic local fallback used when the
// remote prediction service is unreachable.
package predictor

import (
	"fmt"
	"strings"

	"github.com/MedKhalil95/TrafficPrediction/internal/domain"
)

// Additive scoring weights and thresholds. One canonical table; see
// DESIGN.md for the choice between the two historical variants.
const (
	morningRushWeight = 2.0
	eveningRushWeight = 2.5
	middayWeight      = 1.0
	fridayWeight      = 1.0
	weekendWeight     = -0.5
	capitalWeight     = 1.0
	secondCityWeight  = 0.5
	rainWeight        = 1.0
	adverseWeight     = 0.5

	highThreshold   = 3.5
	mediumThreshold = 1.5
)

// Predict computes a deterministic traffic estimate from the request alone.
// No network or IO: identical input always yields identical output.
func Predict(req domain.PredictionRequest, city domain.City) domain.PredictionResult {
	level := classify(Score(req))
	return domain.PredictionResult{
		Source:          domain.SourceFallback,
		Level:           level,
		Recommendations: recommendations(level, req.Hour, city),
		City:            city,
		Request:         req,
	}
}

// Score computes the raw congestion score for a request.
func Score(req domain.PredictionRequest) float64 {
	score := 0.0

	switch {
	case req.Hour >= 7 && req.Hour <= 9:
		score += morningRushWeight
	case req.Hour >= 16 && req.Hour <= 19:
		score += eveningRushWeight
	case req.Hour >= 12 && req.Hour <= 14:
		score += middayWeight
	}

	switch req.Day {
	case domain.FridayIndex:
		score += fridayWeight
	case domain.SaturdayIndex, domain.SundayIndex:
		score += weekendWeight
	}

	switch req.CityID {
	case domain.CapitalCityID:
		score += capitalWeight
	case domain.SecondCityID:
		score += secondCityWeight
	}

	switch req.Weather {
	case domain.WeatherRain:
		score += rainWeight
	case domain.WeatherFog:
		score += adverseWeight
	}

	return score
}

func classify(score float64) domain.TrafficLevel {
	switch {
	case score >= highThreshold:
		return domain.LevelHigh
	case score >= mediumThreshold:
		return domain.LevelMedium
	default:
		return domain.LevelLow
	}
}

func recommendations(level domain.TrafficLevel, hour int, city domain.City) []string {
	var recs []string

	switch level {
	case domain.LevelHigh:
		recs = append(recs,
			"Consider using public transportation",
			"Allow extra travel time",
		)
		if hour >= 7 && hour <= 9 {
			recs = append(recs, "Avoid peak hours if possible")
		}
	case domain.LevelMedium:
		recs = append(recs,
			"Normal travel time expected",
			"Check real-time traffic updates",
		)
	default:
		recs = append(recs,
			"Smooth driving conditions",
			"Normal travel time",
		)
	}

	if len(city.Hotspots) > 0 {
		n := len(city.Hotspots)
		if n > 2 {
			n = 2
		}
		recs = append(recs, fmt.Sprintf("Main hotspots: %s", strings.Join(city.Hotspots[:n], ", ")))
	}

	return recs
}
