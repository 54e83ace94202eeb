package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MedKhalil95/TrafficPrediction/internal/domain"
	"github.com/MedKhalil95/TrafficPrediction/internal/repository/postgres"
	"github.com/MedKhalil95/TrafficPrediction/internal/upstream"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCities() *domain.CityIndex {
	return domain.NewCityIndex(domain.DefaultCities())
}

type stubPredictor struct {
	fn func(ctx context.Context, req domain.PredictionRequest) (upstream.RemotePrediction, error)
}

func (s stubPredictor) Predict(ctx context.Context, req domain.PredictionRequest) (upstream.RemotePrediction, error) {
	return s.fn(ctx, req)
}

func TestRequestPredictionRemote(t *testing.T) {
	client := stubPredictor{fn: func(ctx context.Context, req domain.PredictionRequest) (upstream.RemotePrediction, error) {
		return upstream.RemotePrediction{
			Level:           domain.LevelMedium,
			Recommendations: []string{"Check real-time traffic updates"},
		}, nil
	}}
	o := NewOrchestrator(client, postgres.NewMemoryRepository(), testCities(), discardLogger())

	res, err := o.RequestPrediction(context.Background(), domain.PredictionRequest{Hour: 13, Day: 1, CityID: 3})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceRemote, res.Source)
	assert.Equal(t, domain.LevelMedium, res.Level)
	assert.Equal(t, []string{"Check real-time traffic updates"}, res.Recommendations)
	assert.Equal(t, "Sousse", res.City.Name)

	current, ok := o.CurrentPrediction()
	require.True(t, ok)
	assert.Equal(t, res, current)

	o.WaitBackground()
}

func TestRequestPredictionFallsBack(t *testing.T) {
	client := stubPredictor{fn: func(ctx context.Context, req domain.PredictionRequest) (upstream.RemotePrediction, error) {
		return upstream.RemotePrediction{}, errors.New("connection refused")
	}}
	o := NewOrchestrator(client, postgres.NewMemoryRepository(), testCities(), discardLogger())

	// Fallback is a provenance signal, never an error.
	res, err := o.RequestPrediction(context.Background(), domain.PredictionRequest{Hour: 17, Day: domain.FridayIndex, CityID: 0, Weather: domain.WeatherRain})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, res.Source)
	assert.Equal(t, domain.LevelHigh, res.Level)
	assert.NotEmpty(t, res.Recommendations)

	o.WaitBackground()
}

func TestRequestPredictionInvalidInput(t *testing.T) {
	client := stubPredictor{fn: func(ctx context.Context, req domain.PredictionRequest) (upstream.RemotePrediction, error) {
		t.Fatal("remote must not be called for invalid input")
		return upstream.RemotePrediction{}, nil
	}}
	o := NewOrchestrator(client, postgres.NewMemoryRepository(), testCities(), discardLogger())

	_, err := o.RequestPrediction(context.Background(), domain.PredictionRequest{Hour: -1, Day: 7, CityID: 99, Weather: 9})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hour")
	assert.Contains(t, err.Error(), "day")
	assert.Contains(t, err.Error(), "city")
	assert.Contains(t, err.Error(), "weather")

	_, ok := o.CurrentPrediction()
	assert.False(t, ok)
}

func TestRequestPredictionSupersession(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	client := stubPredictor{fn: func(ctx context.Context, req domain.PredictionRequest) (upstream.RemotePrediction, error) {
		if req.Hour == 8 {
			close(entered)
			<-release // slow first response
			return upstream.RemotePrediction{Level: domain.LevelHigh}, nil
		}
		return upstream.RemotePrediction{Level: domain.LevelLow}, nil
	}}
	o := NewOrchestrator(client, postgres.NewMemoryRepository(), testCities(), discardLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := o.RequestPrediction(context.Background(), domain.PredictionRequest{Hour: 8, Day: 0, CityID: 0})
		assert.NoError(t, err)
	}()

	<-entered
	newer, err := o.RequestPrediction(context.Background(), domain.PredictionRequest{Hour: 2, Day: 0, CityID: 0})
	require.NoError(t, err)

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first request did not finish")
	}

	// The stale response resolved last but must not overwrite the newer one.
	current, ok := o.CurrentPrediction()
	require.True(t, ok)
	assert.Equal(t, newer, current)
	assert.Equal(t, domain.LevelLow, current.Level)

	o.WaitBackground()
}
