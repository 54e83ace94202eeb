package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MedKhalil95/TrafficPrediction/internal/domain"
	"github.com/MedKhalil95/TrafficPrediction/internal/predictor"
	"github.com/MedKhalil95/TrafficPrediction/internal/upstream"
)

// PredictionClient is the remote predictor the orchestrator degrades from.
type PredictionClient interface {
	Predict(ctx context.Context, req domain.PredictionRequest) (upstream.RemotePrediction, error)
}

// Orchestrator owns the prediction request lifecycle: remote call first,
// local fallback on any predictable failure, single authoritative current
// result guarded by a supersession token.
type Orchestrator struct {
	client PredictionClient
	repo   domain.DataRepository
	cities *domain.CityIndex
	log    *slog.Logger

	mu      sync.Mutex
	token   uint64
	current *domain.PredictionResult

	wgBg sync.WaitGroup // tracks audit-log goroutines for graceful shutdown
}

// NewOrchestrator creates a prediction orchestrator.
func NewOrchestrator(client PredictionClient, repo domain.DataRepository, cities *domain.CityIndex, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		client: client,
		repo:   repo,
		cities: cities,
		log:    log,
	}
}

// RequestPrediction resolves a prediction for the request. Transport and
// protocol failures never surface as errors: they degrade to the local
// fallback, distinguishable by the result's Source. Only invalid input
// returns an error.
func (o *Orchestrator) RequestPrediction(ctx context.Context, req domain.PredictionRequest) (domain.PredictionResult, error) {
	if err := req.Validate(o.cities); err != nil {
		return domain.PredictionResult{}, err
	}
	city, _ := o.cities.Get(req.CityID)

	o.mu.Lock()
	o.token++
	token := o.token
	o.mu.Unlock()

	var res domain.PredictionResult
	remote, err := o.client.Predict(ctx, req)
	if err != nil {
		o.log.Warn("remote prediction unavailable, using local estimate",
			slog.Int("city", req.CityID), slog.Any("error", err))
		res = predictor.Predict(req, city)
	} else {
		res = domain.PredictionResult{
			Source:          domain.SourceRemote,
			Level:           remote.Level,
			Recommendations: remote.Recommendations,
			City:            city,
			Request:         req,
		}
	}

	o.mu.Lock()
	if token == o.token {
		o.current = &res
	}
	o.mu.Unlock()

	// Audit log write happens off the request path.
	o.wgBg.Add(1)
	go func() {
		defer o.wgBg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.repo.SavePredictionLog(bgCtx, res); err != nil {
			o.log.Warn("failed to save prediction log", slog.Any("error", err))
		}
	}()

	return res, nil
}

// CurrentPrediction returns the latest published result, if any.
func (o *Orchestrator) CurrentPrediction() (domain.PredictionResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return domain.PredictionResult{}, false
	}
	return *o.current, true
}

// WaitBackground blocks until pending audit-log writes complete. Call during
// graceful shutdown.
func (o *Orchestrator) WaitBackground() {
	o.wgBg.Wait()
}
