package domain

import "context"

// DataRepository defines the persistence interface for city reference data
// and the prediction audit log. The domain owns the interface; postgres and
// memory implementations live under internal/repository.
type DataRepository interface {
	// ListCities returns the full city reference table.
	ListCities(ctx context.Context) ([]City, error)

	// GetCity returns a single city by id.
	GetCity(ctx context.Context, id int) (City, error)

	// SavePredictionLog persists one resolved prediction for auditing.
	SavePredictionLog(ctx context.Context, res PredictionResult) error

	// Health checks storage connectivity.
	Health(ctx context.Context) error
}
