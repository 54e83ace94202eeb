package postgres

import (
	"context"
	"fmt"

	"github.com/MedKhalil95/TrafficPrediction/internal/domain"
)

// MemoryRepository implements domain.DataRepository with the built-in city
// table, used when no database is configured.
type MemoryRepository struct {
	cities []domain.City
}

// NewMemoryRepository creates a repository seeded with the default cities
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{cities: domain.DefaultCities()}
}

// ListCities returns the seeded city table
func (r *MemoryRepository) ListCities(ctx context.Context) ([]domain.City, error) {
	return r.cities, nil
}

// GetCity returns a seeded city by id
func (r *MemoryRepository) GetCity(ctx context.Context, id int) (domain.City, error) {
	for _, c := range r.cities {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.City{}, fmt.Errorf("memory: city %d not found", id)
}

// SavePredictionLog is a no-op without a database
func (r *MemoryRepository) SavePredictionLog(ctx context.Context, res domain.PredictionResult) error {
	return nil
}

// Health always returns nil without a database
func (r *MemoryRepository) Health(ctx context.Context) error {
	return nil
}
