package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MedKhalil95/TrafficPrediction/internal/domain"
)

// PostgresRepository implements domain.DataRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListCities returns the city reference table from PostgreSQL
func (r *PostgresRepository) ListCities(ctx context.Context) ([]domain.City, error) {
	query := `
		SELECT id, name, governorate, lat, lng, population, hotspots
		FROM cities
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query cities: %w", err)
	}
	defer rows.Close()

	var cities []domain.City
	for rows.Next() {
		var c domain.City
		err := rows.Scan(&c.ID, &c.Name, &c.Governorate, &c.Lat, &c.Lng, &c.Population, &c.Hotspots)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan city row: %w", err)
		}
		cities = append(cities, c)
	}

	return cities, nil
}

// GetCity returns a single city by id
func (r *PostgresRepository) GetCity(ctx context.Context, id int) (domain.City, error) {
	query := `
		SELECT id, name, governorate, lat, lng, population, hotspots
		FROM cities
		WHERE id = $1
	`

	var c domain.City
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Governorate, &c.Lat, &c.Lng, &c.Population, &c.Hotspots,
	)
	if err != nil {
		return domain.City{}, fmt.Errorf("postgres: failed to get city %d: %w", id, err)
	}

	return c, nil
}

// SavePredictionLog persists a resolved prediction to PostgreSQL
func (r *PostgresRepository) SavePredictionLog(ctx context.Context, res domain.PredictionResult) error {
	query := `
		INSERT INTO prediction_logs (
			hour, day, city_id, weather, level, source, recommendations
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		res.Request.Hour, res.Request.Day, res.Request.CityID, res.Request.Weather,
		int(res.Level), string(res.Source), res.Recommendations,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save prediction log: %w", err)
	}

	return nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
