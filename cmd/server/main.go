package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	httpdelivery "github.com/MedKhalil95/TrafficPrediction/internal/delivery/http"
	"github.com/MedKhalil95/TrafficPrediction/internal/domain"
	"github.com/MedKhalil95/TrafficPrediction/internal/repository/postgres"
	"github.com/MedKhalil95/TrafficPrediction/internal/service"
	"github.com/MedKhalil95/TrafficPrediction/internal/upstream"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg := loadConfig()
	logg := setupLogger(cfg.Env)
	slog.SetDefault(logg)

	// Database connection (optional; seeded in-memory data otherwise)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo domain.DataRepository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logg.Warn("could not connect to database, using built-in city table", slog.Any("error", err))
			repo = postgres.NewMemoryRepository()
		} else {
			defer pool.Close()
			logg.Info("connected to PostgreSQL")
			repo = postgres.NewPostgresRepository(pool)
		}
	} else {
		logg.Info("no DATABASE_URL configured, using built-in city table")
		repo = postgres.NewMemoryRepository()
	}

	// City reference data is loaded once at startup and immutable afterwards.
	cityRows, err := repo.ListCities(ctx)
	if err != nil || len(cityRows) == 0 {
		logg.Warn("could not load cities from storage, using built-in city table", slog.Any("error", err))
		cityRows = domain.DefaultCities()
	}
	cities := domain.NewCityIndex(cityRows)

	// Remote prediction service client
	client := upstream.NewClient(cfg.PredictionServiceURL, cfg.UpstreamTimeout)

	// Dependency Injection: controllers
	orch := service.NewOrchestrator(client, repo, cities, logg)

	var provider service.LocationProvider = service.UnavailableProvider{}
	if cfg.FixedLat != 0 || cfg.FixedLng != 0 {
		provider = service.StaticProvider{Lat: cfg.FixedLat, Lng: cfg.FixedLng}
	}
	geoloc := service.NewGeoLocator(provider, logg)

	form := service.NewFormSync(service.DefaultDebounce, func(req domain.PredictionRequest) {
		subCtx, subCancel := context.WithTimeout(context.Background(), cfg.UpstreamTimeout)
		defer subCancel()
		if _, err := orch.RequestPrediction(subCtx, req); err != nil {
			logg.Warn("debounced submission rejected", slog.Any("error", err))
		}
	})

	mapState := service.NewMapState(client, geoloc, form, service.NopSurface{}, cities, cfg.TrafficTTL, logg)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "Traffic Advisor v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: httpdelivery.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	handler := httpdelivery.NewHandler(orch, mapState, form, geoloc, client, repo, cities)
	httpdelivery.SetupRoutes(app, handler)

	go func() {
		logg.Info("server starting", slog.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logg.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down server")
	form.Cancel()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logg.Warn("server forced to shutdown", slog.Any("error", err))
	}
	orch.WaitBackground()
	logg.Info("server exited gracefully")
}

type Config struct {
	DatabaseURL          string
	PredictionServiceURL string
	Port                 string
	Env                  string
	UpstreamTimeout      time.Duration
	TrafficTTL           time.Duration
	FixedLat             float64
	FixedLng             float64
}

func loadConfig() *Config {
	return &Config{
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		PredictionServiceURL: getEnv("PREDICTION_SERVICE_URL", "http://localhost:5000"),
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("GO_ENV", "development"),
		UpstreamTimeout:      getDurationEnv("UPSTREAM_TIMEOUT_SECONDS", 10),
		TrafficTTL:           getDurationEnv("TRAFFIC_CACHE_SECONDS", 120),
		FixedLat:             getFloatEnv("FIXED_LOCATION_LAT", 0),
		FixedLng:             getFloatEnv("FIXED_LOCATION_LNG", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func setupLogger(env string) *slog.Logger {
	if env == "development" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
