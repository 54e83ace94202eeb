package http

import (
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders every handler error as the standard response
// envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, handler *Handler) {
	// Health check
	app.Get("/health", handler.HealthCheck)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		// Prediction
		api.Post("/predict", handler.Predict)

		// City reference data and selection
		api.Get("/cities", handler.ListCities)
		api.Get("/cities/:id", handler.GetCity)
		api.Post("/cities/:id/select", handler.SelectCity)
		api.Delete("/selection", handler.ClearSelection)
		api.Post("/overlay", handler.SetOverlay)

		// Location and ETA
		api.Post("/locate", handler.Locate)
		api.Post("/eta/:id", handler.RequestETA)

		// Form fields
		api.Post("/form", handler.UpdateForm)
		api.Post("/form/sync-time", handler.SyncFormTime)

		// Aggregate state for the presentation layer
		api.Get("/state", handler.GetState)

		// Remote service maintenance
		api.Get("/status", handler.SystemStatus)
		api.Post("/force-update", handler.ForceUpdate)
	}
}
