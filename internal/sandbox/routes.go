package sandbox

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yiancode/zsxq-sdk/internal/telemetry"
)

// SetupRoutes configures all sandbox routes. Routes registered before the
// signature verifier are unsigned.
func SetupRoutes(app *fiber.App, handler *Handler, verifier *SignatureVerifier, cfg *Config, gatherer prometheus.Gatherer) {
	app.Get("/health", handler.Health)

	if cfg.MetricsPath != "" {
		app.Get(cfg.MetricsPath, adaptor.HTTPHandler(telemetry.PrometheusHandler(gatherer)))
	}

	if cfg.EnableAdmin {
		admin := app.Group("/_sandbox")
		admin.Post("/stubs", handler.AddStub)
		admin.Delete("/stubs", handler.ResetStubs)
		admin.Get("/requests", handler.ListRequests)
	}

	app.Use(verifier.Handle())
	app.All("/*", handler.Dispatch)
}
