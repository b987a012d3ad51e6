package handlers

import (
	"context"
	"time"

	"securecart/internal/config"
	"securecart/internal/services/monitor"
	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// HealthChecker runs the registered dependency checks. *monitor.Health
// implements it.
type HealthChecker interface {
	Check(ctx context.Context) monitor.Report
}

type HealthHandler struct {
	health HealthChecker
	app    config.AppConfig
	flags  config.FeatureFlags
}

func NewHealthHandler(health HealthChecker, app config.AppConfig, flags config.FeatureFlags) *HealthHandler {
	return &HealthHandler{
		health: health,
		app:    app,
		flags:  flags,
	}
}

// Info describes the service and its main endpoints.
func (h *HealthHandler) Info(c *fiber.Ctx) error {
	return utils.Success(c, fiber.Map{
		"name":        h.app.Name,
		"version":     h.app.Version,
		"environment": h.app.Environment,
		"timestamp":   time.Now().UTC(),
		"features":    h.flags,
		"endpoints": fiber.Map{
			"health":       "/health",
			"websocket":    "/ws",
			"auth":         "/api/auth",
			"transactions": "/api/transactions",
			"fraud":        "/api/fraud",
			"rules":        "/api/rules",
			"settings":     "/api/settings",
			"analytics":    "/api/analytics",
			"models":       "/api/models",
			"ledger":       "/api/ledger",
			"admin":        "/api/admin",
		},
	})
}

// HealthCheck returns 503 only when a critical dependency is down.
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	report := h.health.Check(c.UserContext())
	status := fiber.StatusOK
	if report.Status == monitor.StatusUnhealthy {
		status = fiber.StatusServiceUnavailable
	}
	return utils.Respond(c, status, report)
}
