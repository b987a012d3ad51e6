// Package routes defines the API routing configuration.
// It sets up all HTTP routes and their corresponding handlers,
// including middleware and authentication requirements.
package routes

import (
	"time"

	"securecart/internal/config"
	"securecart/internal/handlers"
	"securecart/internal/middleware"
	"securecart/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Handlers groups the HTTP handlers of every API area.
type Handlers struct {
	Health      *handlers.HealthHandler
	Auth        *handlers.AuthHandler
	Transaction *handlers.TransactionHandler
	Fraud       *handlers.FraudHandler
	Rule        *handlers.RuleHandler
	Settings    *handlers.SettingsHandler
	Analytics   *handlers.AnalyticsHandler
	Model       *handlers.ModelHandler
	Ledger      *handlers.LedgerHandler
	Admin       *handlers.AdminHandler
}

// WebSocket is the upgrade check and connection handler of the realtime hub.
type WebSocket struct {
	Upgrade fiber.Handler
	Handler fiber.Handler
}

type Options struct {
	Auth      *middleware.AuthMiddleware
	Security  config.SecurityConfig
	WebSocket *WebSocket
	// LimiterStorage shares rate limit counters between instances; nil keeps
	// them in memory.
	LimiterStorage fiber.Storage
}

// SetupRoutes configures all application routes.
// It groups routes by functionality and applies appropriate middleware.
func SetupRoutes(app *fiber.App, h Handlers, opts Options) {
	app.Get("/", h.Health.Info)
	app.Get("/health", h.Health.HealthCheck)
	if opts.WebSocket != nil {
		app.Get("/ws", opts.WebSocket.Upgrade, opts.WebSocket.Handler)
	}

	limit := func(c *fiber.Ctx) error { return c.Next() }
	loginLimit := limit
	if opts.Security.RateLimitEnabled {
		limit = middleware.RateLimit("api", opts.Security.RateLimitPerMinute, time.Minute, opts.LimiterStorage)
		loginLimit = middleware.RateLimit("login", opts.Security.LoginRateLimit, time.Minute, opts.LimiterStorage)
	}

	api := app.Group("/api")
	authed := []fiber.Handler{opts.Auth.Handler, limit}
	users := []fiber.Handler{opts.Auth.UserOnly, limit}

	setupAuthRoutes(api, h.Auth, loginLimit, users)
	setupTransactionRoutes(api.Group("/transactions", authed...), h.Transaction)
	setupFraudRoutes(api.Group("/fraud", authed...), h.Fraud)
	setupRuleRoutes(api.Group("/rules", users...), h.Rule)
	setupSettingsRoutes(api.Group("/settings", users...), h.Settings)
	setupAnalyticsRoutes(api.Group("/analytics", users...), h.Analytics)
	setupModelRoutes(api.Group("/models", users...), h.Model)
	setupLedgerRoutes(api.Group("/ledger", users...), h.Ledger)
	setupAdminRoutes(api.Group("/admin", chain(users, middleware.AdminAuthMiddleware)...), h.Admin)
}

func setupAuthRoutes(api fiber.Router, h *handlers.AuthHandler, loginLimit fiber.Handler, users []fiber.Handler) {
	auth := api.Group("/auth")
	auth.Post("/login", loginLimit, h.Login)
	auth.Post("/refresh", loginLimit, h.Refresh)

	auth.Post("/logout", chain(users, h.Logout)...)
	auth.Get("/verify", chain(users, h.Verify)...)
	auth.Post("/change-password", chain(users, middleware.HasPermission(models.PermissionChangePassword), h.ChangePassword)...)
}

func chain(mw []fiber.Handler, hs ...fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(mw)+len(hs))
	return append(append(out, mw...), hs...)
}

func setupTransactionRoutes(router fiber.Router, h *handlers.TransactionHandler) {
	read := middleware.HasPermission(models.PermissionTransactionRead)
	write := middleware.HasPermission(models.PermissionTransactionWrite)

	router.Get("/", read, h.ListTransactions)
	router.Post("/analyze", write, h.AnalyzeTransaction)
	router.Post("/batch", write, h.AnalyzeBatch)
	router.Get("/:id", read, h.GetTransaction)
	router.Put("/:id/status", middleware.HasPermission(models.PermissionFraudReview), h.UpdateStatus)
	router.Get("/:id/verify", middleware.HasPermission(models.PermissionLedgerRead), h.VerifyTransaction)
}

func setupFraudRoutes(router fiber.Router, h *handlers.FraudHandler) {
	read := middleware.HasPermission(models.PermissionFraudRead)

	router.Get("/alerts", read, h.ListAlerts)
	router.Get("/reports", read, h.ListReports)
	router.Get("/reports/:id", read, h.GetReport)
	router.Put("/reports/:id", middleware.HasPermission(models.PermissionFraudReview), h.ReviewReport)
}

func setupRuleRoutes(router fiber.Router, h *handlers.RuleHandler) {
	read := middleware.HasPermission(models.PermissionRulesRead)
	write := middleware.HasPermission(models.PermissionRulesWrite)

	router.Get("/", read, h.ListRules)
	router.Post("/", write, h.CreateRule)
	router.Get("/:id", read, h.GetRule)
	router.Put("/:id", write, h.UpdateRule)
	router.Delete("/:id", write, h.DeleteRule)
}

func setupSettingsRoutes(router fiber.Router, h *handlers.SettingsHandler) {
	read := middleware.HasPermission(models.PermissionSettingsRead)
	write := middleware.HasPermission(models.PermissionSettingsWrite)

	router.Get("/notifications", read, h.GetNotifications)
	router.Put("/notifications", write, h.UpdateNotifications)
	router.Get("/model", read, h.GetModel)
	router.Put("/model", write, h.UpdateModel)
	router.Get("/api", read, h.GetAPI)
	router.Put("/api", write, h.UpdateAPI)
	router.Post("/api/rotate-key", write, h.RotateAPIKey)
}

func setupAnalyticsRoutes(router fiber.Router, h *handlers.AnalyticsHandler) {
	router.Use(middleware.HasPermission(models.PermissionAnalyticsRead))

	router.Get("/summary", h.Summary)
	router.Get("/timeseries", h.Timeseries)
	router.Get("/risk-distribution", h.RiskDistribution)
	router.Get("/merchants", h.Merchants)
	router.Get("/categories", h.Categories)
	router.Get("/live", h.LiveStats)
}

func setupModelRoutes(router fiber.Router, h *handlers.ModelHandler) {
	read := middleware.HasPermission(models.PermissionAnalyticsRead)
	manage := middleware.HasPermission(models.PermissionModelsManage)

	router.Get("/", read, h.ListModels)
	router.Get("/status", read, h.Status)
	router.Post("/train", manage, h.Train)
	router.Put("/threshold", manage, h.UpdateThreshold)
}

func setupLedgerRoutes(router fiber.Router, h *handlers.LedgerHandler) {
	router.Use(middleware.HasPermission(models.PermissionLedgerRead))

	router.Get("/network", h.Network)
	router.Get("/stats", h.Stats)
	router.Get("/audit", h.Audit)
}

func setupAdminRoutes(router fiber.Router, h *handlers.AdminHandler) {
	read := middleware.HasPermission(models.PermissionReadAdmin)
	write := middleware.HasPermission(models.PermissionWriteAdmin)

	router.Get("/users", read, h.ListUsers)
	router.Post("/users", write, h.CreateUser)
	router.Put("/users/:id", write, h.UpdateUser)
	router.Get("/logs", read, h.ListLogs)
	router.Get("/metrics", read, h.Metrics)
	router.Get("/connections", read, h.Connections)
	router.Post("/notify", write, h.Notify)
	router.Get("/config", read, h.Config)
}
