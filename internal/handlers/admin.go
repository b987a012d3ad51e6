package handlers

import (
	"context"
	"strings"
	"time"

	"securecart/internal/config"
	"securecart/internal/models"
	"securecart/internal/services/auth"
	"securecart/internal/services/monitor"
	"securecart/internal/services/realtime"
	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// LogSource lists persisted system logs and metric samples.
// repositories.SystemLogRepository implements it.
type LogSource interface {
	List(ctx context.Context, level string, limit, offset int) ([]models.SystemLog, int64, error)
	Metrics(ctx context.Context, name string, since time.Time) ([]models.PerformanceMetric, error)
}

// MetricsSource exposes the in-memory counters. *monitor.Collector
// implements it.
type MetricsSource interface {
	Snapshot() monitor.Snapshot
}

// Broadcaster reaches connected dashboards. *realtime.Hub implements it.
type Broadcaster interface {
	ConnectionsInfo() realtime.ConnectionsInfo
	Notify(kind, message, severity string, roles ...string) realtime.Notification
}

type AdminHandler struct {
	authService auth.Service
	logs        LogSource
	metrics     MetricsSource
	hub         Broadcaster
	cfg         *config.Config
	audit       AuditRecorder
}

func NewAdminHandler(authService auth.Service, logs LogSource, metrics MetricsSource, hub Broadcaster, cfg *config.Config, audit AuditRecorder) *AdminHandler {
	return &AdminHandler{
		authService: authService,
		logs:        logs,
		metrics:     metrics,
		hub:         hub,
		cfg:         cfg,
		audit:       audit,
	}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	p := utils.GetPagination(c, 1, 20)
	users, total, err := h.authService.ListUsers(c.UserContext(), p.Offset, p.Limit)
	if err != nil {
		return utils.Fail(c, err)
	}
	p.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(users, p))
}

func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	var input auth.CreateUserRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}

	user, err := h.authService.CreateUser(c.UserContext(), input)
	if err != nil {
		return utils.Fail(c, err)
	}
	h.record(claims, "user created", models.JSON{"user": user.ID.String(), "role": user.Role})
	return utils.Created(c, fiber.Map{
		"message": "User created",
		"user":    user,
	})
}

// UpdateUser changes role, active flag or profile fields, or unlocks an
// account locked by failed logins.
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var input auth.UpdateUserRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}

	user, err := h.authService.UpdateUser(c.UserContext(), claims, id, input)
	if err != nil {
		return utils.Fail(c, err)
	}
	h.record(claims, "user updated", models.JSON{"user": id.String()})
	return utils.Success(c, fiber.Map{
		"message": "User updated",
		"user":    user,
	})
}

func (h *AdminHandler) ListLogs(c *fiber.Ctx) error {
	if h.logs == nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "System logs require a database")
	}
	p := utils.GetPagination(c, 1, 50)
	entries, total, err := h.logs.List(c.UserContext(), strings.ToUpper(c.Query("level")), p.Limit, p.Offset)
	if err != nil {
		return utils.Fail(c, err)
	}
	p.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(entries, p))
}

// Metrics returns the live counters, plus the stored samples of one series
// when name is given.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	resp := fiber.Map{}
	if h.metrics != nil {
		resp["current"] = h.metrics.Snapshot()
	}

	if name := c.Query("name"); name != "" && h.logs != nil {
		hours := queryInt(c, "hours", 24)
		if hours < 1 {
			hours = 1
		}
		history, err := h.logs.Metrics(c.UserContext(), name, time.Now().UTC().Add(-time.Duration(hours)*time.Hour))
		if err != nil {
			return utils.Fail(c, err)
		}
		resp["history"] = history
	}
	return utils.Success(c, resp)
}

func (h *AdminHandler) Connections(c *fiber.Ctx) error {
	return utils.Success(c, h.hub.ConnectionsInfo())
}

// Notify broadcasts a system notification to dashboards, optionally only to
// some roles.
func (h *AdminHandler) Notify(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	var input struct {
		Type     string   `json:"type"`
		Message  string   `json:"message"`
		Severity string   `json:"severity"`
		Roles    []string `json:"roles"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(input.Message) == "" {
		return utils.BadRequest(c, "Message is required")
	}
	switch input.Severity {
	case "", "info", "warning", "error", "critical":
	default:
		return utils.BadRequest(c, "Invalid severity")
	}
	for _, r := range input.Roles {
		if !models.ValidRole(r) {
			return utils.BadRequest(c, "Invalid role: "+r)
		}
	}
	if input.Type == "" {
		input.Type = "admin_broadcast"
	}

	n := h.hub.Notify(input.Type, input.Message, input.Severity, input.Roles...)
	h.record(claims, "notification broadcast", models.JSON{"type": input.Type})
	return utils.Success(c, fiber.Map{
		"message":      "Notification sent",
		"notification": n,
	})
}

// Config returns the configuration without secrets.
func (h *AdminHandler) Config(c *fiber.Ctx) error {
	return utils.Success(c, h.cfg.Public())
}

func (h *AdminHandler) record(claims *models.UserClaims, msg string, extra models.JSON) {
	if h.audit == nil {
		return
	}
	h.audit.Audit("admin", msg, claims.UserID, extra)
}
