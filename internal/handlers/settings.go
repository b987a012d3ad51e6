package handlers

import (
	"securecart/internal/models"
	"securecart/internal/services/settings"
	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type SettingsHandler struct {
	settingsService settings.Service
	audit           AuditRecorder
}

func NewSettingsHandler(settingsService settings.Service, audit AuditRecorder) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		audit:           audit,
	}
}

func (h *SettingsHandler) GetNotifications(c *fiber.Ctx) error {
	s, err := h.settingsService.Notifications(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, s)
}

func (h *SettingsHandler) UpdateNotifications(c *fiber.Ctx) error {
	var input models.NotificationSettings
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}
	s, err := h.settingsService.UpdateNotifications(c.UserContext(), &input)
	if err != nil {
		return utils.Fail(c, err)
	}
	h.record(c, "notification settings updated")
	return utils.Success(c, s)
}

func (h *SettingsHandler) GetModel(c *fiber.Ctx) error {
	s, err := h.settingsService.Model(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, s)
}

// UpdateModel saves thresholds and pushes them into the running detector.
func (h *SettingsHandler) UpdateModel(c *fiber.Ctx) error {
	var input models.ModelSettings
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}
	s, err := h.settingsService.UpdateModel(c.UserContext(), &input)
	if err != nil {
		return utils.Fail(c, err)
	}
	h.record(c, "model settings updated")
	return utils.Success(c, s)
}

func (h *SettingsHandler) GetAPI(c *fiber.Ctx) error {
	s, err := h.settingsService.API(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, s)
}

func (h *SettingsHandler) UpdateAPI(c *fiber.Ctx) error {
	var input settings.APIUpdate
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}
	s, err := h.settingsService.UpdateAPI(c.UserContext(), input)
	if err != nil {
		return utils.Fail(c, err)
	}
	h.record(c, "api settings updated")
	return utils.Success(c, s)
}

// RotateAPIKey issues a new key. The plaintext is only ever returned here.
func (h *SettingsHandler) RotateAPIKey(c *fiber.Ctx) error {
	key, err := h.settingsService.RotateAPIKey(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	h.record(c, "api key rotated")
	return utils.Created(c, fiber.Map{
		"message":   "API key rotated. Store it now, it will not be shown again.",
		"apiKey":    key.APIKey,
		"prefix":    key.Prefix,
		"createdAt": key.CreatedAt,
	})
}

func (h *SettingsHandler) record(c *fiber.Ctx, msg string) {
	if h.audit == nil {
		return
	}
	var userID string
	if claims, err := utils.GetUserClaims(c); err == nil {
		userID = claims.UserID
	}
	h.audit.Audit("settings", msg, userID, models.JSON{"request_id": utils.RequestID(c)})
}
