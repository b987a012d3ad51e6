package handlers

import (
	"log"
	"strings"

	"securecart/internal/models"
	"securecart/internal/services/auth"
	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// AuditRecorder writes audit entries. *monitor.AuditLog implements it.
type AuditRecorder interface {
	Audit(module, message, userID string, extra models.JSON) bool
}

type AuthHandler struct {
	authService auth.Service
	audit       AuditRecorder
}

func NewAuthHandler(authService auth.Service, audit AuditRecorder) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		audit:       audit,
	}
}

func client(c *fiber.Ctx) auth.ClientInfo {
	return auth.ClientInfo{IP: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)}
}

// Login authenticates by email (or username) and password.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input auth.LoginRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return utils.BadRequest(c, "Email and password are required")
	}
	input.Client = client(c)

	result, err := h.authService.Login(c.UserContext(), input)
	if err != nil {
		log.Printf("🔐 Failed login for %s from %s: %v", input.Email, input.Client.IP, err)
		return utils.Fail(c, err)
	}
	h.record("auth", "user logged in", result.User.ID.String(), c)
	return utils.Success(c, fiber.Map{
		"message":       "Login successful",
		"user":          result.User,
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"token_type":    result.TokenType,
		"expires_in":    result.ExpiresIn,
		"expires_at":    result.ExpiresAt,
		"permissions":   result.Permissions,
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	if err := h.authService.Logout(c.UserContext(), claims); err != nil {
		return utils.Fail(c, err)
	}
	h.record("auth", "user logged out", claims.UserID, c)
	return utils.Success(c, fiber.Map{"message": "Logout successful"})
}

// Verify returns the current user for a valid session.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	user, err := h.authService.Verify(c.UserContext(), claims)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{
		"valid":       true,
		"user":        user,
		"permissions": claims.Permissions,
		"expires_at":  claims.ExpiresAt,
	})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var input struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&input); err != nil || input.RefreshToken == "" {
		return utils.BadRequest(c, "Refresh token is required")
	}

	result, err := h.authService.Refresh(c.UserContext(), input.RefreshToken, client(c))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"token_type":    result.TokenType,
		"expires_in":    result.ExpiresIn,
		"expires_at":    result.ExpiresAt,
	})
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input auth.ChangePasswordRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}
	if input.CurrentPassword == "" || input.NewPassword == "" {
		return utils.BadRequest(c, "Current and new password are required")
	}

	if err := h.authService.ChangePassword(c.UserContext(), userID, input); err != nil {
		return utils.Fail(c, err)
	}
	h.record("auth", "password changed", claims.UserID, c)
	return utils.Success(c, fiber.Map{"message": "Password changed successfully"})
}

func (h *AuthHandler) record(module, msg, userID string, c *fiber.Ctx) {
	if h.audit == nil {
		return
	}
	h.audit.Audit(module, msg, userID, models.JSON{
		"ip":         c.IP(),
		"request_id": utils.RequestID(c),
	})
}
