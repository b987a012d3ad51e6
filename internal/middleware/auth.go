// Package middleware provides HTTP middleware components for the application.
// It includes authentication, authorization, and other request processing middleware
// that can be used with the fiber web framework.
package middleware

import (
	"context"
	"log"
	"strings"

	appErrors "securecart/internal/errors"
	"securecart/internal/models"
	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
)

const APIKeyHeader = "X-API-Key"

// TokenValidator checks an access token and its session. auth.Service
// implements it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.UserClaims, error)
}

// APIKeyVerifier checks machine-client keys. settings.Service implements it.
type APIKeyVerifier interface {
	VerifyAPIKey(ctx context.Context, key string) error
}

// AuthMiddleware handles JWT token validation and user authentication.
type AuthMiddleware struct {
	tokens  TokenValidator
	apiKeys APIKeyVerifier
}

// NewAuthMiddleware builds the middleware. apiKeys may be nil to disable
// API key access.
func NewAuthMiddleware(tokens TokenValidator, apiKeys APIKeyVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:  tokens,
		apiKeys: apiKeys,
	}
}

// Handler accepts a Bearer token or, when configured, an API key, and stores
// the resulting claims in the request context.
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	if key := c.Get(APIKeyHeader); key != "" && m.apiKeys != nil {
		if err := m.apiKeys.VerifyAPIKey(c.UserContext(), key); err != nil {
			log.Printf("🔐 API key rejected from %s", c.IP())
			return utils.Fail(c, err)
		}
		c.Locals(utils.ClaimsKey, serviceClaims())
		return c.Next()
	}
	return m.bearer(c)
}

// UserOnly rejects API keys; used for session endpoints.
func (m *AuthMiddleware) UserOnly(c *fiber.Ctx) error {
	return m.bearer(c)
}

func (m *AuthMiddleware) bearer(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return utils.Unauthorized(c, "Authorization token required")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return utils.Unauthorized(c, "Invalid authorization format")
	}

	claims, err := m.tokens.ValidateToken(c.UserContext(), strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		if _, ok := appErrors.As(err); !ok {
			log.Printf("❌ Token validation error: %v", err)
			return utils.Unauthorized(c, "Invalid token")
		}
		return utils.Fail(c, err)
	}

	c.Locals(utils.ClaimsKey, claims)
	return c.Next()
}

func serviceClaims() *models.UserClaims {
	return &models.UserClaims{
		UserID:      "api-key",
		Username:    "api-client",
		Role:        models.RoleService,
		Permissions: models.GetDefaultPermissions(models.RoleService),
		TokenType:   models.TokenTypeAccess,
	}
}

// AdminAuthMiddleware verifies that the request has valid admin claims.
func AdminAuthMiddleware(c *fiber.Ctx) error {
	return RequireRole(models.RoleAdmin)(c)
}

// RequireRole allows only the listed roles.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.GetUserClaims(c)
		if err != nil {
			return utils.Unauthorized(c, "Authentication required")
		}
		for _, r := range roles {
			if claims.Role == r {
				return c.Next()
			}
		}
		log.Printf("🔐 Access denied: role %s on %s %s", claims.Role, c.Method(), c.Path())
		return utils.Forbidden(c, "Insufficient permissions")
	}
}

// HasPermission returns a middleware that checks for a specific permission.
func HasPermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.GetUserClaims(c)
		if err != nil {
			return utils.Unauthorized(c, "Authentication required")
		}

		// If user is admin, allow all permissions
		if claims.Role == models.RoleAdmin || claims.HasPermission(permission) {
			return c.Next()
		}

		log.Printf("🔐 Access denied: %s lacks %s", claims.Username, permission)
		return utils.Forbidden(c, "Insufficient permissions")
	}
}
