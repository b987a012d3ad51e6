package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	appErrors "securecart/internal/errors"
	"securecart/internal/models"
	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokens struct {
	claims *models.UserClaims
	err    error
}

func (s *stubTokens) ValidateToken(_ context.Context, token string) (*models.UserClaims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

type stubKeys struct {
	valid string
}

func (s *stubKeys) VerifyAPIKey(_ context.Context, key string) error {
	if key != s.valid {
		return appErrors.ErrInvalidAPIKey
	}
	return nil
}

type recorder struct {
	mu     sync.Mutex
	ops    []string
	errors []string
}

func (r *recorder) RecordOperationDuration(op string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recorder) RecordError(op, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, op)
}

func decodeBody(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func whoami(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": claims.UserID, "role": claims.Role})
}

func analyst() *models.UserClaims {
	return &models.UserClaims{
		UserID:      "u-1",
		Username:    "ana",
		Role:        models.RoleAnalyst,
		Permissions: models.GetDefaultPermissions(models.RoleAnalyst),
	}
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		tokens     *stubTokens
		header     string
		apiKey     string
		wantStatus int
		wantUser   string
		wantCode   string
	}{
		{name: "missing header", tokens: &stubTokens{}, wantStatus: fiber.StatusUnauthorized},
		{name: "wrong scheme", tokens: &stubTokens{}, header: "Basic abc", wantStatus: fiber.StatusUnauthorized},
		{name: "valid bearer", tokens: &stubTokens{claims: analyst()}, header: "Bearer tok", wantStatus: fiber.StatusOK, wantUser: "u-1"},
		{name: "revoked session", tokens: &stubTokens{err: appErrors.ErrSessionRevoked}, header: "Bearer tok", wantStatus: fiber.StatusUnauthorized, wantCode: "SESSION_REVOKED"},
		{name: "unexpected error", tokens: &stubTokens{err: errors.New("boom")}, header: "Bearer tok", wantStatus: fiber.StatusUnauthorized},
		{name: "valid api key", tokens: &stubTokens{}, apiKey: "sc_good", wantStatus: fiber.StatusOK, wantUser: "api-key"},
		{name: "bad api key", tokens: &stubTokens{}, apiKey: "sc_bad", wantStatus: fiber.StatusUnauthorized, wantCode: "INVALID_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddleware(tt.tokens, &stubKeys{valid: "sc_good"})
			app := fiber.New()
			app.Get("/me", m.Handler, whoami)

			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.apiKey != "" {
				req.Header.Set(APIKeyHeader, tt.apiKey)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body := decodeBody(t, resp.Body)
			if tt.wantUser != "" {
				assert.Equal(t, tt.wantUser, body["user"])
			}
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
			}
		})
	}
}

func TestUserOnlyIgnoresAPIKey(t *testing.T) {
	m := NewAuthMiddleware(&stubTokens{}, &stubKeys{valid: "sc_good"})
	app := fiber.New()
	app.Get("/me", m.UserOnly, whoami)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set(APIKeyHeader, "sc_good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func withClaims(claims *models.UserClaims) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(utils.ClaimsKey, claims)
		return c.Next()
	}
}

func TestRoleAndPermissionChecks(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }
	admin := &models.UserClaims{UserID: "a", Role: models.RoleAdmin}
	user := &models.UserClaims{UserID: "u", Role: models.RoleUser, Permissions: models.GetDefaultPermissions(models.RoleUser)}

	tests := []struct {
		name   string
		claims *models.UserClaims
		guard  fiber.Handler
		want   int
	}{
		{"admin passes admin check", admin, AdminAuthMiddleware, fiber.StatusNoContent},
		{"analyst fails admin check", analyst(), AdminAuthMiddleware, fiber.StatusForbidden},
		{"role list", analyst(), RequireRole(models.RoleAdmin, models.RoleAnalyst), fiber.StatusNoContent},
		{"admin bypasses permissions", admin, HasPermission(models.PermissionRulesWrite), fiber.StatusNoContent},
		{"analyst has fraud review", analyst(), HasPermission(models.PermissionFraudReview), fiber.StatusNoContent},
		{"user lacks rules write", user, HasPermission(models.PermissionRulesWrite), fiber.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/x", withClaims(tt.claims), tt.guard, ok)

			resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	t.Run("no claims", func(t *testing.T) {
		app := fiber.New()
		app.Get("/x", HasPermission(models.PermissionFraudRead), ok)
		resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(utils.RequestID(c)) })

	t.Run("generated", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		id := resp.Header.Get(RequestIDHeader)
		assert.Len(t, id, 36)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, id, string(body))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, "req-123", resp.Header.Get(RequestIDHeader))
	})
}

func TestSecurityHeaders(t *testing.T) {
	for _, production := range []bool{false, true} {
		app := fiber.New()
		app.Use(SecurityHeaders(production))
		app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
		assert.Equal(t, production, resp.Header.Get("Strict-Transport-Security") != "")
	}
}

func TestProcessingTime(t *testing.T) {
	rec := &recorder{}
	app := fiber.New()
	app.Use(ProcessingTime(rec, time.Second))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/fail", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusInternalServerError) })

	resp, err := app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	assert.Regexp(t, `^\d+\.\d{2}ms$`, resp.Header.Get(ProcessingTimeHeader))

	_, err = app.Test(httptest.NewRequest("GET", "/fail", nil))
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"GET /ok", "GET /fail"}, rec.ops)
	assert.Equal(t, []string{"GET /fail"}, rec.errors)
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/domain", func(c *fiber.Ctx) error { return appErrors.ErrRuleNotFound })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.ErrMethodNotAllowed })
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("db down") })

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{"/domain", fiber.StatusNotFound, "security rule not found"},
		{"/fiber", fiber.StatusMethodNotAllowed, "Method Not Allowed"},
		{"/plain", fiber.StatusInternalServerError, "An unexpected error occurred"},
		{"/missing", fiber.StatusNotFound, "Cannot GET /missing"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeBody(t, resp.Body)
			assert.Equal(t, tt.message, body["message"])
			assert.EqualValues(t, tt.status, body["status_code"])
		})
	}
}

func TestRateLimit(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit("test", 2, time.Minute, nil))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Rate limit exceeded", decodeBody(t, resp.Body)["error"])

	t.Run("disabled when max is zero", func(t *testing.T) {
		app := fiber.New()
		app.Use(RateLimit("off", 0, time.Minute, nil))
		app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
		for i := 0; i < 5; i++ {
			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		}
	})
}
