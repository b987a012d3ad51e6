package utils

import (
	"log"

	appErrors "securecart/internal/errors"

	"github.com/gofiber/fiber/v2"
)

// ErrorBody is the JSON envelope for every failed request.
type ErrorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Code       string `json:"code,omitempty"`
}

// Respond sends a JSON response with the specified status code.
func Respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(data)
}

// Success sends a successful JSON response.
func Success(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusOK, data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusCreated, data)
}

// Error sends the error envelope with a status text as the error field.
func Error(c *fiber.Ctx, status int, message string) error {
	return Respond(c, status, ErrorBody{
		Error:      errorTitle(status),
		Message:    message,
		StatusCode: status,
	})
}

// Fail renders err. Domain errors keep their status and message; anything
// else is logged and reported as a 500 without details.
func Fail(c *fiber.Ctx, err error) error {
	if de, ok := appErrors.As(err); ok {
		return Respond(c, de.Status, ErrorBody{
			Error:      de.Message,
			Message:    de.Message,
			StatusCode: de.Status,
			Code:       de.Code,
		})
	}
	if fe, ok := err.(*fiber.Error); ok {
		return Error(c, fe.Code, fe.Message)
	}
	log.Printf("❌ %s %s: %v", c.Method(), c.Path(), err)
	return Error(c, fiber.StatusInternalServerError, "An unexpected error occurred")
}

// BadRequest sends a JSON error response with status 400.
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

// Unauthorized sends a JSON error response with status 401.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, message)
}

// Forbidden sends a JSON error response with status 403.
func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, message)
}

// NotFound sends a JSON error response with status 404.
func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, message)
}

func errorTitle(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusUnauthorized:
		return "Unauthorized"
	case fiber.StatusForbidden:
		return "Forbidden"
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusConflict:
		return "Conflict"
	case fiber.StatusTooManyRequests:
		return "Rate limit exceeded"
	case fiber.StatusServiceUnavailable:
		return "Service Unavailable"
	}
	if status >= 500 {
		return "Internal server error"
	}
	return "Error"
}
