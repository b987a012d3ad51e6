package middleware

import (
	"errors"
	"fmt"
	"log"
	"time"

	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	RequestIDHeader      = "X-Request-ID"
	ProcessingTimeHeader = "X-Processing-Time"
)

// OperationRecorder receives request timings. monitor.MetricsCollector
// implements it.
type OperationRecorder interface {
	RecordOperationDuration(operation string, d time.Duration)
	RecordError(operation, message string)
}

// RequestID keeps a sane incoming X-Request-ID or assigns a new one.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Locals(utils.RequestIDKey, id)
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}

// SecurityHeaders sets the standard hardening headers. HSTS is only sent in
// production where TLS terminates in front of the service.
func SecurityHeaders(production bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", "default-src 'self'")
		if production {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		return c.Next()
	}
}

// ProcessingTime sets X-Processing-Time in milliseconds, records the route
// timing and logs requests slower than threshold.
func ProcessingTime(metrics OperationRecorder, threshold time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		c.Set(ProcessingTimeHeader, fmt.Sprintf("%.2fms", float64(elapsed)/float64(time.Millisecond)))
		if metrics != nil {
			op := c.Method() + " " + c.Route().Path
			metrics.RecordOperationDuration(op, elapsed)
			if c.Response().StatusCode() >= fiber.StatusInternalServerError {
				metrics.RecordError(op, fmt.Sprintf("status %d", c.Response().StatusCode()))
			}
		}
		if threshold > 0 && elapsed > threshold {
			log.Printf("⚠️ Slow request %s %s took %s (request %s)", c.Method(), c.Path(), elapsed, utils.RequestID(c))
		}
		return err
	}
}

// ErrorHandler renders errors that escape handlers in the JSON envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return utils.Error(c, fe.Code, fe.Message)
	}
	return utils.Fail(c, err)
}
