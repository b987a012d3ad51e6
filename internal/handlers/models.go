package handlers

import (
	"context"
	"encoding/json"

	appErrors "securecart/internal/errors"
	"securecart/internal/services/realtime"
	"securecart/internal/services/training"
	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// ThresholdUpdater applies a websocket-style threshold request and
// broadcasts it. *realtime.Hub implements it.
type ThresholdUpdater interface {
	UpdateThreshold(ctx context.Context, raw json.RawMessage, by string) (*realtime.ThresholdUpdate, error)
}

type ModelHandler struct {
	trainingService training.Service
	thresholds      ThresholdUpdater
}

func NewModelHandler(trainingService training.Service, thresholds ThresholdUpdater) *ModelHandler {
	return &ModelHandler{
		trainingService: trainingService,
		thresholds:      thresholds,
	}
}

func (h *ModelHandler) ListModels(c *fiber.Ctx) error {
	list, err := h.trainingService.Models(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{
		"models": list,
		"count":  len(list),
	})
}

func (h *ModelHandler) Status(c *fiber.Ctx) error {
	status, err := h.trainingService.Status(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, status)
}

// Train retrains the ensemble. The request body is optional.
func (h *ModelHandler) Train(c *fiber.Ctx) error {
	var input training.Request
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return utils.BadRequest(c, "Invalid request body")
		}
	}
	result, err := h.trainingService.Train(c.UserContext(), input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{
		"message": "Model training completed",
		"result":  result,
	})
}

// UpdateThreshold takes {"threshold": 0..100, "type": "..."} like the
// websocket event and broadcasts the change.
func (h *ModelHandler) UpdateThreshold(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	if !json.Valid(c.Body()) {
		return utils.BadRequest(c, "Invalid request body")
	}
	update, err := h.thresholds.UpdateThreshold(c.UserContext(), json.RawMessage(c.Body()), claims.Username)
	if err != nil {
		if _, ok := appErrors.As(err); ok {
			return utils.Fail(c, err)
		}
		return utils.Fail(c, appErrors.ErrInvalidThreshold.WithMessage(err.Error()))
	}
	return utils.Success(c, fiber.Map{
		"message": "Fraud threshold updated",
		"update":  update,
	})
}
