package handlers

import (
	"securecart/internal/models"
	"securecart/internal/services/rules"
	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type RuleHandler struct {
	ruleService rules.Service
}

func NewRuleHandler(ruleService rules.Service) *RuleHandler {
	return &RuleHandler{
		ruleService: ruleService,
	}
}

func (h *RuleHandler) ListRules(c *fiber.Ctx) error {
	list, err := h.ruleService.List(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{
		"rules": list,
		"count": len(list),
	})
}

func (h *RuleHandler) GetRule(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	rule, err := h.ruleService.Get(c.UserContext(), id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"rule": rule})
}

func (h *RuleHandler) CreateRule(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	var input models.SecurityRule
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}

	rule, err := h.ruleService.Create(c.UserContext(), &input, actorID(claims))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, fiber.Map{
		"message": "Security rule created",
		"rule":    rule,
	})
}

func (h *RuleHandler) UpdateRule(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	var patch rules.RulePatch
	if err := c.BodyParser(&patch); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}

	rule, err := h.ruleService.Update(c.UserContext(), id, patch)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{
		"message": "Security rule updated",
		"rule":    rule,
	})
}

func (h *RuleHandler) DeleteRule(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	if err := h.ruleService.Delete(c.UserContext(), id); err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"message": "Security rule deleted"})
}
