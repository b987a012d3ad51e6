package handlers

import (
	"time"

	"securecart/internal/models"
	"securecart/internal/services/transaction"
	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type FraudHandler struct {
	transactionService transaction.Service
}

func NewFraudHandler(transactionService transaction.Service) *FraudHandler {
	return &FraudHandler{
		transactionService: transactionService,
	}
}

func (h *FraudHandler) ListReports(c *fiber.Ctx) error {
	pagination := utils.GetPagination(c, 1, 50)
	reports, total, err := h.transactionService.ListReports(c.UserContext(), models.FraudReportFilter{
		InvestigationStatus: c.Query("status"),
		FinalDecision:       c.Query("decision"),
		IsFraud:             queryBoolPtr(c, "isFraud"),
		ManualReview:        queryBoolPtr(c, "manualReview"),
		Limit:               pagination.Limit,
		Offset:              pagination.Offset,
	})
	if err != nil {
		return utils.Fail(c, err)
	}
	pagination.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(reports, pagination))
}

func (h *FraudHandler) GetReport(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}
	report, err := h.transactionService.GetReport(c.UserContext(), id)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"report": report})
}

// ReviewReport records an analyst's investigation step or final decision.
func (h *FraudHandler) ReviewReport(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	reviewer := actorID(claims)
	if reviewer == nil {
		return utils.Forbidden(c, "Reviews require a user session")
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return utils.Fail(c, err)
	}

	var input transaction.ReviewRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}

	report, err := h.transactionService.ReviewReport(c.UserContext(), id, input, *reviewer)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{
		"message": "Fraud report updated",
		"report":  report,
	})
}

// ListAlerts returns recent risky transactions as alerts. hours bounds the
// window, minRisk the score.
func (h *FraudHandler) ListAlerts(c *fiber.Ctx) error {
	hours := queryInt(c, "hours", int(transaction.DefaultAlertWindow/time.Hour))
	if hours < 1 {
		hours = 1
	}
	alerts, err := h.transactionService.Alerts(c.UserContext(), transaction.AlertQuery{
		MinRiskScore:          queryInt(c, "minRisk", 50),
		Since:                 time.Now().UTC().Add(-time.Duration(hours) * time.Hour),
		Limit:                 queryInt(c, "limit", 50),
		IncludeFalsePositives: c.QueryBool("includeFalsePositives", false),
	})
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{
		"alerts": alerts,
		"count":  len(alerts),
	})
}
