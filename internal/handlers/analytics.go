package handlers

import (
	"securecart/internal/services/dashboard"
	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type AnalyticsHandler struct {
	dashboardService dashboard.Service
}

func NewAnalyticsHandler(dashboardService dashboard.Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		dashboardService: dashboardService,
	}
}

// days reads the period; zero lets the service apply its default.
func days(c *fiber.Ctx) int {
	return queryInt(c, "days", 0)
}

func (h *AnalyticsHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.dashboardService.Summary(c.UserContext(), days(c))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, summary)
}

func (h *AnalyticsHandler) Timeseries(c *fiber.Ctx) error {
	points, err := h.dashboardService.Timeseries(c.UserContext(), days(c))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"series": points})
}

func (h *AnalyticsHandler) RiskDistribution(c *fiber.Ctx) error {
	buckets, err := h.dashboardService.RiskDistribution(c.UserContext(), days(c))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"distribution": buckets})
}

func (h *AnalyticsHandler) Merchants(c *fiber.Ctx) error {
	merchants, err := h.dashboardService.Merchants(c.UserContext(), days(c), queryInt(c, "limit", 0))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"merchants": merchants})
}

func (h *AnalyticsHandler) Categories(c *fiber.Ctx) error {
	categories, err := h.dashboardService.Categories(c.UserContext(), days(c))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{"categories": categories})
}

func (h *AnalyticsHandler) LiveStats(c *fiber.Ctx) error {
	stats, err := h.dashboardService.LiveStats(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, stats)
}
