package handlers

import (
	"securecart/internal/services/ledger"
	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type LedgerHandler struct {
	ledgerService *ledger.Service
}

func NewLedgerHandler(ledgerService *ledger.Service) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
	}
}

func (h *LedgerHandler) Network(c *fiber.Ctx) error {
	return utils.Success(c, h.ledgerService.Network(c.UserContext()))
}

func (h *LedgerHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.ledgerService.Stats(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, stats)
}

// Audit walks the local hash chain and reports the first broken link.
func (h *LedgerHandler) Audit(c *fiber.Ctx) error {
	report, err := h.ledgerService.Audit(c.UserContext())
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, report)
}
