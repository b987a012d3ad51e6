package handlers

import (
	"securecart/internal/models"
	"securecart/internal/services/transaction"
	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type TransactionHandler struct {
	transactionService transaction.Service
}

func NewTransactionHandler(transactionService transaction.Service) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// ownOnly limits plain users to their own transactions.
func ownOnly(claims *models.UserClaims) string {
	if claims.Role == models.RoleUser {
		return claims.UserID
	}
	return ""
}

// ListTransactions supports status, merchant, category, risk range, date
// range and user filters with page/limit pagination.
func (h *TransactionHandler) ListTransactions(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return utils.Fail(c, err)
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return utils.Fail(c, err)
	}

	pagination := utils.GetPagination(c, 1, 50)
	filter := models.TransactionFilter{
		UserID:       c.Query("userId"),
		Status:       c.Query("status"),
		MerchantName: c.Query("merchant"),
		Category:     c.Query("category"),
		MinRisk:      queryIntPtr(c, "minRisk"),
		MaxRisk:      queryIntPtr(c, "maxRisk"),
		From:         from,
		To:           to,
		Limit:        pagination.Limit,
		Offset:       pagination.Offset,
	}
	if own := ownOnly(claims); own != "" {
		filter.UserID = own
	}

	result, err := h.transactionService.List(c.UserContext(), filter)
	if err != nil {
		return utils.Fail(c, err)
	}
	pagination.SetTotal(result.Totals.TotalCount)
	return utils.Success(c, fiber.Map{
		"transactions": result.Transactions,
		"totals":       result.Totals,
		"pagination":   pagination,
	})
}

// AnalyzeTransaction scores one transaction through the full pipeline.
func (h *TransactionHandler) AnalyzeTransaction(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input transaction.AnalyzeRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}
	if input.UserID == "" || claims.Role == models.RoleUser {
		input.UserID = claims.UserID
	}
	if input.Device.IPAddress == "" {
		input.Device.IPAddress = c.IP()
	}
	if input.Device.UserAgent == "" {
		input.Device.UserAgent = c.Get(fiber.HeaderUserAgent)
	}

	analysis, err := h.transactionService.Analyze(c.UserContext(), input)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Created(c, fiber.Map{
		"transaction":          analysis.Transaction,
		"fraudAnalysis":        analysis.Detection,
		"rules":                analysis.Rules,
		"processor":            analysis.Processor,
		"blockchain":           analysis.Ledger,
		"fraudReport":          analysis.Report,
		"manualReviewRequired": analysis.ManualReview,
		"processingTimeMs":     analysis.ProcessingTime.Milliseconds(),
	})
}

func (h *TransactionHandler) AnalyzeBatch(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Transactions []transaction.AnalyzeRequest `json:"transactions"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}
	for i := range input.Transactions {
		if input.Transactions[i].UserID == "" || claims.Role == models.RoleUser {
			input.Transactions[i].UserID = claims.UserID
		}
	}

	result, err := h.transactionService.AnalyzeBatch(c.UserContext(), input.Transactions)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, result)
}

func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	txn, err := h.transactionService.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.Fail(c, err)
	}
	if own := ownOnly(claims); own != "" && txn.UserID != own {
		return utils.NotFound(c, "Transaction not found")
	}
	return utils.Success(c, fiber.Map{"transaction": txn})
}

// UpdateStatus is the manual override of a transaction decision.
func (h *TransactionHandler) UpdateStatus(c *fiber.Ctx) error {
	var input struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&input); err != nil || input.Status == "" {
		return utils.BadRequest(c, "Status is required")
	}

	txn, err := h.transactionService.UpdateStatus(c.UserContext(), c.Params("id"), input.Status)
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, fiber.Map{
		"message":     "Transaction status updated",
		"transaction": txn,
	})
}

// VerifyTransaction checks the stored fingerprint against the ledger.
func (h *TransactionHandler) VerifyTransaction(c *fiber.Ctx) error {
	v, err := h.transactionService.Verify(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.Fail(c, err)
	}
	return utils.Success(c, v)
}
