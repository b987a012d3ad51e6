package transaction

import (
	"time"

	"securecart/internal/models"
	"securecart/internal/services/detection"
	"securecart/internal/services/ledger"
	"securecart/internal/services/processor"
	"securecart/internal/services/rules"
)

// AnalyzeRequest is the payload of POST /api/transactions/analyze.
type AnalyzeRequest struct {
	ID                string            `json:"id"`
	UserID            string            `json:"userId"`
	Amount            float64           `json:"amount"`
	Currency          string            `json:"currency"`
	MerchantName      string            `json:"merchantName"`
	MerchantCategory  string            `json:"merchantCategory"`
	MerchantID        string            `json:"merchantId"`
	PaymentMethod     string            `json:"paymentMethod"`
	CardType          string            `json:"cardType"`
	CardLastFour      string            `json:"cardLastFour"`
	BankName          string            `json:"bankName"`
	Location          models.Location   `json:"location"`
	Device            models.DeviceInfo `json:"device"`
	Timestamp         *time.Time        `json:"timestamp"`
	ProcessorChargeID string            `json:"processorChargeId"`
}

// toModel applies defaults and builds the pending transaction. Amount and
// time are cut to the stored precision so the ledger hash survives a reload.
func (r AnalyzeRequest) toModel(now time.Time, newID func() string) *models.Transaction {
	t := &models.Transaction{
		ID:                r.ID,
		UserID:            r.UserID,
		Amount:            ledger.RoundAmount(r.Amount),
		Currency:          r.Currency,
		MerchantName:      r.MerchantName,
		MerchantCategory:  r.MerchantCategory,
		MerchantID:        r.MerchantID,
		PaymentMethod:     r.PaymentMethod,
		CardType:          r.CardType,
		CardLastFour:      r.CardLastFour,
		BankName:          r.BankName,
		Location:          r.Location,
		Device:            r.Device,
		ProcessorChargeID: r.ProcessorChargeID,
		Status:            models.StatusPending,
		TransactionTime:   ledger.TruncateTime(now),
	}
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Currency == "" {
		t.Currency = DefaultCurrency
	}
	if r.Timestamp != nil && !r.Timestamp.IsZero() {
		t.TransactionTime = ledger.TruncateTime(*r.Timestamp)
	}
	return t
}

// Analysis is the full outcome of analyzing one transaction.
type Analysis struct {
	Transaction    *models.Transaction `json:"transaction"`
	Detection      detection.Result    `json:"fraudAnalysis"`
	Rules          rules.Evaluation    `json:"rules"`
	Processor      *processor.Signal   `json:"processor,omitempty"`
	Ledger         *ledger.Receipt     `json:"blockchain,omitempty"`
	Report         *models.FraudReport `json:"fraudReport,omitempty"`
	ManualReview   bool                `json:"manualReviewRequired"`
	ProcessingTime time.Duration       `json:"-"`
}

// BatchItem is one row of a batch analysis. Exactly one of Analysis and
// Error is set.
type BatchItem struct {
	Index         int       `json:"index"`
	TransactionID string    `json:"transactionId,omitempty"`
	Analysis      *Analysis `json:"analysis,omitempty"`
	Error         string    `json:"error,omitempty"`
}

type BatchSummary struct {
	Total    int `json:"total"`
	Analyzed int `json:"analyzed"`
	Failed   int `json:"failed"`
	Approved int `json:"approved"`
	Flagged  int `json:"flagged"`
	Declined int `json:"declined"`
}

type BatchResult struct {
	Items   []BatchItem  `json:"results"`
	Summary BatchSummary `json:"summary"`
}

type ListResult struct {
	Transactions []models.Transaction     `json:"transactions"`
	Totals       models.TransactionTotals `json:"totals"`
	Limit        int                      `json:"limit"`
	Offset       int                      `json:"offset"`
}

// ReviewRequest moves a fraud report through its investigation.
type ReviewRequest struct {
	Status      string `json:"investigationStatus"`
	Decision    string `json:"finalDecision"`
	Notes       string `json:"reviewerNotes"`
	ActionTaken string `json:"actionTaken"`
}

// AlertQuery selects recent alerts.
type AlertQuery struct {
	MinRiskScore          int
	Since                 time.Time
	Limit                 int
	IncludeFalsePositives bool
}

type thresholds struct {
	high        float64
	medium      float64
	autoDecline int
}
