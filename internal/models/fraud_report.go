package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Investigation statuses
const (
	InvestigationPending       = "pending"
	InvestigationInvestigating = "investigating"
	InvestigationResolved      = "resolved"
)

// Final decisions
const (
	DecisionConfirmedFraud = "confirmed_fraud"
	DecisionFalsePositive  = "false_positive"
	DecisionInconclusive   = "inconclusive"
)

// Alert levels
const (
	AlertLow      = "low"
	AlertMedium   = "medium"
	AlertHigh     = "high"
	AlertCritical = "critical"
)

// AlertLevelFor maps a 0..100 risk score to an alert level.
func AlertLevelFor(riskScore int) string {
	switch {
	case riskScore >= 90:
		return AlertCritical
	case riskScore >= 70:
		return AlertHigh
	case riskScore >= 50:
		return AlertMedium
	}
	return AlertLow
}

// FraudReport is the detection record and review workflow of a transaction.
type FraudReport struct {
	ID                     uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID          string         `gorm:"size:64;index;not null" json:"transactionId"`
	ReporterID             *uuid.UUID     `gorm:"type:uuid" json:"reporterId,omitempty"`
	IsFraud                bool           `gorm:"not null" json:"isFraud"`
	FraudProbability       float64        `gorm:"not null" json:"fraudProbability"`
	RiskScore              int            `gorm:"not null" json:"riskScore"`
	ConfidenceScore        float64        `json:"confidenceScore"`
	ModelName              string         `gorm:"size:100" json:"modelName"`
	ModelVersion           string         `gorm:"size:50" json:"modelVersion"`
	ModelPredictions       JSON           `gorm:"type:jsonb" json:"modelPredictions"`
	FraudIndicators        pq.StringArray `gorm:"type:text[]" json:"fraudIndicators"`
	RuleTriggers           pq.StringArray `gorm:"type:text[]" json:"ruleTriggers"`
	InvestigationStatus    string         `gorm:"size:20;index;default:'pending'" json:"investigationStatus"`
	ManualReviewRequired   bool           `gorm:"default:false" json:"manualReviewRequired"`
	ReviewerID             *uuid.UUID     `gorm:"type:uuid" json:"reviewerId,omitempty"`
	ReviewerNotes          string         `gorm:"type:text" json:"reviewerNotes,omitempty"`
	FinalDecision          string         `gorm:"size:20" json:"finalDecision,omitempty"`
	ActionTaken            string         `gorm:"size:100" json:"actionTaken,omitempty"`
	NotificationSent       bool           `gorm:"default:false" json:"notificationSent"`
	DetectedAt             time.Time      `json:"detectedAt"`
	InvestigationStartedAt *time.Time     `json:"investigationStartedAt,omitempty"`
	InvestigationEndedAt   *time.Time     `json:"investigationCompletedAt,omitempty"`
	CreatedAt              time.Time      `json:"createdAt"`
	UpdatedAt              time.Time      `json:"updatedAt"`
}

func (r *FraudReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// FraudReportFilter narrows report listings.
type FraudReportFilter struct {
	InvestigationStatus string
	FinalDecision       string
	IsFraud             *bool
	ManualReview        *bool
	Limit               int
	Offset              int
}

// FraudAlert is the realtime notification for a risky transaction.
type FraudAlert struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	TransactionID    string    `json:"transactionId"`
	UserID           string    `json:"userId"`
	Amount           float64   `json:"amount"`
	Currency         string    `json:"currency"`
	MerchantName     string    `json:"merchantName"`
	RiskScore        int       `json:"riskScore"`
	FraudProbability float64   `json:"fraudProbability"`
	AlertLevel       string    `json:"alertLevel"`
	Status           string    `json:"status"`
	Location         Location  `json:"location"`
	PaymentMethod    string    `json:"paymentMethod"`
	Reasons          []string  `json:"fraudReasons"`
	FalsePositive    bool      `json:"falsePositive,omitempty"`
}

// NewFraudAlert builds the alert for an analyzed transaction.
func NewFraudAlert(t *Transaction) FraudAlert {
	return FraudAlert{
		ID:               "alert_" + t.ID,
		Timestamp:        t.TransactionTime,
		TransactionID:    t.ID,
		UserID:           t.UserID,
		Amount:           t.Amount,
		Currency:         t.Currency,
		MerchantName:     t.MerchantName,
		RiskScore:        t.RiskScore,
		FraudProbability: t.FraudProbability,
		AlertLevel:       AlertLevelFor(t.RiskScore),
		Status:           t.Status,
		Location:         t.Location,
		PaymentMethod:    t.PaymentMethod,
		Reasons:          []string(t.FraudReasons),
	}
}
