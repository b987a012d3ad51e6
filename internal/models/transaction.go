package models

import (
	"time"

	"github.com/lib/pq"
)

// Transaction statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDeclined = "declined"
	StatusFlagged  = "flagged"
)

// ValidTransactionStatus reports whether s is a known status.
func ValidTransactionStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined, StatusFlagged:
		return true
	}
	return false
}

type Location struct {
	Country   string  `gorm:"size:100" json:"country"`
	City      string  `gorm:"size:100" json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type DeviceInfo struct {
	DeviceID  string `gorm:"size:255" json:"deviceId,omitempty"`
	UserAgent string `gorm:"type:text" json:"userAgent,omitempty"`
	IPAddress string `gorm:"size:45" json:"ipAddress,omitempty"`
}

// Transaction is a payment submitted for fraud analysis. ID is the
// caller's external reference.
type Transaction struct {
	ID                string         `gorm:"primaryKey;size:64" json:"id"`
	UserID            string         `gorm:"size:64;index;not null" json:"userId"`
	Amount            float64        `gorm:"type:numeric(15,2);not null" json:"amount"`
	Currency          string         `gorm:"size:3;default:'USD'" json:"currency"`
	MerchantName      string         `gorm:"size:255;not null" json:"merchantName"`
	MerchantCategory  string         `gorm:"size:100;index" json:"merchantCategory"`
	MerchantID        string         `gorm:"size:100" json:"merchantId,omitempty"`
	PaymentMethod     string         `gorm:"size:50;not null" json:"paymentMethod"`
	CardType          string         `gorm:"size:20" json:"cardType,omitempty"`
	CardLastFour      string         `gorm:"size:4" json:"cardLastFour,omitempty"`
	BankName          string         `gorm:"size:100" json:"bankName,omitempty"`
	Location          Location       `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Device            DeviceInfo     `gorm:"embedded;embeddedPrefix:device_" json:"device"`
	TransactionTime   time.Time      `gorm:"index;not null" json:"timestamp"`
	ProcessedAt       *time.Time     `json:"processedAt,omitempty"`
	Status            string         `gorm:"size:20;index;default:'pending'" json:"status"`
	ProcessorChargeID string         `gorm:"size:100" json:"processorChargeId,omitempty"`
	ProcessorResponse string         `gorm:"type:text" json:"processorResponse,omitempty"`
	AuthorizationCode string         `gorm:"size:50" json:"authorizationCode,omitempty"`
	RiskScore         int            `gorm:"index;default:0" json:"riskScore"`
	FraudProbability  float64        `gorm:"default:0" json:"fraudProbability"`
	FraudReasons      pq.StringArray `gorm:"type:text[]" json:"fraudReasons"`
	ModelVersion      string         `gorm:"size:50" json:"modelVersion,omitempty"`
	LedgerHash        string         `gorm:"size:66;index" json:"blockchainHash,omitempty"`
	LedgerVerified    bool           `gorm:"default:false" json:"blockchainVerified"`
	LedgerLocal       bool           `gorm:"default:false" json:"recordedLocally"`
	LedgerVerifiedAt  *time.Time     `json:"verificationTimestamp,omitempty"`
	ProcessingMs      int64          `json:"processingTimeMs"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// TransactionFilter narrows transaction listings. Zero values are ignored.
type TransactionFilter struct {
	UserID       string
	Status       string
	MerchantName string
	Category     string
	MinRisk      *int
	MaxRisk      *int
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// TransactionTotals are the aggregates returned with a listing.
type TransactionTotals struct {
	TotalCount       int64   `json:"totalCount"`
	TotalAmount      float64 `json:"totalAmount"`
	AverageRiskScore float64 `json:"averageRiskScore"`
}

// Velocity is the recent spending behaviour of one user at scoring time.
type Velocity struct {
	TransactionsLastHour  int     `json:"transactionsLastHour"`
	AmountLast24h         float64 `json:"amountLast24h"`
	DistinctMerchantsWeek int     `json:"distinctMerchantsWeek"`
	HistoryLength         int     `json:"historyLength"`
	KnownMerchant         bool    `json:"knownMerchant"`
}
