package models

import "time"

// AnalyticsSummary aggregates transactions over a window.
type AnalyticsSummary struct {
	TotalTransactions int64   `json:"totalTransactions"`
	TotalAmount       float64 `json:"totalAmount"`
	AverageAmount     float64 `json:"averageAmount"`
	AverageRiskScore  float64 `json:"averageRiskScore"`
	Approved          int64   `json:"approved"`
	Flagged           int64   `json:"flagged"`
	Declined          int64   `json:"declined"`
	FraudRate         float64 `json:"fraudRate"`
	AmountAtRisk      float64 `json:"amountAtRisk"`
}

type DailyPoint struct {
	Day              time.Time `json:"day"`
	Transactions     int64     `json:"transactions"`
	Amount           float64   `json:"amount"`
	Flagged          int64     `json:"flagged"`
	AverageRiskScore float64   `json:"averageRiskScore"`
}

type RiskBucket struct {
	Level string  `json:"level"`
	Count int64   `json:"count"`
	Share float64 `json:"share"`
}

type MerchantStat struct {
	MerchantName     string  `json:"merchantName"`
	Transactions     int64   `json:"transactions"`
	Amount           float64 `json:"amount"`
	Flagged          int64   `json:"flagged"`
	AverageRiskScore float64 `json:"averageRiskScore"`
}

type CategoryStat struct {
	Category     string  `json:"category"`
	Transactions int64   `json:"transactions"`
	Amount       float64 `json:"amount"`
	FraudRate    float64 `json:"fraudRate"`
}

// LiveStats is the payload of the live dashboard and the websocket push.
type LiveStats struct {
	TransactionsPerMinute float64    `json:"transactionsPerMinute"`
	FraudDetectionsToday  int64      `json:"fraudDetectionsToday"`
	TransactionsToday     int64      `json:"transactionsToday"`
	FraudRateToday        float64    `json:"fraudRate"`
	AverageRiskScore      float64    `json:"averageRiskScore"`
	HighRiskTransactions  int64      `json:"highRiskTransactions"`
	BlockedTransactions   int64      `json:"blockedTransactions"`
	FalsePositiveRate     float64    `json:"falsePositiveRate"`
	ModelAccuracy         float64    `json:"modelAccuracy"`
	ConnectedClients      int        `json:"connectedClients"`
	LastFraudDetection    *time.Time `json:"lastFraudDetection,omitempty"`
	Timestamp             time.Time  `json:"timestamp"`
}
