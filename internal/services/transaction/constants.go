package transaction

import "time"

// Fallbacks used when the model settings row cannot be read.
const (
	DefaultHighRiskThreshold   = 0.7
	DefaultMediumRiskThreshold = 0.4
	DefaultAutoDeclineScore    = 90
	DefaultBatchSize           = 100
)

const (
	IDPrefix = "txn_"

	// DefaultCurrency is applied when a request omits the currency.
	DefaultCurrency = "USD"

	DefaultAlertWindow = 24 * time.Hour
	MaxAlertLimit      = 200
)

// Actions recorded on a resolved fraud report.
const (
	ActionDeclined = "transaction declined"
	ActionApproved = "transaction approved"
	ActionNone     = "no action"
)
