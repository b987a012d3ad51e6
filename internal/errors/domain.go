package errors

import "net/http"

// Authentication
var (
	ErrInvalidCredentials = newError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized)
	ErrAccountLocked      = newError("ACCOUNT_LOCKED", "account is temporarily locked due to failed login attempts", http.StatusForbidden)
	ErrAccountDisabled    = newError("ACCOUNT_DISABLED", "account is disabled", http.StatusForbidden)
	ErrTokenExpired       = newError("TOKEN_EXPIRED", "token has expired", http.StatusUnauthorized)
	ErrTokenInvalid       = newError("TOKEN_INVALID", "invalid token", http.StatusUnauthorized)
	ErrSessionRevoked     = newError("SESSION_REVOKED", "session is no longer active", http.StatusUnauthorized)
	ErrWeakPassword       = newError("WEAK_PASSWORD", "password does not meet the password policy", http.StatusBadRequest)
	ErrEmailInUse         = newError("EMAIL_IN_USE", "email already in use", http.StatusConflict)
	ErrInvalidAPIKey      = newError("INVALID_API_KEY", "invalid API key", http.StatusUnauthorized)
)

// Transactions and fraud review
var (
	ErrInvalidAmount        = newError("INVALID_AMOUNT", "amount must be greater than zero", http.StatusBadRequest)
	ErrInvalidCurrency      = newError("INVALID_CURRENCY", "currency must be an ISO 4217 code", http.StatusBadRequest)
	ErrDuplicateTransaction = newError("DUPLICATE_TRANSACTION", "transaction already analyzed", http.StatusConflict)
	ErrTransactionNotFound  = newError("TRANSACTION_NOT_FOUND", "transaction not found", http.StatusNotFound)
	ErrBatchTooLarge        = newError("BATCH_TOO_LARGE", "batch exceeds the maximum size", http.StatusBadRequest)
	ErrInvalidStatus        = newError("INVALID_STATUS", "invalid transaction status", http.StatusBadRequest)
	ErrReportNotFound       = newError("REPORT_NOT_FOUND", "fraud report not found", http.StatusNotFound)
	ErrInvalidTransition    = newError("INVALID_TRANSITION", "invalid investigation status transition", http.StatusConflict)
	ErrDecisionRequired     = newError("DECISION_REQUIRED", "a final decision is required to resolve a report", http.StatusBadRequest)
)

// Rules, settings and models
var (
	ErrRuleNotFound     = newError("RULE_NOT_FOUND", "security rule not found", http.StatusNotFound)
	ErrInvalidRule      = newError("INVALID_RULE", "invalid security rule", http.StatusBadRequest)
	ErrInvalidSettings  = newError("INVALID_SETTINGS", "invalid settings", http.StatusBadRequest)
	ErrInvalidThreshold = newError("INVALID_THRESHOLD", "threshold out of range", http.StatusBadRequest)
	ErrModelNotTrained  = newError("MODEL_NOT_TRAINED", "model is not trained", http.StatusConflict)
	ErrTrainingDisabled = newError("TRAINING_DISABLED", "model training is disabled", http.StatusForbidden)
)

// Ledger
var (
	ErrLedgerRecordNotFound = newError("LEDGER_RECORD_NOT_FOUND", "no ledger record for transaction", http.StatusNotFound)
	ErrLedgerUnavailable    = newError("LEDGER_UNAVAILABLE", "ledger is not available", http.StatusServiceUnavailable)
)

// Analytics
var (
	ErrAnalyticsUnavailable = newError("ANALYTICS_UNAVAILABLE", "analytics require PostgreSQL", http.StatusServiceUnavailable)
	ErrInvalidPeriod        = newError("INVALID_PERIOD", "period must be between 1 and 365 days", http.StatusBadRequest)
)
