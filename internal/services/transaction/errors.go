package transaction

import "errors"

// Service errors
var (
	ErrEmptyBatch      = errors.New("batch contains no transactions")
	ErrLedgerDisabled  = errors.New("ledger integration is disabled")
	ErrNoLedgerRecord  = errors.New("transaction has no ledger record")
	ErrReportResolved  = errors.New("fraud report is already resolved")
	ErrUnknownDecision = errors.New("unknown final decision")
)
