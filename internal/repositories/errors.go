package repositories

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateID         = errors.New("record already exists")
	ErrReportNotFound      = errors.New("fraud report not found")
	ErrRuleNotFound        = errors.New("security rule not found")
	ErrModelNotFound       = errors.New("model not found")
	ErrDatabaseOperation   = errors.New("database operation failed")
)
