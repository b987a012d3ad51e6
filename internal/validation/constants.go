package validation

import "time"

const (
	// Amount limits
	MinTransactionAmount = 0.01
	MaxTransactionAmount = 1000000.00

	// Password requirements
	MinPasswordLength = 8
	MaxPasswordLength = 72

	// String lengths
	MaxMerchantNameLength = 255
	MaxCategoryLength     = 100
	MaxReferenceLength    = 64

	MaxClockSkew = 5 * time.Minute
)

// PaymentMethods accepted by the analysis endpoint.
var PaymentMethods = []string{
	"credit_card", "debit_card", "card", "digital_wallet", "bank_transfer", "cash_advance", "crypto", "other",
}
