package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"securecart/internal/models"
)

// transactionPayload fields are declared in key order so the encoding is
// sorted without a map.
type transactionPayload struct {
	Amount        float64 `json:"amount"`
	ID            string  `json:"id"`
	Location      string  `json:"location"`
	MerchantName  string  `json:"merchantName"`
	PaymentMethod string  `json:"paymentMethod"`
	Timestamp     string  `json:"timestamp"`
	UserID        string  `json:"userId"`
}

type rulePayload struct {
	Action     string `json:"action"`
	Field      string `json:"field"`
	Name       string `json:"name"`
	Operator   string `json:"operator"`
	RiskPoints int    `json:"riskPoints"`
	Value      string `json:"value"`
}

// Stored precision of transaction columns: numeric(15,2) and timestamptz.
const (
	amountPlaces  = 2
	timePrecision = time.Microsecond
)

// RoundAmount rounds to the stored two decimals, half away from zero.
func RoundAmount(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(amountPlaces).InexactFloat64()
}

// TruncateTime drops the precision the database does not keep.
func TruncateTime(t time.Time) time.Time {
	return t.UTC().Truncate(timePrecision)
}

// CanonicalPayload is the compact, key-sorted JSON that TransactionHash
// digests. Amount and timestamp are reduced to their stored precision so a
// row read back from the database hashes the same as the one recorded.
func CanonicalPayload(t *models.Transaction) ([]byte, error) {
	return encodeCompact(transactionPayload{
		Amount:        RoundAmount(t.Amount),
		ID:            t.ID,
		Location:      t.Location.Country,
		MerchantName:  t.MerchantName,
		PaymentMethod: t.PaymentMethod,
		Timestamp:     TruncateTime(t.TransactionTime).Format(time.RFC3339Nano),
		UserID:        t.UserID,
	})
}

// TransactionHash returns the hex SHA-256 of the canonical payload.
func TransactionHash(t *models.Transaction) (string, error) {
	payload, err := CanonicalPayload(t)
	if err != nil {
		return "", err
	}
	return digest(payload), nil
}

// RuleHash fingerprints the evaluated parts of a security rule.
func RuleHash(r *models.SecurityRule) (string, error) {
	payload, err := encodeCompact(rulePayload{
		Action:     r.Action,
		Field:      r.Field,
		Name:       r.Name,
		Operator:   r.Operator,
		RiskPoints: r.RiskPoints,
		Value:      r.Value,
	})
	if err != nil {
		return "", err
	}
	return digest(payload), nil
}

// ToCents converts a currency amount to integer minor units, rounding half
// away from zero.
func ToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

func FromCents(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

func encodeCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
