package ledger

import (
	"errors"
	"time"
)

// Entry kinds
const (
	KindTransaction = "transaction"
	KindRule        = "rule"
)

var (
	ErrNotRecorded = errors.New("ledger entry not found")
	ErrNoContract  = errors.New("contract address is not configured")
)

// Entry is one ledger record. PayloadHash is the TransactionHash or RuleHash
// of the referenced object.
type Entry struct {
	Kind        string    `json:"kind"`
	RefID       string    `json:"referenceId"`
	PayloadHash string    `json:"transactionHash"`
	AmountCents int64     `json:"amountCents"`
	RiskScore   int       `json:"riskScore"`
	IsFraud     bool      `json:"isFraud"`
	RecordedAt  time.Time `json:"recordedAt"`
	Local       bool      `json:"recordedLocally"`
	ChainTxHash string    `json:"chainTxHash,omitempty"`
	BlockNumber uint64    `json:"blockNumber,omitempty"`
	Seq         int64     `json:"sequence,omitempty"`
	PrevHash    string    `json:"previousHash,omitempty"`
	EntryHash   string    `json:"entryHash,omitempty"`
}

// Stats summarises recorded transactions.
type Stats struct {
	TotalTransactions int64     `json:"total_transactions"`
	FraudTransactions int64     `json:"fraud_transactions"`
	FraudRate         float64   `json:"fraud_rate"`
	AverageRiskScore  float64   `json:"average_risk_score"`
	TotalAmount       float64   `json:"total_amount"`
	OnChain           int64     `json:"on_chain"`
	RecordedLocally   int64     `json:"recorded_locally"`
	Rules             int64     `json:"rules"`
	BlockchainEnabled bool      `json:"blockchain_available"`
	LastUpdated       time.Time `json:"last_updated"`
}

// AuditReport is the outcome of walking the local hash chain.
type AuditReport struct {
	Entries   int64     `json:"entries"`
	Valid     bool      `json:"valid"`
	BrokenAt  int64     `json:"brokenAt,omitempty"`
	Head      string    `json:"head,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// NetworkInfo describes the ledger backend.
type NetworkInfo struct {
	Connected       bool   `json:"connected"`
	Mode            string `json:"mode"`
	Network         string `json:"network"`
	ChainID         int64  `json:"chain_id,omitempty"`
	LatestBlock     uint64 `json:"latest_block,omitempty"`
	GasPriceWei     string `json:"gas_price,omitempty"`
	AccountAddress  string `json:"account_address,omitempty"`
	ContractAddress string `json:"contract_address,omitempty"`
	Error           string `json:"error,omitempty"`
}
