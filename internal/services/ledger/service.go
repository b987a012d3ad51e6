package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	appErrors "securecart/internal/errors"
	"securecart/internal/models"
)

// Chain is an external ledger. EthereumRecorder implements it.
type Chain interface {
	Record(ctx context.Context, e Entry) (Entry, error)
	Lookup(ctx context.Context, refID string) (Entry, error)
	Network(ctx context.Context) (NetworkInfo, error)
}

// Store is the local append-only index every entry is written to.
type Store interface {
	Record(ctx context.Context, e Entry) (Entry, error)
	Lookup(ctx context.Context, kind, refID string) (Entry, error)
	Stats(ctx context.Context) (Stats, error)
	Audit(ctx context.Context) (AuditReport, error)
}

// Receipt is what a transaction carries after being recorded.
type Receipt struct {
	Hash       string    `json:"hash"`
	Reference  string    `json:"reference"`
	OnChain    bool      `json:"onChain"`
	Local      bool      `json:"recordedLocally"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Verification compares a stored transaction with its ledger record.
type Verification struct {
	TransactionID string    `json:"transactionId"`
	Verified      bool      `json:"verified"`
	Source        string    `json:"source"`
	ExpectedHash  string    `json:"expectedHash"`
	RecordedHash  string    `json:"recordedHash"`
	AmountMatches bool      `json:"amountMatches"`
	IsFraud       bool      `json:"isFraud"`
	RiskScore     int       `json:"riskScore"`
	ChainTxHash   string    `json:"chainTxHash,omitempty"`
	RecordedAt    time.Time `json:"recordedAt"`
	CheckedAt     time.Time `json:"checkedAt"`
}

// Service records to the chain when one is configured and always indexes
// the entry in the local store. A chain failure falls back to a local-only
// record.
type Service struct {
	chain   Chain
	store   Store
	network string
	now     func() time.Time
}

// NewService accepts a nil chain for local-only operation.
func NewService(store Store, chain Chain, network string) *Service {
	return &Service{
		chain:   chain,
		store:   store,
		network: network,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ChainEnabled() bool {
	return s.chain != nil
}

func (s *Service) RecordTransaction(ctx context.Context, t *models.Transaction, isFraud bool) (*Receipt, error) {
	hash, err := TransactionHash(t)
	if err != nil {
		return nil, fmt.Errorf("hash transaction: %w", err)
	}
	entry := Entry{
		Kind:        KindTransaction,
		RefID:       t.ID,
		PayloadHash: hash,
		AmountCents: ToCents(t.Amount),
		RiskScore:   t.RiskScore,
		IsFraud:     isFraud,
		RecordedAt:  s.now(),
		Local:       true,
	}

	onChain := false
	if s.chain != nil {
		recorded, err := s.chain.Record(ctx, entry)
		if err != nil {
			log.Printf("⚠️ Ledger chain write failed for %s, recording locally: %v", t.ID, err)
		} else {
			entry = recorded
			onChain = true
		}
	}

	stored, err := s.store.Record(ctx, entry)
	if err != nil {
		if !onChain {
			return nil, fmt.Errorf("%w: %v", appErrors.ErrLedgerUnavailable, err)
		}
		log.Printf("⚠️ Ledger index write failed for %s: %v", t.ID, err)
		stored = entry
	}

	receipt := &Receipt{
		Hash:       hash,
		Reference:  stored.EntryHash,
		OnChain:    onChain,
		Local:      !onChain,
		RecordedAt: stored.RecordedAt,
	}
	if onChain {
		receipt.Reference = stored.ChainTxHash
	}
	return receipt, nil
}

// RecordRule stores the fingerprint of a rule version and returns it.
func (s *Service) RecordRule(ctx context.Context, r *models.SecurityRule) (string, error) {
	hash, err := RuleHash(r)
	if err != nil {
		return "", fmt.Errorf("hash rule: %w", err)
	}
	_, err = s.store.Record(ctx, Entry{
		Kind:        KindRule,
		RefID:       r.ID.String() + "@" + hash[:16],
		PayloadHash: hash,
		RiskScore:   r.RiskPoints,
		RecordedAt:  s.now(),
		Local:       true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", appErrors.ErrLedgerUnavailable, err)
	}
	log.Printf("🔐 Rule %s recorded with hash %s", r.Name, hash)
	return hash, nil
}

// Verify recomputes the hash of t and compares it with the chain record, or
// the local record when the chain has none.
func (s *Service) Verify(ctx context.Context, t *models.Transaction) (*Verification, error) {
	expected, err := TransactionHash(t)
	if err != nil {
		return nil, fmt.Errorf("hash transaction: %w", err)
	}

	var entry Entry
	source := ""
	if s.chain != nil {
		entry, err = s.chain.Lookup(ctx, t.ID)
		switch {
		case err == nil:
			source = "chain"
		case errors.Is(err, ErrNotRecorded):
		default:
			log.Printf("⚠️ Ledger chain lookup failed for %s: %v", t.ID, err)
		}
	}
	if source == "" {
		entry, err = s.store.Lookup(ctx, KindTransaction, t.ID)
		if errors.Is(err, ErrNotRecorded) {
			return nil, appErrors.ErrLedgerRecordNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", appErrors.ErrLedgerUnavailable, err)
		}
		source = "local"
	}

	amountMatches := entry.AmountCents == ToCents(t.Amount)
	return &Verification{
		TransactionID: t.ID,
		Verified:      entry.PayloadHash == expected && amountMatches,
		Source:        source,
		ExpectedHash:  expected,
		RecordedHash:  entry.PayloadHash,
		AmountMatches: amountMatches,
		IsFraud:       entry.IsFraud,
		RiskScore:     entry.RiskScore,
		ChainTxHash:   entry.ChainTxHash,
		RecordedAt:    entry.RecordedAt,
		CheckedAt:     s.now(),
	}, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrLedgerUnavailable, err)
	}
	st.BlockchainEnabled = s.chain != nil
	return &st, nil
}

func (s *Service) Audit(ctx context.Context) (*AuditReport, error) {
	report, err := s.store.Audit(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrLedgerUnavailable, err)
	}
	if !report.Valid {
		log.Printf("❌ Local ledger chain broken at entry %d", report.BrokenAt)
	}
	return &report, nil
}

// Network never fails; connection problems are reported in the result.
func (s *Service) Network(ctx context.Context) NetworkInfo {
	if s.chain == nil {
		return NetworkInfo{Connected: true, Mode: "local", Network: s.network}
	}
	info, err := s.chain.Network(ctx)
	if err != nil {
		info.Connected = false
		info.Error = err.Error()
	}
	return info
}
