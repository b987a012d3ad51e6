package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appErrors "securecart/internal/errors"
	"securecart/internal/models"
)

type MockChain struct {
	mock.Mock
}

func (m *MockChain) Record(ctx context.Context, e Entry) (Entry, error) {
	args := m.Called(ctx, e)
	if fn, ok := args.Get(0).(func(context.Context, Entry) Entry); ok {
		return fn(ctx, e), args.Error(1)
	}
	return args.Get(0).(Entry), args.Error(1)
}

func (m *MockChain) Lookup(ctx context.Context, refID string) (Entry, error) {
	args := m.Called(ctx, refID)
	return args.Get(0).(Entry), args.Error(1)
}

func (m *MockChain) Network(ctx context.Context) (NetworkInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(NetworkInfo), args.Error(1)
}

func newTestService(t *testing.T, chain Chain) *Service {
	svc := NewService(openTestStore(t), chain, "development")
	svc.now = func() time.Time { return time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestRecordTransactionLocalOnly(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	txn := sampleTransaction()

	receipt, err := svc.RecordTransaction(ctx, txn, false)
	require.NoError(t, err)
	assert.Equal(t, "431e1f5fb975656907cf140dbc206087bd5a69ec19d29c167b028d5e5570d5bd", receipt.Hash)
	assert.True(t, receipt.Local)
	assert.False(t, receipt.OnChain)
	assert.Len(t, receipt.Reference, 64)

	v, err := svc.Verify(ctx, txn)
	require.NoError(t, err)
	assert.True(t, v.Verified)
	assert.Equal(t, "local", v.Source)

	tampered := sampleTransaction()
	tampered.Amount = 9999
	v, err = svc.Verify(ctx, tampered)
	require.NoError(t, err)
	assert.False(t, v.Verified)
	assert.False(t, v.AmountMatches)

	info := svc.Network(ctx)
	assert.Equal(t, "local", info.Mode)
	assert.True(t, info.Connected)
}

func TestRecordTransactionOnChain(t *testing.T) {
	ctx := context.Background()
	chain := new(MockChain)
	svc := newTestService(t, chain)
	txn := sampleTransaction()

	chain.On("Record", ctx, mock.MatchedBy(func(e Entry) bool {
		return e.RefID == "txn_001" && e.AmountCents == 12550 && e.IsFraud
	})).Return(func(_ context.Context, e Entry) Entry {
		e.Local = false
		e.ChainTxHash = "0xfeed"
		e.BlockNumber = 42
		return e
	}, nil).Once()

	receipt, err := svc.RecordTransaction(ctx, txn, true)
	require.NoError(t, err)
	assert.True(t, receipt.OnChain)
	assert.Equal(t, "0xfeed", receipt.Reference)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.OnChain)
	assert.True(t, stats.BlockchainEnabled)
	chain.AssertExpectations(t)
}

func TestRecordTransactionFallsBackWhenChainFails(t *testing.T) {
	ctx := context.Background()
	chain := new(MockChain)
	svc := newTestService(t, chain)

	chain.On("Record", ctx, mock.Anything).Return(Entry{}, errors.New("connection refused"))
	chain.On("Lookup", ctx, "txn_001").Return(Entry{}, ErrNotRecorded)

	receipt, err := svc.RecordTransaction(ctx, sampleTransaction(), false)
	require.NoError(t, err)
	assert.True(t, receipt.Local)

	v, err := svc.Verify(ctx, sampleTransaction())
	require.NoError(t, err)
	assert.True(t, v.Verified)
	assert.Equal(t, "local", v.Source)
}

func TestVerifyUnknownTransaction(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Verify(context.Background(), sampleTransaction())
	assert.ErrorIs(t, err, appErrors.ErrLedgerRecordNotFound)
}

func TestRecordRule(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	rule := &models.SecurityRule{
		ID:         uuid.New(),
		Name:       "Large amount",
		Field:      "amount",
		Operator:   "gt",
		Value:      "5000",
		Action:     models.RuleActionDecline,
		RiskPoints: 40,
	}

	hash, err := svc.RecordRule(ctx, rule)
	require.NoError(t, err)
	assert.Equal(t, "09a14dd4bc75083e9f96103c34f829f3e8685868c827f6eb2d061900e4746557", hash)

	rule.Value = "6000"
	updated, err := svc.RecordRule(ctx, rule)
	require.NoError(t, err)
	assert.NotEqual(t, hash, updated)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Rules)
	assert.Zero(t, stats.TotalTransactions)
}

func TestNetworkReportsChainErrors(t *testing.T) {
	ctx := context.Background()
	chain := new(MockChain)
	chain.On("Network", ctx).Return(NetworkInfo{Mode: "ethereum", Network: "sepolia"}, errors.New("dial tcp: timeout"))

	info := newTestService(t, chain).Network(ctx)
	assert.False(t, info.Connected)
	assert.Equal(t, "sepolia", info.Network)
	assert.Contains(t, info.Error, "timeout")
}

func TestVerifyAfterDatabaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	txn := sampleTransaction()
	txn.TransactionTime = time.Date(2025, 2, 1, 9, 0, 0, 123456789, time.UTC)
	txn.Amount = 10.005
	_, err := svc.RecordTransaction(ctx, txn, false)
	require.NoError(t, err)

	// numeric(15,2) and timestamptz as they come back from Postgres
	stored := *txn
	stored.TransactionTime = time.Date(2025, 2, 1, 9, 0, 0, 123456000, time.UTC)
	stored.Amount = 10.01

	v, err := svc.Verify(ctx, &stored)
	require.NoError(t, err)
	assert.True(t, v.AmountMatches)
	assert.True(t, v.Verified, "expected %s, recorded %s", v.ExpectedHash, v.RecordedHash)
}
