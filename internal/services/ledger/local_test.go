package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := OpenLocalStore(filepath.Join(t.TempDir(), "ledger", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func txEntry(id string, cents int64, risk int, fraud bool) Entry {
	return Entry{
		Kind:        KindTransaction,
		RefID:       id,
		PayloadHash: digest([]byte(id)),
		AmountCents: cents,
		RiskScore:   risk,
		IsFraud:     fraud,
		RecordedAt:  time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Local:       true,
	}
}

func TestLocalStoreRecordAndLookup(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	first, err := store.Record(ctx, txEntry("txn_1", 1000, 10, false))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, genesisHash, first.PrevHash)
	assert.Len(t, first.EntryHash, 64)

	second, err := store.Record(ctx, txEntry("txn_2", 250000, 95, true))
	require.NoError(t, err)
	assert.Equal(t, first.EntryHash, second.PrevHash)

	again, err := store.Record(ctx, txEntry("txn_1", 1, 1, true))
	require.NoError(t, err)
	assert.Equal(t, first.EntryHash, again.EntryHash, "existing entry is returned unchanged")
	assert.Equal(t, int64(1000), again.AmountCents)

	got, err := store.Lookup(ctx, KindTransaction, "txn_2")
	require.NoError(t, err)
	assert.True(t, got.IsFraud)
	assert.Equal(t, second.RecordedAt, got.RecordedAt)
	assert.Equal(t, second.EntryHash, got.EntryHash)

	_, err = store.Lookup(ctx, KindTransaction, "missing")
	assert.ErrorIs(t, err, ErrNotRecorded)
}

func TestLocalStoreStats(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.TotalTransactions)
	assert.Zero(t, st.FraudRate)

	onChain := txEntry("txn_3", 500, 30, false)
	onChain.Local = false
	onChain.ChainTxHash = "0xabc"
	for _, e := range []Entry{txEntry("txn_1", 1000, 10, false), txEntry("txn_2", 2550, 80, true), onChain} {
		_, err := store.Record(ctx, e)
		require.NoError(t, err)
	}
	_, err = store.Record(ctx, Entry{Kind: KindRule, RefID: "rule@1", PayloadHash: digest([]byte("r"))})
	require.NoError(t, err)

	st, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.TotalTransactions)
	assert.Equal(t, int64(1), st.FraudTransactions)
	assert.InDelta(t, 33.33, st.FraudRate, 0.01)
	assert.InDelta(t, 40.0, st.AverageRiskScore, 1e-9)
	assert.Equal(t, 40.5, st.TotalAmount)
	assert.Equal(t, int64(1), st.OnChain)
	assert.Equal(t, int64(2), st.RecordedLocally)
	assert.Equal(t, int64(1), st.Rules)
}

func TestLocalStoreAudit(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	report, err := store.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Zero(t, report.Entries)

	var last Entry
	for _, id := range []string{"txn_1", "txn_2", "txn_3"} {
		last, err = store.Record(ctx, txEntry(id, 100, 5, false))
		require.NoError(t, err)
	}

	report, err = store.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, int64(3), report.Entries)
	assert.Equal(t, last.EntryHash, report.Head)

	_, err = store.db.ExecContext(ctx, `UPDATE ledger_entries SET amount_cents = 999999 WHERE ref_id = 'txn_2'`)
	require.NoError(t, err)

	report, err = store.Audit(ctx)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, int64(2), report.BrokenAt)
}
