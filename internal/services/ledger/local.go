package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

const localSchema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	kind          TEXT    NOT NULL,
	ref_id        TEXT    NOT NULL,
	payload_hash  TEXT    NOT NULL,
	amount_cents  INTEGER NOT NULL DEFAULT 0,
	risk_score    INTEGER NOT NULL DEFAULT 0,
	is_fraud      INTEGER NOT NULL DEFAULT 0,
	recorded_at   INTEGER NOT NULL,
	local         INTEGER NOT NULL DEFAULT 1,
	chain_tx_hash TEXT    NOT NULL DEFAULT '',
	block_number  INTEGER NOT NULL DEFAULT 0,
	prev_hash     TEXT    NOT NULL,
	entry_hash    TEXT    NOT NULL,
	UNIQUE (kind, ref_id)
)`

const entryColumns = `seq, kind, ref_id, payload_hash, amount_cents, risk_score, is_fraud,
	recorded_at, local, chain_tx_hash, block_number, prev_hash, entry_hash`

// LocalStore is an append-only, hash-chained ledger in SQLite. Each entry
// hashes its own fields together with the previous entry hash.
type LocalStore struct {
	db *sql.DB
}

func OpenLocalStore(path string) (*LocalStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open local ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(localSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate local ledger: %w", err)
	}
	return &LocalStore{db: db}, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

// Record appends e. An existing entry for the same kind and reference is
// returned unchanged.
func (s *LocalStore) Record(ctx context.Context, e Entry) (Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback()

	existing, err := scanEntry(tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE kind = ? AND ref_id = ?`, e.Kind, e.RefID))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotRecorded) {
		return Entry{}, err
	}

	prev := genesisHash
	err = tx.QueryRowContext(ctx, `SELECT entry_hash FROM ledger_entries ORDER BY seq DESC LIMIT 1`).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}

	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	e.PrevHash = prev
	e.EntryHash = chainHash(e)

	res, err := tx.ExecContext(ctx, `INSERT INTO ledger_entries
		(kind, ref_id, payload_hash, amount_cents, risk_score, is_fraud, recorded_at, local, chain_tx_hash, block_number, prev_hash, entry_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Kind, e.RefID, e.PayloadHash, e.AmountCents, e.RiskScore, boolInt(e.IsFraud),
		e.RecordedAt.UnixNano(), boolInt(e.Local), e.ChainTxHash, int64(e.BlockNumber), e.PrevHash, e.EntryHash)
	if err != nil {
		return Entry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	if e.Seq, err = res.LastInsertId(); err != nil {
		return Entry{}, err
	}
	return e, tx.Commit()
}

func (s *LocalStore) Lookup(ctx context.Context, kind, refID string) (Entry, error) {
	return scanEntry(s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE kind = ? AND ref_id = ?`, kind, refID))
}

func (s *LocalStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var avg sql.NullFloat64
	var cents int64
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(is_fraud), 0),
		AVG(risk_score),
		COALESCE(SUM(amount_cents), 0),
		COALESCE(SUM(CASE WHEN local = 0 THEN 1 ELSE 0 END), 0)
		FROM ledger_entries WHERE kind = ?`, KindTransaction).
		Scan(&st.TotalTransactions, &st.FraudTransactions, &avg, &cents, &st.OnChain)
	if err != nil {
		return Stats{}, fmt.Errorf("ledger stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE kind = ?`, KindRule).Scan(&st.Rules); err != nil {
		return Stats{}, fmt.Errorf("ledger stats: %w", err)
	}

	st.RecordedLocally = st.TotalTransactions - st.OnChain
	st.AverageRiskScore = avg.Float64
	st.TotalAmount = FromCents(cents)
	if st.TotalTransactions > 0 {
		st.FraudRate = float64(st.FraudTransactions) / float64(st.TotalTransactions) * 100
	}
	st.LastUpdated = time.Now().UTC()
	return st, nil
}

// Audit recomputes every entry hash in sequence order and reports the first
// entry whose hash or back link does not match.
func (s *LocalStore) Audit(ctx context.Context) (AuditReport, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM ledger_entries ORDER BY seq`)
	if err != nil {
		return AuditReport{}, err
	}
	defer rows.Close()

	report := AuditReport{Valid: true, CheckedAt: time.Now().UTC()}
	prev := genesisHash
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return AuditReport{}, err
		}
		report.Entries++
		if report.Valid && (e.PrevHash != prev || chainHash(e) != e.EntryHash) {
			report.Valid = false
			report.BrokenAt = e.Seq
		}
		prev = e.EntryHash
	}
	if err := rows.Err(); err != nil {
		return AuditReport{}, err
	}
	if report.Entries > 0 {
		report.Head = prev
	}
	return report, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var fraud, local int
	var recorded, block int64
	err := row.Scan(&e.Seq, &e.Kind, &e.RefID, &e.PayloadHash, &e.AmountCents, &e.RiskScore, &fraud,
		&recorded, &local, &e.ChainTxHash, &block, &e.PrevHash, &e.EntryHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotRecorded
	}
	if err != nil {
		return Entry{}, err
	}
	e.IsFraud = fraud == 1
	e.Local = local == 1
	e.BlockNumber = uint64(block)
	e.RecordedAt = time.Unix(0, recorded).UTC()
	return e, nil
}

func chainHash(e Entry) string {
	return digest([]byte(strings.Join([]string{
		e.PrevHash,
		e.Kind,
		e.RefID,
		e.PayloadHash,
		strconv.FormatInt(e.AmountCents, 10),
		strconv.Itoa(e.RiskScore),
		strconv.FormatBool(e.IsFraud),
		strconv.FormatInt(e.RecordedAt.UnixNano(), 10),
		e.ChainTxHash,
	}, "|")))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
