package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"securecart/internal/models"

	"github.com/jackc/pgx/v5"
)

const summaryQuery = `
	SELECT COUNT(*),
	       COALESCE(SUM(amount), 0),
	       COALESCE(AVG(amount), 0),
	       COALESCE(AVG(risk_score), 0),
	       COUNT(*) FILTER (WHERE status = 'approved'),
	       COUNT(*) FILTER (WHERE status = 'flagged'),
	       COUNT(*) FILTER (WHERE status = 'declined'),
	       COALESCE(SUM(amount) FILTER (WHERE status <> 'approved'), 0)
	FROM transactions
	WHERE transaction_time >= $1`

const dailyQuery = `
	SELECT date_trunc('day', transaction_time) AS day,
	       COUNT(*),
	       COALESCE(SUM(amount), 0),
	       COUNT(*) FILTER (WHERE status <> 'approved'),
	       COALESCE(AVG(risk_score), 0)
	FROM transactions
	WHERE transaction_time >= $1
	GROUP BY day
	ORDER BY day`

const riskDistributionQuery = `
	SELECT CASE
	         WHEN risk_score >= 90 THEN 'critical'
	         WHEN risk_score >= 70 THEN 'high'
	         WHEN risk_score >= 50 THEN 'medium'
	         ELSE 'low'
	       END AS level,
	       COUNT(*)
	FROM transactions
	WHERE transaction_time >= $1
	GROUP BY level`

const topMerchantsQuery = `
	SELECT merchant_name,
	       COUNT(*),
	       COALESCE(SUM(amount), 0),
	       COUNT(*) FILTER (WHERE status <> 'approved'),
	       COALESCE(AVG(risk_score), 0)
	FROM transactions
	WHERE transaction_time >= $1
	GROUP BY merchant_name
	ORDER BY COUNT(*) FILTER (WHERE status <> 'approved') DESC, COUNT(*) DESC
	LIMIT $2`

const categoryQuery = `
	SELECT COALESCE(NULLIF(merchant_category, ''), 'uncategorized') AS category,
	       COUNT(*),
	       COALESCE(SUM(amount), 0),
	       COUNT(*) FILTER (WHERE status <> 'approved')
	FROM transactions
	WHERE transaction_time >= $1
	GROUP BY category
	ORDER BY COUNT(*) DESC`

const liveQuery = `
	SELECT COUNT(*) FILTER (WHERE transaction_time >= $2),
	       COUNT(*),
	       COUNT(*) FILTER (WHERE status <> 'approved'),
	       COALESCE(AVG(risk_score), 0),
	       COUNT(*) FILTER (WHERE risk_score >= 70),
	       COUNT(*) FILTER (WHERE status = 'declined'),
	       MAX(transaction_time) FILTER (WHERE status <> 'approved')
	FROM transactions
	WHERE transaction_time >= $1`

const falsePositiveQuery = `
	SELECT COUNT(*) FILTER (WHERE final_decision = 'false_positive'),
	       COUNT(*)
	FROM fraud_reports
	WHERE investigation_status = 'resolved'`

// Repository reads dashboard aggregates straight from PostgreSQL.
type Repository struct {
	db Querier
}

func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Summary(ctx context.Context, since time.Time) (*models.AnalyticsSummary, error) {
	var s models.AnalyticsSummary
	err := r.db.QueryRow(ctx, summaryQuery, since).Scan(
		&s.TotalTransactions, &s.TotalAmount, &s.AverageAmount, &s.AverageRiskScore,
		&s.Approved, &s.Flagged, &s.Declined, &s.AmountAtRisk,
	)
	if err != nil {
		return nil, fmt.Errorf("analytics summary: %w", err)
	}
	if s.TotalTransactions > 0 {
		s.FraudRate = float64(s.Flagged+s.Declined) / float64(s.TotalTransactions)
	}
	return &s, nil
}

func (r *Repository) DailySeries(ctx context.Context, since time.Time) ([]models.DailyPoint, error) {
	rows, err := r.db.Query(ctx, dailyQuery, since)
	if err != nil {
		return nil, fmt.Errorf("analytics daily series: %w", err)
	}
	defer rows.Close()

	var out []models.DailyPoint
	for rows.Next() {
		var p models.DailyPoint
		if err := rows.Scan(&p.Day, &p.Transactions, &p.Amount, &p.Flagged, &p.AverageRiskScore); err != nil {
			return nil, fmt.Errorf("scan daily point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RiskDistribution always returns the four levels in ascending order.
func (r *Repository) RiskDistribution(ctx context.Context, since time.Time) ([]models.RiskBucket, error) {
	rows, err := r.db.Query(ctx, riskDistributionQuery, since)
	if err != nil {
		return nil, fmt.Errorf("analytics risk distribution: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	var total int64
	for rows.Next() {
		var level string
		var n int64
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("scan risk bucket: %w", err)
		}
		counts[level] = n
		total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	levels := []string{models.AlertLow, models.AlertMedium, models.AlertHigh, models.AlertCritical}
	out := make([]models.RiskBucket, 0, len(levels))
	for _, level := range levels {
		b := models.RiskBucket{Level: level, Count: counts[level]}
		if total > 0 {
			b.Share = float64(b.Count) / float64(total)
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *Repository) TopMerchants(ctx context.Context, since time.Time, limit int) ([]models.MerchantStat, error) {
	rows, err := r.db.Query(ctx, topMerchantsQuery, since, limit)
	if err != nil {
		return nil, fmt.Errorf("analytics top merchants: %w", err)
	}
	defer rows.Close()

	var out []models.MerchantStat
	for rows.Next() {
		var m models.MerchantStat
		if err := rows.Scan(&m.MerchantName, &m.Transactions, &m.Amount, &m.Flagged, &m.AverageRiskScore); err != nil {
			return nil, fmt.Errorf("scan merchant: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) Categories(ctx context.Context, since time.Time) ([]models.CategoryStat, error) {
	rows, err := r.db.Query(ctx, categoryQuery, since)
	if err != nil {
		return nil, fmt.Errorf("analytics categories: %w", err)
	}
	defer rows.Close()

	var out []models.CategoryStat
	for rows.Next() {
		var c models.CategoryStat
		var flagged int64
		if err := rows.Scan(&c.Category, &c.Transactions, &c.Amount, &flagged); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if c.Transactions > 0 {
			c.FraudRate = float64(flagged) / float64(c.Transactions)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Live fills the database-backed fields of the live dashboard. dayStart is
// the start of the current day and window the throughput window.
func (r *Repository) Live(ctx context.Context, dayStart time.Time, window time.Duration, now time.Time) (*models.LiveStats, error) {
	var (
		stats  models.LiveStats
		recent int64
		last   *time.Time
	)
	err := r.db.QueryRow(ctx, liveQuery, dayStart, now.Add(-window)).Scan(
		&recent,
		&stats.TransactionsToday,
		&stats.FraudDetectionsToday,
		&stats.AverageRiskScore,
		&stats.HighRiskTransactions,
		&stats.BlockedTransactions,
		&last,
	)
	if err != nil {
		return nil, fmt.Errorf("analytics live stats: %w", err)
	}
	if window > 0 {
		stats.TransactionsPerMinute = float64(recent) / window.Minutes()
	}
	if stats.TransactionsToday > 0 {
		stats.FraudRateToday = float64(stats.FraudDetectionsToday) / float64(stats.TransactionsToday)
	}
	stats.LastFraudDetection = last
	stats.Timestamp = now

	fp, err := r.FalsePositiveRate(ctx)
	if err != nil {
		return nil, err
	}
	stats.FalsePositiveRate = fp
	return &stats, nil
}

// FalsePositiveRate is the share of resolved reports judged false positives.
func (r *Repository) FalsePositiveRate(ctx context.Context) (float64, error) {
	var fp, resolved int64
	err := r.db.QueryRow(ctx, falsePositiveQuery).Scan(&fp, &resolved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("analytics false positive rate: %w", err)
	}
	if resolved == 0 {
		return 0, nil
	}
	return float64(fp) / float64(resolved), nil
}
