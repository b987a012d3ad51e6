package repositories

import (
	"context"
	"errors"
	"time"

	"securecart/internal/models"

	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, models.TransactionTotals, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateLedger(ctx context.Context, id, hash string, verified, local bool, at time.Time) error
	// Risky returns non-approved transactions newest first.
	Risky(ctx context.Context, minRisk int, since time.Time, limit int) ([]models.Transaction, error)
	RecentByUser(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *transactionRepository) filtered(ctx context.Context, f models.TransactionFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Transaction{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.MerchantName != "" {
		q = q.Where("merchant_name ILIKE ?", "%"+f.MerchantName+"%")
	}
	if f.Category != "" {
		q = q.Where("merchant_category = ?", f.Category)
	}
	if f.MinRisk != nil {
		q = q.Where("risk_score >= ?", *f.MinRisk)
	}
	if f.MaxRisk != nil {
		q = q.Where("risk_score <= ?", *f.MaxRisk)
	}
	if f.From != nil {
		q = q.Where("transaction_time >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("transaction_time <= ?", *f.To)
	}
	return q
}

func (r *transactionRepository) List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, models.TransactionTotals, error) {
	var totals models.TransactionTotals
	row := r.filtered(ctx, f).
		Select("COUNT(*), COALESCE(SUM(amount), 0), COALESCE(AVG(risk_score), 0)").
		Row()
	if err := row.Scan(&totals.TotalCount, &totals.TotalAmount, &totals.AverageRiskScore); err != nil {
		return nil, totals, err
	}

	var txns []models.Transaction
	q := r.filtered(ctx, f).Order("transaction_time DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	if err := q.Find(&txns).Error; err != nil {
		return nil, totals, err
	}
	return txns, totals, nil
}

func (r *transactionRepository) UpdateStatus(ctx context.Context, id, status string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "processed_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *transactionRepository) UpdateLedger(ctx context.Context, id, hash string, verified, local bool, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"ledger_hash":        hash,
			"ledger_verified":    verified,
			"ledger_local":       local,
			"ledger_verified_at": at,
		}).Error
}

func (r *transactionRepository) Risky(ctx context.Context, minRisk int, since time.Time, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Where("status <> ? AND risk_score >= ? AND transaction_time >= ?", models.StatusApproved, minRisk, since).
		Order("transaction_time DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

func (r *transactionRepository) RecentByUser(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("transaction_time DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}
