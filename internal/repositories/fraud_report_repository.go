package repositories

import (
	"context"
	"errors"

	"securecart/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FraudReportRepository interface {
	Create(ctx context.Context, report *models.FraudReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FraudReport, error)
	GetByTransaction(ctx context.Context, txnID string) (*models.FraudReport, error)
	List(ctx context.Context, filter models.FraudReportFilter) ([]models.FraudReport, int64, error)
	Update(ctx context.Context, report *models.FraudReport) error
	MarkNotified(ctx context.Context, id uuid.UUID) error
}

type fraudReportRepository struct {
	db *gorm.DB
}

func NewFraudReportRepository(db *gorm.DB) FraudReportRepository {
	return &fraudReportRepository{db: db}
}

func (r *fraudReportRepository) Create(ctx context.Context, report *models.FraudReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *fraudReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FraudReport, error) {
	var report models.FraudReport
	if err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

func (r *fraudReportRepository) GetByTransaction(ctx context.Context, txnID string) (*models.FraudReport, error) {
	var report models.FraudReport
	err := r.db.WithContext(ctx).Where("transaction_id = ?", txnID).Order("created_at DESC").First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

func (r *fraudReportRepository) List(ctx context.Context, f models.FraudReportFilter) ([]models.FraudReport, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.FraudReport{})
	if f.InvestigationStatus != "" {
		q = q.Where("investigation_status = ?", f.InvestigationStatus)
	}
	if f.FinalDecision != "" {
		q = q.Where("final_decision = ?", f.FinalDecision)
	}
	if f.IsFraud != nil {
		q = q.Where("is_fraud = ?", *f.IsFraud)
	}
	if f.ManualReview != nil {
		q = q.Where("manual_review_required = ?", *f.ManualReview)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []models.FraudReport
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	if err := q.Order("detected_at DESC").Find(&reports).Error; err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (r *fraudReportRepository) Update(ctx context.Context, report *models.FraudReport) error {
	return r.db.WithContext(ctx).Save(report).Error
}

func (r *fraudReportRepository) MarkNotified(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.FraudReport{}).Where("id = ?", id).
		Update("notification_sent", true).Error
}
