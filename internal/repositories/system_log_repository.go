package repositories

import (
	"context"
	"time"

	"securecart/internal/models"

	"gorm.io/gorm"
)

type SystemLogRepository interface {
	Insert(ctx context.Context, entry *models.SystemLog) error
	List(ctx context.Context, level string, limit, offset int) ([]models.SystemLog, int64, error)
	InsertMetrics(ctx context.Context, metrics []models.PerformanceMetric) error
	Metrics(ctx context.Context, name string, since time.Time) ([]models.PerformanceMetric, error)
}

type systemLogRepository struct {
	db *gorm.DB
}

func NewSystemLogRepository(db *gorm.DB) SystemLogRepository {
	return &systemLogRepository{db: db}
}

func (r *systemLogRepository) Insert(ctx context.Context, entry *models.SystemLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *systemLogRepository) List(ctx context.Context, level string, limit, offset int) ([]models.SystemLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.SystemLog{})
	if level != "" {
		q = q.Where("level = ?", level)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.SystemLog
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, total, err
}

func (r *systemLogRepository) InsertMetrics(ctx context.Context, metrics []models.PerformanceMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(metrics, 100).Error
}

func (r *systemLogRepository) Metrics(ctx context.Context, name string, since time.Time) ([]models.PerformanceMetric, error) {
	q := r.db.WithContext(ctx).Where("recorded_at >= ?", since)
	if name != "" {
		q = q.Where("metric_name = ?", name)
	}
	var out []models.PerformanceMetric
	err := q.Order("recorded_at DESC").Limit(1000).Find(&out).Error
	return out, err
}
