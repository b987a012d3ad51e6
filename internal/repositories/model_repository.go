package repositories

import (
	"context"
	"errors"
	"time"

	"securecart/internal/models"

	"gorm.io/gorm"
)

// ModelRepository is the registry of trained detector snapshots.
type ModelRepository interface {
	Register(ctx context.Context, m *models.MLModel) error
	// Activate marks one model active and every other model inactive.
	Activate(ctx context.Context, name, version string) error
	Active(ctx context.Context) (*models.MLModel, error)
	List(ctx context.Context) ([]models.MLModel, error)
}

type modelRepository struct {
	db *gorm.DB
}

func NewModelRepository(db *gorm.DB) ModelRepository {
	return &modelRepository{db: db}
}

func (r *modelRepository) Register(ctx context.Context, m *models.MLModel) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

func (r *modelRepository) Activate(ctx context.Context, name, version string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.MLModel{}).Where("is_active").Update("is_active", false).Error; err != nil {
			return err
		}
		result := tx.Model(&models.MLModel{}).
			Where("name = ? AND version = ?", name, version).
			Updates(map[string]interface{}{"is_active": true, "deployed_at": time.Now()})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrModelNotFound
		}
		return nil
	})
}

func (r *modelRepository) Active(ctx context.Context) (*models.MLModel, error) {
	var m models.MLModel
	if err := r.db.WithContext(ctx).Where("is_active").First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *modelRepository) List(ctx context.Context) ([]models.MLModel, error) {
	var out []models.MLModel
	err := r.db.WithContext(ctx).Order("trained_at DESC").Find(&out).Error
	return out, err
}
