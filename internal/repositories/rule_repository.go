package repositories

import (
	"context"
	"errors"

	"securecart/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RuleRepository interface {
	Create(ctx context.Context, rule *models.SecurityRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityRule, error)
	List(ctx context.Context) ([]models.SecurityRule, error)
	// Enabled returns active rules ordered by ascending priority.
	Enabled(ctx context.Context) ([]models.SecurityRule, error)
	Update(ctx context.Context, rule *models.SecurityRule) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ruleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) Create(ctx context.Context, rule *models.SecurityRule) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

func (r *ruleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityRule, error) {
	var rule models.SecurityRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepository) List(ctx context.Context) ([]models.SecurityRule, error) {
	var rules []models.SecurityRule
	err := r.db.WithContext(ctx).Order("priority ASC, name ASC").Find(&rules).Error
	return rules, err
}

func (r *ruleRepository) Enabled(ctx context.Context) ([]models.SecurityRule, error) {
	var rules []models.SecurityRule
	err := r.db.WithContext(ctx).Where("enabled").Order("priority ASC, name ASC").Find(&rules).Error
	return rules, err
}

func (r *ruleRepository) Update(ctx context.Context, rule *models.SecurityRule) error {
	if err := r.db.WithContext(ctx).Save(rule).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

func (r *ruleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.SecurityRule{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}
