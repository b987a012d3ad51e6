package repositories

import (
	"context"

	"securecart/internal/models"

	"gorm.io/gorm"
)

// SettingsRepository reads and writes the singleton settings rows.
type SettingsRepository interface {
	Notifications(ctx context.Context) (*models.NotificationSettings, error)
	SaveNotifications(ctx context.Context, s *models.NotificationSettings) error
	Model(ctx context.Context) (*models.ModelSettings, error)
	SaveModel(ctx context.Context, s *models.ModelSettings) error
	API(ctx context.Context) (*models.ApiSettings, error)
	SaveAPI(ctx context.Context, s *models.ApiSettings) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) load(ctx context.Context, dest interface{}) error {
	return r.db.WithContext(ctx).First(dest, models.SettingsRowID).Error
}

func (r *settingsRepository) save(ctx context.Context, value interface{}) error {
	return r.db.WithContext(ctx).Save(value).Error
}

func (r *settingsRepository) Notifications(ctx context.Context) (*models.NotificationSettings, error) {
	var s models.NotificationSettings
	if err := r.load(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepository) SaveNotifications(ctx context.Context, s *models.NotificationSettings) error {
	s.ID = models.SettingsRowID
	return r.save(ctx, s)
}

func (r *settingsRepository) Model(ctx context.Context) (*models.ModelSettings, error) {
	var s models.ModelSettings
	if err := r.load(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepository) SaveModel(ctx context.Context, s *models.ModelSettings) error {
	s.ID = models.SettingsRowID
	return r.save(ctx, s)
}

func (r *settingsRepository) API(ctx context.Context) (*models.ApiSettings, error) {
	var s models.ApiSettings
	if err := r.load(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepository) SaveAPI(ctx context.Context, s *models.ApiSettings) error {
	s.ID = models.SettingsRowID
	return r.save(ctx, s)
}
