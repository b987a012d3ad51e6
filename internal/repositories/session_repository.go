package repositories

import (
	"context"
	"errors"
	"time"

	"securecart/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionRepository persists issued sessions for auditing and for
// revocation checks when Redis is unavailable.
type SessionRepository interface {
	Create(ctx context.Context, session *models.UserSession) error
	GetByToken(ctx context.Context, jti string) (*models.UserSession, error)
	Touch(ctx context.Context, jti string, at time.Time) error
	Deactivate(ctx context.Context, jti string, at time.Time) error
	DeactivateAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) error
	ActiveCount(ctx context.Context) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.UserSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return ErrDatabaseOperation
	}
	return nil
}

func (r *sessionRepository) GetByToken(ctx context.Context, jti string) (*models.UserSession, error) {
	var session models.UserSession
	err := r.db.WithContext(ctx).Where("session_token = ? OR refresh_token = ?", jti, jti).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, ErrDatabaseOperation
	}
	return &session, nil
}

func (r *sessionRepository) Touch(ctx context.Context, jti string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("session_token = ? AND is_active", jti).
		Update("last_activity", at).Error
}

func (r *sessionRepository) Deactivate(ctx context.Context, jti string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("(session_token = ? OR refresh_token = ?) AND is_active", jti, jti).
		Updates(map[string]interface{}{"is_active": false, "logout_at": at})
	if result.Error != nil {
		return ErrDatabaseOperation
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepository) DeactivateAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("user_id = ? AND is_active", userID).
		Updates(map[string]interface{}{"is_active": false, "logout_at": at}).Error
}

func (r *sessionRepository) ActiveCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("is_active AND expires_at > ?", time.Now()).
		Count(&n).Error
	return n, err
}
