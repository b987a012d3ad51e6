package repositories

import (
	"context"
	"time"

	"securecart/internal/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error

	// RecordFailedLogin increments the failure counter and sets a lockout
	// once the counter reaches maxAttempts. It returns the new counter.
	RecordFailedLogin(ctx context.Context, id uuid.UUID, maxAttempts int, lockout time.Duration) (int, error)
	// RecordSuccessfulLogin clears failures and stamps the last login.
	RecordSuccessfulLogin(ctx context.Context, id uuid.UUID, ip string) error

	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	CountByRole(ctx context.Context) (map[string]int64, error)
}
