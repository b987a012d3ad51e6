package auth

//go:generate mockgen -destination=../../mocks/mock_user_store.go -package=mocks securecart/internal/services/auth UserStore

import (
	"context"
	"time"

	"securecart/internal/models"

	"github.com/google/uuid"
)

// UserStore is the part of repositories.UserRepository auth depends on.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	RecordFailedLogin(ctx context.Context, id uuid.UUID, maxAttempts int, lockout time.Duration) (int, error)
	RecordSuccessfulLogin(ctx context.Context, id uuid.UUID, ip string) error
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
}

// LiveSessions is the fast revocation store. *cache.SessionStore implements it.
type LiveSessions interface {
	Save(ctx context.Context, jti, userID string, ttl time.Duration) error
	Exists(ctx context.Context, jti string) (bool, error)
	Delete(ctx context.Context, jti string) error
	Touch(ctx context.Context, jti string, ttl time.Duration) error
}

// SessionLog is the durable session record. repositories.SessionRepository
// implements it.
type SessionLog interface {
	Create(ctx context.Context, session *models.UserSession) error
	GetByToken(ctx context.Context, jti string) (*models.UserSession, error)
	Touch(ctx context.Context, jti string, at time.Time) error
	Deactivate(ctx context.Context, jti string, at time.Time) error
	DeactivateAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) error
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*LoginResult, error)
	Logout(ctx context.Context, claims *models.UserClaims) error
	ValidateToken(ctx context.Context, token string) (*models.UserClaims, error)
	Verify(ctx context.Context, claims *models.UserClaims) (*models.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error

	CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	UpdateUser(ctx context.Context, actor *models.UserClaims, id uuid.UUID, req UpdateUserRequest) (*models.User, error)
}
