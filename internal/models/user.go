package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser    = "user"
	RoleAnalyst = "analyst"
	RoleAdmin   = "admin"
	// RoleService is carried by API-key principals, never stored on a user.
	RoleService = "service"
)

// ValidRole reports whether role can be assigned to a user account.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAnalyst, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Username            string     `gorm:"size:80;uniqueIndex;not null" json:"username"`
	Email               string     `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash        string     `gorm:"size:255;not null" json:"-"`
	FirstName           string     `gorm:"size:50" json:"firstName"`
	LastName            string     `gorm:"size:50" json:"lastName"`
	Phone               string     `gorm:"size:20" json:"phone,omitempty"`
	Role                string     `gorm:"size:20;default:'user';not null" json:"role"`
	IsActive            bool       `gorm:"not null" json:"isActive"`
	IsVerified          bool       `gorm:"default:false" json:"isVerified"`
	TwoFactorEnabled    bool       `gorm:"default:false" json:"twoFactorEnabled"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	AccountLockoutUntil *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"lastLogin,omitempty"`
	LastLoginIP         string     `gorm:"size:45" json:"-"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// FullName falls back to the username when no name is set.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	}
	return u.Username
}

// IsLocked reports whether the account is inside a lockout window.
func (u *User) IsLocked(now time.Time) bool {
	return u.AccountLockoutUntil != nil && now.Before(*u.AccountLockoutUntil)
}

// UserSession tracks one issued access token by its jti.
type UserSession struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"userId"`
	SessionToken string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	RefreshToken string     `gorm:"size:64;index" json:"-"`
	IPAddress    string     `gorm:"size:45" json:"ipAddress"`
	UserAgent    string     `gorm:"type:text" json:"userAgent"`
	ExpiresAt    time.Time  `gorm:"not null" json:"expiresAt"`
	LastActivity time.Time  `json:"lastActivity"`
	IsActive     bool       `gorm:"not null;index" json:"isActive"`
	LogoutAt     *time.Time `json:"logoutAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (s *UserSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
