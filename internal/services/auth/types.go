package auth

import (
	"time"

	"securecart/internal/models"
)

type ClientInfo struct {
	IP        string
	UserAgent string
}

type LoginRequest struct {
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	RememberMe bool       `json:"remember_me"`
	Client     ClientInfo `json:"-"`
}

type LoginResult struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    time.Time    `json:"expires_at"`
	Permissions  []string     `json:"permissions"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type CreateUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	Verified  bool   `json:"isVerified"`
}

type UpdateUserRequest struct {
	Role      *string `json:"role,omitempty"`
	IsActive  *bool   `json:"isActive,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Unlock    bool    `json:"unlock,omitempty"`
}
