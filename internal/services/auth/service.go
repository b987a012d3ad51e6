// Package auth issues and validates dashboard sessions and manages users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"securecart/internal/config"
	appErrors "securecart/internal/errors"
	"securecart/internal/models"
	"securecart/internal/repositories"
	"securecart/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const defaultMaxFailedAttempts = 5

type service struct {
	users    UserStore
	tokens   TokenGenerator
	live     LiveSessions
	sessions SessionLog
	security config.SecurityConfig
	now      func() time.Time
	newID    func() string
}

// NewService wires the auth service. live may be nil when Redis is not
// configured; revocation then relies on the session log alone.
func NewService(users UserStore, tokens TokenGenerator, live LiveSessions, sessions SessionLog, security config.SecurityConfig) Service {
	if users == nil {
		panic("user store is required")
	}
	if tokens == nil {
		panic("token generator is required")
	}
	if sessions == nil {
		panic("session log is required")
	}
	if security.MaxFailedLoginAttempts <= 0 {
		security.MaxFailedLoginAttempts = defaultMaxFailedAttempts
	}
	return &service{
		users:    users,
		tokens:   tokens,
		live:     live,
		sessions: sessions,
		security: security,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// HashPassword hashes with the default bcrypt cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *service) lookup(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return s.users.GetByEmail(ctx, strings.ToLower(identifier))
	}
	return s.users.GetByUsername(ctx, identifier)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, appErrors.ErrValidation.WithMessage("email and password are required")
	}

	user, err := s.lookup(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			log.Printf("🔐 Login failed: unknown account %q from %s", req.Email, req.Client.IP)
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	now := s.now()
	if !user.IsActive {
		log.Printf("🔐 Login refused: account %s is disabled", user.ID)
		return nil, appErrors.ErrAccountDisabled
	}
	if user.IsLocked(now) {
		return nil, lockedError(*user.AccountLockoutUntil)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, s.failedLogin(ctx, user, req.Client.IP)
	}

	if err := s.users.RecordSuccessfulLogin(ctx, user.ID, req.Client.IP); err != nil {
		log.Printf("⚠️ Failed to record login for %s: %v", user.ID, err)
	}
	user.FailedLoginAttempts = 0
	user.AccountLockoutUntil = nil
	user.LastLoginAt = &now

	result, err := s.issue(ctx, user, req.RememberMe, req.Client)
	if err != nil {
		return nil, err
	}
	log.Printf("✅ User %s logged in from %s (remember=%t)", user.Username, req.Client.IP, req.RememberMe)
	return result, nil
}

func (s *service) failedLogin(ctx context.Context, user *models.User, ip string) error {
	attempts, err := s.users.RecordFailedLogin(ctx, user.ID, s.security.MaxFailedLoginAttempts, s.security.LockoutDuration)
	if err != nil {
		log.Printf("⚠️ Failed to record failed login for %s: %v", user.ID, err)
		return appErrors.ErrInvalidCredentials
	}
	if attempts >= s.security.MaxFailedLoginAttempts {
		log.Printf("🚨 Account %s locked after %d failed logins (last from %s)", user.Username, attempts, ip)
		return lockedError(s.now().Add(s.security.LockoutDuration))
	}
	log.Printf("🔐 Login failed for %s from %s (%d/%d)", user.Username, ip, attempts, s.security.MaxFailedLoginAttempts)
	return appErrors.ErrInvalidCredentials
}

func lockedError(until time.Time) error {
	return appErrors.ErrAccountLocked.WithMessage(
		"account is temporarily locked due to failed login attempts until " + until.UTC().Format(time.RFC3339))
}

func (s *service) accessTTL(rememberMe bool) time.Duration {
	if rememberMe && s.security.RememberMeTTL > 0 {
		return s.security.RememberMeTTL
	}
	return s.security.AccessTokenTTL
}

// idleTTL is the live-session lifetime; standard sessions also expire after
// SessionTimeout without activity.
func (s *service) idleTTL(rememberMe bool, exp time.Time) time.Duration {
	ttl := exp.Sub(s.now())
	if !rememberMe && s.security.SessionTimeout > 0 && s.security.SessionTimeout < ttl {
		ttl = s.security.SessionTimeout
	}
	return ttl
}

func (s *service) issue(ctx context.Context, user *models.User, rememberMe bool, client ClientInfo) (*LoginResult, error) {
	pair, err := s.tokens.Generate(user, s.newID(), s.newID(), s.accessTTL(rememberMe), rememberMe)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}

	now := s.now()
	session := &models.UserSession{
		UserID:       user.ID,
		SessionToken: pair.AccessJTI,
		RefreshToken: pair.RefreshJTI,
		IPAddress:    client.IP,
		UserAgent:    client.UserAgent,
		ExpiresAt:    pair.RefreshExpiresAt,
		LastActivity: now,
		IsActive:     true,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if s.live != nil {
		uid := user.ID.String()
		if err := s.live.Save(ctx, pair.AccessJTI, uid, s.idleTTL(rememberMe, pair.ExpiresAt)); err != nil {
			log.Printf("⚠️ Failed to cache session %s: %v", pair.AccessJTI, err)
		}
		if err := s.live.Save(ctx, pair.RefreshJTI, uid, pair.RefreshExpiresAt.Sub(now)); err != nil {
			log.Printf("⚠️ Failed to cache refresh session %s: %v", pair.RefreshJTI, err)
		}
	}

	return &LoginResult{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(pair.ExpiresAt.Sub(now).Seconds()),
		ExpiresAt:    pair.ExpiresAt,
		Permissions:  models.GetDefaultPermissions(user.Role),
	}, nil
}

func (s *service) parse(token, kind string) (*models.UserClaims, error) {
	claims, err := s.tokens.Parse(strings.TrimSpace(strings.TrimPrefix(token, "Bearer ")))
	if err != nil {
		if errors.Is(err, ErrExpired) {
			return nil, appErrors.ErrTokenExpired
		}
		return nil, appErrors.ErrTokenInvalid
	}
	if claims.TokenType != kind {
		return nil, appErrors.ErrTokenInvalid.WithMessage(ErrWrongTokenType.Error())
	}
	return claims, nil
}

// alive checks the live store first and falls back to the session log when
// Redis is absent or failing.
func (s *service) alive(ctx context.Context, jti string) (bool, error) {
	if s.live != nil {
		ok, err := s.live.Exists(ctx, jti)
		if err == nil {
			return ok, nil
		}
		log.Printf("⚠️ Session cache unavailable, checking database: %v", err)
	}

	session, err := s.sessions.GetByToken(ctx, jti)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	now := s.now()
	if !session.IsActive || now.After(session.ExpiresAt) {
		return false, nil
	}
	if s.live == nil && s.security.SessionTimeout > 0 && session.SessionToken == jti &&
		now.Sub(session.LastActivity) > s.security.SessionTimeout {
		return false, nil
	}
	return true, nil
}

func (s *service) ValidateToken(ctx context.Context, token string) (*models.UserClaims, error) {
	claims, err := s.parse(token, models.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	ok, err := s.alive(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !ok {
		return nil, appErrors.ErrSessionRevoked
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, appErrors.ErrTokenInvalid
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, appErrors.ErrTokenInvalid
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, appErrors.ErrAccountDisabled
	}

	// Permissions follow the current role, not the role at issue time.
	claims.Role = user.Role
	claims.Permissions = models.GetDefaultPermissions(user.Role)
	s.touch(ctx, claims)
	return claims, nil
}

func (s *service) touch(ctx context.Context, claims *models.UserClaims) {
	if s.live != nil {
		if claims.RememberMe {
			return
		}
		ttl := s.security.SessionTimeout
		if claims.ExpiresAt != nil {
			ttl = s.idleTTL(false, claims.ExpiresAt.Time)
		}
		if ttl <= 0 {
			return
		}
		if err := s.live.Touch(ctx, claims.ID, ttl); err != nil {
			log.Printf("⚠️ Failed to extend session %s: %v", claims.ID, err)
		}
		return
	}
	if err := s.sessions.Touch(ctx, claims.ID, s.now()); err != nil {
		log.Printf("⚠️ Failed to touch session %s: %v", claims.ID, err)
	}
}

func (s *service) Verify(ctx context.Context, claims *models.UserClaims) (*models.User, error) {
	if claims == nil {
		return nil, appErrors.ErrTokenInvalid
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, appErrors.ErrTokenInvalid
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, appErrors.ErrTokenInvalid
		}
		return nil, err
	}
	return user, nil
}

// Refresh rotates the session: the old pair is revoked and a new one issued.
func (s *service) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*LoginResult, error) {
	claims, err := s.parse(refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	ok, err := s.alive(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !ok {
		return nil, appErrors.ErrSessionRevoked
	}

	user, err := s.Verify(ctx, claims)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, appErrors.ErrAccountDisabled
	}

	s.revoke(ctx, claims.ID)
	return s.issue(ctx, user, claims.RememberMe, client)
}

func (s *service) Logout(ctx context.Context, claims *models.UserClaims) error {
	if claims == nil {
		return appErrors.ErrTokenInvalid
	}
	s.revoke(ctx, claims.ID)
	log.Printf("🔐 User %s logged out", claims.Username)
	return nil
}

// revoke ends the session identified by either of its jtis.
func (s *service) revoke(ctx context.Context, jti string) {
	session, err := s.sessions.GetByToken(ctx, jti)
	if err != nil && !errors.Is(err, repositories.ErrSessionNotFound) {
		log.Printf("⚠️ Failed to load session %s: %v", jti, err)
	}

	keys := []string{jti}
	if session != nil {
		keys = []string{session.SessionToken, session.RefreshToken}
	}
	if s.live != nil {
		for _, k := range keys {
			if k == "" {
				continue
			}
			if err := s.live.Delete(ctx, k); err != nil {
				log.Printf("⚠️ Failed to drop cached session %s: %v", k, err)
			}
		}
	}
	if err := s.sessions.Deactivate(ctx, jti, s.now()); err != nil && !errors.Is(err, repositories.ErrSessionNotFound) {
		log.Printf("⚠️ Failed to deactivate session %s: %v", jti, err)
	}
}

func (s *service) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return appErrors.ErrValidation.WithMessage("current_password and new_password are required")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return appErrors.ErrNotFound.WithMessage("user not found")
		}
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return appErrors.ErrInvalidCredentials.WithMessage("current password is incorrect")
	}
	if req.CurrentPassword == req.NewPassword {
		return appErrors.ErrWeakPassword.WithMessage(ErrSamePassword.Error())
	}
	if err := validation.ValidatePassword(req.NewPassword, s.security.Password); err != nil {
		return err
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	log.Printf("🔐 Password changed for %s", user.Username)
	return nil
}

func (s *service) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	v := validation.New()
	v.Username("username", req.Username)
	v.Email("email", req.Email)
	v.Check(models.ValidRole(req.Role), "role", ErrInvalidRole.Error())
	if req.Phone != "" {
		v.Phone("phone", req.Phone)
	}
	v.MaxLength("firstName", req.FirstName, 50)
	v.MaxLength("lastName", req.LastName, 50)
	if err := v.Err(appErrors.ErrValidation); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(req.Password, s.security.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.ErrEmailInUse
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.users.GetByUsername(ctx, req.Username); err == nil {
		return nil, appErrors.ErrConflict.WithMessage(ErrUsernameInUse.Error())
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         req.Role,
		IsActive:     true,
		IsVerified:   req.Verified,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateID) {
			return nil, appErrors.ErrEmailInUse
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	log.Printf("✅ User %s created with role %s", user.Username, user.Role)
	return user, nil
}

func (s *service) ListUsers(ctx context.Context, offset, limit int) ([]*models.User, int64, error) {
	return s.users.List(ctx, offset, limit)
}

func (s *service) UpdateUser(ctx context.Context, actor *models.UserClaims, id uuid.UUID, req UpdateUserRequest) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, appErrors.ErrNotFound.WithMessage("user not found")
		}
		return nil, err
	}

	self := actor != nil && actor.UserID == id.String()
	if req.Role != nil {
		if !models.ValidRole(*req.Role) {
			return nil, appErrors.ErrValidation.WithMessage(ErrInvalidRole.Error())
		}
		if self && *req.Role != models.RoleAdmin {
			return nil, appErrors.ErrForbidden.WithMessage(ErrSelfDemotion.Error())
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		if self && !*req.IsActive {
			return nil, appErrors.ErrForbidden.WithMessage(ErrSelfDemotion.Error())
		}
		user.IsActive = *req.IsActive
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Unlock {
		user.FailedLoginAttempts = 0
		user.AccountLockoutUntil = nil
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if !user.IsActive {
		if err := s.sessions.DeactivateAllForUser(ctx, user.ID, s.now()); err != nil {
			log.Printf("⚠️ Failed to end sessions for %s: %v", user.ID, err)
		}
	}
	log.Printf("✅ User %s updated (role=%s active=%t)", user.Username, user.Role, user.IsActive)
	return user, nil
}
