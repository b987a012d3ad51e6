package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"securecart/internal/config"
	appErrors "securecart/internal/errors"
	"securecart/internal/mocks"
	"securecart/internal/models"
	"securecart/internal/repositories"
	"securecart/internal/services/auth"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Correct-Horse-42"

var testSecurity = config.SecurityConfig{
	AccessTokenTTL:         24 * time.Hour,
	RememberMeTTL:          30 * 24 * time.Hour,
	RefreshTokenTTL:        30 * 24 * time.Hour,
	SessionTimeout:         time.Hour,
	MaxFailedLoginAttempts: 5,
	LockoutDuration:        15 * time.Minute,
	Password: config.PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumbers:   true,
	},
}

type fakeLive struct {
	mu      sync.Mutex
	keys    map[string]time.Duration
	touched []string
	err     error
}

func newFakeLive() *fakeLive {
	return &fakeLive{keys: map[string]time.Duration{}}
}

func (f *fakeLive) Save(_ context.Context, jti, _ string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[jti] = ttl
	return nil
}

func (f *fakeLive) Exists(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.keys[jti]
	return ok, nil
}

func (f *fakeLive) Delete(_ context.Context, jti string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, jti)
	return nil
}

func (f *fakeLive) Touch(_ context.Context, jti string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, jti)
	return nil
}

type fakeSessions struct {
	mu          sync.Mutex
	rows        []*models.UserSession
	deactivated []uuid.UUID
}

func (f *fakeSessions) Create(_ context.Context, s *models.UserSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, s)
	return nil
}

func (f *fakeSessions) GetByToken(_ context.Context, jti string) (*models.UserSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.rows {
		if s.SessionToken == jti || s.RefreshToken == jti {
			return s, nil
		}
	}
	return nil, repositories.ErrSessionNotFound
}

func (f *fakeSessions) Touch(_ context.Context, jti string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.rows {
		if s.SessionToken == jti {
			s.LastActivity = at
		}
	}
	return nil
}

func (f *fakeSessions) Deactivate(_ context.Context, jti string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.rows {
		if s.SessionToken == jti || s.RefreshToken == jti {
			s.IsActive = false
			s.LogoutAt = &at
			return nil
		}
	}
	return repositories.ErrSessionNotFound
}

func (f *fakeSessions) DeactivateAllForUser(_ context.Context, userID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivated = append(f.deactivated, userID)
	for _, s := range f.rows {
		if s.UserID == userID {
			s.IsActive = false
		}
	}
	return nil
}

type fixture struct {
	users    *mocks.MockUserStore
	tokens   *mocks.MockTokenGenerator
	live     *fakeLive
	sessions *fakeSessions
	svc      auth.Service
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		users:    mocks.NewMockUserStore(ctrl),
		tokens:   mocks.NewMockTokenGenerator(ctrl),
		live:     newFakeLive(),
		sessions: &fakeSessions{},
	}
	f.svc = auth.NewService(f.users, f.tokens, f.live, f.sessions, testSecurity)
	return f
}

func testUser(t *testing.T) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           uuid.New(),
		Username:     "jordan",
		Email:        "jordan@securecart.io",
		PasswordHash: string(hash),
		Role:         models.RoleAnalyst,
		IsActive:     true,
	}
}

func pairFor(access, refresh string, ttl time.Duration) *auth.TokenPair {
	now := time.Now()
	return &auth.TokenPair{
		AccessToken:      "access." + access,
		RefreshToken:     "refresh." + refresh,
		AccessJTI:        access,
		RefreshJTI:       refresh,
		ExpiresAt:        now.Add(ttl),
		RefreshExpiresAt: now.Add(30 * 24 * time.Hour),
	}
}

func expectIssue(f *fixture, user *models.User, ttl time.Duration, remember bool) {
	f.tokens.EXPECT().Generate(user, gomock.Any(), gomock.Any(), ttl, remember).
		DoAndReturn(func(_ *models.User, access, refresh string, ttl time.Duration, _ bool) (*auth.TokenPair, error) {
			return pairFor(access, refresh, ttl), nil
		})
}

func TestNewServicePanics(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStore(ctrl)
	tokens := mocks.NewMockTokenGenerator(ctrl)

	assert.Panics(t, func() { auth.NewService(nil, tokens, nil, &fakeSessions{}, testSecurity) })
	assert.Panics(t, func() { auth.NewService(users, nil, nil, &fakeSessions{}, testSecurity) })
	assert.Panics(t, func() { auth.NewService(users, tokens, nil, nil, testSecurity) })
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	client := auth.ClientInfo{IP: "203.0.113.7", UserAgent: "test"}

	t.Run("success creates a session", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		f.users.EXPECT().GetByEmail(ctx, "jordan@securecart.io").Return(user, nil)
		f.users.EXPECT().RecordSuccessfulLogin(ctx, user.ID, client.IP).Return(nil)
		expectIssue(f, user, testSecurity.AccessTokenTTL, false)

		res, err := f.svc.Login(ctx, auth.LoginRequest{Email: " Jordan@SecureCart.io ", Password: testPassword, Client: client})
		require.NoError(t, err)
		assert.Equal(t, "Bearer", res.TokenType)
		assert.InDelta(t, (24 * time.Hour).Seconds(), float64(res.ExpiresIn), 2)
		assert.Contains(t, res.Permissions, models.PermissionFraudReview)

		require.Len(t, f.sessions.rows, 1)
		row := f.sessions.rows[0]
		assert.True(t, row.IsActive)
		assert.Equal(t, client.IP, row.IPAddress)
		assert.Equal(t, testSecurity.SessionTimeout, f.live.keys[row.SessionToken], "standard sessions idle out")
		assert.Contains(t, f.live.keys, row.RefreshToken)
	})

	t.Run("remember me uses the long ttl", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		f.users.EXPECT().GetByEmail(ctx, user.Email).Return(user, nil)
		f.users.EXPECT().RecordSuccessfulLogin(ctx, user.ID, client.IP).Return(nil)
		expectIssue(f, user, testSecurity.RememberMeTTL, true)

		_, err := f.svc.Login(ctx, auth.LoginRequest{Email: user.Email, Password: testPassword, RememberMe: true, Client: client})
		require.NoError(t, err)
		ttl := f.live.keys[f.sessions.rows[0].SessionToken]
		assert.Greater(t, ttl, 29*24*time.Hour)
	})

	t.Run("username login", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		f.users.EXPECT().GetByUsername(ctx, "jordan").Return(user, nil)
		f.users.EXPECT().RecordSuccessfulLogin(ctx, user.ID, "").Return(nil)
		expectIssue(f, user, testSecurity.AccessTokenTTL, false)

		_, err := f.svc.Login(ctx, auth.LoginRequest{Email: "jordan", Password: testPassword})
		assert.NoError(t, err)
	})

	t.Run("unknown account", func(t *testing.T) {
		f := newFixture(t)
		f.users.EXPECT().GetByEmail(ctx, "ghost@securecart.io").Return(nil, repositories.ErrUserNotFound)

		_, err := f.svc.Login(ctx, auth.LoginRequest{Email: "ghost@securecart.io", Password: "whatever"})
		assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Login(ctx, auth.LoginRequest{Email: "jordan@securecart.io"})
		assert.ErrorIs(t, err, appErrors.ErrValidation)
	})

	t.Run("disabled account", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		user.IsActive = false
		f.users.EXPECT().GetByEmail(ctx, user.Email).Return(user, nil)

		_, err := f.svc.Login(ctx, auth.LoginRequest{Email: user.Email, Password: testPassword})
		assert.ErrorIs(t, err, appErrors.ErrAccountDisabled)
	})

	t.Run("locked account is refused before the password check", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		until := time.Now().Add(10 * time.Minute)
		user.AccountLockoutUntil = &until
		f.users.EXPECT().GetByEmail(ctx, user.Email).Return(user, nil)

		_, err := f.svc.Login(ctx, auth.LoginRequest{Email: user.Email, Password: testPassword})
		assert.ErrorIs(t, err, appErrors.ErrAccountLocked)
	})

	t.Run("wrong password counts a failure", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		f.users.EXPECT().GetByEmail(ctx, user.Email).Return(user, nil)
		f.users.EXPECT().RecordFailedLogin(ctx, user.ID, 5, 15*time.Minute).Return(2, nil)

		_, err := f.svc.Login(ctx, auth.LoginRequest{Email: user.Email, Password: "wrong"})
		assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
		assert.Empty(t, f.sessions.rows)
	})

	t.Run("last allowed failure locks the account", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		f.users.EXPECT().GetByEmail(ctx, user.Email).Return(user, nil)
		f.users.EXPECT().RecordFailedLogin(ctx, user.ID, 5, 15*time.Minute).Return(5, nil)

		_, err := f.svc.Login(ctx, auth.LoginRequest{Email: user.Email, Password: "wrong"})
		require.ErrorIs(t, err, appErrors.ErrAccountLocked)
		assert.Contains(t, err.Error(), "until")
	})
}

func accessClaims(user *models.User, jti string) *models.UserClaims {
	c := &models.UserClaims{
		UserID:    user.ID.String(),
		Username:  user.Username,
		Role:      models.RoleUser,
		TokenType: models.TokenTypeAccess,
	}
	c.ID = jti
	return c
}

func TestValidateToken(t *testing.T) {
	ctx := context.Background()

	t.Run("live session uses the current role", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		f.live.keys["jti-1"] = time.Hour
		f.tokens.EXPECT().Parse("tok").Return(accessClaims(user, "jti-1"), nil)
		f.users.EXPECT().GetByID(ctx, user.ID).Return(user, nil)

		claims, err := f.svc.ValidateToken(ctx, "Bearer tok")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAnalyst, claims.Role)
		assert.True(t, claims.HasPermission(models.PermissionFraudReview))
		assert.Equal(t, []string{"jti-1"}, f.live.touched)
	})

	t.Run("revoked session", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		f.tokens.EXPECT().Parse("tok").Return(accessClaims(user, "gone"), nil)

		_, err := f.svc.ValidateToken(ctx, "tok")
		assert.ErrorIs(t, err, appErrors.ErrSessionRevoked)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		f := newFixture(t)
		c := accessClaims(testUser(t), "jti")
		c.TokenType = models.TokenTypeRefresh
		f.tokens.EXPECT().Parse("tok").Return(c, nil)

		_, err := f.svc.ValidateToken(ctx, "tok")
		assert.ErrorIs(t, err, appErrors.ErrTokenInvalid)
	})

	t.Run("expired and malformed", func(t *testing.T) {
		f := newFixture(t)
		f.tokens.EXPECT().Parse("old").Return(nil, auth.ErrExpired)
		f.tokens.EXPECT().Parse("junk").Return(nil, auth.ErrMalformed)

		_, err := f.svc.ValidateToken(ctx, "old")
		assert.ErrorIs(t, err, appErrors.ErrTokenExpired)
		_, err = f.svc.ValidateToken(ctx, "junk")
		assert.ErrorIs(t, err, appErrors.ErrTokenInvalid)
	})

	t.Run("disabled user", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		user.IsActive = false
		f.live.keys["jti"] = time.Hour
		f.tokens.EXPECT().Parse("tok").Return(accessClaims(user, "jti"), nil)
		f.users.EXPECT().GetByID(ctx, user.ID).Return(user, nil)

		_, err := f.svc.ValidateToken(ctx, "tok")
		assert.ErrorIs(t, err, appErrors.ErrAccountDisabled)
	})

	t.Run("falls back to the session log when redis fails", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		f.live.err = errors.New("connection refused")
		f.sessions.rows = []*models.UserSession{{
			UserID: user.ID, SessionToken: "jti", RefreshToken: "r",
			ExpiresAt: time.Now().Add(time.Hour), LastActivity: time.Now(), IsActive: true,
		}}
		f.tokens.EXPECT().Parse("tok").Return(accessClaims(user, "jti"), nil)
		f.users.EXPECT().GetByID(ctx, user.ID).Return(user, nil)

		_, err := f.svc.ValidateToken(ctx, "tok")
		assert.NoError(t, err)
	})
}

func TestValidateTokenWithoutRedis(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStore(ctrl)
	tokens := mocks.NewMockTokenGenerator(ctrl)
	sessions := &fakeSessions{}
	svc := auth.NewService(users, tokens, nil, sessions, testSecurity)

	user := testUser(t)
	sessions.rows = []*models.UserSession{
		{UserID: user.ID, SessionToken: "fresh", ExpiresAt: time.Now().Add(time.Hour), LastActivity: time.Now(), IsActive: true},
		{UserID: user.ID, SessionToken: "idle", ExpiresAt: time.Now().Add(time.Hour), LastActivity: time.Now().Add(-2 * time.Hour), IsActive: true},
	}

	tokens.EXPECT().Parse("fresh").Return(accessClaims(user, "fresh"), nil)
	users.EXPECT().GetByID(ctx, user.ID).Return(user, nil)
	_, err := svc.ValidateToken(ctx, "fresh")
	require.NoError(t, err)

	tokens.EXPECT().Parse("idle").Return(accessClaims(user, "idle"), nil)
	_, err = svc.ValidateToken(ctx, "idle")
	assert.ErrorIs(t, err, appErrors.ErrSessionRevoked)
}

func TestLogoutAndRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testUser(t)

	f.users.EXPECT().GetByEmail(ctx, user.Email).Return(user, nil)
	f.users.EXPECT().RecordSuccessfulLogin(ctx, user.ID, "").Return(nil)
	expectIssue(f, user, testSecurity.AccessTokenTTL, false)
	_, err := f.svc.Login(ctx, auth.LoginRequest{Email: user.Email, Password: testPassword})
	require.NoError(t, err)
	first := f.sessions.rows[0]

	refreshClaims := accessClaims(user, first.RefreshToken)
	refreshClaims.TokenType = models.TokenTypeRefresh
	f.tokens.EXPECT().Parse("refresh-token").Return(refreshClaims, nil)
	f.users.EXPECT().GetByID(ctx, user.ID).Return(user, nil)
	expectIssue(f, user, testSecurity.AccessTokenTTL, false)

	res, err := f.svc.Refresh(ctx, "refresh-token", auth.ClientInfo{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.False(t, first.IsActive, "refresh rotates the session")
	assert.NotContains(t, f.live.keys, first.SessionToken)
	assert.NotContains(t, f.live.keys, first.RefreshToken)

	second := f.sessions.rows[1]
	require.NoError(t, f.svc.Logout(ctx, accessClaims(user, second.SessionToken)))
	assert.False(t, second.IsActive)
	assert.NotNil(t, second.LogoutAt)
	assert.Empty(t, f.live.keys)

	f.tokens.EXPECT().Parse("refresh-token").Return(refreshClaims, nil)
	_, err = f.svc.Refresh(ctx, "refresh-token", auth.ClientInfo{})
	assert.ErrorIs(t, err, appErrors.ErrSessionRevoked, "a rotated refresh token cannot be reused")
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		current string
		next    string
		wantErr error
	}{
		{"wrong current password", "nope", "Another-Pass-9", appErrors.ErrInvalidCredentials},
		{"same password", testPassword, testPassword, appErrors.ErrWeakPassword},
		{"weak password", testPassword, "short", appErrors.ErrWeakPassword},
		{"no digit", testPassword, "NoDigitsHere", appErrors.ErrWeakPassword},
		{"missing fields", "", "", appErrors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			user := testUser(t)
			f.users.EXPECT().GetByID(ctx, user.ID).Return(user, nil).AnyTimes()

			err := f.svc.ChangePassword(ctx, user.ID, auth.ChangePasswordRequest{CurrentPassword: tt.current, NewPassword: tt.next})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("success stores a new hash", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		f.users.EXPECT().GetByID(ctx, user.ID).Return(user, nil)
		f.users.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Another-Pass-9")))
			return nil
		})

		err := f.svc.ChangePassword(ctx, user.ID, auth.ChangePasswordRequest{CurrentPassword: testPassword, NewPassword: "Another-Pass-9"})
		assert.NoError(t, err)
	})
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	req := auth.CreateUserRequest{
		Username: "casey",
		Email:    "Casey@SecureCart.io",
		Password: "Strong-Pass-1",
		Role:     models.RoleAnalyst,
	}

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		f.users.EXPECT().GetByEmail(ctx, "casey@securecart.io").Return(nil, repositories.ErrUserNotFound)
		f.users.EXPECT().GetByUsername(ctx, "casey").Return(nil, repositories.ErrUserNotFound)
		f.users.EXPECT().Create(ctx, gomock.Any()).Return(nil)

		user, err := f.svc.CreateUser(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "casey@securecart.io", user.Email)
		assert.True(t, user.IsActive)
		assert.NotEqual(t, req.Password, user.PasswordHash)
	})

	t.Run("email in use", func(t *testing.T) {
		f := newFixture(t)
		f.users.EXPECT().GetByEmail(ctx, "casey@securecart.io").Return(&models.User{}, nil)

		_, err := f.svc.CreateUser(ctx, req)
		assert.ErrorIs(t, err, appErrors.ErrEmailInUse)
	})

	t.Run("invalid role", func(t *testing.T) {
		f := newFixture(t)
		bad := req
		bad.Role = models.RoleService
		_, err := f.svc.CreateUser(ctx, bad)
		assert.ErrorIs(t, err, appErrors.ErrValidation)
	})
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	admin := &models.UserClaims{UserID: uuid.NewString(), Role: models.RoleAdmin}
	role := models.RoleAdmin
	inactive := false

	t.Run("deactivation ends sessions", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		f.users.EXPECT().GetByID(ctx, user.ID).Return(user, nil)
		f.users.EXPECT().Update(ctx, user).Return(nil)

		out, err := f.svc.UpdateUser(ctx, admin, user.ID, auth.UpdateUserRequest{Role: &role, IsActive: &inactive})
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, out.Role)
		assert.False(t, out.IsActive)
		assert.Equal(t, []uuid.UUID{user.ID}, f.sessions.deactivated)
	})

	t.Run("admins cannot disable themselves", func(t *testing.T) {
		f := newFixture(t)
		user := testUser(t)
		self := &models.UserClaims{UserID: user.ID.String(), Role: models.RoleAdmin}
		f.users.EXPECT().GetByID(ctx, user.ID).Return(user, nil)

		_, err := f.svc.UpdateUser(ctx, self, user.ID, auth.UpdateUserRequest{IsActive: &inactive})
		assert.ErrorIs(t, err, appErrors.ErrForbidden)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		id := uuid.New()
		f.users.EXPECT().GetByID(ctx, id).Return(nil, repositories.ErrUserNotFound)

		_, err := f.svc.UpdateUser(ctx, admin, id, auth.UpdateUserRequest{})
		assert.ErrorIs(t, err, appErrors.ErrNotFound)
	})
}
