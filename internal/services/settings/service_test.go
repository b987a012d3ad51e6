package settings

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"securecart/internal/config"
	appErrors "securecart/internal/errors"
	"securecart/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Notifications(ctx context.Context) (*models.NotificationSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NotificationSettings), args.Error(1)
}

func (m *MockSettingsRepository) SaveNotifications(ctx context.Context, s *models.NotificationSettings) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSettingsRepository) Model(ctx context.Context) (*models.ModelSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ModelSettings), args.Error(1)
}

func (m *MockSettingsRepository) SaveModel(ctx context.Context, s *models.ModelSettings) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSettingsRepository) API(ctx context.Context) (*models.ApiSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ApiSettings), args.Error(1)
}

func (m *MockSettingsRepository) SaveAPI(ctx context.Context, s *models.ApiSettings) error {
	return m.Called(ctx, s).Error(0)
}

type fakeDetector struct {
	threshold float64
}

func (d *fakeDetector) Threshold() float64 { return d.threshold }

func (d *fakeDetector) UpdateThreshold(t float64) error {
	if t < 0 || t > 1 {
		return errors.New("out of range")
	}
	d.threshold = t
	return nil
}

var fixedNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func newTestService(repo *MockSettingsRepository, det *fakeDetector) *service {
	ml := config.MLConfig{
		FraudThreshold:      0.7,
		HighRiskThreshold:   0.7,
		MediumRiskThreshold: 0.4,
		AutoDeclineScore:    90,
		RetrainIntervalDays: 7,
	}
	var d Detector
	if det != nil {
		d = det
	}
	s := NewService(repo, d, ml).(*service)
	s.now = func() time.Time { return fixedNow }
	return s
}

func validModel() *models.ModelSettings {
	return &models.ModelSettings{
		FraudThreshold:       0.65,
		HighRiskThreshold:    0.8,
		MediumRiskThreshold:  0.5,
		AutoDeclineScore:     85,
		RetrainFrequencyDays: 14,
	}
}

func TestNewServicePanicsWithoutRepository(t *testing.T) {
	assert.Panics(t, func() { NewService(nil, nil, config.MLConfig{}) })
}

func TestUpdateNotifications(t *testing.T) {
	ctx := context.Background()

	t.Run("valid settings are saved", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		s := newTestService(repo, nil)
		in := &models.NotificationSettings{
			EmailAlerts:  true,
			AlertEmail:   " alerts@securecart.io ",
			MinRiskScore: 75,
		}
		repo.On("SaveNotifications", ctx, in).Return(nil)

		out, err := s.UpdateNotifications(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, "alerts@securecart.io", out.AlertEmail)
		assert.Equal(t, fixedNow, out.UpdatedAt)
		repo.AssertExpectations(t)
	})

	t.Run("slack without url is rejected", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		s := newTestService(repo, nil)
		_, err := s.UpdateNotifications(ctx, &models.NotificationSettings{SlackAlerts: true, MinRiskScore: 70})
		assert.ErrorIs(t, err, appErrors.ErrInvalidSettings)
		repo.AssertNotCalled(t, "SaveNotifications", mock.Anything, mock.Anything)
	})

	t.Run("nil payload", func(t *testing.T) {
		s := newTestService(new(MockSettingsRepository), nil)
		_, err := s.UpdateNotifications(ctx, nil)
		assert.ErrorIs(t, err, appErrors.ErrInvalidSettings)
	})
}

func TestUpdateModelPushesThreshold(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSettingsRepository)
	det := &fakeDetector{threshold: 0.7}
	s := newTestService(repo, det)

	repo.On("SaveModel", ctx, mock.AnythingOfType("*models.ModelSettings")).Return(nil)

	out, err := s.UpdateModel(ctx, validModel())
	require.NoError(t, err)
	assert.Equal(t, 0.65, out.FraudThreshold)
	assert.Equal(t, 0.65, det.threshold)

	cached, err := s.Model(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.8, cached.HighRiskThreshold)
	repo.AssertNotCalled(t, "Model", mock.Anything)
}

func TestUpdateModelRejectsInvertedThresholds(t *testing.T) {
	repo := new(MockSettingsRepository)
	s := newTestService(repo, &fakeDetector{threshold: 0.7})

	in := validModel()
	in.MediumRiskThreshold = 0.9
	_, err := s.UpdateModel(context.Background(), in)
	require.ErrorIs(t, err, appErrors.ErrInvalidSettings)
	assert.Contains(t, err.Error(), "mediumRiskThreshold")
}

func TestModelFallsBackToConfig(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSettingsRepository)
	repo.On("Model", ctx).Return(nil, errors.New("record not found")).Once()
	s := newTestService(repo, nil)

	m, err := s.Model(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.7, m.FraudThreshold)
	assert.Equal(t, 90, m.AutoDeclineScore)

	m.FraudThreshold = 0.1
	again, err := s.Model(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.7, again.FraudThreshold, "callers get a copy")
	repo.AssertExpectations(t)
}

func TestFraudThreshold(t *testing.T) {
	ctx := context.Background()

	t.Run("set persists and applies", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		det := &fakeDetector{threshold: 0.7}
		s := newTestService(repo, det)
		repo.On("Model", ctx).Return(validModel(), nil)
		repo.On("SaveModel", ctx, mock.MatchedBy(func(m *models.ModelSettings) bool {
			return m.FraudThreshold == 0.85
		})).Return(nil)

		require.NoError(t, s.SetFraudThreshold(ctx, 0.85))
		assert.Equal(t, 0.85, s.FraudThreshold())
		repo.AssertExpectations(t)
	})

	t.Run("out of range", func(t *testing.T) {
		s := newTestService(new(MockSettingsRepository), &fakeDetector{threshold: 0.7})
		assert.ErrorIs(t, s.SetFraudThreshold(ctx, 1.5), appErrors.ErrInvalidThreshold)
		assert.ErrorIs(t, s.ApplyFraudThreshold(-0.2), appErrors.ErrInvalidThreshold)
	})

	t.Run("apply does not persist", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		s := newTestService(repo, nil)
		require.NoError(t, s.ApplyFraudThreshold(0.55))
		assert.Equal(t, 0.7, s.FraudThreshold(), "no detector and nothing cached keeps the configured value")
		repo.AssertNotCalled(t, "SaveModel", mock.Anything, mock.Anything)
	})
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSettingsRepository)
	det := &fakeDetector{threshold: 0.5}
	repo.On("Model", ctx).Return(validModel(), nil)

	s := newTestService(repo, det)
	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, 0.65, det.threshold)
}

func TestUpdateAPIKeepsKeyFields(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSettingsRepository)
	s := newTestService(repo, nil)

	stored := &models.ApiSettings{
		APIKeyPrefix:       "sc_abcdefgh",
		APIKeyHash:         "$2a$10$hash",
		RateLimitPerMinute: 100,
		RateLimitPerHour:   1000,
		WebhookSecret:      "old-secret",
	}
	repo.On("API", ctx).Return(stored, nil)
	repo.On("SaveAPI", ctx, stored).Return(nil)

	out, err := s.UpdateAPI(ctx, APIUpdate{
		RateLimitPerMinute: 50,
		RateLimitPerHour:   500,
		WebhookURL:         "https://hooks.merchant.test/fraud",
		AllowedOrigins:     []string{"https://dashboard.securecart.io"},
		IPWhitelist:        []string{"10.0.0.0/8"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sc_abcdefgh", out.APIKeyPrefix)
	assert.Equal(t, "$2a$10$hash", out.APIKeyHash)
	assert.Equal(t, "old-secret", out.WebhookSecret)
	assert.Equal(t, 50, out.RateLimitPerMinute)

	_, err = s.UpdateAPI(ctx, APIUpdate{RateLimitPerMinute: 50, RateLimitPerHour: 10})
	assert.ErrorIs(t, err, appErrors.ErrInvalidSettings)
}

func TestRotateAndVerifyAPIKey(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSettingsRepository)
	s := newTestService(repo, nil)

	stored := &models.ApiSettings{RateLimitPerMinute: 100, RateLimitPerHour: 1000}
	repo.On("API", ctx).Return(stored, nil)
	repo.On("SaveAPI", ctx, stored).Return(nil)

	issued, err := s.RotateAPIKey(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.APIKey, "sc_"))
	assert.Equal(t, issued.APIKey[:apiKeyPrefixLen], stored.APIKeyPrefix)
	assert.NotContains(t, stored.APIKeyHash, issued.APIKey)
	assert.Equal(t, fixedNow, *stored.APIKeyCreatedAt)

	assert.NoError(t, s.VerifyAPIKey(ctx, issued.APIKey))

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"wrong scheme", "pk_" + strings.Repeat("a", 48)},
		{"wrong prefix", "sc_" + strings.Repeat("f", 48)},
		{"wrong secret", issued.APIKey[:len(issued.APIKey)-1] + "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.VerifyAPIKey(ctx, tt.key), appErrors.ErrInvalidAPIKey)
		})
	}
}

func TestVerifyAPIKeyWithoutIssuedKey(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSettingsRepository)
	repo.On("API", ctx).Return(&models.ApiSettings{}, nil)
	s := newTestService(repo, nil)

	err := s.VerifyAPIKey(ctx, "sc_"+strings.Repeat("a", 48))
	require.ErrorIs(t, err, appErrors.ErrInvalidAPIKey)
	assert.Contains(t, err.Error(), "no API key")
}
