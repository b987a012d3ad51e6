// Package settings manages the global notification, model and API settings.
package settings

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"securecart/internal/config"
	appErrors "securecart/internal/errors"
	"securecart/internal/models"
	"securecart/internal/repositories"
	"securecart/internal/utils"
	"securecart/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	apiKeyScheme    = "sc_"
	apiKeyBytes     = 24
	apiKeyPrefixLen = 11
)

// Detector receives the fraud threshold. *detection.Detector implements it.
type Detector interface {
	Threshold() float64
	UpdateThreshold(t float64) error
}

// APIUpdate is the writable part of ApiSettings. The key fields are only
// changed by RotateAPIKey.
type APIUpdate struct {
	RateLimitPerMinute int      `json:"rateLimitPerMinute"`
	RateLimitPerHour   int      `json:"rateLimitPerHour"`
	WebhookURL         string   `json:"webhookUrl"`
	WebhookSecret      *string  `json:"webhookSecret,omitempty"`
	AllowedOrigins     []string `json:"allowedOrigins"`
	IPWhitelist        []string `json:"ipWhitelist"`
}

// IssuedKey is returned once when a key is rotated.
type IssuedKey struct {
	APIKey    string    `json:"apiKey"`
	Prefix    string    `json:"apiKeyPrefix"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service interface {
	Notifications(ctx context.Context) (*models.NotificationSettings, error)
	UpdateNotifications(ctx context.Context, in *models.NotificationSettings) (*models.NotificationSettings, error)
	Model(ctx context.Context) (*models.ModelSettings, error)
	UpdateModel(ctx context.Context, in *models.ModelSettings) (*models.ModelSettings, error)
	API(ctx context.Context) (*models.ApiSettings, error)
	UpdateAPI(ctx context.Context, in APIUpdate) (*models.ApiSettings, error)
	RotateAPIKey(ctx context.Context) (*IssuedKey, error)
	VerifyAPIKey(ctx context.Context, key string) error

	// Sync pushes the stored model settings into the detector.
	Sync(ctx context.Context) error

	FraudThreshold() float64
	SetFraudThreshold(ctx context.Context, t float64) error
	ApplyFraudThreshold(t float64) error
}

type service struct {
	repo     repositories.SettingsRepository
	detector Detector
	ml       config.MLConfig
	now      func() time.Time

	mu    sync.RWMutex
	model *models.ModelSettings
}

// NewService panics without a repository. detector may be nil when fraud
// detection is disabled.
func NewService(repo repositories.SettingsRepository, detector Detector, ml config.MLConfig) Service {
	if repo == nil {
		panic("settings repository is required")
	}
	return &service{
		repo:     repo,
		detector: detector,
		ml:       ml,
		now:      time.Now,
	}
}

func (s *service) Notifications(ctx context.Context) (*models.NotificationSettings, error) {
	n, err := s.repo.Notifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}
	return n, nil
}

func (s *service) UpdateNotifications(ctx context.Context, in *models.NotificationSettings) (*models.NotificationSettings, error) {
	if in == nil {
		return nil, appErrors.ErrInvalidSettings.WithMessage(ErrNilSettings.Error())
	}
	in.AlertEmail = strings.TrimSpace(in.AlertEmail)
	in.SlackWebhookURL = strings.TrimSpace(in.SlackWebhookURL)
	if err := validation.NotificationSettings(in); err != nil {
		return nil, err
	}
	in.UpdatedAt = s.now()
	if err := s.repo.SaveNotifications(ctx, in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}
	log.Printf("⚙️ Notification settings updated (email=%t sms=%t slack=%t webhook=%t min=%d)",
		in.EmailAlerts, in.SMSAlerts, in.SlackAlerts, in.WebhookAlerts, in.MinRiskScore)
	return in, nil
}

// Model returns the cached model settings, loading them on first use. A
// missing row falls back to the configured thresholds.
func (s *service) Model(ctx context.Context) (*models.ModelSettings, error) {
	s.mu.RLock()
	cached := s.model
	s.mu.RUnlock()
	if cached != nil {
		out := *cached
		return &out, nil
	}

	m, err := s.repo.Model(ctx)
	if err != nil {
		log.Printf("⚠️ Model settings unavailable, using configuration: %v", err)
		m = s.fromConfig()
	}
	s.mu.Lock()
	s.model = m
	s.mu.Unlock()
	out := *m
	return &out, nil
}

func (s *service) fromConfig() *models.ModelSettings {
	return &models.ModelSettings{
		ID:                   models.SettingsRowID,
		FraudThreshold:       s.ml.FraudThreshold,
		HighRiskThreshold:    s.ml.HighRiskThreshold,
		MediumRiskThreshold:  s.ml.MediumRiskThreshold,
		AutoDeclineScore:     s.ml.AutoDeclineScore,
		RetrainFrequencyDays: s.ml.RetrainIntervalDays,
		ActiveModelName:      s.ml.ActiveModelName,
		ModelVersion:         s.ml.ModelVersion,
	}
}

func (s *service) UpdateModel(ctx context.Context, in *models.ModelSettings) (*models.ModelSettings, error) {
	if in == nil {
		return nil, appErrors.ErrInvalidSettings.WithMessage(ErrNilSettings.Error())
	}
	if err := validation.ModelSettings(in); err != nil {
		return nil, err
	}
	in.UpdatedAt = s.now()
	if err := s.repo.SaveModel(ctx, in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}
	s.cache(in)
	if err := s.push(in.FraudThreshold); err != nil {
		return nil, err
	}
	log.Printf("⚙️ Model settings updated (threshold=%.2f high=%.2f medium=%.2f decline=%d)",
		in.FraudThreshold, in.HighRiskThreshold, in.MediumRiskThreshold, in.AutoDeclineScore)
	out := *in
	return &out, nil
}

func (s *service) cache(m *models.ModelSettings) {
	c := *m
	s.mu.Lock()
	s.model = &c
	s.mu.Unlock()
}

func (s *service) push(t float64) error {
	if s.detector == nil {
		return nil
	}
	if err := s.detector.UpdateThreshold(t); err != nil {
		return appErrors.ErrInvalidThreshold
	}
	return nil
}

func (s *service) Sync(ctx context.Context) error {
	m, err := s.Model(ctx)
	if err != nil {
		return err
	}
	if m.FraudThreshold == 0 {
		return nil
	}
	return s.push(m.FraudThreshold)
}

func (s *service) FraudThreshold() float64 {
	if s.detector != nil {
		return s.detector.Threshold()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model != nil {
		return s.model.FraudThreshold
	}
	return s.ml.FraudThreshold
}

// SetFraudThreshold persists t as the model fraud threshold and applies it.
func (s *service) SetFraudThreshold(ctx context.Context, t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return appErrors.ErrInvalidThreshold
	}
	m, err := s.Model(ctx)
	if err != nil {
		return err
	}
	m.FraudThreshold = t
	m.UpdatedAt = s.now()
	if err := s.repo.SaveModel(ctx, m); err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}
	s.cache(m)
	return s.push(t)
}

// ApplyFraudThreshold updates the in-memory threshold only. It is used when
// another instance has already persisted the change.
func (s *service) ApplyFraudThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return appErrors.ErrInvalidThreshold
	}
	s.mu.Lock()
	if s.model != nil {
		s.model.FraudThreshold = t
	}
	s.mu.Unlock()
	return s.push(t)
}

func (s *service) API(ctx context.Context) (*models.ApiSettings, error) {
	a, err := s.repo.API(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}
	return a, nil
}

func (s *service) UpdateAPI(ctx context.Context, in APIUpdate) (*models.ApiSettings, error) {
	current, err := s.API(ctx)
	if err != nil {
		return nil, err
	}
	current.RateLimitPerMinute = in.RateLimitPerMinute
	current.RateLimitPerHour = in.RateLimitPerHour
	current.WebhookURL = strings.TrimSpace(in.WebhookURL)
	current.AllowedOrigins = in.AllowedOrigins
	current.IPWhitelist = in.IPWhitelist
	if in.WebhookSecret != nil {
		current.WebhookSecret = *in.WebhookSecret
	}
	if err := validation.ApiSettings(current); err != nil {
		return nil, err
	}
	current.UpdatedAt = s.now()
	if err := s.repo.SaveAPI(ctx, current); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}
	log.Printf("⚙️ API settings updated (rate=%d/min %d/h origins=%d)",
		current.RateLimitPerMinute, current.RateLimitPerHour, len(current.AllowedOrigins))
	return current, nil
}

// RotateAPIKey replaces the API key. Only the prefix and a bcrypt hash are
// stored; the plaintext is returned once.
func (s *service) RotateAPIKey(ctx context.Context) (*IssuedKey, error) {
	current, err := s.API(ctx)
	if err != nil {
		return nil, err
	}
	secret, err := utils.RandomHex(apiKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	key := apiKeyScheme + secret
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash api key: %w", err)
	}

	now := s.now()
	current.APIKeyPrefix = key[:apiKeyPrefixLen]
	current.APIKeyHash = string(hash)
	current.APIKeyCreatedAt = &now
	current.UpdatedAt = now
	if err := s.repo.SaveAPI(ctx, current); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettingsStore, err)
	}
	log.Printf("🔐 API key rotated (prefix=%s)", current.APIKeyPrefix)
	return &IssuedKey{APIKey: key, Prefix: current.APIKeyPrefix, CreatedAt: now}, nil
}

func (s *service) VerifyAPIKey(ctx context.Context, key string) error {
	if len(key) <= apiKeyPrefixLen || !strings.HasPrefix(key, apiKeyScheme) {
		return appErrors.ErrInvalidAPIKey
	}
	current, err := s.API(ctx)
	if err != nil {
		return err
	}
	if current.APIKeyHash == "" {
		return appErrors.ErrInvalidAPIKey.WithMessage(ErrNoAPIKey.Error())
	}
	if current.APIKeyPrefix != key[:apiKeyPrefixLen] {
		return appErrors.ErrInvalidAPIKey
	}
	if bcrypt.CompareHashAndPassword([]byte(current.APIKeyHash), []byte(key)) != nil {
		log.Printf("🚨 API key rejected (prefix=%s)", key[:apiKeyPrefixLen])
		return appErrors.ErrInvalidAPIKey
	}
	return nil
}
