package models

import (
	"time"

	"github.com/lib/pq"
)

// SettingsRowID is the primary key of every singleton settings row.
const SettingsRowID = 1

type NotificationSettings struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	EmailAlerts     bool      `gorm:"not null" json:"emailAlerts"`
	SMSAlerts       bool      `gorm:"default:false" json:"smsAlerts"`
	SlackAlerts     bool      `gorm:"default:false" json:"slackAlerts"`
	WebhookAlerts   bool      `gorm:"default:false" json:"webhookAlerts"`
	AlertEmail      string    `gorm:"size:120" json:"alertEmail"`
	AlertPhone      string    `gorm:"size:20" json:"alertPhone"`
	SlackWebhookURL string    `gorm:"size:500" json:"slackWebhookUrl"`
	MinRiskScore    int       `gorm:"default:70" json:"minRiskScore"`
	DailyDigest     bool      `gorm:"default:false" json:"dailyDigest"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type ModelSettings struct {
	ID                   uint      `gorm:"primaryKey" json:"-"`
	FraudThreshold       float64   `json:"fraudThreshold"`
	HighRiskThreshold    float64   `json:"highRiskThreshold"`
	MediumRiskThreshold  float64   `json:"mediumRiskThreshold"`
	AutoDeclineScore     int       `json:"autoDeclineScore"`
	AutoRetrain          bool      `json:"autoRetrain"`
	RetrainFrequencyDays int       `json:"retrainFrequencyDays"`
	ActiveModelName      string    `gorm:"size:100" json:"activeModelName"`
	ModelVersion         string    `gorm:"size:50" json:"modelVersion"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

type ApiSettings struct {
	ID                 uint           `gorm:"primaryKey" json:"-"`
	APIKeyPrefix       string         `gorm:"size:16" json:"apiKeyPrefix"`
	APIKeyHash         string         `gorm:"size:255" json:"-"`
	APIKeyCreatedAt    *time.Time     `json:"apiKeyCreatedAt,omitempty"`
	RateLimitPerMinute int            `gorm:"default:100" json:"rateLimitPerMinute"`
	RateLimitPerHour   int            `gorm:"default:1000" json:"rateLimitPerHour"`
	WebhookURL         string         `gorm:"size:500" json:"webhookUrl"`
	WebhookSecret      string         `gorm:"size:128" json:"-"`
	AllowedOrigins     pq.StringArray `gorm:"type:text[]" json:"allowedOrigins"`
	IPWhitelist        pq.StringArray `gorm:"type:text[]" json:"ipWhitelist"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}
