package validation

import (
	"net"
	"strings"

	"golang.org/x/text/currency"

	appErrors "securecart/internal/errors"
	"securecart/internal/models"
)

// Currency reports whether code is an ISO 4217 currency.
func Currency(code string) bool {
	if len(code) != 3 {
		return false
	}
	_, err := currency.ParseISO(code)
	return err == nil
}

// Transaction validates an analysis request after defaults are applied.
func Transaction(t *models.Transaction) error {
	if t.Amount <= 0 {
		return appErrors.ErrInvalidAmount
	}
	if !Currency(t.Currency) {
		return appErrors.ErrInvalidCurrency.WithMessage("currency " + t.Currency + " is not an ISO 4217 code")
	}

	v := New()
	v.Range("amount", t.Amount, MinTransactionAmount, MaxTransactionAmount)
	v.Required("userId", t.UserID)
	v.Required("merchantName", t.MerchantName)
	v.MaxLength("merchantName", t.MerchantName, MaxMerchantNameLength)
	v.MaxLength("merchantCategory", t.MerchantCategory, MaxCategoryLength)
	v.MaxLength("id", t.ID, MaxReferenceLength)
	v.Required("paymentMethod", t.PaymentMethod)
	if t.PaymentMethod != "" {
		v.OneOf("paymentMethod", t.PaymentMethod, PaymentMethods...)
	}
	v.Range("location.latitude", t.Location.Latitude, -90, 90)
	v.Range("location.longitude", t.Location.Longitude, -180, 180)
	if t.CardLastFour != "" {
		v.Check(len(t.CardLastFour) == 4 && strings.Trim(t.CardLastFour, "0123456789") == "", "cardLastFour", "must be 4 digits")
	}
	v.NotFuture("timestamp", t.TransactionTime, MaxClockSkew)
	return v.Err(appErrors.ErrValidation)
}

// NotificationSettings validates alert channel settings.
func NotificationSettings(s *models.NotificationSettings) error {
	v := New()
	if s.AlertEmail != "" {
		v.Email("alertEmail", s.AlertEmail)
	}
	v.Check(!s.EmailAlerts || s.AlertEmail != "", "alertEmail", "is required when email alerts are enabled")
	if s.AlertPhone != "" {
		v.Phone("alertPhone", s.AlertPhone)
	}
	v.Check(!s.SMSAlerts || s.AlertPhone != "", "alertPhone", "is required when SMS alerts are enabled")
	if s.SlackWebhookURL != "" {
		v.URL("slackWebhookUrl", s.SlackWebhookURL)
	}
	v.Check(!s.SlackAlerts || s.SlackWebhookURL != "", "slackWebhookUrl", "is required when Slack alerts are enabled")
	v.Range("minRiskScore", float64(s.MinRiskScore), 0, 100)
	return v.Err(appErrors.ErrInvalidSettings)
}

// ModelSettings validates thresholds and the retraining schedule.
func ModelSettings(s *models.ModelSettings) error {
	v := New()
	v.Range("fraudThreshold", s.FraudThreshold, 0, 1)
	v.Range("highRiskThreshold", s.HighRiskThreshold, 0, 1)
	v.Range("mediumRiskThreshold", s.MediumRiskThreshold, 0, 1)
	v.Check(s.MediumRiskThreshold <= s.HighRiskThreshold, "mediumRiskThreshold", "must not exceed highRiskThreshold")
	v.Range("autoDeclineScore", float64(s.AutoDeclineScore), 0, 100)
	v.Range("retrainFrequencyDays", float64(s.RetrainFrequencyDays), 1, 365)
	return v.Err(appErrors.ErrInvalidSettings)
}

// ApiSettings validates rate limits and webhook configuration.
func ApiSettings(s *models.ApiSettings) error {
	v := New()
	v.Range("rateLimitPerMinute", float64(s.RateLimitPerMinute), 1, 100000)
	v.Range("rateLimitPerHour", float64(s.RateLimitPerHour), 1, 10000000)
	v.Check(s.RateLimitPerHour >= s.RateLimitPerMinute, "rateLimitPerHour", "must be at least rateLimitPerMinute")
	if s.WebhookURL != "" {
		v.URL("webhookUrl", s.WebhookURL)
	}
	for _, origin := range s.AllowedOrigins {
		if origin != "*" {
			v.URL("allowedOrigins", origin)
		}
	}
	for _, entry := range s.IPWhitelist {
		_, _, cidrErr := net.ParseCIDR(entry)
		v.Check(net.ParseIP(entry) != nil || cidrErr == nil, "ipWhitelist", "must contain IP addresses or CIDR ranges")
	}
	return v.Err(appErrors.ErrInvalidSettings)
}
