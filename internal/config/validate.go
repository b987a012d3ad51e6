package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
)

var requiredProductionEnv = []string{
	"JWT_SECRET_KEY",
	"DATABASE_URL",
	"REDIS_HOST",
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.IsProduction() && len(c.Security.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT secret must be at least 32 characters in production"))
	}
	if c.Security.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("JWT access token expiry must be positive"))
	}
	if c.Security.MaxFailedLoginAttempts < 1 {
		errs = append(errs, errors.New("max failed login attempts must be at least 1"))
	}
	if !inUnitRange(c.ML.FraudThreshold) {
		errs = append(errs, errors.New("fraud threshold must be between 0 and 1"))
	}
	if !inUnitRange(c.ML.HighRiskThreshold) {
		errs = append(errs, errors.New("high risk threshold must be between 0 and 1"))
	}
	if !inUnitRange(c.ML.MediumRiskThreshold) || c.ML.MediumRiskThreshold > c.ML.HighRiskThreshold {
		errs = append(errs, errors.New("medium risk threshold must be between 0 and the high risk threshold"))
	}
	if c.ML.AutoDeclineScore < 0 || c.ML.AutoDeclineScore > 100 {
		errs = append(errs, errors.New("auto decline score must be between 0 and 100"))
	}
	if c.IsProduction() && strings.HasPrefix(strings.ToLower(c.Database.URL), "sqlite") {
		errs = append(errs, errors.New("SQLite must not be used in production"))
	}
	if c.Blockchain.Enabled && c.Blockchain.ProviderURL == "" {
		errs = append(errs, errors.New("blockchain provider URL is required when blockchain is enabled"))
	}

	return errors.Join(errs...)
}

// MissingEnv lists required production variables that are not set.
func MissingEnv() []string {
	var missing []string
	for _, key := range requiredProductionEnv {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// ensureSecret generates an ephemeral JWT secret outside production so a
// fresh checkout can boot. Tokens do not survive a restart.
func (c *Config) ensureSecret() {
	if c.Security.JWTSecret != "" || c.IsProduction() {
		return
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		c.Security.JWTSecret = "development-secret-change-me-please-0000"
		return
	}
	c.Security.JWTSecret = hex.EncodeToString(buf)
	log.Println("⚠️ JWT_SECRET_KEY not set, using a generated development secret")
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

// Public returns the configuration without secrets.
func (c *Config) Public() map[string]interface{} {
	return map[string]interface{}{
		"app": c.App,
		"database": map[string]interface{}{
			"host":           c.Database.Host,
			"port":           c.Database.Port,
			"name":           c.Database.Name,
			"max_open_conns": c.Database.MaxOpenConns,
			"max_idle_conns": c.Database.MaxIdleConns,
		},
		"redis": map[string]interface{}{
			"host": c.Redis.Host,
			"port": c.Redis.Port,
			"db":   c.Redis.DB,
		},
		"security": map[string]interface{}{
			"access_token_ttl":          c.Security.AccessTokenTTL.String(),
			"session_timeout":           c.Security.SessionTimeout.String(),
			"max_failed_login_attempts": c.Security.MaxFailedLoginAttempts,
			"rate_limit_enabled":        c.Security.RateLimitEnabled,
			"rate_limit_per_minute":     c.Security.RateLimitPerMinute,
			"password":                  c.Security.Password,
		},
		"ml": map[string]interface{}{
			"active_model_name":     c.ML.ActiveModelName,
			"model_version":         c.ML.ModelVersion,
			"fraud_threshold":       c.ML.FraudThreshold,
			"high_risk_threshold":   c.ML.HighRiskThreshold,
			"medium_risk_threshold": c.ML.MediumRiskThreshold,
			"auto_decline_score":    c.ML.AutoDeclineScore,
			"batch_size":            c.ML.BatchSize,
		},
		"blockchain": map[string]interface{}{
			"enabled":          c.Blockchain.Enabled,
			"network":          c.Blockchain.Network,
			"chain_id":         c.Blockchain.ChainID,
			"contract_address": c.Blockchain.ContractAddress,
		},
		"websocket": map[string]interface{}{
			"auth_required":  c.WebSocket.AuthRequired,
			"stats_interval": c.WebSocket.StatsInterval.String(),
		},
		"features": c.Features,
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s v%s (%s)", c.App.Name, c.App.Version, c.App.Environment)
}
