package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("SC_STRING", "value")
	t.Setenv("SC_INT", "42")
	t.Setenv("SC_BAD_INT", "forty-two")
	t.Setenv("SC_FLOAT", "0.25")
	t.Setenv("SC_BOOL", "yes")
	t.Setenv("SC_DURATION", "90s")
	t.Setenv("SC_SECONDS", "120")
	t.Setenv("SC_LIST", "a, b,,c")

	assert.Equal(t, "value", GetEnv("SC_STRING", "default"))
	assert.Equal(t, "default", GetEnv("SC_MISSING", "default"))
	assert.Equal(t, 42, GetIntEnv("SC_INT", 1))
	assert.Equal(t, 1, GetIntEnv("SC_BAD_INT", 1))
	assert.Equal(t, 0.25, GetFloatEnv("SC_FLOAT", 1))
	assert.True(t, GetBoolEnv("SC_BOOL", false))
	assert.Equal(t, 90*time.Second, GetDurationEnv("SC_DURATION", time.Second))
	assert.Equal(t, 2*time.Minute, GetDurationEnv("SC_SECONDS", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, GetListEnv("SC_LIST", nil))
}

func TestEnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name          string
		env           string
		threshold     float64
		rateLimit     bool
		blockchain    bool
		maxFailed     int
		sessionTimout time.Duration
	}{
		{"development", EnvDevelopment, 0.7, false, false, 5, time.Hour},
		{"testing", EnvTesting, 0.5, false, false, 5, time.Hour},
		{"production", EnvProduction, 0.8, true, true, 3, 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", tt.env)
			cfg := FromEnv()

			assert.Equal(t, tt.threshold, cfg.ML.FraudThreshold)
			assert.Equal(t, tt.rateLimit, cfg.Security.RateLimitEnabled)
			assert.Equal(t, tt.blockchain, cfg.Blockchain.Enabled)
			assert.Equal(t, tt.maxFailed, cfg.Security.MaxFailedLoginAttempts)
			assert.Equal(t, tt.sessionTimout, cfg.Security.SessionTimeout)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("ENV", EnvDevelopment)

	t.Run("defaults are valid", func(t *testing.T) {
		cfg := FromEnv()
		cfg.ensureSecret()
		assert.NoError(t, cfg.Validate())
		assert.NotEmpty(t, cfg.Security.JWTSecret)
	})

	t.Run("thresholds out of range", func(t *testing.T) {
		cfg := FromEnv()
		cfg.ML.FraudThreshold = 1.5
		cfg.ML.HighRiskThreshold = -0.1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fraud threshold")
		assert.Contains(t, err.Error(), "high risk threshold")
	})

	t.Run("production requires a long secret and no sqlite", func(t *testing.T) {
		cfg := FromEnv()
		cfg.App.Environment = EnvProduction
		cfg.Security.JWTSecret = "short"
		cfg.Database.URL = "sqlite:///fraud.db"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 32 characters")
		assert.Contains(t, err.Error(), "SQLite")
	})

	t.Run("blockchain needs a provider", func(t *testing.T) {
		cfg := FromEnv()
		cfg.Blockchain.Enabled = true
		cfg.Blockchain.ProviderURL = ""
		assert.ErrorContains(t, cfg.Validate(), "provider URL")
	})
}

func TestMergeFile(t *testing.T) {
	t.Setenv("ENV", EnvDevelopment)
	dir := t.TempDir()

	t.Run("yaml overlay", func(t *testing.T) {
		path := filepath.Join(dir, "config.yaml")
		content := "ml:\n  fraud_threshold: 0.65\nwebsocket:\n  stats_interval: 10s\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg := FromEnv()
		require.NoError(t, cfg.MergeFile(path))
		assert.Equal(t, 0.65, cfg.ML.FraudThreshold)
		assert.Equal(t, 10*time.Second, cfg.WebSocket.StatsInterval)
		assert.Equal(t, "securecart", cfg.Database.Name)
	})

	t.Run("json overlay", func(t *testing.T) {
		path := filepath.Join(dir, "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"app":{"port":"8080"}}`), 0o600))

		cfg := FromEnv()
		require.NoError(t, cfg.MergeFile(path))
		assert.Equal(t, "8080", cfg.App.Port)
	})

	t.Run("unsupported format", func(t *testing.T) {
		path := filepath.Join(dir, "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o600))

		cfg := FromEnv()
		assert.ErrorContains(t, cfg.MergeFile(path), "unsupported config file format")
	})
}

func TestPublicHidesSecrets(t *testing.T) {
	cfg := FromEnv()
	cfg.Security.JWTSecret = "super-secret-value-that-should-not-leak"
	cfg.Blockchain.PrivateKey = "deadbeef"
	cfg.Database.Password = "hunter2"

	public := cfg.Public()
	rendered := fmt.Sprintf("%+v", public)

	assert.NotContains(t, rendered, cfg.Security.JWTSecret)
	assert.NotContains(t, rendered, "deadbeef")
	assert.NotContains(t, rendered, "hunter2")
}
