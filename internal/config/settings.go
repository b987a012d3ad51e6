package config

import (
	"fmt"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvTesting     = "testing"
	EnvProduction  = "production"
)

type AppConfig struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Environment string `yaml:"environment" json:"environment"`
	Host        string `yaml:"host" json:"host"`
	Port        string `yaml:"port" json:"port"`
	Debug       bool   `yaml:"debug" json:"debug"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url" json:"url"`
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	Name            string        `yaml:"name" json:"name"`
	User            string        `yaml:"user" json:"user"`
	Password        string        `yaml:"password" json:"password"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	Echo            bool          `yaml:"echo" json:"echo"`
}

// DSN returns the configured URL or builds a libpq keyword string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Host           string        `yaml:"host" json:"host"`
	Port           string        `yaml:"port" json:"port"`
	Password       string        `yaml:"password" json:"password"`
	DB             int           `yaml:"db" json:"db"`
	PoolSize       int           `yaml:"pool_size" json:"pool_size"`
	DialTimeout    time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	DefaultTTL     time.Duration `yaml:"default_ttl" json:"default_ttl"`
	FlushOnStartup bool          `yaml:"flush_on_startup" json:"flush_on_startup"`
}

type PasswordPolicy struct {
	MinLength        int  `yaml:"min_length" json:"min_length"`
	RequireUppercase bool `yaml:"require_uppercase" json:"require_uppercase"`
	RequireLowercase bool `yaml:"require_lowercase" json:"require_lowercase"`
	RequireNumbers   bool `yaml:"require_numbers" json:"require_numbers"`
	RequireSymbols   bool `yaml:"require_symbols" json:"require_symbols"`
}

type SecurityConfig struct {
	JWTSecret              string         `yaml:"jwt_secret" json:"jwt_secret"`
	AccessTokenTTL         time.Duration  `yaml:"access_token_ttl" json:"access_token_ttl"`
	RememberMeTTL          time.Duration  `yaml:"remember_me_ttl" json:"remember_me_ttl"`
	RefreshTokenTTL        time.Duration  `yaml:"refresh_token_ttl" json:"refresh_token_ttl"`
	Password               PasswordPolicy `yaml:"password" json:"password"`
	RateLimitEnabled       bool           `yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RateLimitPerMinute     int            `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	RateLimitPerHour       int            `yaml:"rate_limit_per_hour" json:"rate_limit_per_hour"`
	LoginRateLimit         int            `yaml:"login_rate_limit" json:"login_rate_limit"`
	SessionTimeout         time.Duration  `yaml:"session_timeout" json:"session_timeout"`
	MaxFailedLoginAttempts int            `yaml:"max_failed_login_attempts" json:"max_failed_login_attempts"`
	LockoutDuration        time.Duration  `yaml:"lockout_duration" json:"lockout_duration"`
	CORSOrigins            []string       `yaml:"cors_origins" json:"cors_origins"`
}

type MLConfig struct {
	ModelPath           string        `yaml:"model_path" json:"model_path"`
	ActiveModelName     string        `yaml:"active_model_name" json:"active_model_name"`
	ModelVersion        string        `yaml:"model_version" json:"model_version"`
	FraudThreshold      float64       `yaml:"fraud_threshold" json:"fraud_threshold"`
	HighRiskThreshold   float64       `yaml:"high_risk_threshold" json:"high_risk_threshold"`
	MediumRiskThreshold float64       `yaml:"medium_risk_threshold" json:"medium_risk_threshold"`
	AutoDeclineScore    int           `yaml:"auto_decline_score" json:"auto_decline_score"`
	FeatureWindow       time.Duration `yaml:"feature_window" json:"feature_window"`
	VelocityChecks      bool          `yaml:"velocity_checks" json:"velocity_checks"`
	LocationChecks      bool          `yaml:"location_checks" json:"location_checks"`
	MinTrainingSize     int           `yaml:"min_training_size" json:"min_training_size"`
	RetrainIntervalDays int           `yaml:"retrain_interval_days" json:"retrain_interval_days"`
	BatchSize           int           `yaml:"batch_size" json:"batch_size"`
	MaxProcessingTime   time.Duration `yaml:"max_processing_time" json:"max_processing_time"`
	TrainOnStartup      bool          `yaml:"train_on_startup" json:"train_on_startup"`
}

type BlockchainConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	ProviderURL     string        `yaml:"provider_url" json:"provider_url"`
	Network         string        `yaml:"network" json:"network"`
	ChainID         int64         `yaml:"chain_id" json:"chain_id"`
	ContractAddress string        `yaml:"contract_address" json:"contract_address"`
	PrivateKey      string        `yaml:"private_key" json:"private_key"`
	GasLimit        uint64        `yaml:"gas_limit" json:"gas_limit"`
	GasPriceGwei    int64         `yaml:"gas_price_gwei" json:"gas_price_gwei"`
	Confirmations   int           `yaml:"confirmations" json:"confirmations"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	LocalLedgerPath string        `yaml:"local_ledger_path" json:"local_ledger_path"`
}

type WebSocketConfig struct {
	AllowedOrigins    []string      `yaml:"allowed_origins" json:"allowed_origins"`
	PingInterval      time.Duration `yaml:"ping_interval" json:"ping_interval"`
	PingTimeout       time.Duration `yaml:"ping_timeout" json:"ping_timeout"`
	AuthRequired      bool          `yaml:"auth_required" json:"auth_required"`
	MaxMessageSize    int64         `yaml:"max_message_size" json:"max_message_size"`
	MessagesPerMinute int           `yaml:"messages_per_minute" json:"messages_per_minute"`
	StatsInterval     time.Duration `yaml:"stats_interval" json:"stats_interval"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	StaleAfter        time.Duration `yaml:"stale_after" json:"stale_after"`
	AlertQueueSize    int           `yaml:"alert_queue_size" json:"alert_queue_size"`
	UseRedisFanout    bool          `yaml:"use_redis_fanout" json:"use_redis_fanout"`
}

type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	FileEnabled bool   `yaml:"file_enabled" json:"file_enabled"`
	FilePath    string `yaml:"file_path" json:"file_path"`
	DBEnabled   bool   `yaml:"db_enabled" json:"db_enabled"`
	DBLevel     string `yaml:"db_level" json:"db_level"`
}

type MonitoringConfig struct {
	HealthCheckInterval   time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
	MetricsInterval       time.Duration `yaml:"metrics_interval" json:"metrics_interval"`
	SlackAlerts           bool          `yaml:"slack_alerts" json:"slack_alerts"`
	SlackWebhookURL       string        `yaml:"slack_webhook_url" json:"slack_webhook_url"`
	ResponseTimeThreshold time.Duration `yaml:"response_time_threshold" json:"response_time_threshold"`
}

type ProcessorConfig struct {
	StripeSecretKey string `yaml:"stripe_secret_key" json:"stripe_secret_key"`
}

type FeatureFlags struct {
	FraudDetection        bool `yaml:"fraud_detection" json:"fraud_detection"`
	BlockchainIntegration bool `yaml:"blockchain_integration" json:"blockchain_integration"`
	RealTimeMonitoring    bool `yaml:"real_time_monitoring" json:"real_time_monitoring"`
	MLModelTraining       bool `yaml:"ml_model_training" json:"ml_model_training"`
	AdvancedAnalytics     bool `yaml:"advanced_analytics" json:"advanced_analytics"`
	UserNotifications     bool `yaml:"user_notifications" json:"user_notifications"`
	APIRateLimiting       bool `yaml:"api_rate_limiting" json:"api_rate_limiting"`
	AuditLogging          bool `yaml:"audit_logging" json:"audit_logging"`
}

// Config is the full application configuration.
type Config struct {
	App        AppConfig        `yaml:"app" json:"app"`
	Database   DatabaseConfig   `yaml:"database" json:"database"`
	Redis      RedisConfig      `yaml:"redis" json:"redis"`
	Security   SecurityConfig   `yaml:"security" json:"security"`
	ML         MLConfig         `yaml:"ml" json:"ml"`
	Blockchain BlockchainConfig `yaml:"blockchain" json:"blockchain"`
	WebSocket  WebSocketConfig  `yaml:"websocket" json:"websocket"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring" json:"monitoring"`
	Processor  ProcessorConfig  `yaml:"processor" json:"processor"`
	Features   FeatureFlags     `yaml:"features" json:"features"`
}

// Load builds the configuration from the environment, applies the
// per-environment overrides and, when CONFIG_FILE is set, the overlay file.
func Load() (*Config, error) {
	cfg := FromEnv()
	if path := GetEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ensureSecret()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads every section from environment variables.
func FromEnv() *Config {
	env := GetEnv("ENV", EnvDevelopment)
	cfg := &Config{
		App: AppConfig{
			Name:        GetEnv("APP_NAME", "SecureCart Fraud Detection"),
			Version:     GetEnv("APP_VERSION", "1.0.0"),
			Environment: env,
			Host:        GetEnv("HOST", "0.0.0.0"),
			Port:        GetEnv("PORT", "5000"),
			Debug:       GetBoolEnv("DEBUG", false),
		},
		Database: DatabaseConfig{
			URL:             GetEnv("DATABASE_URL", ""),
			Host:            GetEnv("DB_HOST", "localhost"),
			Port:            GetIntEnv("DB_PORT", 5432),
			Name:            GetEnv("DB_NAME", "securecart"),
			User:            GetEnv("DB_USER", "postgres"),
			Password:        GetEnv("DB_PASSWORD", "postgres"),
			SSLMode:         GetEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
			Echo:            GetBoolEnv("DB_ECHO", false),
		},
		Redis: RedisConfig{
			Host:           GetEnv("REDIS_HOST", "localhost"),
			Port:           GetEnv("REDIS_PORT", "6379"),
			Password:       GetEnv("REDIS_PASSWORD", ""),
			DB:             GetIntEnv("REDIS_DB", 0),
			PoolSize:       GetIntEnv("REDIS_MAX_CONNECTIONS", 20),
			DialTimeout:    GetDurationEnv("REDIS_CONNECT_TIMEOUT", 5*time.Second),
			ReadTimeout:    GetDurationEnv("REDIS_SOCKET_TIMEOUT", 5*time.Second),
			DefaultTTL:     GetDurationEnv("REDIS_DEFAULT_TTL", 24*time.Hour),
			FlushOnStartup: GetBoolEnv("REDIS_FLUSH_ON_STARTUP", false),
		},
		Security: SecurityConfig{
			JWTSecret:       GetEnv("JWT_SECRET_KEY", ""),
			AccessTokenTTL:  GetDurationEnv("JWT_ACCESS_TOKEN_EXPIRES", 24*time.Hour),
			RememberMeTTL:   GetDurationEnv("JWT_REMEMBER_ME_EXPIRES", 30*24*time.Hour),
			RefreshTokenTTL: GetDurationEnv("JWT_REFRESH_TOKEN_EXPIRES", 7*24*time.Hour),
			Password: PasswordPolicy{
				MinLength:        GetIntEnv("PASSWORD_MIN_LENGTH", 8),
				RequireUppercase: GetBoolEnv("PASSWORD_REQUIRE_UPPERCASE", true),
				RequireLowercase: GetBoolEnv("PASSWORD_REQUIRE_LOWERCASE", true),
				RequireNumbers:   GetBoolEnv("PASSWORD_REQUIRE_NUMBERS", true),
				RequireSymbols:   GetBoolEnv("PASSWORD_REQUIRE_SYMBOLS", true),
			},
			RateLimitEnabled:       GetBoolEnv("RATE_LIMIT_ENABLED", true),
			RateLimitPerMinute:     GetIntEnv("RATE_LIMIT_PER_MINUTE", 100),
			RateLimitPerHour:       GetIntEnv("RATE_LIMIT_PER_HOUR", 1000),
			LoginRateLimit:         GetIntEnv("LOGIN_RATE_LIMIT", 10),
			SessionTimeout:         GetDurationEnv("SESSION_TIMEOUT", 60*time.Minute),
			MaxFailedLoginAttempts: GetIntEnv("MAX_FAILED_LOGIN_ATTEMPTS", 5),
			LockoutDuration:        GetDurationEnv("ACCOUNT_LOCKOUT_DURATION", 30*time.Minute),
			CORSOrigins:            GetListEnv("CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
		ML: MLConfig{
			ModelPath:           GetEnv("ML_MODEL_PATH", "models"),
			ActiveModelName:     GetEnv("ML_ACTIVE_MODEL", "ensemble_fraud_detector"),
			ModelVersion:        GetEnv("ML_MODEL_VERSION", "1.0.0"),
			FraudThreshold:      GetFloatEnv("FRAUD_THRESHOLD", 0.7),
			HighRiskThreshold:   GetFloatEnv("HIGH_RISK_THRESHOLD", 0.5),
			MediumRiskThreshold: GetFloatEnv("MEDIUM_RISK_THRESHOLD", 0.3),
			AutoDeclineScore:    GetIntEnv("AUTO_DECLINE_SCORE", 90),
			FeatureWindow:       GetDurationEnv("ML_FEATURE_WINDOW", 24*time.Hour),
			VelocityChecks:      GetBoolEnv("ML_VELOCITY_CHECKS", true),
			LocationChecks:      GetBoolEnv("ML_LOCATION_CHECKS", true),
			MinTrainingSize:     GetIntEnv("ML_MIN_TRAINING_SIZE", 1000),
			RetrainIntervalDays: GetIntEnv("ML_RETRAIN_INTERVAL_DAYS", 7),
			BatchSize:           GetIntEnv("ML_BATCH_SIZE", 100),
			MaxProcessingTime:   GetDurationEnv("ML_MAX_PROCESSING_TIME", 5*time.Second),
			TrainOnStartup:      GetBoolEnv("ML_TRAIN_ON_STARTUP", false),
		},
		Blockchain: BlockchainConfig{
			Enabled:         GetBoolEnv("BLOCKCHAIN_ENABLED", false),
			ProviderURL:     GetEnv("BLOCKCHAIN_PROVIDER_URL", "http://localhost:8545"),
			Network:         GetEnv("BLOCKCHAIN_NETWORK", EnvDevelopment),
			ChainID:         int64(GetIntEnv("BLOCKCHAIN_CHAIN_ID", 1337)),
			ContractAddress: GetEnv("FRAUD_CONTRACT_ADDRESS", ""),
			PrivateKey:      GetEnv("BLOCKCHAIN_PRIVATE_KEY", ""),
			GasLimit:        uint64(GetIntEnv("BLOCKCHAIN_GAS_LIMIT", 200000)),
			GasPriceGwei:    int64(GetIntEnv("BLOCKCHAIN_GAS_PRICE_GWEI", 20)),
			Confirmations:   GetIntEnv("BLOCKCHAIN_CONFIRMATIONS", 1),
			Timeout:         GetDurationEnv("BLOCKCHAIN_TIMEOUT", 60*time.Second),
			LocalLedgerPath: GetEnv("LOCAL_LEDGER_PATH", "data/ledger.db"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:    GetListEnv("WEBSOCKET_CORS_ORIGINS", []string{"http://localhost:3000"}),
			PingInterval:      GetDurationEnv("WEBSOCKET_PING_INTERVAL", 25*time.Second),
			PingTimeout:       GetDurationEnv("WEBSOCKET_PING_TIMEOUT", 60*time.Second),
			AuthRequired:      GetBoolEnv("WEBSOCKET_AUTH_REQUIRED", true),
			MaxMessageSize:    int64(GetIntEnv("WEBSOCKET_MAX_MESSAGE_SIZE", 1024*1024)),
			MessagesPerMinute: GetIntEnv("WEBSOCKET_MESSAGES_PER_MINUTE", 100),
			StatsInterval:     GetDurationEnv("WEBSOCKET_STATS_INTERVAL", 30*time.Second),
			CleanupInterval:   GetDurationEnv("WEBSOCKET_CLEANUP_INTERVAL", 60*time.Second),
			StaleAfter:        GetDurationEnv("WEBSOCKET_STALE_AFTER", 10*time.Minute),
			AlertQueueSize:    GetIntEnv("WEBSOCKET_ALERT_QUEUE_SIZE", 256),
			UseRedisFanout:    GetBoolEnv("WEBSOCKET_REDIS_FANOUT", false),
		},
		Logging: LoggingConfig{
			Level:       GetEnv("LOG_LEVEL", "INFO"),
			FileEnabled: GetBoolEnv("LOG_FILE_ENABLED", false),
			FilePath:    GetEnv("LOG_FILE_PATH", "logs/securecart.log"),
			DBEnabled:   GetBoolEnv("LOG_DB_ENABLED", true),
			DBLevel:     GetEnv("LOG_DB_LEVEL", "WARNING"),
		},
		Monitoring: MonitoringConfig{
			HealthCheckInterval:   GetDurationEnv("HEALTH_CHECK_INTERVAL", 30*time.Second),
			MetricsInterval:       GetDurationEnv("METRICS_COLLECTION_INTERVAL", 60*time.Second),
			SlackAlerts:           GetBoolEnv("SLACK_ALERTS_ENABLED", false),
			SlackWebhookURL:       GetEnv("SLACK_WEBHOOK_URL", ""),
			ResponseTimeThreshold: GetDurationEnv("RESPONSE_TIME_THRESHOLD", 2*time.Second),
		},
		Processor: ProcessorConfig{
			StripeSecretKey: GetEnv("STRIPE_SECRET_KEY", ""),
		},
		Features: FeatureFlags{
			FraudDetection:        GetBoolEnv("FEATURE_FRAUD_DETECTION", true),
			BlockchainIntegration: GetBoolEnv("FEATURE_BLOCKCHAIN", true),
			RealTimeMonitoring:    GetBoolEnv("FEATURE_REAL_TIME_MONITORING", true),
			MLModelTraining:       GetBoolEnv("FEATURE_ML_TRAINING", true),
			AdvancedAnalytics:     GetBoolEnv("FEATURE_ADVANCED_ANALYTICS", true),
			UserNotifications:     GetBoolEnv("FEATURE_USER_NOTIFICATIONS", true),
			APIRateLimiting:       GetBoolEnv("FEATURE_RATE_LIMITING", true),
			AuditLogging:          GetBoolEnv("FEATURE_AUDIT_LOGGING", true),
		},
	}
	cfg.ApplyEnvironment()
	return cfg
}

// ApplyEnvironment applies the overrides of the configured environment.
func (c *Config) ApplyEnvironment() {
	switch c.App.Environment {
	case EnvProduction:
		c.App.Debug = false
		c.Security.RateLimitEnabled = true
		c.Security.SessionTimeout = 30 * time.Minute
		c.Security.MaxFailedLoginAttempts = 3
		c.ML.FraudThreshold = 0.8
		c.ML.HighRiskThreshold = 0.6
		c.Blockchain.Enabled = true
	case EnvTesting:
		c.Security.RateLimitEnabled = false
		c.Blockchain.Enabled = false
		c.ML.FraudThreshold = 0.5
	default:
		c.App.Debug = true
		c.Security.RateLimitEnabled = false
		c.Blockchain.Enabled = false
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.App.Host + ":" + c.App.Port
}
