// Package repositories provides data access layer implementations.
// It handles all database operations and data persistence logic.
package repositories

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"securecart/internal/config"
	"securecart/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DB is the global database instance used across the application.
var DB *gorm.DB

// migrated lists every table owned by the service.
var migrated = []interface{}{
	&models.User{},
	&models.UserSession{},
	&models.Transaction{},
	&models.FraudReport{},
	&models.SecurityRule{},
	&models.NotificationSettings{},
	&models.ModelSettings{},
	&models.ApiSettings{},
	&models.MLModel{},
	&models.SystemLog{},
	&models.PerformanceMetric{},
}

// InitDB opens the PostgreSQL connection, applies the pool configuration,
// runs migrations and seeds the default settings rows.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.Database.Echo {
		level = logger.Info
	}
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  !cfg.IsProduction(),
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	if err := SeedDefaults(context.Background(), db, cfg); err != nil {
		return nil, err
	}

	DB = db
	log.Println("✅ PostgreSQL connected & migrations applied successfully!")
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(migrated...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// SeedDefaults inserts the singleton settings rows if they are missing.
func SeedDefaults(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	rows := []interface{}{
		&models.NotificationSettings{
			ID:           models.SettingsRowID,
			EmailAlerts:  true,
			MinRiskScore: 70,
		},
		&models.ModelSettings{
			ID:                   models.SettingsRowID,
			FraudThreshold:       cfg.ML.FraudThreshold,
			HighRiskThreshold:    cfg.ML.HighRiskThreshold,
			MediumRiskThreshold:  cfg.ML.MediumRiskThreshold,
			AutoDeclineScore:     cfg.ML.AutoDeclineScore,
			RetrainFrequencyDays: cfg.ML.RetrainIntervalDays,
			ActiveModelName:      cfg.ML.ActiveModelName,
			ModelVersion:         cfg.ML.ModelVersion,
		},
		&models.ApiSettings{
			ID:                 models.SettingsRowID,
			RateLimitPerMinute: cfg.Security.RateLimitPerMinute,
			RateLimitPerHour:   cfg.Security.RateLimitPerHour,
			AllowedOrigins:     cfg.Security.CORSOrigins,
		},
	}
	for _, row := range rows {
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
			return fmt.Errorf("seed settings: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DropAllTables removes every table, used by the admin CLI reset command.
func DropAllTables(db *gorm.DB) error {
	return db.Migrator().DropTable(migrated...)
}
