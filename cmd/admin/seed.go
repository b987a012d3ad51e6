package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"securecart/internal/config"
	appErrors "securecart/internal/errors"
	"securecart/internal/models"
	"securecart/internal/repositories"
	"securecart/internal/services/auth"
)

type seedUser struct {
	username, email, first, last, role string
}

var seedUsers = []seedUser{
	{"admin", "admin@securecart.com", "System", "Administrator", models.RoleAdmin},
	{"analyst", "analyst@securecart.com", "Fraud", "Analyst", models.RoleAnalyst},
	{"testuser", "user@example.com", "Test", "User", models.RoleUser},
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample users, transactions and a fraud report",
		Long: `Insert sample users, transactions and a fraud report.

Existing rows are left untouched, so the command can run repeatedly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB(opts)
			if err != nil {
				return err
			}
			defer repositories.Close(db)
			if cfg.IsProduction() {
				return errors.New("seed is disabled in production")
			}
			return seed(cmd.Context(), cmd.OutOrStdout(), cfg, db, password)
		},
	}
	cmd.Flags().StringVar(&password, "password", "SecureCart#2024", "password of the sample accounts")
	return cmd
}

func seed(ctx context.Context, out io.Writer, cfg *config.Config, db *gorm.DB, password string) error {
	users := repositories.NewUserRepository(db, nil)
	svc := auth.NewService(
		users,
		auth.NewTokenService(cfg.Security.JWTSecret, cfg.Security.RefreshTokenTTL),
		nil,
		repositories.NewSessionRepository(db),
		cfg.Security,
	)

	ids := make(map[string]*models.User, len(seedUsers))
	for _, u := range seedUsers {
		user, err := svc.CreateUser(ctx, auth.CreateUserRequest{
			Username:  u.username,
			Email:     u.email,
			Password:  password,
			FirstName: u.first,
			LastName:  u.last,
			Role:      u.role,
			Verified:  true,
		})
		if errors.Is(err, appErrors.ErrEmailInUse) {
			if user, err = users.GetByEmail(ctx, u.email); err != nil {
				return fmt.Errorf("load %s: %w", u.username, err)
			}
			fmt.Fprintf(out, "• user %s exists\n", u.username)
		} else if err != nil {
			return fmt.Errorf("create %s: %w", u.username, err)
		} else {
			fmt.Fprintf(out, "✅ user %s\n", u.username)
		}
		ids[u.role] = user
	}

	customer := ids[models.RoleUser].ID.String()
	now := time.Now().UTC()
	txns := []*models.Transaction{
		{
			ID:               "txn_001",
			UserID:           customer,
			Amount:           250.75,
			Currency:         "USD",
			MerchantName:     "Amazon",
			MerchantCategory: "E-commerce",
			PaymentMethod:    "card",
			CardType:         "visa",
			Location:         models.Location{Country: "US", City: "New York"},
			TransactionTime:  now,
			Status:           models.StatusApproved,
			RiskScore:        16,
			FraudProbability: 0.155,
		},
		{
			ID:               "txn_002",
			UserID:           customer,
			Amount:           1500,
			Currency:         "USD",
			MerchantName:     "Suspicious Store",
			MerchantCategory: "Unknown",
			PaymentMethod:    "card",
			CardType:         "mastercard",
			Location:         models.Location{Country: "XX", City: "Unknown"},
			TransactionTime:  now,
			Status:           models.StatusFlagged,
			RiskScore:        85,
			FraudProbability: 0.85,
		},
	}
	txnRepo := repositories.NewTransactionRepository(db)
	for _, t := range txns {
		switch err := txnRepo.Create(ctx, t); {
		case errors.Is(err, repositories.ErrDuplicateID):
			fmt.Fprintf(out, "• transaction %s exists\n", t.ID)
		case err != nil:
			return fmt.Errorf("create %s: %w", t.ID, err)
		default:
			fmt.Fprintf(out, "✅ transaction %s\n", t.ID)
		}
	}

	reports := repositories.NewFraudReportRepository(db)
	if existing, err := reports.GetByTransaction(ctx, "txn_002"); err == nil && existing != nil {
		fmt.Fprintln(out, "• fraud report for txn_002 exists")
		return nil
	}
	analyst := ids[models.RoleAnalyst].ID
	report := &models.FraudReport{
		TransactionID:       "txn_002",
		ReporterID:          &analyst,
		IsFraud:             true,
		FraudProbability:    0.85,
		RiskScore:           85,
		ModelName:           "ensemble_fraud_detector",
		ModelVersion:        cfg.ML.ModelVersion,
		FraudIndicators:     []string{"unusual_location", "high_amount", "new_merchant"},
		InvestigationStatus: models.InvestigationInvestigating,
		DetectedAt:          now,
	}
	if err := reports.Create(ctx, report); err != nil {
		return fmt.Errorf("create fraud report: %w", err)
	}
	fmt.Fprintln(out, "✅ fraud report for txn_002")
	return nil
}
