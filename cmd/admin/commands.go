package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"securecart/internal/config"
	"securecart/internal/models"
	"securecart/internal/repositories"
	"securecart/internal/services/auth"
	"securecart/internal/services/detection"
	"securecart/internal/services/ledger"
	"securecart/internal/services/training"
)

func openDB(opts *rootOptions) (*config.Config, *gorm.DB, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, nil, err
	}
	db, err := repositories.InitDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables and seed the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB(opts)
			if err != nil {
				return err
			}
			defer repositories.Close(db)
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Schema is up to date")
			return nil
		},
	}
}

func newCreateAdminCommand(opts *rootOptions) *cobra.Command {
	var req auth.CreateUserRequest
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: `Create an administrator account.

The password is read from ADMIN_PASSWORD when --password is omitted.

Example:
  admin create-admin --username root --email root@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("ADMIN_PASSWORD")
			}
			if req.Username == "" || req.Email == "" || req.Password == "" {
				return errors.New("username, email and password are required")
			}
			cfg, db, err := openDB(opts)
			if err != nil {
				return err
			}
			defer repositories.Close(db)

			svc := auth.NewService(
				repositories.NewUserRepository(db, nil),
				auth.NewTokenService(cfg.Security.JWTSecret, cfg.Security.RefreshTokenTTL),
				nil,
				repositories.NewSessionRepository(db),
				cfg.Security,
			)
			req.Role = models.RoleAdmin
			req.Verified = true
			user, err := svc.CreateUser(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Admin %s created (%s)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "login name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	return cmd
}

func newTrainCommand(opts *rootOptions) *cobra.Command {
	var req training.Request
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the fraud model and register it as active",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB(opts)
			if err != nil {
				return err
			}
			defer repositories.Close(db)

			detector := detection.NewDetector(detection.Options{
				Threshold: cfg.ML.FraudThreshold,
				Version:   cfg.ML.ModelVersion,
			})
			flags := cfg.Features
			flags.MLModelTraining = true
			svc := training.NewService(training.Deps{
				Detector:     detector,
				Registry:     repositories.NewModelRepository(db),
				Transactions: repositories.NewTransactionRepository(db),
				Reports:      repositories.NewFraudReportRepository(db),
			}, cfg.ML, flags)

			res, err := svc.Train(cmd.Context(), req)
			if err != nil {
				return err
			}
			r := res.Report
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Trained %s on %d %s samples (%d fraud)\n", r.Version, r.Samples, res.Source, r.FraudSamples)
			fmt.Fprintf(cmd.OutOrStdout(), "   accuracy %.3f  precision %.3f  recall %.3f  f1 %.3f  auc %.3f\n",
				r.Ensemble.Accuracy, r.Ensemble.Precision, r.Ensemble.Recall, r.Ensemble.F1, r.Ensemble.AUC)
			return nil
		},
	}
	cmd.Flags().BoolVar(&req.Synthetic, "synthetic", false, "train on generated data even when labels exist")
	cmd.Flags().IntVar(&req.Samples, "samples", 0, "synthetic sample count")
	cmd.Flags().Int64Var(&req.Seed, "seed", 0, "random seed")
	return cmd
}

func newHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <transaction.json>",
		Short: "Print the canonical ledger hash of a transaction",
		Long: `Print the canonical ledger hash of a transaction.

The file holds the transaction as the API returns it. Use "-" for stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			var txn models.Transaction
			if err := json.Unmarshal(data, &txn); err != nil {
				return fmt.Errorf("decode transaction: %w", err)
			}
			payload, err := ledger.CanonicalPayload(&txn)
			if err != nil {
				return err
			}
			hash, err := ledger.TransactionHash(&txn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "payload: %s\nhash:    %s\n", payload, hash)
			return nil
		},
	}
}

func newResetCommand(opts *rootOptions) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop every table and recreate the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to reset without --yes")
			}
			cfg, db, err := openDB(opts)
			if err != nil {
				return err
			}
			defer repositories.Close(db)
			if cfg.IsProduction() {
				return errors.New("reset is disabled in production")
			}

			if err := repositories.DropAllTables(db); err != nil {
				return fmt.Errorf("drop tables: %w", err)
			}
			if err := repositories.Migrate(db); err != nil {
				return err
			}
			if err := repositories.SeedDefaults(cmd.Context(), db, cfg); err != nil {
				return err
			}
			log.Println("🧹 Database reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the reset")
	return cmd
}
