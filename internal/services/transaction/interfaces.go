package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"securecart/internal/models"
	"securecart/internal/services/detection"
	"securecart/internal/services/ledger"
	"securecart/internal/services/processor"
	"securecart/internal/services/rules"
)

// Scorer produces the model verdict. *detection.Detector implements it.
type Scorer interface {
	Predict(s detection.Sample) detection.Result
}

// RuleEvaluator runs the enabled security rules. rules.Service implements it.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, in rules.Input) (rules.Evaluation, error)
}

// VelocityTracker keeps per-user spending history. *cache.VelocityStore
// implements it.
type VelocityTracker interface {
	Snapshot(ctx context.Context, userID, merchant string, at time.Time) (models.Velocity, error)
	Record(ctx context.Context, userID, txnID, merchant string, amount float64, at time.Time) error
}

// RiskSignaler looks up the payment processor's opinion of a charge.
type RiskSignaler interface {
	Enabled() bool
	Signal(ctx context.Context, chargeID string) (*processor.Signal, error)
}

// Ledger records and verifies transaction fingerprints.
type Ledger interface {
	RecordTransaction(ctx context.Context, t *models.Transaction, isFraud bool) (*ledger.Receipt, error)
	Verify(ctx context.Context, t *models.Transaction) (*ledger.Verification, error)
}

// ModelSettings supplies the live decision thresholds.
type ModelSettings interface {
	Model(ctx context.Context) (*models.ModelSettings, error)
}

// Publisher pushes updates to connected dashboards. PublishTransaction is
// called once per analyzed transaction, PublishStatusChange on later
// status edits.
type Publisher interface {
	PublishTransaction(t *models.Transaction)
	PublishStatusChange(t *models.Transaction)
	PublishAlert(a models.FraudAlert)
}

// Notifier queues alerts for the external channels.
type Notifier interface {
	Enqueue(alert models.FraudAlert, reportID *uuid.UUID) bool
}

// Service analyzes transactions and manages the fraud review workflow.
type Service interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error)
	AnalyzeBatch(ctx context.Context, reqs []AnalyzeRequest) (*BatchResult, error)
	List(ctx context.Context, filter models.TransactionFilter) (*ListResult, error)
	Get(ctx context.Context, id string) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, id, status string) (*models.Transaction, error)
	Verify(ctx context.Context, id string) (*ledger.Verification, error)

	ListReports(ctx context.Context, filter models.FraudReportFilter) ([]models.FraudReport, int64, error)
	GetReport(ctx context.Context, id uuid.UUID) (*models.FraudReport, error)
	ReviewReport(ctx context.Context, id uuid.UUID, req ReviewRequest, reviewer uuid.UUID) (*models.FraudReport, error)

	// Alerts returns recent non-approved transactions as alerts.
	Alerts(ctx context.Context, q AlertQuery) ([]models.FraudAlert, error)
}
