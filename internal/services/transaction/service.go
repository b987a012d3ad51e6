// Package transaction runs the fraud analysis pipeline and the review
// workflow of fraud reports.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"securecart/internal/config"
	appErrors "securecart/internal/errors"
	"securecart/internal/models"
	"securecart/internal/repositories"
	"securecart/internal/services/detection"
	"securecart/internal/services/ledger"
	"securecart/internal/services/processor"
	"securecart/internal/services/rules"
	"securecart/internal/validation"
)

// Deps are the collaborators of the pipeline. Transactions, Reports, Scorer,
// Rules and Settings are required; the rest may be nil.
type Deps struct {
	Transactions repositories.TransactionRepository
	Reports      repositories.FraudReportRepository
	Scorer       Scorer
	Rules        RuleEvaluator
	Settings     ModelSettings
	Velocity     VelocityTracker
	Processor    RiskSignaler
	Ledger       Ledger
	Publisher    Publisher
	Notifier     Notifier
}

type service struct {
	Deps
	flags config.FeatureFlags
	ml    config.MLConfig
	now   func() time.Time
	newID func() string
}

func NewService(deps Deps, flags config.FeatureFlags, ml config.MLConfig) Service {
	if deps.Transactions == nil {
		panic("transaction repository is required")
	}
	if deps.Reports == nil {
		panic("fraud report repository is required")
	}
	if deps.Scorer == nil {
		panic("scorer is required")
	}
	if deps.Rules == nil {
		panic("rule evaluator is required")
	}
	if deps.Settings == nil {
		panic("model settings are required")
	}
	return &service{
		Deps:  deps,
		flags: flags,
		ml:    ml,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return IDPrefix + uuid.NewString() },
	}
}

func (s *service) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	start := time.Now()
	txn := req.toModel(s.now(), s.newID)
	if err := validation.Transaction(txn); err != nil {
		return nil, err
	}

	exists, err := s.Transactions.Exists(ctx, txn.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check transaction id: %w", err)
	}
	if exists {
		return nil, appErrors.ErrDuplicateTransaction.WithMessage("transaction " + txn.ID + " was already analyzed")
	}

	velocity := s.velocity(ctx, txn)
	signal := s.signal(ctx, txn)

	var det detection.Result
	if s.flags.FraudDetection {
		det = s.Scorer.Predict(detection.SampleFromTransaction(txn, velocity))
	} else {
		det = detection.Result{
			ModelVersion: "disabled",
			Indicators:   detection.Indicators(detection.SampleFromTransaction(txn, velocity)),
		}
	}

	eval, err := s.Rules.Evaluate(ctx, rules.Input{Transaction: txn, Velocity: velocity})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate rules: %w", err)
	}

	th := s.thresholds(ctx)
	risk := det.RiskScore + eval.RiskPoints
	if signal != nil {
		risk += signal.Points
	}
	if risk > 100 {
		risk = 100
	}
	status, review := decide(det, eval, risk, th)

	txn.Status = status
	txn.RiskScore = risk
	txn.FraudProbability = det.FraudProbability
	txn.ModelVersion = det.ModelVersion
	txn.FraudReasons = reasons(det, eval, signal)
	processed := s.now()
	txn.ProcessedAt = &processed
	if signal != nil {
		txn.ProcessorResponse = signal.Summary()
	}
	txn.ProcessingMs = time.Since(start).Milliseconds()

	if err := s.Transactions.Create(ctx, txn); err != nil {
		if errors.Is(err, repositories.ErrDuplicateID) {
			return nil, appErrors.ErrDuplicateTransaction.WithMessage("transaction " + txn.ID + " was already analyzed")
		}
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	out := &Analysis{
		Transaction:  txn,
		Detection:    det,
		Rules:        eval,
		Processor:    signal,
		ManualReview: review,
	}

	if status != models.StatusApproved || review {
		report := newReport(txn, det, eval, review, processed)
		if err := s.Reports.Create(ctx, report); err != nil {
			log.Printf("❌ Failed to create fraud report for %s: %v", txn.ID, err)
		} else {
			out.Report = report
		}
	}

	if s.Velocity != nil {
		if err := s.Velocity.Record(ctx, txn.UserID, txn.ID, txn.MerchantName, txn.Amount, txn.TransactionTime); err != nil {
			log.Printf("⚠️ Failed to record velocity for %s: %v", txn.UserID, err)
		}
	}

	out.Ledger = s.record(ctx, txn, status != models.StatusApproved)
	out.ProcessingTime = time.Since(start)
	s.publish(txn, out.Report)
	return out, nil
}

func (s *service) velocity(ctx context.Context, t *models.Transaction) models.Velocity {
	if s.Velocity == nil || !s.ml.VelocityChecks {
		return models.Velocity{}
	}
	v, err := s.Velocity.Snapshot(ctx, t.UserID, t.MerchantName, t.TransactionTime)
	if err != nil {
		log.Printf("⚠️ Velocity lookup failed for %s: %v", t.UserID, err)
		return models.Velocity{}
	}
	return v
}

func (s *service) signal(ctx context.Context, t *models.Transaction) *processor.Signal {
	if t.ProcessorChargeID == "" || s.Processor == nil || !s.Processor.Enabled() {
		return nil
	}
	sig, err := s.Processor.Signal(ctx, t.ProcessorChargeID)
	if err != nil {
		log.Printf("⚠️ Processor signal unavailable for %s: %v", t.ID, err)
		return nil
	}
	return sig
}

func (s *service) thresholds(ctx context.Context) thresholds {
	th := thresholds{
		high:        s.ml.HighRiskThreshold,
		medium:      s.ml.MediumRiskThreshold,
		autoDecline: s.ml.AutoDeclineScore,
	}
	if th.high == 0 {
		th.high = DefaultHighRiskThreshold
	}
	if th.medium == 0 {
		th.medium = DefaultMediumRiskThreshold
	}
	if th.autoDecline == 0 {
		th.autoDecline = DefaultAutoDeclineScore
	}

	ms, err := s.Settings.Model(ctx)
	if err != nil {
		log.Printf("⚠️ Using configured thresholds, model settings unavailable: %v", err)
		return th
	}
	if ms.HighRiskThreshold > 0 {
		th.high = ms.HighRiskThreshold
	}
	if ms.MediumRiskThreshold > 0 {
		th.medium = ms.MediumRiskThreshold
	}
	if ms.AutoDeclineScore > 0 {
		th.autoDecline = ms.AutoDeclineScore
	}
	return th
}

// decide maps the combined verdict to a status and the manual review flag.
func decide(det detection.Result, eval rules.Evaluation, risk int, th thresholds) (string, bool) {
	status := models.StatusApproved
	switch {
	case eval.Declines() || risk >= th.autoDecline:
		status = models.StatusDeclined
	case det.IsFraud || eval.Flags() || det.FraudProbability >= th.high:
		status = models.StatusFlagged
	}
	review := status == models.StatusFlagged || eval.Reviews() || det.FraudProbability >= th.medium
	return status, review
}

func reasons(det detection.Result, eval rules.Evaluation, signal *processor.Signal) []string {
	out := make([]string, 0, len(det.Indicators)+len(eval.Triggered)+1)
	out = append(out, det.Indicators...)
	for _, name := range eval.Triggered {
		out = append(out, "rule:"+name)
	}
	if signal != nil && signal.Points > 0 {
		out = append(out, "processor_risk_"+signal.RiskLevel)
	}
	return out
}

func newReport(t *models.Transaction, det detection.Result, eval rules.Evaluation, review bool, at time.Time) *models.FraudReport {
	preds := models.JSON{}
	for name, p := range det.Predictions {
		preds[name] = p
	}
	modelName := "ensemble"
	if det.Heuristic {
		modelName = "heuristic"
	}
	return &models.FraudReport{
		TransactionID:        t.ID,
		IsFraud:              t.Status != models.StatusApproved,
		FraudProbability:     det.FraudProbability,
		RiskScore:            t.RiskScore,
		ConfidenceScore:      det.Confidence,
		ModelName:            modelName,
		ModelVersion:         det.ModelVersion,
		ModelPredictions:     preds,
		FraudIndicators:      det.Indicators,
		RuleTriggers:         eval.Triggered,
		InvestigationStatus:  models.InvestigationPending,
		ManualReviewRequired: review,
		DetectedAt:           at,
	}
}

// record writes the ledger entry. Failures are logged; the analysis stands.
func (s *service) record(ctx context.Context, t *models.Transaction, isFraud bool) *ledger.Receipt {
	if s.Ledger == nil || !s.flags.BlockchainIntegration {
		return nil
	}
	receipt, err := s.Ledger.RecordTransaction(ctx, t, isFraud)
	if err != nil {
		log.Printf("❌ Ledger record failed for %s: %v", t.ID, err)
		return nil
	}
	at := receipt.RecordedAt
	if err := s.Transactions.UpdateLedger(ctx, t.ID, receipt.Hash, true, receipt.Local, at); err != nil {
		log.Printf("⚠️ Failed to store ledger hash for %s: %v", t.ID, err)
	}
	t.LedgerHash = receipt.Hash
	t.LedgerVerified = true
	t.LedgerLocal = receipt.Local
	t.LedgerVerifiedAt = &at
	return receipt
}

func (s *service) publish(t *models.Transaction, report *models.FraudReport) {
	if s.Publisher != nil {
		s.Publisher.PublishTransaction(t)
	}
	if t.Status == models.StatusApproved {
		return
	}
	alert := models.NewFraudAlert(t)
	if s.Publisher != nil {
		s.Publisher.PublishAlert(alert)
	}
	if s.Notifier != nil && s.flags.UserNotifications {
		var reportID *uuid.UUID
		if report != nil {
			reportID = &report.ID
		}
		s.Notifier.Enqueue(alert, reportID)
	}
}

// AnalyzeBatch analyzes each request independently. A failing row does not
// stop the batch.
func (s *service) AnalyzeBatch(ctx context.Context, reqs []AnalyzeRequest) (*BatchResult, error) {
	if len(reqs) == 0 {
		return nil, appErrors.ErrValidation.WithMessage(ErrEmptyBatch.Error())
	}
	limit := s.ml.BatchSize
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	if len(reqs) > limit {
		return nil, appErrors.ErrBatchTooLarge.WithMessage(fmt.Sprintf("batch of %d exceeds the maximum of %d", len(reqs), limit))
	}

	res := &BatchResult{Items: make([]BatchItem, 0, len(reqs))}
	res.Summary.Total = len(reqs)
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		item := BatchItem{Index: i, TransactionID: req.ID}
		a, err := s.Analyze(ctx, req)
		if err != nil {
			item.Error = err.Error()
			res.Summary.Failed++
		} else {
			item.Analysis = a
			item.TransactionID = a.Transaction.ID
			res.Summary.Analyzed++
			switch a.Transaction.Status {
			case models.StatusApproved:
				res.Summary.Approved++
			case models.StatusFlagged:
				res.Summary.Flagged++
			case models.StatusDeclined:
				res.Summary.Declined++
			}
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}

func (s *service) List(ctx context.Context, filter models.TransactionFilter) (*ListResult, error) {
	txns, totals, err := s.Transactions.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	return &ListResult{Transactions: txns, Totals: totals, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *service) Get(ctx context.Context, id string) (*models.Transaction, error) {
	t, err := s.Transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, appErrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// UpdateStatus is the manual override of an analyst.
func (s *service) UpdateStatus(ctx context.Context, id, status string) (*models.Transaction, error) {
	if !models.ValidTransactionStatus(status) {
		return nil, appErrors.ErrInvalidStatus.WithMessage("unknown status " + status)
	}
	if err := s.Transactions.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, appErrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Publisher != nil {
		s.Publisher.PublishStatusChange(t)
	}
	return t, nil
}

func (s *service) Verify(ctx context.Context, id string) (*ledger.Verification, error) {
	if s.Ledger == nil || !s.flags.BlockchainIntegration {
		return nil, appErrors.ErrLedgerUnavailable.WithMessage(ErrLedgerDisabled.Error())
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := s.Ledger.Verify(ctx, t)
	if err != nil {
		return nil, err
	}
	if err := s.Transactions.UpdateLedger(ctx, t.ID, t.LedgerHash, v.Verified, t.LedgerLocal, v.CheckedAt); err != nil {
		log.Printf("⚠️ Failed to store verification of %s: %v", t.ID, err)
	}
	if !v.Verified {
		log.Printf("🔐 Integrity check failed for transaction %s", t.ID)
	}
	return v, nil
}

func (s *service) ListReports(ctx context.Context, filter models.FraudReportFilter) ([]models.FraudReport, int64, error) {
	reports, total, err := s.Reports.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list fraud reports: %w", err)
	}
	if reports == nil {
		reports = []models.FraudReport{}
	}
	return reports, total, nil
}

func (s *service) GetReport(ctx context.Context, id uuid.UUID) (*models.FraudReport, error) {
	r, err := s.Reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrReportNotFound) {
			return nil, appErrors.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get fraud report: %w", err)
	}
	return r, nil
}

var transitions = map[string]map[string]bool{
	models.InvestigationPending: {
		models.InvestigationPending:       true,
		models.InvestigationInvestigating: true,
		models.InvestigationResolved:      true,
	},
	models.InvestigationInvestigating: {
		models.InvestigationInvestigating: true,
		models.InvestigationResolved:      true,
	},
}

var decisions = map[string]bool{
	models.DecisionConfirmedFraud: true,
	models.DecisionFalsePositive:  true,
	models.DecisionInconclusive:   true,
}

// ReviewReport advances the investigation. Resolving applies the decision to
// the transaction: confirmed fraud declines it, a false positive approves it.
func (s *service) ReviewReport(ctx context.Context, id uuid.UUID, req ReviewRequest, reviewer uuid.UUID) (*models.FraudReport, error) {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	next := req.Status
	if next == "" {
		next = report.InvestigationStatus
	}
	if report.InvestigationStatus == models.InvestigationResolved {
		return nil, appErrors.ErrInvalidTransition.WithMessage(ErrReportResolved.Error())
	}
	if !transitions[report.InvestigationStatus][next] {
		return nil, appErrors.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("cannot move report from %s to %s", report.InvestigationStatus, next))
	}

	now := s.now()
	report.ReviewerID = &reviewer
	if req.Notes != "" {
		report.ReviewerNotes = req.Notes
	}
	if next == models.InvestigationInvestigating && report.InvestigationStartedAt == nil {
		report.InvestigationStartedAt = &now
	}

	var newStatus string
	if next == models.InvestigationResolved {
		if req.Decision == "" {
			return nil, appErrors.ErrDecisionRequired
		}
		if !decisions[req.Decision] {
			return nil, appErrors.ErrDecisionRequired.WithMessage(ErrUnknownDecision.Error() + ": " + req.Decision)
		}
		if report.InvestigationStartedAt == nil {
			report.InvestigationStartedAt = &now
		}
		report.InvestigationEndedAt = &now
		report.FinalDecision = req.Decision
		report.ManualReviewRequired = false

		switch req.Decision {
		case models.DecisionConfirmedFraud:
			newStatus = models.StatusDeclined
			report.IsFraud = true
			report.ActionTaken = ActionDeclined
		case models.DecisionFalsePositive:
			newStatus = models.StatusApproved
			report.IsFraud = false
			report.ActionTaken = ActionApproved
		default:
			report.ActionTaken = ActionNone
		}
		if req.ActionTaken != "" {
			report.ActionTaken = req.ActionTaken
		}
	}
	report.InvestigationStatus = next

	if err := s.Reports.Update(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to update fraud report: %w", err)
	}
	if newStatus != "" {
		if _, err := s.UpdateStatus(ctx, report.TransactionID, newStatus); err != nil {
			return nil, fmt.Errorf("failed to apply decision to %s: %w", report.TransactionID, err)
		}
	}
	log.Printf("✅ Fraud report %s moved to %s by %s", report.ID, next, reviewer)
	return report, nil
}

func (s *service) Alerts(ctx context.Context, q AlertQuery) ([]models.FraudAlert, error) {
	if q.Limit <= 0 || q.Limit > MaxAlertLimit {
		q.Limit = MaxAlertLimit
	}
	if q.Since.IsZero() {
		q.Since = s.now().Add(-DefaultAlertWindow)
	}

	txns, err := s.Transactions.Risky(ctx, q.MinRiskScore, q.Since, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}
	alerts := make([]models.FraudAlert, 0, len(txns))
	for i := range txns {
		alerts = append(alerts, models.NewFraudAlert(&txns[i]))
	}

	if q.IncludeFalsePositives {
		reports, _, err := s.Reports.List(ctx, models.FraudReportFilter{
			InvestigationStatus: models.InvestigationResolved,
			FinalDecision:       models.DecisionFalsePositive,
			Limit:               q.Limit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load false positives: %w", err)
		}
		for _, r := range reports {
			if r.RiskScore < q.MinRiskScore || r.DetectedAt.Before(q.Since) {
				continue
			}
			t, err := s.Transactions.GetByID(ctx, r.TransactionID)
			if err != nil {
				continue
			}
			a := models.NewFraudAlert(t)
			a.FalsePositive = true
			alerts = append(alerts, a)
		}
		sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].Timestamp.After(alerts[j].Timestamp) })
		if len(alerts) > q.Limit {
			alerts = alerts[:q.Limit]
		}
	}
	return alerts, nil
}
