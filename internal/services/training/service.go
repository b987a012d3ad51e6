// Package training retrains the fraud detector and keeps the model registry
// in step with the snapshot on disk.
package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"securecart/internal/config"
	appErrors "securecart/internal/errors"
	"securecart/internal/models"
	"securecart/internal/repositories"
	"securecart/internal/services/detection"
)

const (
	SourceLabelled  = "labelled"
	SourceSynthetic = "synthetic"

	DefaultSyntheticSamples = 2000
	MaxSyntheticSamples     = 50000
	labelledScanLimit       = 5000
)

// Detector is the part of *detection.Detector training needs.
type Detector interface {
	Train(ctx context.Context, samples []detection.Sample, opts detection.TrainOptions) (*detection.TrainingReport, error)
	Save(dir string) error
	Status() detection.Status
}

// LabelSource lists transactions with a known outcome.
type LabelSource interface {
	List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, models.TransactionTotals, error)
}

// ReportSource lists resolved fraud reports.
type ReportSource interface {
	List(ctx context.Context, f models.FraudReportFilter) ([]models.FraudReport, int64, error)
}

type Request struct {
	Synthetic bool  `json:"synthetic"`
	Samples   int   `json:"samples"`
	Seed      int64 `json:"seed"`
}

type Result struct {
	Source string                    `json:"dataSource"`
	Report *detection.TrainingReport `json:"report"`
	Model  *models.MLModel           `json:"model,omitempty"`
}

type Service interface {
	Train(ctx context.Context, req Request) (*Result, error)
	Models(ctx context.Context) ([]models.MLModel, error)
	Status(ctx context.Context) (*Status, error)
}

// Status combines the live detector state with the active registry row.
type Status struct {
	detection.Status
	Active   *models.MLModel `json:"activeModel,omitempty"`
	Training bool            `json:"trainingInProgress"`
}

// Deps are the collaborators of the service. Registry, Transactions and
// Reports may be nil; training then uses synthetic data and skips the
// registry.
type Deps struct {
	Detector     Detector
	Registry     repositories.ModelRepository
	Transactions LabelSource
	Reports      ReportSource
}

type service struct {
	Deps
	ml      config.MLConfig
	enabled bool
	running atomic.Bool
	now     func() time.Time
}

func NewService(deps Deps, ml config.MLConfig, flags config.FeatureFlags) Service {
	if deps.Detector == nil {
		panic("detector is required")
	}
	return &service{
		Deps:    deps,
		ml:      ml,
		enabled: flags.MLModelTraining,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Train fits the detector on labelled history, or on generated data when
// asked to or when too few labelled rows exist. Only one run may be active.
func (s *service) Train(ctx context.Context, req Request) (*Result, error) {
	if !s.enabled {
		return nil, appErrors.ErrTrainingDisabled
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, appErrors.ErrConflict.WithMessage("model training already in progress")
	}
	defer s.running.Store(false)

	if req.Seed == 0 {
		req.Seed = 42
	}
	samples, source, err := s.samples(ctx, req)
	if err != nil {
		return nil, err
	}

	report, err := s.Detector.Train(ctx, samples, detection.TrainOptions{Seed: req.Seed, TestSplit: 0.2})
	if err != nil {
		return nil, fmt.Errorf("train detector: %w", err)
	}
	if s.ml.ModelPath != "" {
		if err := s.Detector.Save(s.ml.ModelPath); err != nil {
			log.Printf("⚠️ Failed to save model snapshot: %v", err)
		}
	}

	result := &Result{Source: source, Report: report}
	if s.Registry != nil {
		m := s.registryRow(report)
		if err := s.Registry.Register(ctx, m); err != nil {
			log.Printf("⚠️ Failed to register model %s %s: %v", m.Name, m.Version, err)
			return result, nil
		}
		if err := s.Registry.Activate(ctx, m.Name, m.Version); err != nil {
			log.Printf("⚠️ Failed to activate model %s %s: %v", m.Name, m.Version, err)
		} else {
			m.IsActive = true
		}
		result.Model = m
	}
	return result, nil
}

func (s *service) samples(ctx context.Context, req Request) ([]detection.Sample, string, error) {
	if !req.Synthetic && s.Transactions != nil && s.Reports != nil {
		labelled, err := s.labelled(ctx)
		if err != nil {
			return nil, "", err
		}
		if len(labelled) >= s.minimum() && hasBothClasses(labelled) {
			return labelled, SourceLabelled, nil
		}
		log.Printf("⚠️ Only %d labelled transactions available, training on synthetic data", len(labelled))
	}

	n := req.Samples
	if n <= 0 {
		n = DefaultSyntheticSamples
	}
	if n > MaxSyntheticSamples {
		n = MaxSyntheticSamples
	}
	return detection.GenerateSynthetic(n, req.Seed, s.now()), SourceSynthetic, nil
}

// labelled turns resolved reports into labels and treats approved
// transactions without a report as legitimate.
func (s *service) labelled(ctx context.Context) ([]detection.Sample, error) {
	reports, _, err := s.Reports.List(ctx, models.FraudReportFilter{
		InvestigationStatus: models.InvestigationResolved,
		Limit:               labelledScanLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list resolved reports: %w", err)
	}
	labels := make(map[string]int, len(reports))
	for _, r := range reports {
		switch r.FinalDecision {
		case models.DecisionConfirmedFraud:
			labels[r.TransactionID] = 1
		case models.DecisionFalsePositive:
			labels[r.TransactionID] = 0
		}
	}

	var out []detection.Sample
	for _, status := range []string{models.StatusApproved, models.StatusDeclined, models.StatusFlagged} {
		txns, _, err := s.Transactions.List(ctx, models.TransactionFilter{Status: status, Limit: labelledScanLimit})
		if err != nil {
			return nil, fmt.Errorf("list %s transactions: %w", status, err)
		}
		for i := range txns {
			label, known := labels[txns[i].ID]
			if !known && status != models.StatusApproved {
				continue
			}
			sample := detection.SampleFromTransaction(&txns[i], models.Velocity{})
			sample.Label = label
			out = append(out, sample)
		}
	}
	return out, nil
}

func (s *service) minimum() int {
	if s.ml.MinTrainingSize > 0 {
		return s.ml.MinTrainingSize
	}
	return 100
}

func hasBothClasses(samples []detection.Sample) bool {
	var fraud int
	for _, smp := range samples {
		fraud += smp.Label
	}
	return fraud > 0 && fraud < len(samples)
}

func (s *service) registryRow(r *detection.TrainingReport) *models.MLModel {
	name := s.ml.ActiveModelName
	if name == "" {
		name = "ensemble"
	}
	perModel := models.JSON{}
	for n, m := range r.Models {
		perModel[n] = map[string]interface{}{
			"accuracy":  m.Accuracy,
			"precision": m.Precision,
			"recall":    m.Recall,
			"f1Score":   m.F1,
			"aucScore":  m.AUC,
		}
	}
	status := s.Detector.Status()
	weights := models.JSON{}
	for n, w := range status.Weights {
		weights[n] = w
	}
	deployed := r.TrainedAt
	return &models.MLModel{
		Name:            name,
		Version:         fmt.Sprintf("%s-%s", r.Version, r.TrainedAt.Format("20060102150405")),
		ModelType:       "ensemble",
		FilePath:        detection.SnapshotPath(s.ml.ModelPath),
		Accuracy:        r.Ensemble.Accuracy,
		Precision:       r.Ensemble.Precision,
		Recall:          r.Ensemble.Recall,
		F1Score:         r.Ensemble.F1,
		AUCScore:        r.Ensemble.AUC,
		TrainingSamples: r.Samples,
		Metrics:         perModel,
		Hyperparameters: models.JSON{"weights": weights, "threshold": status.Threshold},
		TrainedAt:       r.TrainedAt,
		DeployedAt:      &deployed,
	}
}

func (s *service) Models(ctx context.Context) ([]models.MLModel, error) {
	if s.Registry == nil {
		return []models.MLModel{}, nil
	}
	return s.Registry.List(ctx)
}

func (s *service) Status(ctx context.Context) (*Status, error) {
	st := &Status{Status: s.Detector.Status(), Training: s.running.Load()}
	if s.Registry != nil {
		active, err := s.Registry.Active(ctx)
		if err != nil && !errors.Is(err, repositories.ErrModelNotFound) {
			return nil, err
		}
		st.Active = active
	}
	return st, nil
}
