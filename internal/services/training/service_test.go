package training

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"securecart/internal/config"
	appErrors "securecart/internal/errors"
	"securecart/internal/models"
	"securecart/internal/repositories"
	"securecart/internal/services/detection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockModelRepository struct {
	mock.Mock
}

func (m *MockModelRepository) Register(ctx context.Context, model *models.MLModel) error {
	return m.Called(ctx, model).Error(0)
}

func (m *MockModelRepository) Activate(ctx context.Context, name, version string) error {
	return m.Called(ctx, name, version).Error(0)
}

func (m *MockModelRepository) Active(ctx context.Context) (*models.MLModel, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MLModel), args.Error(1)
}

func (m *MockModelRepository) List(ctx context.Context) ([]models.MLModel, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.MLModel), args.Error(1)
}

type stubTransactions struct {
	byStatus map[string][]models.Transaction
}

func (s *stubTransactions) List(_ context.Context, f models.TransactionFilter) ([]models.Transaction, models.TransactionTotals, error) {
	rows := s.byStatus[f.Status]
	return rows, models.TransactionTotals{TotalCount: int64(len(rows))}, nil
}

type stubReports struct {
	reports []models.FraudReport
}

func (s *stubReports) List(_ context.Context, _ models.FraudReportFilter) ([]models.FraudReport, int64, error) {
	return s.reports, int64(len(s.reports)), nil
}

type blockingDetector struct {
	*detection.Detector
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingDetector) Train(ctx context.Context, samples []detection.Sample, opts detection.TrainOptions) (*detection.TrainingReport, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.Detector.Train(ctx, samples, opts)
}

func testML(dir string) config.MLConfig {
	return config.MLConfig{ModelPath: dir, ActiveModelName: "fraud_ensemble", MinTrainingSize: 20}
}

var enabled = config.FeatureFlags{MLModelTraining: true}

func TestTrainDisabled(t *testing.T) {
	svc := NewService(Deps{Detector: detection.NewDetector(detection.Options{})}, testML(t.TempDir()), config.FeatureFlags{})

	_, err := svc.Train(context.Background(), Request{Synthetic: true})
	assert.ErrorIs(t, err, appErrors.ErrTrainingDisabled)
}

func TestTrainSyntheticRegistersModel(t *testing.T) {
	dir := t.TempDir()
	det := detection.NewDetector(detection.Options{Version: "2.0.0"})
	registry := new(MockModelRepository)
	registry.On("Register", mock.Anything, mock.MatchedBy(func(m *models.MLModel) bool {
		return m.Name == "fraud_ensemble" && m.TrainingSamples == 300 && m.ModelType == "ensemble"
	})).Return(nil)
	registry.On("Activate", mock.Anything, "fraud_ensemble", mock.AnythingOfType("string")).Return(nil)

	svc := NewService(Deps{Detector: det, Registry: registry}, testML(dir), enabled)
	res, err := svc.Train(context.Background(), Request{Synthetic: true, Samples: 300, Seed: 7})
	require.NoError(t, err)

	assert.Equal(t, SourceSynthetic, res.Source)
	assert.True(t, det.Trained())
	require.NotNil(t, res.Model)
	assert.True(t, res.Model.IsActive)
	assert.Contains(t, res.Model.Version, "2.0.0-")
	assert.Contains(t, res.Model.Metrics, "logistic_regression")

	_, statErr := os.Stat(detection.SnapshotPath(dir))
	assert.NoError(t, statErr)
	registry.AssertExpectations(t)
}

func TestTrainFallsBackWhenLabelsAreScarce(t *testing.T) {
	txns := &stubTransactions{byStatus: map[string][]models.Transaction{
		models.StatusApproved: {{ID: "txn_1", Amount: 10, TransactionTime: time.Now()}},
	}}
	svc := NewService(Deps{
		Detector:     detection.NewDetector(detection.Options{}),
		Transactions: txns,
		Reports:      &stubReports{},
	}, testML(t.TempDir()), enabled)

	res, err := svc.Train(context.Background(), Request{Samples: 200})
	require.NoError(t, err)
	assert.Equal(t, SourceSynthetic, res.Source)
	assert.Nil(t, res.Model)
}

func TestLabelledSamples(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	approved := []models.Transaction{{ID: "a1", Amount: 20, TransactionTime: now}, {ID: "fp", Amount: 900, TransactionTime: now}}
	declined := []models.Transaction{{ID: "d1", Amount: 4000, TransactionTime: now}, {ID: "unreviewed", Amount: 3000, TransactionTime: now}}
	svc := &service{
		Deps: Deps{
			Transactions: &stubTransactions{byStatus: map[string][]models.Transaction{
				models.StatusApproved: approved,
				models.StatusDeclined: declined,
			}},
			Reports: &stubReports{reports: []models.FraudReport{
				{TransactionID: "d1", FinalDecision: models.DecisionConfirmedFraud},
				{TransactionID: "fp", FinalDecision: models.DecisionFalsePositive},
			}},
		},
	}

	samples, err := svc.labelled(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 3)

	var fraud int
	for _, s := range samples {
		fraud += s.Label
		if s.Amount == 4000 {
			assert.Equal(t, 1, s.Label)
		}
	}
	assert.Equal(t, 1, fraud)
}

func TestTrainRejectsConcurrentRuns(t *testing.T) {
	det := &blockingDetector{
		Detector: detection.NewDetector(detection.Options{}),
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	svc := NewService(Deps{Detector: det}, testML(t.TempDir()), enabled)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Train(context.Background(), Request{Synthetic: true, Samples: 200})
		done <- err
	}()
	<-det.started

	_, err := svc.Train(context.Background(), Request{Synthetic: true})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	close(det.release)
	assert.NoError(t, <-done)
}

func TestStatus(t *testing.T) {
	registry := new(MockModelRepository)
	registry.On("Active", mock.Anything).Return(nil, repositories.ErrModelNotFound)

	svc := NewService(Deps{Detector: detection.NewDetector(detection.Options{Threshold: 0.6}), Registry: registry}, testML(t.TempDir()), enabled)
	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Trained)
	assert.Equal(t, 0.6, st.Threshold)
	assert.Nil(t, st.Active)
	assert.False(t, st.Training)
}
