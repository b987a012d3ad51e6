package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	appErrors "securecart/internal/errors"
	"securecart/internal/models"
	"securecart/internal/services/detection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Summary(ctx context.Context, since time.Time) (*models.AnalyticsSummary, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalyticsSummary), args.Error(1)
}

func (m *MockSource) DailySeries(ctx context.Context, since time.Time) ([]models.DailyPoint, error) {
	args := m.Called(ctx, since)
	return args.Get(0).([]models.DailyPoint), args.Error(1)
}

func (m *MockSource) RiskDistribution(ctx context.Context, since time.Time) ([]models.RiskBucket, error) {
	args := m.Called(ctx, since)
	return args.Get(0).([]models.RiskBucket), args.Error(1)
}

func (m *MockSource) TopMerchants(ctx context.Context, since time.Time, limit int) ([]models.MerchantStat, error) {
	args := m.Called(ctx, since, limit)
	return args.Get(0).([]models.MerchantStat), args.Error(1)
}

func (m *MockSource) Categories(ctx context.Context, since time.Time) ([]models.CategoryStat, error) {
	args := m.Called(ctx, since)
	return args.Get(0).([]models.CategoryStat), args.Error(1)
}

func (m *MockSource) Live(ctx context.Context, dayStart time.Time, window time.Duration, now time.Time) (*models.LiveStats, error) {
	args := m.Called(ctx, dayStart, window, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LiveStats), args.Error(1)
}

// memoryCache round-trips through JSON like the Redis cache does.
type memoryCache struct {
	data map[string][]byte
}

func (c *memoryCache) SetWithTTL(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

type fakeModel struct {
	status detection.Status
}

func (f fakeModel) Status() detection.Status { return f.status }

var fixedNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func newTestService(src Source, c Cache, m ModelStatus) *service {
	s := NewService(src, c, m).(*service)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestSince(t *testing.T) {
	s := newTestService(nil, nil, nil)

	since, err := s.since(0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 17, 0, 0, 0, 0, time.UTC), since)

	since, err = s.since(1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), since)

	for _, days := range []int{-1, 366} {
		_, err := s.since(days)
		assert.ErrorIs(t, err, appErrors.ErrInvalidPeriod)
	}
}

func TestSummaryIsCached(t *testing.T) {
	ctx := context.Background()
	src := new(MockSource)
	c := &memoryCache{data: map[string][]byte{}}
	s := newTestService(src, c, nil)

	since := time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)
	src.On("Summary", ctx, since).Return(&models.AnalyticsSummary{TotalTransactions: 12, Flagged: 3}, nil).Once()

	first, err := s.Summary(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(12), first.TotalTransactions)
	assert.Equal(t, 7, first.PeriodDays)

	second, err := s.Summary(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, first.Flagged, second.Flagged)
	src.AssertExpectations(t)
}

func TestTimeseriesFillsGaps(t *testing.T) {
	ctx := context.Background()
	src := new(MockSource)
	s := newTestService(src, nil, nil)

	since := time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)
	src.On("DailySeries", ctx, since).Return([]models.DailyPoint{
		{Day: since.AddDate(0, 0, 1), Transactions: 4, Flagged: 1},
	}, nil)

	points, err := s.Timeseries(ctx, 3)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, since, points[0].Day)
	assert.Zero(t, points[0].Transactions)
	assert.Equal(t, int64(4), points[1].Transactions)
	assert.Equal(t, fixedNow.Truncate(24*time.Hour), points[2].Day)
}

func TestMerchantsClampsLimit(t *testing.T) {
	ctx := context.Background()
	src := new(MockSource)
	s := newTestService(src, nil, nil)

	src.On("TopMerchants", ctx, mock.Anything, MaxMerchants).Return([]models.MerchantStat{{MerchantName: "Acme"}}, nil)
	src.On("TopMerchants", ctx, mock.Anything, DefaultMerchants).Return([]models.MerchantStat{}, nil)

	out, err := s.Merchants(ctx, 30, 500)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	_, err = s.Merchants(ctx, 30, 0)
	require.NoError(t, err)
	src.AssertExpectations(t)
}

func TestUnavailableWithoutSource(t *testing.T) {
	ctx := context.Background()
	s := newTestService(nil, nil, nil)

	_, err := s.Summary(ctx, 30)
	assert.ErrorIs(t, err, appErrors.ErrAnalyticsUnavailable)
	_, err = s.Categories(ctx, 30)
	assert.ErrorIs(t, err, appErrors.ErrAnalyticsUnavailable)
	_, err = s.RiskDistribution(ctx, 30)
	assert.ErrorIs(t, err, appErrors.ErrAnalyticsUnavailable)
}

func TestLiveStats(t *testing.T) {
	ctx := context.Background()
	model := fakeModel{status: detection.Status{Trained: true, Metrics: &detection.Metrics{Accuracy: 0.94}}}

	t.Run("database and model", func(t *testing.T) {
		src := new(MockSource)
		s := newTestService(src, nil, model)
		src.On("Live", ctx, fixedNow.Truncate(24*time.Hour), liveWindow, fixedNow).
			Return(&models.LiveStats{TransactionsToday: 40, FraudDetectionsToday: 2}, nil)

		stats, err := s.LiveStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(40), stats.TransactionsToday)
		assert.Equal(t, 0.94, stats.ModelAccuracy)
	})

	t.Run("no database", func(t *testing.T) {
		s := newTestService(nil, nil, model)
		stats, err := s.LiveStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, fixedNow, stats.Timestamp)
		assert.Equal(t, 0.94, stats.ModelAccuracy)
	})

	t.Run("query failure", func(t *testing.T) {
		src := new(MockSource)
		s := newTestService(src, nil, nil)
		src.On("Live", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

		_, err := s.LiveStats(ctx)
		assert.Error(t, err)
	})
}
