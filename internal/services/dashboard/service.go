// Package dashboard serves the analytics views and the live statistics feed.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"time"

	appErrors "securecart/internal/errors"
	"securecart/internal/models"
	"securecart/internal/services/detection"
)

const (
	DefaultPeriodDays = 30
	MaxPeriodDays     = 365
	DefaultMerchants  = 10
	MaxMerchants      = 50

	liveWindow = 5 * time.Minute
	cacheTTL   = time.Minute
)

// Source runs the aggregate queries. *analytics.Repository implements it.
type Source interface {
	Summary(ctx context.Context, since time.Time) (*models.AnalyticsSummary, error)
	DailySeries(ctx context.Context, since time.Time) ([]models.DailyPoint, error)
	RiskDistribution(ctx context.Context, since time.Time) ([]models.RiskBucket, error)
	TopMerchants(ctx context.Context, since time.Time, limit int) ([]models.MerchantStat, error)
	Categories(ctx context.Context, since time.Time) ([]models.CategoryStat, error)
	Live(ctx context.Context, dayStart time.Time, window time.Duration, now time.Time) (*models.LiveStats, error)
}

// Cache is the JSON cache. *cache.CacheService implements it.
type Cache interface {
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
}

// ModelStatus reports the detector state. *detection.Detector implements it.
type ModelStatus interface {
	Status() detection.Status
}

type Summary struct {
	models.AnalyticsSummary
	PeriodDays int       `json:"periodDays"`
	Since      time.Time `json:"since"`
}

type Service interface {
	Summary(ctx context.Context, days int) (*Summary, error)
	Timeseries(ctx context.Context, days int) ([]models.DailyPoint, error)
	RiskDistribution(ctx context.Context, days int) ([]models.RiskBucket, error)
	Merchants(ctx context.Context, days, limit int) ([]models.MerchantStat, error)
	Categories(ctx context.Context, days int) ([]models.CategoryStat, error)
	LiveStats(ctx context.Context) (*models.LiveStats, error)
}

type service struct {
	source Source
	cache  Cache
	model  ModelStatus
	now    func() time.Time
}

// NewService builds the dashboard service. source is nil when the database
// is not PostgreSQL; every query then reports ErrAnalyticsUnavailable. cache
// and model are optional.
func NewService(source Source, cache Cache, model ModelStatus) Service {
	return &service{
		source: source,
		cache:  cache,
		model:  model,
		now:    time.Now,
	}
}

func (s *service) since(days int) (time.Time, error) {
	if days == 0 {
		days = DefaultPeriodDays
	}
	if days < 1 || days > MaxPeriodDays {
		return time.Time{}, appErrors.ErrInvalidPeriod
	}
	day := s.now().UTC().Truncate(24 * time.Hour)
	return day.AddDate(0, 0, -(days - 1)), nil
}

func periodDays(days int) int {
	if days == 0 {
		return DefaultPeriodDays
	}
	return days
}

// cached serves key from the cache or fills it with load.
func cached[T any](ctx context.Context, s *service, key string, load func() (T, error)) (T, error) {
	var out T
	if s.source == nil {
		return out, appErrors.ErrAnalyticsUnavailable
	}
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, key, &out); err == nil && ok {
			return out, nil
		}
	}
	out, err := load()
	if err != nil {
		return out, err
	}
	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, key, out, cacheTTL); err != nil {
			log.Printf("⚠️ Failed to cache %s: %v", key, err)
		}
	}
	return out, nil
}

func (s *service) Summary(ctx context.Context, days int) (*Summary, error) {
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("analytics:summary:%d", periodDays(days))
	return cached(ctx, s, key, func() (*Summary, error) {
		sum, err := s.source.Summary(ctx, since)
		if err != nil {
			return nil, err
		}
		return &Summary{AnalyticsSummary: *sum, PeriodDays: periodDays(days), Since: since}, nil
	})
}

func (s *service) Timeseries(ctx context.Context, days int) ([]models.DailyPoint, error) {
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, fmt.Sprintf("analytics:timeseries:%d", periodDays(days)), func() ([]models.DailyPoint, error) {
		points, err := s.source.DailySeries(ctx, since)
		if err != nil {
			return nil, err
		}
		return fillDays(points, since, s.now()), nil
	})
}

// fillDays adds empty points for days without transactions.
func fillDays(points []models.DailyPoint, since, now time.Time) []models.DailyPoint {
	byDay := make(map[time.Time]models.DailyPoint, len(points))
	for _, p := range points {
		byDay[p.Day.UTC().Truncate(24*time.Hour)] = p
	}
	end := now.UTC().Truncate(24 * time.Hour)
	out := make([]models.DailyPoint, 0, int(end.Sub(since).Hours()/24)+1)
	for day := since; !day.After(end); day = day.AddDate(0, 0, 1) {
		p, ok := byDay[day]
		if !ok {
			p = models.DailyPoint{Day: day}
		}
		out = append(out, p)
	}
	return out
}

func (s *service) RiskDistribution(ctx context.Context, days int) ([]models.RiskBucket, error) {
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, fmt.Sprintf("analytics:risk:%d", periodDays(days)), func() ([]models.RiskBucket, error) {
		return s.source.RiskDistribution(ctx, since)
	})
}

func (s *service) Merchants(ctx context.Context, days, limit int) ([]models.MerchantStat, error) {
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMerchants
	}
	if limit > MaxMerchants {
		limit = MaxMerchants
	}
	key := fmt.Sprintf("analytics:merchants:%d:%d", periodDays(days), limit)
	return cached(ctx, s, key, func() ([]models.MerchantStat, error) {
		return s.source.TopMerchants(ctx, since, limit)
	})
}

func (s *service) Categories(ctx context.Context, days int) ([]models.CategoryStat, error) {
	since, err := s.since(days)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, fmt.Sprintf("analytics:categories:%d", periodDays(days)), func() ([]models.CategoryStat, error) {
		return s.source.Categories(ctx, since)
	})
}

// LiveStats is never cached. Without a database source it still reports the
// model accuracy so the live panel renders.
func (s *service) LiveStats(ctx context.Context) (*models.LiveStats, error) {
	now := s.now()
	stats := &models.LiveStats{Timestamp: now}
	if s.source != nil {
		live, err := s.source.Live(ctx, now.UTC().Truncate(24*time.Hour), liveWindow, now)
		if err != nil {
			return nil, err
		}
		stats = live
	}
	if s.model != nil {
		if st := s.model.Status(); st.Metrics != nil {
			stats.ModelAccuracy = st.Metrics.Accuracy
		}
	}
	return stats, nil
}
