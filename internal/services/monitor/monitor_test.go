package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"securecart/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	metrics []models.PerformanceMetric
	logs    []*models.SystemLog
	err     error
}

func (s *memorySink) InsertMetrics(_ context.Context, m []models.PerformanceMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.metrics = append(s.metrics, m...)
	return nil
}

func (s *memorySink) Insert(_ context.Context, e *models.SystemLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, e)
	return nil
}

func (s *memorySink) names() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]float64{}
	for _, m := range s.metrics {
		out[m.MetricName] += m.Value
	}
	return out
}

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector(nil)
	c.RecordOperationDuration("analyze", 10*time.Millisecond)
	c.RecordOperationDuration("analyze", 30*time.Millisecond)
	c.RecordOperationResult("analyze", "flagged")
	c.RecordError("analyze", "timeout")
	c.RecordCacheHit("analytics")
	c.RecordCacheMiss("analytics")
	c.RecordTransaction("approved", 100, 10)
	c.RecordTransaction("declined", 300, 90)

	s := c.Snapshot()
	op := s.Operations["analyze"]
	assert.Equal(t, int64(2), op.Count)
	assert.Equal(t, 20.0, op.AverageMs)
	assert.Equal(t, 30.0, op.MaxMs)
	assert.Equal(t, int64(1), op.Results["flagged"])
	assert.Equal(t, int64(1), op.Errors)
	assert.Equal(t, "timeout", op.LastError)
	assert.Equal(t, int64(1), s.CacheHits["analytics"])
	assert.Equal(t, 400.0, s.Volume)
	assert.Equal(t, 50.0, s.AverageRisk)
}

func TestCollectorFlush(t *testing.T) {
	ctx := context.Background()
	sink := &memorySink{}
	c := NewCollector(sink)

	n, err := c.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "an empty window writes nothing")

	c.RecordOperationDuration("analyze", 5*time.Millisecond)
	c.RecordTransaction("flagged", 50, 80)
	n, err = c.Flush(ctx)
	require.NoError(t, err)
	assert.Positive(t, n)

	names := sink.names()
	assert.Equal(t, 5.0, names["operation_duration_avg"])
	assert.Equal(t, 1.0, names["transactions"])
	assert.Equal(t, 80.0, names["average_risk_score"])
	assert.Empty(t, c.Snapshot().Operations, "flush starts a new window")

	sink.err = errors.New("db down")
	c.RecordError("analyze", "x")
	_, err = c.Flush(ctx)
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()
	ok := func(context.Context) (map[string]interface{}, error) { return map[string]interface{}{"n": 1}, nil }
	fail := func(context.Context) (map[string]interface{}, error) { return nil, errors.New("down") }

	tests := []struct {
		name     string
		redis    CheckFunc
		database CheckFunc
		want     string
	}{
		{"all healthy", ok, ok, StatusHealthy},
		{"optional failure", fail, ok, StatusDegraded},
		{"critical failure", ok, fail, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealth("1.0.0", time.Second)
			h.Register("database", true, tt.database)
			h.Register("redis", false, tt.redis)

			report := h.Check(ctx)
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Checks, 2)
			assert.Equal(t, "1.0.0", report.Version)
		})
	}

	t.Run("slow and panicking checks", func(t *testing.T) {
		h := NewHealth("1.0.0", 20*time.Millisecond)
		h.Register("slow", false, func(ctx context.Context) (map[string]interface{}, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		h.Register("model", false, func(context.Context) (map[string]interface{}, error) { panic("boom") })

		report := h.Check(ctx)
		assert.Equal(t, StatusDegraded, report.Status)
		assert.Contains(t, report.Checks["slow"].Error, "deadline")
		assert.Equal(t, "check panicked", report.Checks["model"].Error)
	})
}

type recordingAlerter struct {
	texts []string
}

func (r *recordingAlerter) Alert(text string) error {
	r.texts = append(r.texts, text)
	return nil
}

func TestHealthObserveAlertsOnChange(t *testing.T) {
	h := NewHealth("1.0.0", time.Second)
	alerter := &recordingAlerter{}

	degraded := Report{Status: StatusDegraded, Checks: map[string]CheckResult{
		"redis": {Status: StatusUnhealthy, Error: "connection refused"},
	}}
	h.observe(degraded, alerter)
	h.observe(degraded, alerter)
	h.observe(Report{Status: StatusHealthy}, alerter)

	require.Len(t, alerter.texts, 2)
	assert.Contains(t, alerter.texts[0], "healthy to degraded")
	assert.Contains(t, alerter.texts[0], "redis: connection refused")
	assert.Contains(t, alerter.texts[1], "degraded to healthy")
}

func TestAuditLog(t *testing.T) {
	sink := &memorySink{}
	a := NewAuditLog(sink, "warning", 2)

	assert.False(t, a.Record(models.SystemLog{Level: LevelInfo, Message: "below level"}))
	assert.False(t, a.Record(models.SystemLog{Level: "TRACE", Message: "unknown level"}))
	assert.True(t, a.Record(models.SystemLog{Level: "error", Module: "auth", Message: "one"}))
	assert.True(t, a.Record(models.SystemLog{Level: LevelCritical, Message: "two"}))
	assert.False(t, a.Record(models.SystemLog{Level: LevelError, Message: "queue full"}))

	a.Start()
	a.Stop()
	require.Len(t, sink.logs, 2)
	assert.Equal(t, LevelError, sink.logs[0].Level)
	assert.False(t, sink.logs[0].CreatedAt.IsZero())

	assert.False(t, a.Record(models.SystemLog{Level: LevelError, Message: "after stop"}))

	var nilLog *AuditLog
	assert.False(t, nilLog.Audit("auth", "ignored", "", nil))
}
