package monitor

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"securecart/internal/models"
)

// MetricsCollector records operation metrics. Services take it as an
// optional dependency and fall back to NoopMetricsCollector.
type MetricsCollector interface {
	RecordOperationDuration(operation string, d time.Duration)
	RecordOperationResult(operation, result string)
	RecordCacheHit(operation string)
	RecordCacheMiss(operation string)
	RecordError(operation, message string)
	RecordTransaction(status string, amount float64, riskScore int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOperationDuration(string, time.Duration) {}
func (n *NoopMetricsCollector) RecordOperationResult(string, string)          {}
func (n *NoopMetricsCollector) RecordCacheHit(string)                         {}
func (n *NoopMetricsCollector) RecordCacheMiss(string)                        {}
func (n *NoopMetricsCollector) RecordError(string, string)                    {}
func (n *NoopMetricsCollector) RecordTransaction(string, float64, int)        {}

// MetricSink persists flushed samples. repositories.SystemLogRepository
// implements it.
type MetricSink interface {
	InsertMetrics(ctx context.Context, metrics []models.PerformanceMetric) error
}

type durationStat struct {
	count int64
	total time.Duration
	max   time.Duration
}

// OperationStats is the snapshot of one operation since the last flush.
type OperationStats struct {
	Count     int64            `json:"count"`
	AverageMs float64          `json:"averageMs"`
	MaxMs     float64          `json:"maxMs"`
	Results   map[string]int64 `json:"results,omitempty"`
	Errors    int64            `json:"errors"`
	LastError string           `json:"lastError,omitempty"`
}

type Snapshot struct {
	Since        time.Time                 `json:"since"`
	Operations   map[string]OperationStats `json:"operations"`
	CacheHits    map[string]int64          `json:"cacheHits"`
	CacheMisses  map[string]int64          `json:"cacheMisses"`
	Transactions map[string]int64          `json:"transactions"`
	Volume       float64                   `json:"volume"`
	AverageRisk  float64                   `json:"averageRisk"`
}

// Collector aggregates in memory and writes one sample per series on Flush.
type Collector struct {
	sink MetricSink
	now  func() time.Time

	mu        sync.Mutex
	since     time.Time
	durations map[string]*durationStat
	results   map[string]map[string]int64
	errors    map[string]int64
	lastError map[string]string
	hits      map[string]int64
	misses    map[string]int64
	txns      map[string]int64
	volume    float64
	riskSum   int64
}

func NewCollector(sink MetricSink) *Collector {
	c := &Collector{sink: sink, now: time.Now}
	c.reset()
	return c
}

func (c *Collector) reset() {
	c.since = c.now()
	c.durations = map[string]*durationStat{}
	c.results = map[string]map[string]int64{}
	c.errors = map[string]int64{}
	c.lastError = map[string]string{}
	c.hits = map[string]int64{}
	c.misses = map[string]int64{}
	c.txns = map[string]int64{}
	c.volume = 0
	c.riskSum = 0
}

func (c *Collector) RecordOperationDuration(operation string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.durations[operation]
	if !ok {
		st = &durationStat{}
		c.durations[operation] = st
	}
	st.count++
	st.total += d
	if d > st.max {
		st.max = d
	}
}

func (c *Collector) RecordOperationResult(operation, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results[operation] == nil {
		c.results[operation] = map[string]int64{}
	}
	c.results[operation][result]++
}

func (c *Collector) RecordCacheHit(operation string) {
	c.mu.Lock()
	c.hits[operation]++
	c.mu.Unlock()
}

func (c *Collector) RecordCacheMiss(operation string) {
	c.mu.Lock()
	c.misses[operation]++
	c.mu.Unlock()
}

func (c *Collector) RecordError(operation, message string) {
	c.mu.Lock()
	c.errors[operation]++
	c.lastError[operation] = message
	c.mu.Unlock()
}

func (c *Collector) RecordTransaction(status string, amount float64, riskScore int) {
	c.mu.Lock()
	c.txns[status]++
	c.volume += amount
	c.riskSum += int64(riskScore)
	c.mu.Unlock()
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Collector) snapshotLocked() Snapshot {
	s := Snapshot{
		Since:        c.since,
		Operations:   map[string]OperationStats{},
		CacheHits:    copyCounts(c.hits),
		CacheMisses:  copyCounts(c.misses),
		Transactions: copyCounts(c.txns),
		Volume:       c.volume,
	}
	for op, d := range c.durations {
		st := s.Operations[op]
		st.Count = d.count
		st.AverageMs = ms(d.total) / float64(d.count)
		st.MaxMs = ms(d.max)
		s.Operations[op] = st
	}
	for op, r := range c.results {
		st := s.Operations[op]
		st.Results = copyCounts(r)
		s.Operations[op] = st
	}
	for op, n := range c.errors {
		st := s.Operations[op]
		st.Errors = n
		st.LastError = c.lastError[op]
		s.Operations[op] = st
	}
	var total int64
	for _, n := range c.txns {
		total += n
	}
	if total > 0 {
		s.AverageRisk = float64(c.riskSum) / float64(total)
	}
	return s
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Flush writes the window as performance metrics and starts a new one.
func (c *Collector) Flush(ctx context.Context) (int, error) {
	c.mu.Lock()
	snap := c.snapshotLocked()
	at := c.now()
	c.reset()
	c.mu.Unlock()

	rows := samples(snap, at)
	if len(rows) == 0 || c.sink == nil {
		return 0, nil
	}
	if err := c.sink.InsertMetrics(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func samples(s Snapshot, at time.Time) []models.PerformanceMetric {
	var out []models.PerformanceMetric
	add := func(name string, v float64, unit, component string, tags models.JSON) {
		out = append(out, models.PerformanceMetric{
			MetricName: name, Value: v, Unit: unit, Component: component, Tags: tags, RecordedAt: at,
		})
	}

	ops := make([]string, 0, len(s.Operations))
	for op := range s.Operations {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		st := s.Operations[op]
		tags := models.JSON{"operation": op}
		if st.Count > 0 {
			add("operation_duration_avg", st.AverageMs, "ms", "api", tags)
			add("operation_duration_max", st.MaxMs, "ms", "api", tags)
			add("operation_count", float64(st.Count), "count", "api", tags)
		}
		if st.Errors > 0 {
			add("operation_errors", float64(st.Errors), "count", "api", tags)
		}
	}

	var txns int64
	for status, n := range s.Transactions {
		txns += n
		add("transactions", float64(n), "count", "detection", models.JSON{"status": status})
	}
	if txns > 0 {
		add("transaction_volume", s.Volume, "amount", "detection", nil)
		add("average_risk_score", s.AverageRisk, "score", "detection", nil)
	}
	for op, n := range s.CacheHits {
		add("cache_hits", float64(n), "count", "cache", models.JSON{"operation": op})
	}
	for op, n := range s.CacheMisses {
		add("cache_misses", float64(n), "count", "cache", models.JSON{"operation": op})
	}
	return out
}

// Run flushes every interval until ctx ends, then flushes once more.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := c.Flush(flushCtx); err != nil {
				log.Printf("⚠️ Final metrics flush failed: %v", err)
			}
			cancel()
			return
		case <-ticker.C:
			if n, err := c.Flush(ctx); err != nil {
				log.Printf("⚠️ Metrics flush failed: %v", err)
			} else if n > 0 {
				log.Printf("📊 Flushed %d performance metrics", n)
			}
		}
	}
}
