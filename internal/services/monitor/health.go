// Package monitor holds health checks, operation metrics and the audit log.
package monitor

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc returns nil when the component is usable. details is optional.
type CheckFunc func(ctx context.Context) (details map[string]interface{}, err error)

type CheckResult struct {
	Status    string                 `json:"status"`
	LatencyMs float64                `json:"latencyMs"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Critical  bool                   `json:"critical"`
}

type Report struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Alerter delivers operational alerts. notification.Service implements it
// through SlackAlerter.
type Alerter interface {
	Alert(text string) error
}

type check struct {
	name     string
	critical bool
	fn       CheckFunc
}

// Health runs the registered checks. A failing critical check makes the
// service unhealthy, any other failure degraded.
type Health struct {
	version string
	started time.Time
	timeout time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	checks []check
	last   string
}

func NewHealth(version string, timeout time.Duration) *Health {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Health{
		version: version,
		started: time.Now(),
		timeout: timeout,
		now:     time.Now,
		last:    StatusHealthy,
	}
}

func (h *Health) Register(name string, critical bool, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check{name: name, critical: critical, fn: fn})
}

// Check runs every check concurrently, each under the health timeout.
func (h *Health) Check(ctx context.Context) Report {
	h.mu.RLock()
	checks := append([]check(nil), h.checks...)
	h.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c check) {
			defer wg.Done()
			results[i] = h.run(ctx, c)
		}(i, c)
	}
	wg.Wait()

	report := Report{
		Status:    StatusHealthy,
		Version:   h.version,
		Uptime:    h.now().Sub(h.started).Round(time.Second).String(),
		Timestamp: h.now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	for i, c := range checks {
		r := results[i]
		report.Checks[c.name] = r
		if r.Status == StatusHealthy {
			continue
		}
		if c.critical {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}

func (h *Health) run(ctx context.Context, c check) (res CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	res.Critical = c.critical
	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusUnhealthy
			res.Error = "check panicked"
			log.Printf("❌ Health check %s panicked: %v", c.name, r)
		}
		res.LatencyMs = ms(time.Since(start))
	}()

	details, err := c.fn(ctx)
	res.Details = details
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
		return res
	}
	res.Status = StatusHealthy
	return res
}

// Watch checks health every interval and alerts on status changes.
func (h *Health) Watch(ctx context.Context, interval time.Duration, alerter Alerter) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.observe(h.Check(ctx), alerter)
		}
	}
}

func (h *Health) observe(report Report, alerter Alerter) {
	h.mu.Lock()
	previous := h.last
	h.last = report.Status
	h.mu.Unlock()
	if previous == report.Status {
		return
	}

	failing := make([]string, 0)
	for name, r := range report.Checks {
		if r.Status != StatusHealthy {
			failing = append(failing, name+": "+r.Error)
		}
	}
	sort.Strings(failing)
	log.Printf("🚨 Health changed %s → %s %v", previous, report.Status, failing)
	if alerter == nil {
		return
	}
	text := "SecureCart health changed from " + previous + " to " + report.Status
	for _, f := range failing {
		text += "\n• " + f
	}
	if err := alerter.Alert(text); err != nil {
		log.Printf("⚠️ Failed to send health alert: %v", err)
	}
}
