package monitor

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// PoolStats reports connection pool usage. *sql.DB implements it.
type PoolStats interface {
	Stats() sql.DBStats
}

// WatchPool logs the pool state and feeds wait time into the collector.
func WatchPool(ctx context.Context, db PoolStats, interval time.Duration, metrics MetricsCollector) {
	if db == nil || interval <= 0 {
		return
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastWait time.Duration
	var lastCount int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := db.Stats()
			waits := st.WaitCount - lastCount
			if waits > 0 {
				metrics.RecordOperationDuration("db_pool_wait", (st.WaitDuration-lastWait)/time.Duration(waits))
				log.Printf("⚠️ DB pool saturated: %d waits, open=%d in_use=%d idle=%d max=%d",
					waits, st.OpenConnections, st.InUse, st.Idle, st.MaxOpenConnections)
			}
			lastWait, lastCount = st.WaitDuration, st.WaitCount
			metrics.RecordOperationResult("db_pool", "sampled")
		}
	}
}

// DBCheck returns a health check pinging db.
func DBCheck(db *sql.DB) CheckFunc {
	return func(ctx context.Context) (map[string]interface{}, error) {
		if err := db.PingContext(ctx); err != nil {
			return nil, err
		}
		st := db.Stats()
		return map[string]interface{}{
			"open_connections": st.OpenConnections,
			"in_use":           st.InUse,
			"idle":             st.Idle,
		}, nil
	}
}
