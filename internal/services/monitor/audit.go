package monitor

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"securecart/internal/models"
)

const (
	LevelDebug    = "DEBUG"
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelError    = "ERROR"
	LevelCritical = "CRITICAL"
)

var levelRank = map[string]int{
	LevelDebug:    0,
	LevelInfo:     1,
	LevelWarning:  2,
	LevelError:    3,
	LevelCritical: 4,
}

// LogSink persists entries. repositories.SystemLogRepository implements it.
type LogSink interface {
	Insert(ctx context.Context, entry *models.SystemLog) error
}

// AuditLog writes system_logs rows from a bounded queue. Entries below the
// configured level, or arriving while the queue is full, are dropped.
type AuditLog struct {
	sink    LogSink
	minRank int
	queue   chan *models.SystemLog
	wg      sync.WaitGroup
	once    sync.Once
	now     func() time.Time
}

func NewAuditLog(sink LogSink, level string, queueSize int) *AuditLog {
	if queueSize <= 0 {
		queueSize = 256
	}
	rank, ok := levelRank[strings.ToUpper(level)]
	if !ok {
		rank = levelRank[LevelInfo]
	}
	return &AuditLog{
		sink:    sink,
		minRank: rank,
		queue:   make(chan *models.SystemLog, queueSize),
		now:     time.Now,
	}
}

func (a *AuditLog) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for entry := range a.queue {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := a.sink.Insert(ctx, entry); err != nil {
				log.Printf("⚠️ Failed to persist audit entry %q: %v", entry.Message, err)
			}
			cancel()
		}
	}()
}

// Stop drains the queue.
func (a *AuditLog) Stop() {
	a.once.Do(func() { close(a.queue) })
	a.wg.Wait()
}

// Record queues entry. It never blocks.
func (a *AuditLog) Record(entry models.SystemLog) (queued bool) {
	if a == nil {
		return false
	}
	entry.Level = strings.ToUpper(entry.Level)
	if rank, ok := levelRank[entry.Level]; !ok || rank < a.minRank {
		return false
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.now()
	}
	defer func() {
		if recover() != nil {
			queued = false
		}
	}()
	select {
	case a.queue <- &entry:
		return true
	default:
		log.Printf("⚠️ Audit queue full, dropping %s entry from %s", entry.Level, entry.Module)
		return false
	}
}

// Audit is shorthand for an INFO entry.
func (a *AuditLog) Audit(module, message, userID string, extra models.JSON) bool {
	return a.Record(models.SystemLog{
		Level:   LevelInfo,
		Module:  module,
		Message: message,
		UserID:  userID,
		Extra:   extra,
	})
}
