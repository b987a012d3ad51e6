package models

import "time"

// SystemLog is an audit or error entry persisted by the audit log sink.
type SystemLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Level         string    `gorm:"size:20;index;not null" json:"level"`
	Module        string    `gorm:"size:100" json:"module"`
	Message       string    `gorm:"type:text;not null" json:"message"`
	UserID        string    `gorm:"size:64" json:"userId,omitempty"`
	TransactionID string    `gorm:"size:64" json:"transactionId,omitempty"`
	RequestID     string    `gorm:"size:64" json:"requestId,omitempty"`
	IPAddress     string    `gorm:"size:45" json:"ipAddress,omitempty"`
	Extra         JSON      `gorm:"type:jsonb" json:"extra,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"timestamp"`
}

// PerformanceMetric is one sample written by the metrics collector.
type PerformanceMetric struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MetricName string    `gorm:"size:100;index;not null" json:"metricName"`
	Value      float64   `gorm:"not null" json:"value"`
	Unit       string    `gorm:"size:20" json:"unit"`
	Component  string    `gorm:"size:50" json:"component"`
	Tags       JSON      `gorm:"type:jsonb" json:"tags,omitempty"`
	RecordedAt time.Time `gorm:"index" json:"recordedAt"`
}
