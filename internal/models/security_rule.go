package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Rule actions, strongest last.
const (
	RuleActionReview  = "review"
	RuleActionFlag    = "flag"
	RuleActionDecline = "decline"
)

// SecurityRule is an analyst-authored condition evaluated next to the model.
type SecurityRule struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string     `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Field       string     `gorm:"size:50;not null" json:"field"`
	Operator    string     `gorm:"size:20;not null" json:"operator"`
	Value       string     `gorm:"size:500;not null" json:"value"`
	Action      string     `gorm:"size:20;not null;default:'flag'" json:"action"`
	RiskPoints  int        `gorm:"default:0" json:"riskPoints"`
	Priority    int        `gorm:"default:100;index" json:"priority"`
	Enabled     bool       `gorm:"not null" json:"enabled"`
	LedgerHash  string     `gorm:"size:64" json:"ruleHash"`
	CreatedBy   *uuid.UUID `gorm:"type:uuid" json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (r *SecurityRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
