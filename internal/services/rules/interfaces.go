package rules

import (
	"context"

	"github.com/google/uuid"

	"securecart/internal/models"
)

// Service manages security rules and evaluates them.
type Service interface {
	List(ctx context.Context) ([]models.SecurityRule, error)
	Get(ctx context.Context, id uuid.UUID) (*models.SecurityRule, error)
	Create(ctx context.Context, rule *models.SecurityRule, createdBy *uuid.UUID) (*models.SecurityRule, error)
	Update(ctx context.Context, id uuid.UUID, patch RulePatch) (*models.SecurityRule, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Evaluate loads the enabled rules and runs them against in.
	Evaluate(ctx context.Context, in Input) (Evaluation, error)
}

// Hasher fingerprints a rule version. ledger.Service implements it.
type Hasher interface {
	RecordRule(ctx context.Context, r *models.SecurityRule) (string, error)
}

// RulePatch carries a partial update; nil fields are left alone.
type RulePatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Field       *string `json:"field"`
	Operator    *string `json:"operator"`
	Value       *string `json:"value"`
	Action      *string `json:"action"`
	RiskPoints  *int    `json:"riskPoints"`
	Priority    *int    `json:"priority"`
	Enabled     *bool   `json:"enabled"`
}
