package rules

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	appErrors "securecart/internal/errors"
	"securecart/internal/models"
	"securecart/internal/repositories"
)

type service struct {
	repo   repositories.RuleRepository
	hasher Hasher
}

// NewService creates the rule service. hasher may be nil, in which case
// rules are stored without a hash.
func NewService(repo repositories.RuleRepository, hasher Hasher) Service {
	if repo == nil {
		panic("rule repository is required")
	}
	return &service{repo: repo, hasher: hasher}
}

func (s *service) List(ctx context.Context) ([]models.SecurityRule, error) {
	rules, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.SecurityRule, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrRuleNotFound) {
		return nil, appErrors.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

func (s *service) Create(ctx context.Context, rule *models.SecurityRule, createdBy *uuid.UUID) (*models.SecurityRule, error) {
	normalize(rule)
	if err := Validate(rule); err != nil {
		return nil, appErrors.ErrInvalidRule.WithMessage(err.Error())
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	rule.CreatedBy = createdBy
	s.stamp(ctx, rule)

	if err := s.repo.Create(ctx, rule); err != nil {
		if errors.Is(err, repositories.ErrDuplicateID) {
			return nil, appErrors.ErrConflict.WithMessage("a rule with this name already exists")
		}
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	log.Printf("✅ Security rule %q created (%s %s %s → %s)", rule.Name, rule.Field, rule.Operator, rule.Value, rule.Action)
	return rule, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, patch RulePatch) (*models.SecurityRule, error) {
	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(rule)
	normalize(rule)
	if err := Validate(rule); err != nil {
		return nil, appErrors.ErrInvalidRule.WithMessage(err.Error())
	}
	s.stamp(ctx, rule)

	if err := s.repo.Update(ctx, rule); err != nil {
		if errors.Is(err, repositories.ErrDuplicateID) {
			return nil, appErrors.ErrConflict.WithMessage("a rule with this name already exists")
		}
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	return rule, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repositories.ErrRuleNotFound) {
		return appErrors.ErrRuleNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

func (s *service) Evaluate(ctx context.Context, in Input) (Evaluation, error) {
	rules, err := s.repo.Enabled(ctx)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to load rules: %w", err)
	}
	return Evaluate(rules, in), nil
}

// stamp records the rule hash. A ledger failure leaves the hash empty
// rather than failing the write.
func (s *service) stamp(ctx context.Context, rule *models.SecurityRule) {
	if s.hasher == nil {
		return
	}
	hash, err := s.hasher.RecordRule(ctx, rule)
	if err != nil {
		log.Printf("⚠️ Failed to record rule %q in ledger: %v", rule.Name, err)
		rule.LedgerHash = ""
		return
	}
	rule.LedgerHash = hash
}

func normalize(r *models.SecurityRule) {
	r.Name = strings.TrimSpace(r.Name)
	r.Field = strings.ToLower(strings.TrimSpace(r.Field))
	r.Operator = strings.ToLower(strings.TrimSpace(r.Operator))
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	if r.Action == "" {
		r.Action = models.RuleActionFlag
	}
}

func (p RulePatch) apply(r *models.SecurityRule) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Field != nil {
		r.Field = *p.Field
	}
	if p.Operator != nil {
		r.Operator = *p.Operator
	}
	if p.Value != nil {
		r.Value = *p.Value
	}
	if p.Action != nil {
		r.Action = *p.Action
	}
	if p.RiskPoints != nil {
		r.RiskPoints = *p.RiskPoints
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
}
