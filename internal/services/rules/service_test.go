package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appErrors "securecart/internal/errors"
	"securecart/internal/models"
	"securecart/internal/repositories"
)

type MockRuleRepository struct {
	mock.Mock
}

func (m *MockRuleRepository) Create(ctx context.Context, rule *models.SecurityRule) error {
	return m.Called(ctx, rule).Error(0)
}

func (m *MockRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SecurityRule), args.Error(1)
}

func (m *MockRuleRepository) List(ctx context.Context) ([]models.SecurityRule, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.SecurityRule), args.Error(1)
}

func (m *MockRuleRepository) Enabled(ctx context.Context) ([]models.SecurityRule, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.SecurityRule), args.Error(1)
}

func (m *MockRuleRepository) Update(ctx context.Context, rule *models.SecurityRule) error {
	return m.Called(ctx, rule).Error(0)
}

func (m *MockRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockHasher struct {
	mock.Mock
}

func (m *MockHasher) RecordRule(ctx context.Context, r *models.SecurityRule) (string, error) {
	args := m.Called(ctx, r)
	return args.String(0), args.Error(1)
}

func TestRuleService_Create(t *testing.T) {
	ctx := context.Background()
	creator := uuid.New()

	tests := []struct {
		name      string
		rule      models.SecurityRule
		setupMock func(*MockRuleRepository, *MockHasher)
		wantErr   error
		wantHash  string
	}{
		{
			name: "stores rule with ledger hash",
			rule: models.SecurityRule{Name: " Big spend ", Field: "AMOUNT", Operator: "gt", Value: "5000", RiskPoints: 40, Enabled: true},
			setupMock: func(repo *MockRuleRepository, hasher *MockHasher) {
				hasher.On("RecordRule", ctx, mock.Anything).Return("abc123", nil)
				repo.On("Create", ctx, mock.MatchedBy(func(r *models.SecurityRule) bool {
					return r.Name == "Big spend" && r.Field == FieldAmount && r.Action == models.RuleActionFlag
				})).Return(nil)
			},
			wantHash: "abc123",
		},
		{
			name: "ledger failure does not block the write",
			rule: models.SecurityRule{Name: "Night", Field: FieldHour, Operator: OpLT, Value: "6", Action: "review"},
			setupMock: func(repo *MockRuleRepository, hasher *MockHasher) {
				hasher.On("RecordRule", ctx, mock.Anything).Return("", errors.New("disk full"))
				repo.On("Create", ctx, mock.Anything).Return(nil)
			},
		},
		{
			name:      "invalid rule",
			rule:      models.SecurityRule{Name: "Bad", Field: FieldAmount, Operator: OpContains, Value: "1"},
			setupMock: func(*MockRuleRepository, *MockHasher) {},
			wantErr:   appErrors.ErrInvalidRule,
		},
		{
			name: "duplicate name",
			rule: models.SecurityRule{Name: "Dup", Field: FieldCountry, Operator: OpEQ, Value: "Iran", Action: "decline"},
			setupMock: func(repo *MockRuleRepository, hasher *MockHasher) {
				hasher.On("RecordRule", ctx, mock.Anything).Return("h", nil)
				repo.On("Create", ctx, mock.Anything).Return(repositories.ErrDuplicateID)
			},
			wantErr: appErrors.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRuleRepository)
			hasher := new(MockHasher)
			tt.setupMock(repo, hasher)
			svc := NewService(repo, hasher)

			r := tt.rule
			created, err := svc.Create(ctx, &r, &creator)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, created.ID)
			assert.Equal(t, &creator, created.CreatedBy)
			assert.Equal(t, tt.wantHash, created.LedgerHash)
			repo.AssertExpectations(t)
			hasher.AssertExpectations(t)
		})
	}
}

func TestRuleService_Update(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("applies patch and rehashes", func(t *testing.T) {
		repo := new(MockRuleRepository)
		hasher := new(MockHasher)
		existing := rule("Big spend", FieldAmount, OpGT, "5000", models.RuleActionFlag, 40)
		existing.ID = id
		repo.On("GetByID", ctx, id).Return(&existing, nil)
		hasher.On("RecordRule", ctx, mock.Anything).Return("newhash", nil)
		repo.On("Update", ctx, mock.Anything).Return(nil)

		value, enabled := "9000", false
		updated, err := NewService(repo, hasher).Update(ctx, id, RulePatch{Value: &value, Enabled: &enabled})
		require.NoError(t, err)
		assert.Equal(t, "9000", updated.Value)
		assert.False(t, updated.Enabled)
		assert.Equal(t, "newhash", updated.LedgerHash)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(MockRuleRepository)
		repo.On("GetByID", ctx, id).Return(nil, repositories.ErrRuleNotFound)
		_, err := NewService(repo, nil).Update(ctx, id, RulePatch{})
		assert.ErrorIs(t, err, appErrors.ErrRuleNotFound)
	})

	t.Run("invalid patch", func(t *testing.T) {
		repo := new(MockRuleRepository)
		existing := rule("Big spend", FieldAmount, OpGT, "5000", models.RuleActionFlag, 40)
		repo.On("GetByID", ctx, id).Return(&existing, nil)
		points := 500
		_, err := NewService(repo, nil).Update(ctx, id, RulePatch{RiskPoints: &points})
		assert.ErrorIs(t, err, appErrors.ErrInvalidRule)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestRuleService_DeleteAndEvaluate(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRuleRepository)
	svc := NewService(repo, nil)

	id := uuid.New()
	repo.On("Delete", ctx, id).Return(repositories.ErrRuleNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, id), appErrors.ErrRuleNotFound)

	repo.On("Enabled", ctx).Return([]models.SecurityRule{
		rule("risky country", FieldCountry, OpIn, "Romania", models.RuleActionFlag, 25),
	}, nil)
	ev, err := svc.Evaluate(ctx, testInput())
	require.NoError(t, err)
	assert.Equal(t, []string{"risky country"}, ev.Triggered)
	assert.True(t, ev.Flags())
}
