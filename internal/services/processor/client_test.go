package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"

	"securecart/internal/config"
)

type fakeCharges struct {
	charge *stripe.Charge
	err    error
	gotID  string
}

func (f *fakeCharges) Get(id string, params *stripe.ChargeParams) (*stripe.Charge, error) {
	f.gotID = id
	return f.charge, f.err
}

func TestSignal(t *testing.T) {
	tests := []struct {
		name    string
		outcome *stripe.ChargeOutcome
		level   string
		points  int
	}{
		{"no outcome", nil, "unknown", 0},
		{"normal", &stripe.ChargeOutcome{Type: "authorized", RiskLevel: "normal", RiskScore: 12}, "normal", 4},
		{"elevated", &stripe.ChargeOutcome{Type: "authorized", RiskLevel: "elevated"}, "elevated", 15},
		{"highest", &stripe.ChargeOutcome{Type: "manual_review", RiskLevel: "highest", RiskScore: 80}, "highest", 35},
		{"blocked", &stripe.ChargeOutcome{Type: "blocked", RiskLevel: "highest", Reason: "highest_risk_level"}, "highest", 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charges := &fakeCharges{charge: &stripe.Charge{ID: "ch_1", Status: "succeeded", Outcome: tt.outcome}}
			sig, err := NewClientWith(charges).Signal(context.Background(), "ch_1")
			require.NoError(t, err)
			assert.Equal(t, "ch_1", charges.gotID)
			assert.Equal(t, tt.level, sig.RiskLevel)
			assert.Equal(t, tt.points, sig.Points)
		})
	}
}

func TestSignalErrors(t *testing.T) {
	_, err := NewClient(config.ProcessorConfig{}).Signal(context.Background(), "ch_1")
	assert.ErrorIs(t, err, ErrNotConfigured)

	var nilClient *Client
	assert.False(t, nilClient.Enabled())

	boom := errors.New("no such charge")
	_, err = NewClientWith(&fakeCharges{err: boom}).Signal(context.Background(), "ch_x")
	assert.ErrorIs(t, err, boom)
}

func TestSummary(t *testing.T) {
	sig := &Signal{OutcomeType: "blocked", RiskLevel: "highest", Reason: "rule"}
	assert.Equal(t, "outcome=blocked risk=highest reason=rule", sig.Summary())
}
