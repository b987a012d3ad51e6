// Package processor reads payment processor risk signals for a charge.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"

	"securecart/internal/config"
)

var ErrNotConfigured = errors.New("payment processor is not configured")

// Radar risk levels mapped to pipeline risk points.
var levelPoints = map[string]int{
	"normal":       0,
	"elevated":     15,
	"highest":      35,
	"not_assessed": 0,
	"unknown":      0,
}

const blockedPoints = 50

// ChargeGetter is the part of the Stripe charges client used here.
type ChargeGetter interface {
	Get(id string, params *stripe.ChargeParams) (*stripe.Charge, error)
}

// Signal is the processor's view of a charge.
type Signal struct {
	ChargeID      string `json:"chargeId"`
	Status        string `json:"status"`
	RiskLevel     string `json:"riskLevel"`
	RiskScore     int64  `json:"riskScore"`
	OutcomeType   string `json:"outcomeType"`
	NetworkStatus string `json:"networkStatus"`
	Reason        string `json:"reason,omitempty"`
	SellerMessage string `json:"sellerMessage,omitempty"`
	Points        int    `json:"points"`
}

// Summary is stored on the transaction as the processor response.
func (s *Signal) Summary() string {
	parts := []string{"outcome=" + s.OutcomeType, "risk=" + s.RiskLevel}
	if s.Reason != "" {
		parts = append(parts, "reason="+s.Reason)
	}
	return strings.Join(parts, " ")
}

type Client struct {
	charges ChargeGetter
}

// NewClient returns a client for the configured secret key. Without a key
// every lookup returns ErrNotConfigured.
func NewClient(cfg config.ProcessorConfig) *Client {
	if cfg.StripeSecretKey == "" {
		return &Client{}
	}
	sc := &client.API{}
	sc.Init(cfg.StripeSecretKey, nil)
	return &Client{charges: sc.Charges}
}

// NewClientWith wraps an existing charges client.
func NewClientWith(charges ChargeGetter) *Client {
	return &Client{charges: charges}
}

func (c *Client) Enabled() bool {
	return c != nil && c.charges != nil
}

// Signal fetches the charge and scores its Radar outcome.
func (c *Client) Signal(ctx context.Context, chargeID string) (*Signal, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	params := &stripe.ChargeParams{}
	params.Context = ctx

	ch, err := c.charges.Get(chargeID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe charge lookup %s: %w", chargeID, err)
	}

	sig := &Signal{ChargeID: ch.ID, Status: string(ch.Status), RiskLevel: "unknown"}
	if o := ch.Outcome; o != nil {
		sig.RiskLevel = o.RiskLevel
		sig.RiskScore = o.RiskScore
		sig.OutcomeType = o.Type
		sig.NetworkStatus = o.NetworkStatus
		sig.Reason = o.Reason
		sig.SellerMessage = o.SellerMessage
	}
	sig.Points = score(sig)
	return sig, nil
}

func score(s *Signal) int {
	if s.OutcomeType == "blocked" {
		return blockedPoints
	}
	points := levelPoints[s.RiskLevel]
	// Radar for Fraud Teams scores 0..99; weight it like the level ladder.
	if byScore := int(s.RiskScore) * levelPoints["highest"] / 100; byScore > points {
		points = byScore
	}
	return points
}
