package rules

import (
	"fmt"
	"strconv"
	"strings"

	"securecart/internal/models"
)

// Rule fields
const (
	FieldAmount                = "amount"
	FieldCurrency              = "currency"
	FieldMerchantName          = "merchant_name"
	FieldMerchantCategory      = "merchant_category"
	FieldPaymentMethod         = "payment_method"
	FieldCountry               = "country"
	FieldCity                  = "city"
	FieldHour                  = "hour"
	FieldTxnLastHour           = "txn_last_hour"
	FieldAmountLast24h         = "amount_last_24h"
	FieldDistinctMerchantsWeek = "distinct_merchants_week"
	FieldDeviceID              = "device_id"
)

// Operators
const (
	OpGT       = "gt"
	OpGTE      = "gte"
	OpLT       = "lt"
	OpLTE      = "lte"
	OpEQ       = "eq"
	OpNEQ      = "neq"
	OpIn       = "in"
	OpNotIn    = "not_in"
	OpContains = "contains"
)

const MaxRiskPoints = 100

var numericFields = map[string]bool{
	FieldAmount:                true,
	FieldHour:                  true,
	FieldTxnLastHour:           true,
	FieldAmountLast24h:         true,
	FieldDistinctMerchantsWeek: true,
	FieldCurrency:              false,
	FieldMerchantName:          false,
	FieldMerchantCategory:      false,
	FieldPaymentMethod:         false,
	FieldCountry:               false,
	FieldCity:                  false,
	FieldDeviceID:              false,
}

var numericOperators = map[string]bool{OpGT: true, OpGTE: true, OpLT: true, OpLTE: true}

var knownOperators = map[string]bool{
	OpGT: true, OpGTE: true, OpLT: true, OpLTE: true, OpEQ: true, OpNEQ: true,
	OpIn: true, OpNotIn: true, OpContains: true,
}

var actionStrength = map[string]int{
	models.RuleActionReview:  1,
	models.RuleActionFlag:    2,
	models.RuleActionDecline: 3,
}

// Input is what rules are evaluated against.
type Input struct {
	Transaction *models.Transaction
	Velocity    models.Velocity
}

// Evaluation is the combined outcome of every triggered rule.
type Evaluation struct {
	Triggered  []string `json:"triggered"`
	RiskPoints int      `json:"riskPoints"`
	Action     string   `json:"action,omitempty"`
}

func (e Evaluation) Declines() bool { return e.Action == models.RuleActionDecline }
func (e Evaluation) Flags() bool    { return e.Action == models.RuleActionFlag }
func (e Evaluation) Reviews() bool  { return e.Action == models.RuleActionReview }

// Evaluate runs the enabled rules in the given order. Risk points are summed
// and capped; the strongest action wins.
func Evaluate(rules []models.SecurityRule, in Input) Evaluation {
	var out Evaluation
	for i := range rules {
		r := &rules[i]
		if !r.Enabled || !Matches(r, in) {
			continue
		}
		out.Triggered = append(out.Triggered, r.Name)
		out.RiskPoints += r.RiskPoints
		if actionStrength[r.Action] > actionStrength[out.Action] {
			out.Action = r.Action
		}
	}
	if out.RiskPoints > MaxRiskPoints {
		out.RiskPoints = MaxRiskPoints
	}
	return out
}

// Matches reports whether a single rule triggers for in. Unknown fields and
// unparsable values never match.
func Matches(r *models.SecurityRule, in Input) bool {
	numeric, known := numericFields[r.Field]
	if !known || in.Transaction == nil {
		return false
	}
	if numeric {
		actual := numericValue(r.Field, in)
		switch r.Operator {
		case OpIn, OpNotIn:
			found := false
			for _, v := range splitList(r.Value) {
				if f, err := strconv.ParseFloat(v, 64); err == nil && f == actual {
					found = true
					break
				}
			}
			return found == (r.Operator == OpIn)
		case OpContains:
			return false
		}
		want, err := strconv.ParseFloat(strings.TrimSpace(r.Value), 64)
		if err != nil {
			return false
		}
		return compare(r.Operator, actual, want)
	}

	actual := strings.ToLower(strings.TrimSpace(stringValue(r.Field, in)))
	want := strings.ToLower(strings.TrimSpace(r.Value))
	switch r.Operator {
	case OpEQ:
		return actual == want
	case OpNEQ:
		return actual != want
	case OpContains:
		return want != "" && strings.Contains(actual, want)
	case OpIn, OpNotIn:
		found := false
		for _, v := range splitList(want) {
			if v == actual {
				found = true
				break
			}
		}
		return found == (r.Operator == OpIn)
	}
	return false
}

func compare(op string, a, b float64) bool {
	switch op {
	case OpGT:
		return a > b
	case OpGTE:
		return a >= b
	case OpLT:
		return a < b
	case OpLTE:
		return a <= b
	case OpEQ:
		return a == b
	case OpNEQ:
		return a != b
	}
	return false
}

func numericValue(field string, in Input) float64 {
	t := in.Transaction
	switch field {
	case FieldAmount:
		return t.Amount
	case FieldHour:
		return float64(t.TransactionTime.UTC().Hour())
	case FieldTxnLastHour:
		return float64(in.Velocity.TransactionsLastHour)
	case FieldAmountLast24h:
		return in.Velocity.AmountLast24h
	case FieldDistinctMerchantsWeek:
		return float64(in.Velocity.DistinctMerchantsWeek)
	}
	return 0
}

func stringValue(field string, in Input) string {
	t := in.Transaction
	switch field {
	case FieldCurrency:
		return t.Currency
	case FieldMerchantName:
		return t.MerchantName
	case FieldMerchantCategory:
		return t.MerchantCategory
	case FieldPaymentMethod:
		return t.PaymentMethod
	case FieldCountry:
		return t.Location.Country
	case FieldCity:
		return t.Location.City
	case FieldDeviceID:
		return t.Device.DeviceID
	}
	return ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks a rule before it is stored.
func Validate(r *models.SecurityRule) error {
	var problems []string
	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "name is required")
	}
	numeric, known := numericFields[r.Field]
	if !known {
		problems = append(problems, fmt.Sprintf("unknown field %q", r.Field))
	}
	if !knownOperators[r.Operator] {
		problems = append(problems, fmt.Sprintf("unknown operator %q", r.Operator))
	}
	if _, ok := actionStrength[r.Action]; !ok {
		problems = append(problems, fmt.Sprintf("unknown action %q", r.Action))
	}
	if r.RiskPoints < 0 || r.RiskPoints > MaxRiskPoints {
		problems = append(problems, "riskPoints must be between 0 and 100")
	}
	if strings.TrimSpace(r.Value) == "" {
		problems = append(problems, "value is required")
	}
	if known && !numeric && numericOperators[r.Operator] {
		problems = append(problems, fmt.Sprintf("operator %q needs a numeric field", r.Operator))
	}
	if known && numeric && r.Operator == OpContains {
		problems = append(problems, fmt.Sprintf("operator %q needs a text field", r.Operator))
	}
	if known && numeric && knownOperators[r.Operator] && r.Operator != OpContains {
		values := []string{r.Value}
		if r.Operator == OpIn || r.Operator == OpNotIn {
			values = splitList(r.Value)
		}
		for _, v := range values {
			if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
				problems = append(problems, fmt.Sprintf("value %q is not a number", v))
				break
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// Fields lists the fields rules may reference.
func Fields() []string {
	return []string{
		FieldAmount, FieldCurrency, FieldMerchantName, FieldMerchantCategory, FieldPaymentMethod,
		FieldCountry, FieldCity, FieldHour, FieldTxnLastHour, FieldAmountLast24h,
		FieldDistinctMerchantsWeek, FieldDeviceID,
	}
}
