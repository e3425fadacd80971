/*
policies.go - Pre-built time-off rules

PURPOSE:
  Ready-to-use TimeOffRule configurations. An employee without an assigned
  rule for a request type falls back to the default rule of that type.

AVAILABLE RULES:
  DefaultPTORule: tenure tiers 5 / 10 / 15 days after 0 / 1 / 3 years,
                  window resets yearly on the hire anniversary,
                  no entitlement during the first 90 days
  DefaultUTORule: 3 days per calendar quarter, no waiting period

RULE FIELDS:
  Days          allowance per window when no tier applies
  ResetPeriod   window length, in ResetUnit (days | months | years)
  Anchor        hire_date (anniversary windows) or calendar (from Jan 1)
  NotBefore     waiting period after hire, in NotBeforeUnit
  Tiers         {after_years, days}; the highest reached tier wins

EXAMPLE:
  rule := timeoff.DefaultPTORule()
  rule.ID = "pto-senior"
  rule.Tiers = append(rule.Tiers, workforce.Tier{AfterYears: 10, Days: decimal.NewFromInt(20)})
  err := svc.SaveRule(ctx, rule)

SEE ALSO:
  - accrual.go: Entitlement computes the allowance for a window
  - balance.go: derived balances
*/
package timeoff

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/workforce"
)

const (
	DefaultPTORuleID = "default-pto"
	DefaultUTORuleID = "default-uto"
)

// DefaultPTORule returns the standard tenure-tiered PTO rule.
func DefaultPTORule() workforce.TimeOffRule {
	return workforce.TimeOffRule{
		ID:            DefaultPTORuleID,
		Name:          "Standard PTO",
		Type:          workforce.TimeOffPTO,
		Days:          decimal.NewFromInt(5),
		ResetPeriod:   1,
		ResetUnit:     generic.UnitYear,
		Anchor:        workforce.AnchorHireDate,
		NotBefore:     90,
		NotBeforeUnit: generic.UnitDay,
		Tiers: []workforce.Tier{
			{AfterYears: 0, Days: decimal.NewFromInt(5)},
			{AfterYears: 1, Days: decimal.NewFromInt(10)},
			{AfterYears: 3, Days: decimal.NewFromInt(15)},
		},
	}
}

// DefaultUTORule returns the quarterly UTO rule.
func DefaultUTORule() workforce.TimeOffRule {
	return workforce.TimeOffRule{
		ID:            DefaultUTORuleID,
		Name:          "Quarterly UTO",
		Type:          workforce.TimeOffUTO,
		Days:          decimal.NewFromInt(3),
		ResetPeriod:   3,
		ResetUnit:     generic.UnitMonth,
		Anchor:        workforce.AnchorCalendar,
		NotBeforeUnit: generic.UnitDay,
	}
}

// DefaultRule returns the built-in rule for a request type.
func DefaultRule(t workforce.TimeOffType) workforce.TimeOffRule {
	if t == workforce.TimeOffUTO {
		return DefaultUTORule()
	}
	return DefaultPTORule()
}

// ValidateRule checks a rule before it is stored.
func ValidateRule(r workforce.TimeOffRule) error {
	verr := &generic.ValidationError{}
	if r.ID == "" {
		verr.Add("id", "required")
	}
	if r.Name == "" {
		verr.Add("name", "required")
	}
	if !r.Type.Valid() {
		verr.Add("request_type", "must be PTO or UTO")
	}
	if r.Days.IsNegative() {
		verr.Add("days", "must not be negative")
	}
	if r.ResetPeriod <= 0 {
		verr.Add("reset_period", "must be positive")
	}
	if !r.ResetUnit.Valid() {
		verr.Add("reset_unit", "must be days, months or years")
	}
	if r.Anchor != workforce.AnchorHireDate && r.Anchor != workforce.AnchorCalendar {
		verr.Add("anchor", "must be hire_date or calendar")
	}
	if r.NotBefore < 0 {
		verr.Add("not_before", "must not be negative")
	}
	if r.NotBefore > 0 && !r.NotBeforeUnit.Valid() {
		verr.Add("not_before_unit", "must be days, months or years")
	}
	for i, t := range r.Tiers {
		if t.AfterYears < 0 || t.Days.IsNegative() {
			verr.Add(fmt.Sprintf("tiers[%d]", i), "after_years and days must not be negative")
		}
	}
	return verr.Err()
}
