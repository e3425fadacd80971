package timeoff

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/workforce"
)

// =============================================================================
// ENTITLEMENT - Allowance for the rule window containing a date
// =============================================================================

// Entitlement is the allowance granted by a rule for one window.
type Entitlement struct {
	Window generic.Period
	Days   decimal.Decimal
	// EligibleFrom is the first date the allowance applies (hire + not_before).
	EligibleFrom time.Time
}

// EntitlementAt returns the window of rule that contains asOf and the
// allowance for it. Before the hire date or the end of the waiting period
// the allowance is zero.
func EntitlementAt(rule workforce.TimeOffRule, emp workforce.Employee, asOf time.Time) Entitlement {
	hire := generic.DateOf(emp.StartDate, time.UTC)
	asOf = generic.DateOf(asOf, time.UTC)

	anchor := hire
	if rule.Anchor == workforce.AnchorCalendar {
		anchor = generic.Date(hire.Year(), time.January, 1)
	}
	window := generic.WindowContaining(anchor, rule.ResetPeriod, rule.ResetUnit, asOf)

	eligible := hire
	if rule.NotBefore > 0 {
		eligible = generic.AddInterval(hire, rule.NotBefore, rule.NotBeforeUnit)
	}
	ent := Entitlement{Window: window, Days: decimal.Zero, EligibleFrom: eligible}
	if asOf.Before(eligible) {
		return ent
	}

	ent.Days = tierDays(rule, generic.YearsBetween(hire, window.Start))
	return ent
}

// tierDays picks the highest tier reached after years of service.
func tierDays(rule workforce.TimeOffRule, years int) decimal.Decimal {
	days := rule.Days
	tiers := append([]workforce.Tier(nil), rule.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].AfterYears < tiers[j].AfterYears })
	for _, t := range tiers {
		if years >= t.AfterYears {
			days = t.Days
		}
	}
	return days
}
