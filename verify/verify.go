// Package verify re-derives RSU tax figures from the ledger and compares
// them against externally supplied numbers (W-2 wages, broker 1099-B
// amounts). Every check runs regardless of earlier failures so a single
// pass surfaces every issue before filing.
package verify

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkuiper/rsutax/form8949"
	"github.com/mkuiper/rsutax/ledger"
)

// centTolerance absorbs rounding in broker-reported currency amounts.
var centTolerance = decimal.NewFromFloat(0.01)

// incomeTolerancePercent allows for statement-timing differences between
// vesting confirmations and W-2 wages.
var incomeTolerancePercent = decimal.NewFromInt(1)

// Check is the outcome of one verification.
type Check struct {
	Name    string   `json:"check"`
	Passed  bool     `json:"passed"`
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Action  string   `json:"action_if_failed,omitempty"`
	Issues  []string `json:"issues,omitempty"`
}

func newCheck(name string, passed bool, message, action string, issues []string) Check {
	status := "PASS"
	if !passed {
		status = "FAIL"
	}
	return Check{
		Name:    name,
		Passed:  passed,
		Status:  status,
		Message: message,
		Action:  action,
		Issues:  issues,
	}
}

// GainFigure pairs a recomputed sale outcome with the broker's reported
// gain/loss for the capital gains check.
type GainFigure struct {
	Label            string
	Proceeds         decimal.Decimal
	CostBasis        decimal.Decimal
	ReportedGainLoss decimal.Decimal
}

// VestingIncome compares the ledger's total vesting income against the
// RSU income reported on the W-2, within a 1% tolerance.
func VestingIncome(l *ledger.Ledger, w2Income decimal.Decimal) Check {
	calculated := l.TotalVestingIncome()
	difference := calculated.Sub(w2Income).Abs()

	percentDiff := decimal.Zero
	if w2Income.IsPositive() {
		percentDiff = difference.Div(w2Income).Mul(decimal.NewFromInt(100))
	}

	passed := percentDiff.LessThanOrEqual(incomeTolerancePercent)
	message := fmt.Sprintf("calculated %s vs W-2 %s: difference %s (%s%%)",
		calculated.StringFixed(2), w2Income.StringFixed(2),
		difference.StringFixed(2), percentDiff.StringFixed(2))

	return newCheck("Vesting Income vs W-2", passed, message,
		"Compare vesting confirmations to W-2 Box 1 and contact the employer about significant discrepancies.",
		nil)
}

// CapitalGains re-derives gain/loss as proceeds minus cost basis for each
// sale and compares it to the broker's reported figure within one cent.
func CapitalGains(figures []GainFigure) Check {
	var issues []string
	for _, f := range figures {
		recomputed := f.Proceeds.Sub(f.CostBasis)
		diff := recomputed.Sub(f.ReportedGainLoss).Abs()
		if diff.GreaterThan(centTolerance) {
			issues = append(issues, fmt.Sprintf(
				"%s: recomputed gain %s differs from reported %s by %s",
				f.Label, recomputed.StringFixed(2),
				f.ReportedGainLoss.StringFixed(2), diff.StringFixed(2)))
		}
	}

	passed := len(issues) == 0
	message := fmt.Sprintf("%d of %d sales verified", len(figures)-len(issues), len(figures))
	return newCheck("Capital Gains Math", passed, message,
		"Review the math for each flagged sale: gain/loss = proceeds - cost basis.",
		issues)
}

// CostBasisSanity flags sales whose broker-reported basis is clearly wrong.
// A zero basis with positive shares is always wrong for vested RSUs. A
// per-share basis far outside the ledger's FMV range is suspicious (often
// the grant price, or a stale FMV).
func CostBasisSanity(sales []*ledger.Sale, l *ledger.Ledger) Check {
	minFMV, maxFMV := fmvRange(l)

	var issues []string
	for _, s := range sales {
		if !s.SharesSold.IsPositive() {
			continue
		}
		if s.ReportedBasis1099B.IsZero() {
			issues = append(issues, fmt.Sprintf(
				"%s: zero reported cost basis, which is never legitimate for vested RSU shares",
				s.SaleDate))
			continue
		}

		perShare := s.ReportedBasis1099B.Div(s.SharesSold)
		if minFMV.IsPositive() && perShare.LessThan(minFMV.Mul(decimal.NewFromFloat(0.5))) {
			issues = append(issues, fmt.Sprintf(
				"%s: reported basis %s/share is far below every vesting FMV; likely the grant price",
				s.SaleDate, perShare.StringFixed(2)))
		}
		if maxFMV.IsPositive() && perShare.GreaterThan(maxFMV.Mul(decimal.NewFromFloat(1.5))) {
			issues = append(issues, fmt.Sprintf(
				"%s: reported basis %s/share is far above every vesting FMV",
				s.SaleDate, perShare.StringFixed(2)))
		}
	}

	passed := len(issues) == 0
	message := fmt.Sprintf("%d of %d sales have a plausible reported basis",
		len(sales)-len(issues), len(sales))
	return newCheck("Cost Basis Sanity", passed, message,
		"Look up the vesting confirmation for each flagged sale and use the FMV at the vesting date.",
		issues)
}

func fmvRange(l *ledger.Ledger) (min, max decimal.Decimal) {
	for _, lot := range l.Lots() {
		fmv := lot.FMVAtVesting
		if min.IsZero() || fmv.LessThan(min) {
			min = fmv
		}
		if fmv.GreaterThan(max) {
			max = fmv
		}
	}
	return min, max
}

// HoldingPeriods re-derives the holding classification for each resolved
// result from its dates, catching any drift between the stored period and
// the day count. The boundary sits at 365 days; holding period starts at
// vesting, not grant.
func HoldingPeriods(results []ledger.TaxLotResult) Check {
	var issues []string
	for _, r := range results {
		days := ledger.HoldingDays(r.VestingDate, r.SaleDate)
		if days != r.HoldingDays {
			issues = append(issues, fmt.Sprintf(
				"%s sold %s: recorded %d holding days, dates imply %d",
				r.VestingDate, r.SaleDate, r.HoldingDays, days))
		}
		if want := ledger.ClassifyHolding(days); want != r.HoldingPeriod {
			issues = append(issues, fmt.Sprintf(
				"%s sold %s: classified %s after %d days, should be %s",
				r.VestingDate, r.SaleDate, r.HoldingPeriod, days, want))
		}
	}

	passed := len(issues) == 0
	message := fmt.Sprintf("%d lot sales verified", len(results))
	return newCheck("Holding Period Classification", passed, message,
		"The holding period starts at the vesting date, not the grant date; long term requires more than 365 days.",
		issues)
}

// Adjustments validates the internal arithmetic of a Form 8949 report:
// for every entry, proceeds minus (reported basis + adjustment) must equal
// the gain/loss, and a non-zero adjustment requires an adjustment code.
func Adjustments(report *form8949.Report) Check {
	var issues []string
	parts := []struct {
		name string
		part form8949.Part
	}{
		{"Part I", report.ShortTerm},
		{"Part II", report.LongTerm},
	}

	for _, p := range parts {
		for _, e := range p.part.Entries {
			recomputed := e.Proceeds.Sub(e.ReportedBasis.Add(e.AdjustmentAmount))
			if recomputed.Sub(e.GainLoss).Abs().GreaterThan(centTolerance) {
				issues = append(issues, fmt.Sprintf(
					"%s %s: proceeds - (reported basis + adjustment) = %s, entry says %s",
					p.name, e.Description, recomputed.StringFixed(2), e.GainLoss.StringFixed(2)))
			}
			if !e.AdjustmentAmount.IsZero() && e.AdjustmentCode == "" {
				issues = append(issues, fmt.Sprintf(
					"%s %s: adjustment amount without an adjustment code", p.name, e.Description))
			}
		}
	}

	passed := len(issues) == 0
	message := fmt.Sprintf("%d short-term and %d long-term entries verified",
		len(report.ShortTerm.Entries), len(report.LongTerm.Entries))
	return newCheck("Form 8949 Adjustments", passed, message,
		"Recheck each flagged entry: correct gain = proceeds - (reported basis + adjustment).",
		issues)
}

// ActionItem pairs a failed check with its remediation step.
type ActionItem struct {
	Check  string `json:"check"`
	Action string `json:"action"`
}

// Report aggregates all verification checks into an overall result.
type Report struct {
	Timestamp      time.Time    `json:"timestamp"`
	TotalChecks    int          `json:"total_checks"`
	Passed         int          `json:"passed"`
	Failed         int          `json:"failed"`
	Overall        string       `json:"overall_status"`
	Checks         []Check      `json:"checks"`
	ActionItems    []ActionItem `json:"action_items,omitempty"`
	Recommendation string       `json:"recommendation"`
}

// NewReport assembles checks into a report. All checks are included in the
// order given; none stops the others from running.
func NewReport(checks []Check) *Report {
	report := &Report{
		Timestamp:   time.Now(),
		TotalChecks: len(checks),
		Checks:      checks,
	}

	for _, c := range checks {
		if c.Passed {
			report.Passed++
			continue
		}
		report.Failed++
		report.ActionItems = append(report.ActionItems, ActionItem{Check: c.Name, Action: c.Action})
	}

	if report.Failed == 0 {
		report.Overall = "PASS"
		report.Recommendation = "All verifications passed. Data appears ready for tax filing."
	} else {
		report.Overall = "FAIL"
		report.Recommendation = fmt.Sprintf(
			"%d check(s) failed. Review the action items before filing.", report.Failed)
	}

	return report
}
