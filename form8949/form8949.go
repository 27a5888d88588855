// Package form8949 turns resolved tax-lot results into IRS Form 8949
// entries and Schedule D line items, with basis adjustments for the common
// case where the broker's 1099-B reports the wrong (often zero) cost basis
// for vested RSU shares.
package form8949

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mkuiper/rsutax/ledger"
)

// Box identifies the Form 8949 checkbox an entry belongs under.
// A/B are short term, D/E long term; the second letter of each pair is for
// transactions whose basis was not (correctly) reported to the IRS.
type Box string

const (
	BoxA Box = "A" // short term, basis reported to IRS
	BoxB Box = "B" // short term, basis not reported or incorrect
	BoxD Box = "D" // long term, basis reported to IRS
	BoxE Box = "E" // long term, basis not reported or incorrect
)

// Entry is one Form 8949 row. Column letters follow the form: (a)
// description, (b) date acquired, (c) date sold, (d) proceeds, (e) the
// basis as reported on the 1099-B, (f) adjustment code, (g) adjustment
// amount, (h) gain or loss after adjustment.
type Entry struct {
	Description      string          `json:"description"`
	DateAcquired     ledger.Date     `json:"date_acquired"`
	DateSold         ledger.Date     `json:"date_sold"`
	Proceeds         decimal.Decimal `json:"proceeds"`
	ReportedBasis    decimal.Decimal `json:"reported_basis"`
	AdjustmentCode   string          `json:"adjustment_code"`
	AdjustmentAmount decimal.Decimal `json:"adjustment_amount"`
	GainLoss         decimal.Decimal `json:"gain_loss"`
	Box              Box             `json:"box"`

	HoldingPeriod ledger.HoldingPeriod `json:"holding_period"`
	CorrectBasis  decimal.Decimal      `json:"correct_basis"`
}

// Totals aggregates the numeric columns of one part of the form.
type Totals struct {
	Proceeds         decimal.Decimal `json:"total_proceeds"`
	ReportedBasis    decimal.Decimal `json:"total_reported_basis"`
	CorrectBasis     decimal.Decimal `json:"total_correct_basis"`
	AdjustmentAmount decimal.Decimal `json:"total_adjustment"`
	GainLoss         decimal.Decimal `json:"total_gain_loss"`
}

func (t *Totals) add(e Entry) {
	t.Proceeds = t.Proceeds.Add(e.Proceeds)
	t.ReportedBasis = t.ReportedBasis.Add(e.ReportedBasis)
	t.CorrectBasis = t.CorrectBasis.Add(e.CorrectBasis)
	t.AdjustmentAmount = t.AdjustmentAmount.Add(e.AdjustmentAmount)
	t.GainLoss = t.GainLoss.Add(e.GainLoss)
}

// Part is Part I (short term) or Part II (long term) of the form.
type Part struct {
	Box     Box     `json:"box"`
	Entries []Entry `json:"entries"`
	Totals  Totals  `json:"totals"`
}

// ScheduleD carries the line-item totals transferred from Form 8949.
type ScheduleD struct {
	ShortTermGainLoss decimal.Decimal `json:"short_term_gain_loss"`
	LongTermGainLoss  decimal.Decimal `json:"long_term_gain_loss"`
	TotalGainLoss     decimal.Decimal `json:"total_gain_loss"`
}

// TaxImpact contrasts the gain as the broker reported it with the gain
// after basis correction. The rate is a flat estimate for orientation
// only; the actual rate depends on the filer's bracket.
type TaxImpact struct {
	ReportedGain        decimal.Decimal `json:"gain_with_reported_basis"`
	CorrectedGain       decimal.Decimal `json:"gain_with_correct_basis"`
	EstimatedTaxSavings decimal.Decimal `json:"estimated_tax_savings"`
}

// estimatedRate is the flat rate used for the TaxImpact orientation figure.
var estimatedRate = decimal.NewFromFloat(0.25)

// Report is the complete Form 8949 / Schedule D output for a batch of
// resolved tax-lot results.
type Report struct {
	ShortTerm Part      `json:"form_8949_part_1_short_term"`
	LongTerm  Part      `json:"form_8949_part_2_long_term"`
	ScheduleD ScheduleD `json:"schedule_d"`
	TaxImpact TaxImpact `json:"tax_impact"`

	TotalTransactions  int  `json:"total_transactions"`
	AdjustmentRequired bool `json:"adjustment_required"`
}

type options struct {
	symbol        string
	basisReported bool
}

// Option configures report generation.
type Option func(*options)

// WithSymbol sets the security symbol used in entry descriptions.
func WithSymbol(symbol string) Option {
	return func(o *options) { o.symbol = symbol }
}

// WithBasisNotReported marks the 1099-B as not reporting basis to the IRS,
// which forces entries into boxes B and E even without an adjustment.
func WithBasisNotReported() Option {
	return func(o *options) { o.basisReported = false }
}

// Build generates the Form 8949 report for a set of tax-lot results.
func Build(results []ledger.TaxLotResult, opts ...Option) *Report {
	o := options{symbol: "RSU", basisReported: true}
	for _, opt := range opts {
		opt(&o)
	}

	report := &Report{
		ShortTerm: Part{Box: BoxA},
		LongTerm:  Part{Box: BoxD},
	}

	for _, r := range results {
		entry := buildEntry(r, o)

		if r.HoldingPeriod == ledger.LongTerm {
			report.LongTerm.Entries = append(report.LongTerm.Entries, entry)
			report.LongTerm.Totals.add(entry)
		} else {
			report.ShortTerm.Entries = append(report.ShortTerm.Entries, entry)
			report.ShortTerm.Totals.add(entry)
		}

		if r.BasisAdjustmentNeeded {
			report.AdjustmentRequired = true
		}
	}

	// A part holds entries of a single box; one adjusted entry moves the
	// whole part to the not-reported box, matching how brokers group
	// supplemental statements.
	for _, e := range report.ShortTerm.Entries {
		if e.Box == BoxB {
			report.ShortTerm.Box = BoxB
			break
		}
	}
	for _, e := range report.LongTerm.Entries {
		if e.Box == BoxE {
			report.LongTerm.Box = BoxE
			break
		}
	}

	report.TotalTransactions = len(results)
	report.ScheduleD = ScheduleD{
		ShortTermGainLoss: report.ShortTerm.Totals.GainLoss,
		LongTermGainLoss:  report.LongTerm.Totals.GainLoss,
		TotalGainLoss:     report.ShortTerm.Totals.GainLoss.Add(report.LongTerm.Totals.GainLoss),
	}

	totalProceeds := report.ShortTerm.Totals.Proceeds.Add(report.LongTerm.Totals.Proceeds)
	totalReported := report.ShortTerm.Totals.ReportedBasis.Add(report.LongTerm.Totals.ReportedBasis)
	totalAdjustment := report.ShortTerm.Totals.AdjustmentAmount.Add(report.LongTerm.Totals.AdjustmentAmount)
	report.TaxImpact = TaxImpact{
		ReportedGain:        totalProceeds.Sub(totalReported),
		CorrectedGain:       report.ScheduleD.TotalGainLoss,
		EstimatedTaxSavings: totalAdjustment.Mul(estimatedRate),
	}

	return report
}

func buildEntry(r ledger.TaxLotResult, o options) Entry {
	return Entry{
		Description:      fmt.Sprintf("%s (%s sh)", o.symbol, r.SharesSold),
		DateAcquired:     r.VestingDate,
		DateSold:         r.SaleDate,
		Proceeds:         r.Proceeds,
		ReportedBasis:    r.ReportedBasis,
		AdjustmentCode:   r.AdjustmentCode,
		AdjustmentAmount: r.AdjustmentAmount,
		GainLoss:         r.GainLoss,
		Box:              boxFor(r, o.basisReported),
		HoldingPeriod:    r.HoldingPeriod,
		CorrectBasis:     r.CostBasis,
	}
}

func boxFor(r ledger.TaxLotResult, basisReported bool) Box {
	reported := basisReported && !r.BasisAdjustmentNeeded
	if r.HoldingPeriod == ledger.LongTerm {
		if reported {
			return BoxD
		}
		return BoxE
	}
	if reported {
		return BoxA
	}
	return BoxB
}
