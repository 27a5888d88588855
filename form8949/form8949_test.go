package form8949

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/mkuiper/rsutax/ledger"
)

func resolvedSale(t *testing.T, reportedBasis int64) []ledger.TaxLotResult {
	t.Helper()

	l, errs := ledger.NewLedger([]ledger.LotRecord{
		{Row: 2, VestingDate: ledger.MustDate("2023-01-15"), SharesVested: decimal.NewFromInt(100), FMVAtVesting: decimal.NewFromInt(150)},
		{Row: 3, VestingDate: ledger.MustDate("2023-06-15"), SharesVested: decimal.NewFromInt(50), FMVAtVesting: decimal.NewFromInt(170)},
	})
	assert.Equal(t, 0, len(errs))

	sale := &ledger.Sale{
		SaleDate:           ledger.MustDate("2024-03-20"),
		SharesSold:         decimal.NewFromInt(120),
		SalePrice:          decimal.NewFromInt(190),
		ReportedBasis1099B: decimal.NewFromInt(reportedBasis),
	}
	results, err := l.ProcessSale(sale, ledger.FIFO, ledger.Config{})
	assert.NoError(t, err)
	return results
}

func TestBuild(t *testing.T) {
	t.Run("splits entries by holding period", func(t *testing.T) {
		report := Build(resolvedSale(t, 0), WithSymbol("AMZN"))

		assert.Equal(t, 1, len(report.LongTerm.Entries))
		assert.Equal(t, 1, len(report.ShortTerm.Entries))
		assert.Equal(t, 2, report.TotalTransactions)
		assert.Equal(t, "AMZN (100 sh)", report.LongTerm.Entries[0].Description)
	})

	t.Run("zero reported basis puts entries in boxes B and E", func(t *testing.T) {
		report := Build(resolvedSale(t, 0))

		assert.True(t, report.AdjustmentRequired)
		assert.Equal(t, BoxB, report.ShortTerm.Box)
		assert.Equal(t, BoxE, report.LongTerm.Box)
		for _, e := range append(report.ShortTerm.Entries, report.LongTerm.Entries...) {
			assert.Equal(t, "B", e.AdjustmentCode)
		}
	})

	t.Run("correct reported basis keeps the reported box", func(t *testing.T) {
		report := Build(singleLotResolved(t, 15000))

		assert.False(t, report.AdjustmentRequired)
		assert.Equal(t, BoxD, report.LongTerm.Box)
		assert.Equal(t, 0, len(report.ShortTerm.Entries))
	})

	t.Run("schedule D totals match the per-part gains", func(t *testing.T) {
		report := Build(resolvedSale(t, 0))

		assert.Equal(t, "4000", report.ScheduleD.LongTermGainLoss.String())
		assert.Equal(t, "400", report.ScheduleD.ShortTermGainLoss.String())
		assert.Equal(t, "4400", report.ScheduleD.TotalGainLoss.String())
	})

	t.Run("adjustment math is consistent per entry", func(t *testing.T) {
		report := Build(resolvedSale(t, 12000))

		for _, e := range append(report.ShortTerm.Entries, report.LongTerm.Entries...) {
			// (h) = (d) - ((e) + (g))
			recomputed := e.Proceeds.Sub(e.ReportedBasis.Add(e.AdjustmentAmount))
			assert.True(t, recomputed.Equal(e.GainLoss))
		}
	})

	t.Run("tax impact contrasts reported and corrected gain", func(t *testing.T) {
		report := Build(resolvedSale(t, 0))

		// Reported basis was zero, so the broker's gain equals proceeds.
		assert.Equal(t, "22800", report.TaxImpact.ReportedGain.String())
		assert.Equal(t, "4400", report.TaxImpact.CorrectedGain.String())
		// Savings estimate: 18400 adjustment at the flat 25% rate.
		assert.Equal(t, "4600", report.TaxImpact.EstimatedTaxSavings.String())
	})

	t.Run("basis not reported forces the not-reported box without adjustments", func(t *testing.T) {
		report := Build(singleLotResolved(t, 15000), WithBasisNotReported())

		assert.False(t, report.AdjustmentRequired)
		assert.Equal(t, BoxE, report.LongTerm.Box)
	})
}

func singleLotResolved(t *testing.T, reportedBasis int64) []ledger.TaxLotResult {
	t.Helper()

	l, errs := ledger.NewLedger([]ledger.LotRecord{
		{Row: 2, VestingDate: ledger.MustDate("2023-01-15"), SharesVested: decimal.NewFromInt(100), FMVAtVesting: decimal.NewFromInt(150)},
	})
	assert.Equal(t, 0, len(errs))

	sale := &ledger.Sale{
		SaleDate:           ledger.MustDate("2024-03-20"),
		SharesSold:         decimal.NewFromInt(100),
		SalePrice:          decimal.NewFromInt(190),
		ReportedBasis1099B: decimal.NewFromInt(reportedBasis),
	}
	results, err := l.ProcessSale(sale, ledger.FIFO, ledger.Config{})
	assert.NoError(t, err)
	return results
}
