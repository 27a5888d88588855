package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"

	"github.com/mkuiper/rsutax/form8949"
	"github.com/mkuiper/rsutax/ledger"
	"github.com/mkuiper/rsutax/output"
	"github.com/mkuiper/rsutax/verify"
	"github.com/mkuiper/rsutax/withholding"
)

func newStyles(w io.Writer) *output.Styles {
	return output.NewStyles(w)
}

// writeJSON writes any report as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatMoney renders a decimal as "$1,234.56" ("-$1,234.56" when
// negative).
func formatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}

	return fmt.Sprintf("%s$%s.%s", sign, grouped.String(), frac)
}

// formatShares renders a share quantity without trailing zeros.
func formatShares(d decimal.Decimal) string {
	return d.String()
}

// writeTable writes rows as runewidth-aligned columns. Cells containing
// money or digits are right-aligned.
func writeTable(w io.Writer, styles *output.Styles, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && runewidth.StringWidth(cell) > widths[i] {
				widths[i] = runewidth.StringWidth(cell)
			}
		}
	}

	var line strings.Builder
	for i, h := range headers {
		if i > 0 {
			line.WriteString("  ")
		}
		line.WriteString(pad(h, widths[i], false))
	}
	_, _ = fmt.Fprintln(w, styles.Keyword(line.String()))

	for _, row := range rows {
		line.Reset()
		for i, cell := range row {
			if i > 0 {
				line.WriteString("  ")
			}
			line.WriteString(pad(cell, widths[i], isNumeric(cell)))
		}
		_, _ = fmt.Fprintln(w, line.String())
	}
}

func pad(s string, width int, rightAlign bool) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	if rightAlign {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range strings.TrimLeft(s, "-$") {
		if (r < '0' || r > '9') && r != '.' && r != ',' && r != '%' {
			return false
		}
	}
	return true
}

// renderLots writes the ledger summary as a table and totals.
func renderLots(w io.Writer, styles *output.Styles, l *ledger.Ledger, asOf ledger.Date) {
	lots := l.EligibleLots(asOf)

	rows := make([][]string, 0, len(lots))
	for _, lot := range lots {
		grant := lot.GrantID
		if grant == "" {
			grant = "-"
		}
		rows = append(rows, []string{
			lot.VestingDate.String(),
			grant,
			formatShares(lot.SharesVested),
			formatShares(lot.SharesWithheld),
			formatShares(lot.NetShares),
			formatShares(lot.SharesRemaining),
			formatMoney(lot.FMVAtVesting),
			formatMoney(lot.RemainingBasis()),
		})
	}

	writeTable(w, styles,
		[]string{"Vesting Date", "Grant", "Vested", "Withheld", "Net", "Remaining", "FMV", "Basis Left"},
		rows)

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Vesting income:   %s\n", styles.Amount(formatMoney(l.TotalVestingIncome())))
	_, _ = fmt.Fprintf(w, "Net shares:       %s\n", formatShares(l.TotalNetShares()))
	_, _ = fmt.Fprintf(w, "Shares remaining: %s\n", formatShares(l.TotalSharesRemaining()))
	_, _ = fmt.Fprintf(w, "Remaining basis:  %s\n", styles.Amount(formatMoney(l.TotalRemainingBasis())))
}

// renderResults writes per-lot tax results.
func renderResults(w io.Writer, styles *output.Styles, results []ledger.TaxLotResult) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		adjustment := "-"
		if r.BasisAdjustmentNeeded {
			adjustment = fmt.Sprintf("%s (%s)", r.AdjustmentCode, formatMoney(r.AdjustmentAmount))
		}
		rows = append(rows, []string{
			r.VestingDate.String(),
			formatShares(r.SharesSold),
			formatMoney(r.CostBasisPerShare),
			formatMoney(r.Proceeds),
			formatMoney(r.CostBasis),
			formatMoney(r.GainLoss),
			fmt.Sprintf("%d", r.HoldingDays),
			string(r.HoldingPeriod),
			adjustment,
		})
	}

	writeTable(w, styles,
		[]string{"Lot", "Shares", "Basis/Share", "Proceeds", "Cost Basis", "Gain/Loss", "Days", "Period", "Adjustment"},
		rows)
}

// renderForm8949 writes the Form 8949 report, one section per part with
// entries.
func renderForm8949(w io.Writer, styles *output.Styles, report *form8949.Report) {
	writePart := func(title string, part form8949.Part) {
		if len(part.Entries) == 0 {
			return
		}
		_, _ = fmt.Fprintf(w, "%s (Box %s)\n", styles.Keyword(title), part.Box)

		rows := make([][]string, 0, len(part.Entries)+1)
		for _, e := range part.Entries {
			rows = append(rows, []string{
				e.Description,
				e.DateAcquired.String(),
				e.DateSold.String(),
				formatMoney(e.Proceeds),
				formatMoney(e.ReportedBasis),
				e.AdjustmentCode,
				formatMoney(e.AdjustmentAmount),
				formatMoney(e.GainLoss),
			})
		}
		rows = append(rows, []string{
			"Totals", "", "",
			formatMoney(part.Totals.Proceeds),
			formatMoney(part.Totals.ReportedBasis),
			"",
			formatMoney(part.Totals.AdjustmentAmount),
			formatMoney(part.Totals.GainLoss),
		})

		writeTable(w, styles,
			[]string{"(a) Description", "(b) Acquired", "(c) Sold", "(d) Proceeds", "(e) Basis", "(f)", "(g) Adj", "(h) Gain"},
			rows)
		_, _ = fmt.Fprintln(w)
	}

	writePart("Part I — Short-Term", report.ShortTerm)
	writePart("Part II — Long-Term", report.LongTerm)

	_, _ = fmt.Fprintln(w, styles.Keyword("Schedule D"))
	_, _ = fmt.Fprintf(w, "Short-term gain/loss: %s\n", styles.Amount(formatMoney(report.ScheduleD.ShortTermGainLoss)))
	_, _ = fmt.Fprintf(w, "Long-term gain/loss:  %s\n", styles.Amount(formatMoney(report.ScheduleD.LongTermGainLoss)))
	_, _ = fmt.Fprintf(w, "Total gain/loss:      %s\n", styles.Amount(formatMoney(report.ScheduleD.TotalGainLoss)))

	if report.AdjustmentRequired {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintf(w, "Gain with reported basis:  %s\n", formatMoney(report.TaxImpact.ReportedGain))
		_, _ = fmt.Fprintf(w, "Gain with correct basis:   %s\n", formatMoney(report.TaxImpact.CorrectedGain))
		_, _ = fmt.Fprintf(w, "Estimated tax savings:     %s\n", styles.Success(formatMoney(report.TaxImpact.EstimatedTaxSavings)))
	}
}

// renderVerify writes the verification report check by check.
func renderVerify(w io.Writer, styles *output.Styles, report *verify.Report) {
	for _, check := range report.Checks {
		symbol := styles.Success(successSymbol)
		if !check.Passed {
			symbol = styles.Error(errorSymbol)
		}
		_, _ = fmt.Fprintf(w, "%s %s: %s\n", symbol, styles.Keyword(check.Name), check.Message)
		for _, issue := range check.Issues {
			_, _ = fmt.Fprintf(w, "    %s\n", styles.Dim(issue))
		}
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "%d/%d checks passed\n", report.Passed, report.TotalChecks)
	for _, item := range report.ActionItems {
		_, _ = fmt.Fprintf(w, "%s %s: %s\n", styles.Warning("!"), item.Check, item.Action)
	}
	_, _ = fmt.Fprintln(w, report.Recommendation)
}

// renderWithholding writes the withholding-versus-actual comparison.
func renderWithholding(w io.Writer, styles *output.Styles, analysis *withholding.Analysis) {
	_, _ = fmt.Fprintf(w, "Vesting income: %s\n\n", styles.Amount(formatMoney(analysis.VestingIncome)))

	percent := func(rate decimal.Decimal) string {
		return rate.Mul(decimal.NewFromInt(100)).String() + "%"
	}

	writeTable(w, styles,
		[]string{"", "Withheld", "Estimated Actual"},
		[][]string{
			{fmt.Sprintf("Federal (%s vs %s bracket)", percent(analysis.Withheld.FederalRate), percent(analysis.EstimatedActual.MarginalRate)),
				formatMoney(analysis.Withheld.Federal), formatMoney(analysis.EstimatedActual.Federal)},
			{"Social Security", formatMoney(analysis.Withheld.SocialSecurity), formatMoney(analysis.EstimatedActual.SocialSecurity)},
			{"Medicare", formatMoney(analysis.Withheld.Medicare), formatMoney(analysis.EstimatedActual.Medicare)},
			{"State", formatMoney(analysis.Withheld.State), formatMoney(analysis.EstimatedActual.State)},
			{"Total", formatMoney(analysis.Withheld.Total), formatMoney(analysis.EstimatedActual.Total)},
		})

	_, _ = fmt.Fprintln(w)
	if analysis.Shortfall.IsPositive() {
		_, _ = fmt.Fprintf(w, "%s Estimated shortfall: %s (%s%% of vesting income)\n",
			styles.Warning("!"),
			styles.Amount(formatMoney(analysis.Shortfall)),
			analysis.ShortfallPercent)
	} else {
		printSuccess(w, "Withholding covers the estimated tax.")
	}
}
