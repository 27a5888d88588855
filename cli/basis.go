package cli

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"

	"github.com/mkuiper/rsutax/broker"
)

type BasisCmd struct {
	SharesVested   string `help:"Shares vested in the lot." required:"" placeholder:"N"`
	FMV            string `help:"Fair market value per share on the vesting date." required:"" placeholder:"PRICE"`
	SharesWithheld string `help:"Shares withheld for taxes at vesting." placeholder:"N"`
}

// basisSummary is the arithmetic for a single lot: the correct basis is
// FMV at vesting, and the withheld shares already covered the income tax
// on the full vested amount.
type basisSummary struct {
	SharesVested      decimal.Decimal `json:"shares_vested"`
	FMVAtVesting      decimal.Decimal `json:"fmv_at_vesting"`
	SharesWithheld    decimal.Decimal `json:"shares_withheld"`
	NetShares         decimal.Decimal `json:"net_shares"`
	CostBasisPerShare decimal.Decimal `json:"cost_basis_per_share"`
	VestingIncome     decimal.Decimal `json:"vesting_income"`
	NetShareBasis     decimal.Decimal `json:"net_share_basis"`
}

func (cmd *BasisCmd) Run(ctx *kong.Context, globals *Globals) error {
	vested, err := broker.ParseNumber(cmd.SharesVested)
	if err != nil {
		return fmt.Errorf("invalid --shares-vested: %w", err)
	}
	fmv, err := broker.ParseNumber(cmd.FMV)
	if err != nil {
		return fmt.Errorf("invalid --fmv: %w", err)
	}
	withheld := decimal.Zero
	if cmd.SharesWithheld != "" {
		if withheld, err = broker.ParseNumber(cmd.SharesWithheld); err != nil {
			return fmt.Errorf("invalid --shares-withheld: %w", err)
		}
	}
	if !vested.IsPositive() || !fmv.IsPositive() {
		return fmt.Errorf("shares vested and FMV must both be positive")
	}
	if withheld.IsNegative() || withheld.GreaterThan(vested) {
		return fmt.Errorf("shares withheld must be between 0 and shares vested")
	}

	net := vested.Sub(withheld)
	summary := basisSummary{
		SharesVested:      vested,
		FMVAtVesting:      fmv,
		SharesWithheld:    withheld,
		NetShares:         net,
		CostBasisPerShare: fmv,
		VestingIncome:     fmv.Mul(vested),
		NetShareBasis:     fmv.Mul(net),
	}

	w, closeOutput, err := globals.reportWriter(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeOutput() }()

	if globals.OutputFormat == "json" {
		return writeJSON(w, summary)
	}

	styles := newStyles(w)
	_, _ = fmt.Fprintf(w, "Cost basis per share: %s\n", styles.Amount(formatMoney(summary.CostBasisPerShare)))
	_, _ = fmt.Fprintf(w, "Vesting income (W-2): %s\n", styles.Amount(formatMoney(summary.VestingIncome)))
	_, _ = fmt.Fprintf(w, "Net shares held:      %s\n", formatShares(summary.NetShares))
	_, _ = fmt.Fprintf(w, "Basis of net shares:  %s\n", styles.Amount(formatMoney(summary.NetShareBasis)))
	_, _ = fmt.Fprintln(w)
	printInfof(w, "If the 1099-B shows a basis of $0.00 for these shares, report adjustment code B on Form 8949.")

	return nil
}
