package cli

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"

	"github.com/mkuiper/rsutax/broker"
	"github.com/mkuiper/rsutax/withholding"
)

type WithholdingCmd struct {
	VestingIncome string `help:"Vesting income to analyze." required:"" placeholder:"AMOUNT"`
	YtdWages      string `help:"Wages paid year-to-date before this vesting." placeholder:"AMOUNT"`
	FilingStatus  string `help:"Tax filing status." enum:"single,married_jointly,married_separately,head_of_household" default:"single"`
	StateRate     string `help:"Flat state withholding rate." default:"0.05"`
}

func (cmd *WithholdingCmd) Run(ctx *kong.Context, globals *Globals) error {
	income, err := broker.ParseNumber(cmd.VestingIncome)
	if err != nil {
		return fmt.Errorf("invalid --vesting-income: %w", err)
	}
	ytd := decimal.Zero
	if cmd.YtdWages != "" {
		if ytd, err = broker.ParseNumber(cmd.YtdWages); err != nil {
			return fmt.Errorf("invalid --ytd-wages: %w", err)
		}
	}
	stateRate, err := decimal.NewFromString(cmd.StateRate)
	if err != nil {
		return fmt.Errorf("invalid --state-rate: %w", err)
	}

	analysis, err := withholding.Estimate(withholding.Input{
		VestingIncome: income,
		YTDWages:      ytd,
		FilingStatus:  withholding.FilingStatus(cmd.FilingStatus),
		StateRate:     stateRate,
	})
	if err != nil {
		return err
	}

	w, closeOutput, err := globals.reportWriter(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeOutput() }()

	if globals.OutputFormat == "json" {
		return writeJSON(w, analysis)
	}

	renderWithholding(w, newStyles(w), analysis)
	return nil
}
