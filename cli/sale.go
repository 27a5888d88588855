package cli

import (
	"context"
	stdErrors "errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/alecthomas/kong"

	"github.com/mkuiper/rsutax/broker"
	"github.com/mkuiper/rsutax/ledger"
	"github.com/mkuiper/rsutax/telemetry"
)

type SaleCmd struct {
	VestingFile FileOrStdin `help:"Vesting statement (CSV or JSON, use '-' for stdin)." required:""`
	SalesFile   FileOrStdin `help:"Sales export (CSV or JSON). Alternative to the inline sale flags."`

	SaleDate        string `help:"Sale date for a single inline sale." placeholder:"DATE"`
	Shares          string `help:"Shares sold for a single inline sale." placeholder:"N"`
	SalePrice       string `help:"Per-share sale price for a single inline sale." placeholder:"PRICE"`
	FromVestingDate string `help:"Vesting lot to sell from (specific identification)." placeholder:"DATE"`
	ReportedBasis   string `help:"Cost basis as reported on the 1099-B." placeholder:"AMOUNT"`

	Method          string `help:"Lot matching method." enum:"fifo,specific" default:"fifo"`
	StrictShortfall bool   `help:"Treat an oversold sale as a hard error instead of keeping the partial allocation."`
}

func (cmd *SaleCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx := context.Background()

	var collector telemetry.Collector
	var rootTimer telemetry.Timer
	var once sync.Once

	reportTelemetry := func() {
		once.Do(func() {
			if collector != nil {
				rootTimer.End()
				_, _ = fmt.Fprintln(ctx.Stderr)
				collector.Report(ctx.Stderr, newStyles(ctx.Stderr))
			}
		})
	}

	if globals.Telemetry {
		collector = telemetry.NewTimingCollector()
		runCtx = telemetry.WithCollector(runCtx, collector)
		rootTimer = collector.Start(fmt.Sprintf("sale %s", filepath.Base(cmd.VestingFile.Filename)))
		defer reportTelemetry()
	}

	loadTimer := telemetry.FromContext(runCtx).Start("Load vestings")
	l, _, err := loadLedger(ctx, &cmd.VestingFile)
	loadTimer.End()
	if err != nil {
		return err
	}

	sales, err := cmd.collectSales(ctx)
	if err != nil {
		return err
	}

	policy := ledger.Policy(cmd.Method)
	cfg := ledger.Config{Strict: cmd.StrictShortfall}
	renderer := NewErrorRenderer(cmd.VestingFile.GetAbsoluteFilename())

	allocTimer := telemetry.FromContext(runCtx).Start("Allocate sales")
	var results []ledger.TaxLotResult
	for _, sale := range sales {
		alloc, err := l.Allocate(sale, policy, cfg)
		if err != nil {
			var shortfall *ledger.ShortfallError
			if stdErrors.As(err, &shortfall) && alloc != nil {
				_, _ = fmt.Fprintln(ctx.Stderr, renderer.Render(err))

				if isTerminal() {
					confirmed, perr := promptYesNo("Continue with the partial allocation?")
					if perr != nil {
						return perr
					}
					if !confirmed {
						allocTimer.End()
						reportTelemetry()
						return NewCommandError(1)
					}
				}
			} else {
				_, _ = fmt.Fprintln(ctx.Stderr, renderer.Render(err))
				allocTimer.End()
				reportTelemetry()
				return NewCommandError(1)
			}
		}

		if alloc.FIFOFallback {
			printInfof(ctx.Stderr, "no matching lot for %s on %s; fell back to FIFO",
				sale.FromVestingDate, sale.SaleDate)
		}

		results = append(results, ledger.Resolve(alloc)...)
	}
	allocTimer.End()

	w, closeOutput, err := globals.reportWriter(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeOutput() }()

	if globals.OutputFormat == "json" {
		return writeJSON(w, results)
	}

	renderResults(w, newStyles(w), results)

	adjustments := 0
	for _, r := range results {
		if r.BasisAdjustmentNeeded {
			adjustments++
		}
	}
	if adjustments > 0 {
		_, _ = fmt.Fprintln(w)
		printInfof(w, "%d lot(s) need a Form 8949 basis adjustment (code B). Run the form8949 command for the full report.", adjustments)
	}

	return nil
}

// collectSales builds the sale list from the sales file or the inline
// flags. Exactly one of the two sources must be used.
func (cmd *SaleCmd) collectSales(ctx *kong.Context) ([]*ledger.Sale, error) {
	if cmd.SalesFile.IsSet() {
		if cmd.SaleDate != "" || cmd.Shares != "" || cmd.SalePrice != "" {
			return nil, fmt.Errorf("--sales-file cannot be combined with the inline sale flags")
		}

		imp, err := cmd.SalesFile.LoadSales()
		if err != nil {
			return nil, err
		}

		renderer := NewErrorRenderer(cmd.SalesFile.GetAbsoluteFilename())
		for _, rowErr := range imp.RowErrors {
			_, _ = fmt.Fprintln(ctx.Stderr, renderer.Render(rowErr))
		}
		if len(imp.Sales) == 0 {
			return nil, fmt.Errorf("no usable sales in %s", cmd.SalesFile.GetAbsoluteFilename())
		}

		return imp.LedgerSales(), nil
	}

	if cmd.SaleDate == "" || cmd.Shares == "" || cmd.SalePrice == "" {
		return nil, fmt.Errorf("provide --sales-file, or --sale-date with --shares and --sale-price")
	}

	sale := &ledger.Sale{}
	var err error
	if sale.SaleDate, err = ledger.NewDate(cmd.SaleDate); err != nil {
		return nil, fmt.Errorf("invalid --sale-date: %w", err)
	}
	if sale.SharesSold, err = broker.ParseNumber(cmd.Shares); err != nil {
		return nil, fmt.Errorf("invalid --shares: %w", err)
	}
	if sale.SalePrice, err = broker.ParseNumber(cmd.SalePrice); err != nil {
		return nil, fmt.Errorf("invalid --sale-price: %w", err)
	}
	if cmd.FromVestingDate != "" {
		d, err := ledger.NewDate(cmd.FromVestingDate)
		if err != nil {
			return nil, fmt.Errorf("invalid --from-vesting-date: %w", err)
		}
		sale.FromVestingDate = &d
	}
	if cmd.ReportedBasis != "" {
		if sale.ReportedBasis1099B, err = broker.ParseNumber(cmd.ReportedBasis); err != nil {
			return nil, fmt.Errorf("invalid --reported-basis: %w", err)
		}
	}

	return []*ledger.Sale{sale}, nil
}
