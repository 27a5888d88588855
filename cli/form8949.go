package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/alecthomas/kong"

	"github.com/mkuiper/rsutax/form8949"
	"github.com/mkuiper/rsutax/ledger"
	"github.com/mkuiper/rsutax/telemetry"
)

type Form8949Cmd struct {
	VestingFile FileOrStdin `help:"Vesting statement (CSV or JSON, use '-' for stdin)." required:""`
	SalesFile   FileOrStdin `help:"Sales export (CSV or JSON)." required:""`

	Method           string `help:"Lot matching method." enum:"fifo,specific" default:"fifo"`
	Symbol           string `help:"Security symbol used in entry descriptions." default:"RSU"`
	BasisNotReported bool   `help:"The 1099-B does not report basis to the IRS (boxes B/E regardless of adjustments)."`
}

func (cmd *Form8949Cmd) Run(ctx *kong.Context, globals *Globals) error {
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
		rootTimer = collector.Start(fmt.Sprintf("form8949 %s", filepath.Base(cmd.SalesFile.Filename)))
		defer reportTelemetry()
	}

	loadTimer := telemetry.FromContext(runCtx).Start("Load inputs")
	l, _, err := loadLedger(ctx, &cmd.VestingFile)
	if err != nil {
		loadTimer.End()
		return err
	}

	imp, err := cmd.SalesFile.LoadSales()
	loadTimer.End()
	if err != nil {
		return err
	}

	renderer := NewErrorRenderer(cmd.SalesFile.GetAbsoluteFilename())
	for _, rowErr := range imp.RowErrors {
		_, _ = fmt.Fprintln(ctx.Stderr, renderer.Render(rowErr))
	}
	if len(imp.Sales) == 0 {
		return fmt.Errorf("no usable sales in %s", cmd.SalesFile.GetAbsoluteFilename())
	}

	// A partial allocation would understate the form's totals, so an
	// oversold sale is always a hard error here.
	cfg := ledger.Config{Strict: true}
	policy := ledger.Policy(cmd.Method)

	allocTimer := telemetry.FromContext(runCtx).Start("Allocate sales")
	var results []ledger.TaxLotResult
	for _, sale := range imp.LedgerSales() {
		res, err := l.ProcessSale(sale, policy, cfg)
		if err != nil {
			_, _ = fmt.Fprintln(ctx.Stderr, renderer.Render(err))
			allocTimer.End()
			reportTelemetry()
			return NewCommandError(1)
		}
		results = append(results, res...)
	}
	allocTimer.End()

	opts := []form8949.Option{form8949.WithSymbol(cmd.Symbol)}
	if cmd.BasisNotReported {
		opts = append(opts, form8949.WithBasisNotReported())
	}
	report := form8949.Build(results, opts...)

	w, closeOutput, err := globals.reportWriter(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeOutput() }()

	if globals.OutputFormat == "json" {
		return writeJSON(w, report)
	}

	renderForm8949(w, newStyles(w), report)
	return nil
}
