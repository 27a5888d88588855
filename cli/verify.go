package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"

	"github.com/mkuiper/rsutax/broker"
	"github.com/mkuiper/rsutax/form8949"
	"github.com/mkuiper/rsutax/ledger"
	"github.com/mkuiper/rsutax/telemetry"
	"github.com/mkuiper/rsutax/verify"
)

type VerifyCmd struct {
	VestingFile FileOrStdin `help:"Vesting statement (CSV or JSON, use '-' for stdin)." required:""`
	SalesFile   FileOrStdin `help:"Sales export (CSV or JSON)."`

	W2Income string `help:"RSU income as reported in W-2 box 1, for the income cross-check." placeholder:"AMOUNT"`
	Method   string `help:"Lot matching method." enum:"fifo,specific" default:"fifo"`
	Watch    bool   `help:"Re-run verification whenever an input file changes."`
}

func (cmd *VerifyCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx := context.Background()

	if globals.Telemetry {
		collector := telemetry.NewTimingCollector()
		runCtx = telemetry.WithCollector(runCtx, collector)

		defer func() {
			_, _ = fmt.Fprintln(ctx.Stderr)
			collector.Report(ctx.Stderr, newStyles(ctx.Stderr))
		}()
	}

	var w2Income decimal.Decimal
	if cmd.W2Income != "" {
		var err error
		if w2Income, err = broker.ParseNumber(cmd.W2Income); err != nil {
			return fmt.Errorf("invalid --w2-income: %w", err)
		}
	}

	if !cmd.Watch {
		w, closeOutput, err := globals.reportWriter(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = closeOutput() }()

		passed, err := cmd.runOnce(runCtx, ctx, globals, w, w2Income)
		if err != nil {
			return err
		}
		if !passed {
			return NewCommandError(1)
		}
		return nil
	}

	return cmd.watch(ctx, globals, w2Income)
}

// runOnce loads the inputs fresh, runs every check and writes the report.
// It returns whether all checks passed.
func (cmd *VerifyCmd) runOnce(runCtx context.Context, ctx *kong.Context, globals *Globals, w io.Writer, w2Income decimal.Decimal) (bool, error) {
	timer := telemetry.FromContext(runCtx).Start("Verify")
	defer timer.End()

	loadTimer := timer.Child("Load inputs")
	l, _, err := loadLedger(ctx, &cmd.VestingFile)
	if err != nil {
		loadTimer.End()
		return false, err
	}

	var saleRecords []*broker.SaleRecord
	if cmd.SalesFile.IsSet() {
		imp, err := cmd.SalesFile.LoadSales()
		if err != nil {
			loadTimer.End()
			return false, err
		}
		renderer := NewErrorRenderer(cmd.SalesFile.GetAbsoluteFilename())
		for _, rowErr := range imp.RowErrors {
			_, _ = fmt.Fprintln(ctx.Stderr, renderer.Render(rowErr))
		}
		saleRecords = imp.Sales
	}
	loadTimer.End()

	checkTimer := timer.Child("Run checks")
	var checks []verify.Check

	if cmd.W2Income != "" {
		checks = append(checks, verify.VestingIncome(l, w2Income))
	}

	if len(saleRecords) > 0 {
		policy := ledger.Policy(cmd.Method)
		renderer := NewErrorRenderer(cmd.SalesFile.GetAbsoluteFilename())

		var sales []*ledger.Sale
		var results []ledger.TaxLotResult
		var figures []verify.GainFigure
		for _, rec := range saleRecords {
			sales = append(sales, &rec.Sale)

			// Partial allocations still verify; the shortfall itself is
			// reported to stderr.
			alloc, err := l.Allocate(&rec.Sale, policy, ledger.Config{})
			if err != nil {
				_, _ = fmt.Fprintln(ctx.Stderr, renderer.Render(err))
				if alloc == nil {
					continue
				}
			}
			res := ledger.Resolve(alloc)
			results = append(results, res...)

			if rec.HasReportedGain {
				proceeds, basis := decimal.Zero, decimal.Zero
				for _, r := range res {
					proceeds = proceeds.Add(r.Proceeds)
					basis = basis.Add(r.CostBasis)
				}
				figures = append(figures, verify.GainFigure{
					Label:            rec.SaleDate.String(),
					Proceeds:         proceeds,
					CostBasis:        basis,
					ReportedGainLoss: rec.ReportedGainLoss,
				})
			}
		}

		checks = append(checks, verify.CostBasisSanity(sales, l))
		if len(figures) > 0 {
			checks = append(checks, verify.CapitalGains(figures))
		}
		if len(results) > 0 {
			checks = append(checks,
				verify.HoldingPeriods(results),
				verify.Adjustments(form8949.Build(results)))
		}
	}

	report := verify.NewReport(checks)
	checkTimer.End()

	if globals.OutputFormat == "json" {
		return report.Failed == 0, writeJSON(w, report)
	}

	renderVerify(w, newStyles(w), report)
	return report.Failed == 0, nil
}

// watch re-runs verification on every change to the input files.
func (cmd *VerifyCmd) watch(ctx *kong.Context, globals *Globals, w2Income decimal.Decimal) error {
	if cmd.VestingFile.Filename == "<stdin>" || cmd.SalesFile.Filename == "<stdin>" {
		return fmt.Errorf("--watch requires file inputs, not stdin")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	files := []string{cmd.VestingFile.GetAbsoluteFilename()}
	if cmd.SalesFile.IsSet() {
		files = append(files, cmd.SalesFile.GetAbsoluteFilename())
	}
	for _, file := range files {
		if err := watcher.Add(file); err != nil {
			return fmt.Errorf("failed to watch %s: %w", file, err)
		}
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rerun := func() {
		_, _ = cmd.runOnce(context.Background(), ctx, globals, ctx.Stdout, w2Income)
	}

	printInfof(ctx.Stdout, "Watching %d file(s); press Ctrl-C to stop.", len(files))
	rerun()

	// Editors often write files in multiple steps; debounce events.
	const debounceDelay = 100 * time.Millisecond
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-sigCtx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// Atomic saves replace the file; re-add so later writes are
			// still seen.
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				_ = watcher.Add(event.Name)
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				printInfof(ctx.Stdout, "Change detected in %s", pathStyle.Render(event.Name))
				rerun()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			printError(ctx.Stderr, fmt.Sprintf("watch error: %v", err))
		}
	}
}
