package cli

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/mkuiper/rsutax/ledger"
)

type LotsCmd struct {
	VestingFile FileOrStdin `help:"Vesting statement (CSV or JSON, use '-' for stdin)." required:""`
	AsOf        string      `help:"Only include lots vested on or before this date." placeholder:"DATE"`
}

func (cmd *LotsCmd) Run(ctx *kong.Context, globals *Globals) error {
	l, _, err := loadLedger(ctx, &cmd.VestingFile)
	if err != nil {
		return err
	}

	asOf := ledger.Today()
	if cmd.AsOf != "" {
		if asOf, err = ledger.NewDate(cmd.AsOf); err != nil {
			return fmt.Errorf("invalid --as-of date: %w", err)
		}
	}

	w, closeOutput, err := globals.reportWriter(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeOutput() }()

	if globals.OutputFormat == "json" {
		return writeJSON(w, l.EligibleLots(asOf))
	}

	renderLots(w, newStyles(w), l, asOf)
	return nil
}

// loadLedger loads vesting records and builds the ledger, printing any
// row-level errors to stderr. Bad rows don't abort the command; an
// unreadable file does.
func loadLedger(ctx *kong.Context, file *FileOrStdin) (*ledger.Ledger, int, error) {
	imp, err := file.LoadVestings()
	if err != nil {
		return nil, 0, err
	}

	renderer := NewErrorRenderer(file.GetAbsoluteFilename())
	for _, rowErr := range imp.RowErrors {
		_, _ = fmt.Fprintln(ctx.Stderr, renderer.Render(rowErr))
	}

	l, errs := ledger.NewLedger(imp.Records)
	for _, recErr := range errs {
		_, _ = fmt.Fprintln(ctx.Stderr, renderer.Render(recErr))
	}

	skipped := len(imp.RowErrors) + len(errs)
	if skipped > 0 {
		printError(ctx.Stderr, fmt.Sprintf("%d record(s) skipped", skipped))
	}
	if len(l.Lots()) == 0 {
		return nil, skipped, fmt.Errorf("no usable vesting records in %s", file.GetAbsoluteFilename())
	}

	return l, skipped, nil
}
