package cli

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/alecthomas/repr"
)

// DoctorCmd dumps the normalized records parsed from input files, for
// debugging header detection and field mapping against a broker export.
type DoctorCmd struct {
	VestingFile FileOrStdin `help:"Vesting statement (CSV or JSON, use '-' for stdin)."`
	SalesFile   FileOrStdin `help:"Sales export (CSV or JSON)."`
}

func (cmd *DoctorCmd) Run(ctx *kong.Context, globals *Globals) error {
	if !cmd.VestingFile.IsSet() && !cmd.SalesFile.IsSet() {
		return fmt.Errorf("provide --vesting-file or --sales-file")
	}

	if cmd.VestingFile.IsSet() {
		imp, err := cmd.VestingFile.LoadVestings()
		if err != nil {
			return err
		}
		printInfof(ctx.Stdout, "%s: detected broker %q, %d record(s), %d bad row(s)",
			pathStyle.Render(cmd.VestingFile.GetAbsoluteFilename()), imp.Broker, len(imp.Records), len(imp.RowErrors))
		repr.New(ctx.Stdout, repr.Indent("  ")).Println(imp.Records)

		renderer := NewErrorRenderer(cmd.VestingFile.GetAbsoluteFilename())
		for _, rowErr := range imp.RowErrors {
			_, _ = fmt.Fprintln(ctx.Stderr, renderer.Render(rowErr))
		}
	}

	if cmd.SalesFile.IsSet() {
		imp, err := cmd.SalesFile.LoadSales()
		if err != nil {
			return err
		}
		printInfof(ctx.Stdout, "%s: detected broker %q, %d sale(s), %d bad row(s)",
			pathStyle.Render(cmd.SalesFile.GetAbsoluteFilename()), imp.Broker, len(imp.Sales), len(imp.RowErrors))
		repr.New(ctx.Stdout, repr.Indent("  ")).Println(imp.Sales)

		renderer := NewErrorRenderer(cmd.SalesFile.GetAbsoluteFilename())
		for _, rowErr := range imp.RowErrors {
			_, _ = fmt.Fprintln(ctx.Stderr, renderer.Render(rowErr))
		}
	}

	return nil
}
