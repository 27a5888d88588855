package cli

import (
	"io"
	"os"

	"github.com/alecthomas/kong"
)

var (
	Version   = ""
	CommitSHA = ""
)

// Globals defines global flags available to all commands.
type Globals struct {
	Telemetry    bool   `help:"Show timing telemetry for operations."`
	OutputFormat string `help:"Report output format." enum:"text,json" default:"text"`
	Output       string `help:"Write the report to a file instead of stdout." type:"path" placeholder:"PATH"`
}

// reportWriter returns the writer reports go to: the --output file when
// set, stdout otherwise. The returned closer is a no-op for stdout.
func (g *Globals) reportWriter(ctx *kong.Context) (io.Writer, func() error, error) {
	if g.Output == "" {
		return ctx.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(g.Output)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

type Commands struct {
	Globals

	Lots        LotsCmd        `cmd:"" help:"Summarize vesting lots, income and remaining shares."`
	Sale        SaleCmd        `cmd:"" help:"Allocate a sale against vesting lots and compute per-lot gains."`
	Basis       BasisCmd       `cmd:"" help:"Compute the correct cost basis for a single vesting lot."`
	Withholding WithholdingCmd `cmd:"" help:"Estimate withholding on vesting income versus actual tax."`
	Form8949    Form8949Cmd    `cmd:"" name:"form8949" help:"Generate Form 8949 entries and a Schedule D summary."`
	Verify      VerifyCmd      `cmd:"" help:"Cross-check vesting income, cost basis and capital gains."`
	Doctor      DoctorCmd      `cmd:"" help:"Dump normalized records for debugging input files."`
}
