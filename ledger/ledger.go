// Package ledger implements RSU tax-lot tracking: a ledger of vesting lots
// with authoritative FMV-derived cost basis, a lot-matching allocator that
// depletes lots under FIFO or specific-identification policies, and a
// resolver that computes per-lot proceeds, basis, gain/loss and holding
// period for each sale.
//
// The ledger validates each vesting record on construction and collects
// per-record errors rather than failing the whole batch; broker exports
// are noisy and partial data is still useful for review.
//
// All quantities and currency amounts use decimal arithmetic to avoid
// floating point drift in basis and gain calculations.
//
// Example usage:
//
//	lots, errs := ledger.NewLedger(records)
//	alloc, err := lots.Allocate(sale, ledger.FIFO, ledger.Config{})
//	if err != nil {
//	    var shortfall *ledger.ShortfallError
//	    if errors.As(err, &shortfall) {
//	        // partial allocation still returned, review shortfall.Unsatisfied
//	    }
//	}
//	results := ledger.Resolve(alloc)
package ledger

import (
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// LotRecord is a normalized vesting record as produced by the broker
// loaders. Row is the 1-based source row for error reporting.
type LotRecord struct {
	Row            int
	VestingDate    Date
	SharesVested   decimal.Decimal
	FMVAtVesting   decimal.Decimal
	SharesWithheld decimal.Decimal
	GrantDate      *Date
	GrantID        string
}

// Ledger holds all vesting lots for a tax year. Lots are mutated in place
// by Allocate and are never removed, even when fully depleted; the complete
// ledger is needed for income verification after sales are processed.
//
// A Ledger is not safe for concurrent use. Each run or test should build
// its own ledger from the source records.
type Ledger struct {
	lots []*VestingLot
}

// NewLedger builds a ledger from vesting records. Invalid records are
// excluded and reported as DataErrors; valid lots are always returned, so
// callers can both act on the good rows and surface the bad ones.
func NewLedger(records []LotRecord) (*Ledger, []error) {
	l := &Ledger{}
	var errs []error

	for _, rec := range records {
		if err := validateRecord(rec); err != nil {
			errs = append(errs, err)
			continue
		}

		net := rec.SharesVested.Sub(rec.SharesWithheld)
		lot := &VestingLot{
			VestingDate:     rec.VestingDate,
			SharesVested:    rec.SharesVested,
			FMVAtVesting:    rec.FMVAtVesting,
			SharesWithheld:  rec.SharesWithheld,
			NetShares:       net,
			SharesRemaining: net,
			GrantDate:       rec.GrantDate,
			GrantID:         rec.GrantID,
			row:             rec.Row,
		}
		l.lots = append(l.lots, lot)
	}

	return l, errs
}

func validateRecord(rec LotRecord) error {
	switch {
	case rec.VestingDate.IsZero():
		return NewDataError(rec.Row, "vesting_date", "missing or unparseable vesting date", nil)
	case !rec.SharesVested.IsPositive():
		return NewDataError(rec.Row, "shares_vested", "shares vested must be positive", nil)
	case !rec.FMVAtVesting.IsPositive():
		// A zero FMV would produce a zero cost basis, which is never
		// legitimate for vested RSU shares.
		return NewDataError(rec.Row, "fmv_at_vesting", "FMV at vesting must be positive", nil)
	case rec.SharesWithheld.IsNegative():
		return NewDataError(rec.Row, "shares_withheld", "shares withheld cannot be negative", nil)
	case rec.SharesWithheld.GreaterThan(rec.SharesVested):
		return NewDataError(rec.Row, "shares_withheld", "shares withheld exceeds shares vested", nil)
	}
	return nil
}

// Lots returns all lots in insertion order, including depleted ones.
func (l *Ledger) Lots() []*VestingLot {
	return l.lots
}

// EligibleLots returns lots with shares remaining that vested on or before
// asOf, ordered oldest first. Lots sharing a vesting date keep their source
// file order so repeated runs allocate identically.
func (l *Ledger) EligibleLots(asOf Date) []*VestingLot {
	var eligible []*VestingLot
	for _, lot := range l.lots {
		if lot.Depleted() || lot.VestingDate.After(asOf.Time) {
			continue
		}
		eligible = append(eligible, lot)
	}

	slices.SortStableFunc(eligible, func(a, b *VestingLot) int {
		if a.VestingDate.Equal(b.VestingDate) {
			return a.row - b.row
		}
		if a.VestingDate.Before(b.VestingDate.Time) {
			return -1
		}
		return 1
	})

	return eligible
}

// TotalVestingIncome sums sharesVested × FMV across all lots. This is the
// figure that should appear in W-2 wages for the year.
func (l *Ledger) TotalVestingIncome() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		total = total.Add(lot.VestingIncome())
	}
	return total
}

// TotalNetShares sums the net shares received across all lots.
func (l *Ledger) TotalNetShares() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		total = total.Add(lot.NetShares)
	}
	return total
}

// TotalSharesRemaining sums the unsold shares across all lots.
func (l *Ledger) TotalSharesRemaining() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		total = total.Add(lot.SharesRemaining)
	}
	return total
}

// TotalRemainingBasis sums the cost basis of all unsold shares.
func (l *Ledger) TotalRemainingBasis() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		total = total.Add(lot.RemainingBasis())
	}
	return total
}
