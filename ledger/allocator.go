package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Policy selects how the allocator picks lots to deplete for a sale.
type Policy string

const (
	// FIFO draws from the oldest eligible vesting lot first.
	FIFO Policy = "fifo"

	// SpecificID draws from the lot named by the sale's fromVestingDate.
	// Falls back to FIFO, with the fallback reported on the allocation,
	// when the named lot is missing or has insufficient shares.
	SpecificID Policy = "specific"
)

// Config controls allocation behavior.
type Config struct {
	// Strict makes an unsatisfiable sale a hard error: the partial draws
	// are rolled back and no allocation is returned. The default keeps
	// the partial allocation and surfaces a ShortfallError alongside it,
	// since partial results are still useful for review.
	Strict bool
}

// Draw records shares taken from one lot for a sale, together with the
// slice of the broker-reported 1099-B basis allotted to those shares.
type Draw struct {
	Lot            *VestingLot
	Shares         decimal.Decimal
	AllocatedBasis decimal.Decimal
}

// Allocation is the outcome of matching one sale against the ledger.
type Allocation struct {
	Sale  *Sale
	Draws []Draw

	// FIFOFallback is set when a specific-identification request could
	// not be honored and the allocator fell back to FIFO. The fallback
	// is never silent; misattributing a lot can shift gains between tax
	// years.
	FIFOFallback bool

	// Unsatisfied holds the share quantity that could not be allocated.
	// Zero for a fully satisfied sale.
	Unsatisfied decimal.Decimal
}

// AllocatedShares returns the total shares drawn across all lots.
func (a *Allocation) AllocatedShares() decimal.Decimal {
	total := decimal.Zero
	for _, d := range a.Draws {
		total = total.Add(d.Shares)
	}
	return total
}

// Allocate matches a sale against the ledger under the given policy,
// decrementing SharesRemaining on each drawn lot. This mutation is the
// allocator's only side effect.
//
// On shortfall the returned error is a *ShortfallError. Unless cfg.Strict
// is set the partial allocation is returned with it.
func (l *Ledger) Allocate(sale *Sale, policy Policy, cfg Config) (*Allocation, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	if !sale.SharesSold.IsPositive() {
		return nil, NewDataError(sale.Row, "shares_sold", "shares sold must be positive", nil)
	}
	if sale.SalePrice.IsNegative() {
		return nil, NewDataError(sale.Row, "sale_price", "sale price cannot be negative", nil)
	}
	if sale.SaleDate.IsZero() {
		return nil, NewDataError(sale.Row, "sale_date", "missing or unparseable sale date", nil)
	}

	alloc := &Allocation{Sale: sale}

	if policy == SpecificID {
		if lot := l.findSpecificLot(sale); lot != nil {
			lot.SharesRemaining = lot.SharesRemaining.Sub(sale.SharesSold)
			alloc.Draws = append(alloc.Draws, Draw{Lot: lot, Shares: sale.SharesSold})
			l.allocateReportedBasis(alloc)
			return alloc, nil
		}
		alloc.FIFOFallback = true
	}

	remaining := sale.SharesSold
	for _, lot := range l.EligibleLots(sale.SaleDate) {
		if !remaining.IsPositive() {
			break
		}

		draw := decimal.Min(remaining, lot.SharesRemaining)
		lot.SharesRemaining = lot.SharesRemaining.Sub(draw)
		remaining = remaining.Sub(draw)

		alloc.Draws = append(alloc.Draws, Draw{Lot: lot, Shares: draw})
	}

	if remaining.IsPositive() {
		alloc.Unsatisfied = remaining
		err := NewShortfallError(sale, alloc.AllocatedShares())

		if cfg.Strict {
			l.rollback(alloc)
			return nil, err
		}

		l.allocateReportedBasis(alloc)
		return alloc, err
	}

	l.allocateReportedBasis(alloc)
	return alloc, nil
}

// findSpecificLot locates the lot matching the sale's fromVestingDate with
// enough remaining shares to cover the whole sale. Specific identification
// never splits across lots; a partial match falls back to FIFO.
func (l *Ledger) findSpecificLot(sale *Sale) *VestingLot {
	if sale.FromVestingDate == nil {
		return nil
	}
	for _, lot := range l.lots {
		if lot.VestingDate.Equal(*sale.FromVestingDate) &&
			lot.SharesRemaining.GreaterThanOrEqual(sale.SharesSold) {
			return lot
		}
	}
	return nil
}

// allocateReportedBasis spreads the sale's 1099-B reported basis across the
// draws in proportion to shares drawn. The divisor is the requested share
// count, not the allocated total, so an under-allocated sale does not
// inflate the basis attributed to the lots that were drawn.
func (l *Ledger) allocateReportedBasis(alloc *Allocation) {
	reported := alloc.Sale.ReportedBasis1099B
	if reported.IsZero() || !alloc.Sale.SharesSold.IsPositive() {
		return
	}
	for i := range alloc.Draws {
		alloc.Draws[i].AllocatedBasis = reported.
			Mul(alloc.Draws[i].Shares).
			Div(alloc.Sale.SharesSold)
	}
}

// rollback restores the shares drawn by a failed strict allocation.
func (l *Ledger) rollback(alloc *Allocation) {
	for _, d := range alloc.Draws {
		d.Lot.SharesRemaining = d.Lot.SharesRemaining.Add(d.Shares)
	}
	alloc.Draws = nil
}

// ProcessSale allocates a sale and resolves the tax figures in one step.
// The allocation error, if any, is returned with the resolved results.
func (l *Ledger) ProcessSale(sale *Sale, policy Policy, cfg Config) ([]TaxLotResult, error) {
	alloc, err := l.Allocate(sale, policy, cfg)
	if alloc == nil {
		return nil, err
	}
	return Resolve(alloc), err
}

func (p Policy) validate() error {
	switch p {
	case FIFO, SpecificID:
		return nil
	}
	return fmt.Errorf("unknown allocation policy %q", string(p))
}
