package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// VestingLot represents a single RSU vesting event. The fair market value
// at vesting is the authoritative cost basis per share; it is taxed as
// ordinary income at vesting, which is exactly why a broker-reported basis
// of zero is always wrong.
//
// SharesRemaining is the only mutable field. It starts at NetShares and is
// decremented by the allocator as sales draw from the lot. Depleted lots are
// kept in the ledger for audit and verification.
type VestingLot struct {
	VestingDate    Date            `json:"vesting_date"`
	SharesVested   decimal.Decimal `json:"shares_vested"`
	FMVAtVesting   decimal.Decimal `json:"fmv_at_vesting"`
	SharesWithheld decimal.Decimal `json:"shares_withheld"`
	NetShares      decimal.Decimal `json:"net_shares"`

	SharesRemaining decimal.Decimal `json:"shares_remaining"`

	GrantDate *Date  `json:"grant_date,omitempty"`
	GrantID   string `json:"grant_id,omitempty"`

	// row preserves source file ordering so lots sharing a vesting date
	// deplete in a reproducible order.
	row int
}

// CostBasisPerShare returns the per-share basis, which for RSUs is always
// the FMV at vesting (never the grant price, never zero).
func (l *VestingLot) CostBasisPerShare() decimal.Decimal {
	return l.FMVAtVesting
}

// VestingIncome returns sharesVested × FMV, the W-2 ordinary income
// generated by this vesting event.
func (l *VestingLot) VestingIncome() decimal.Decimal {
	return l.SharesVested.Mul(l.FMVAtVesting)
}

// RemainingBasis returns the cost basis of the still-held shares.
func (l *VestingLot) RemainingBasis() decimal.Decimal {
	return l.SharesRemaining.Mul(l.FMVAtVesting)
}

// Depleted reports whether every net share of this lot has been sold.
func (l *VestingLot) Depleted() bool {
	return !l.SharesRemaining.IsPositive()
}

// String returns a compact description of the lot.
func (l *VestingLot) String() string {
	return fmt.Sprintf("%s %s sh @ %s (%s remaining)",
		l.VestingDate, l.NetShares, l.FMVAtVesting, l.SharesRemaining)
}

// Sale represents one sale transaction from an external feed. Immutable
// once created; consumed exactly once by the allocator.
type Sale struct {
	SaleDate           Date            `json:"sale_date"`
	SharesSold         decimal.Decimal `json:"shares_sold"`
	SalePrice          decimal.Decimal `json:"sale_price"`
	FromVestingDate    *Date           `json:"from_vesting_date,omitempty"`
	ReportedBasis1099B decimal.Decimal `json:"reported_basis_1099b"`

	// Row is the source row in the input file, used in diagnostics.
	Row int `json:"-"`
}

// Proceeds returns sharesSold × salePrice.
func (s *Sale) Proceeds() decimal.Decimal {
	return s.SharesSold.Mul(s.SalePrice)
}
