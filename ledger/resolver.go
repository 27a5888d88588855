package ledger

import (
	"github.com/shopspring/decimal"
)

// HoldingPeriod classifies a gain for capital gains tax treatment.
type HoldingPeriod string

const (
	ShortTerm HoldingPeriod = "short_term"
	LongTerm  HoldingPeriod = "long_term"
)

// longTermThresholdDays is the holding period boundary: a position held
// for more than 365 whole days qualifies as long term. Day 365 exactly is
// still short term; day 366 is long term. Getting this wrong silently
// changes the applicable tax rate at the one-year mark.
const longTermThresholdDays = 365

// adjustmentCodeIncorrectBasis is the Form 8949 column (f) code meaning
// the broker-reported basis on the 1099-B is incorrect.
const adjustmentCodeIncorrectBasis = "B"

// TaxLotResult is the tax outcome of drawing shares from one lot for one
// sale. Derived and transient; recomputed from the ledger and sale on
// demand and never persisted independently of its inputs.
type TaxLotResult struct {
	VestingDate       Date            `json:"vesting_date"`
	SaleDate          Date            `json:"sale_date"`
	SharesSold        decimal.Decimal `json:"shares_sold"`
	CostBasisPerShare decimal.Decimal `json:"cost_basis_per_share"`
	SalePrice         decimal.Decimal `json:"sale_price"`
	Proceeds          decimal.Decimal `json:"proceeds"`
	CostBasis         decimal.Decimal `json:"cost_basis"`
	GainLoss          decimal.Decimal `json:"gain_loss"`
	HoldingPeriod     HoldingPeriod   `json:"holding_period"`
	HoldingDays       int             `json:"holding_days"`

	BasisAdjustmentNeeded bool            `json:"basis_adjustment_needed"`
	ReportedBasis         decimal.Decimal `json:"reported_basis"`
	AdjustmentAmount      decimal.Decimal `json:"adjustment_amount"`
	AdjustmentCode        string          `json:"adjustment_code"`
}

// HoldingDays returns the whole days between vesting and sale.
func HoldingDays(vesting, sale Date) int {
	return vesting.DaysUntil(sale)
}

// ClassifyHolding returns the tax treatment for a holding period.
func ClassifyHolding(days int) HoldingPeriod {
	if days > longTermThresholdDays {
		return LongTerm
	}
	return ShortTerm
}

// Resolve computes the per-lot tax figures for an allocation. The sum of
// SharesSold across the results equals the allocated share total, and the
// sum of CostBasis equals the recomputed basis for the sale.
func Resolve(alloc *Allocation) []TaxLotResult {
	results := make([]TaxLotResult, 0, len(alloc.Draws))
	for _, draw := range alloc.Draws {
		results = append(results, resolveDraw(alloc.Sale, draw))
	}
	return results
}

func resolveDraw(sale *Sale, draw Draw) TaxLotResult {
	lot := draw.Lot
	days := HoldingDays(lot.VestingDate, sale.SaleDate)

	proceeds := draw.Shares.Mul(sale.SalePrice)
	basis := draw.Shares.Mul(lot.CostBasisPerShare())

	// Reported basis of exactly zero always needs correcting; it is never
	// a legitimate value for vested RSU shares. Otherwise any difference
	// from the FMV-derived basis triggers an adjustment (zero tolerance).
	needsAdjustment := draw.AllocatedBasis.IsZero() || !draw.AllocatedBasis.Equal(basis)

	result := TaxLotResult{
		VestingDate:       lot.VestingDate,
		SaleDate:          sale.SaleDate,
		SharesSold:        draw.Shares,
		CostBasisPerShare: lot.CostBasisPerShare(),
		SalePrice:         sale.SalePrice,
		Proceeds:          proceeds,
		CostBasis:         basis,
		GainLoss:          proceeds.Sub(basis),
		HoldingPeriod:     ClassifyHolding(days),
		HoldingDays:       days,
		ReportedBasis:     draw.AllocatedBasis,
	}

	if needsAdjustment {
		result.BasisAdjustmentNeeded = true
		result.AdjustmentAmount = basis.Sub(draw.AllocatedBasis)
		result.AdjustmentCode = adjustmentCodeIncorrectBasis
	}

	return result
}
