// Package withholding estimates employer withholding on RSU vesting
// income and compares it against a projection of the tax actually owed.
// Employers withhold federal tax at the flat supplemental rate, which is
// usually below the marginal bracket the income lands in; the gap is the
// under-withholding this package surfaces.
package withholding

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FilingStatus selects bracket tables and Medicare thresholds.
type FilingStatus string

const (
	Single            FilingStatus = "single"
	MarriedJointly    FilingStatus = "married_jointly"
	MarriedSeparately FilingStatus = "married_separately"
	HeadOfHousehold   FilingStatus = "head_of_household"
)

// Validate returns an error for an unknown filing status.
func (s FilingStatus) Validate() error {
	switch s {
	case Single, MarriedJointly, MarriedSeparately, HeadOfHousehold:
		return nil
	}
	return fmt.Errorf("unknown filing status %q", string(s))
}

// 2024 withholding rates.
var (
	supplementalRate       = decimal.RequireFromString("0.22")
	supplementalRateOver1M = decimal.RequireFromString("0.37")
	supplementalCutover    = decimal.NewFromInt(1_000_000)

	socialSecurityRate     = decimal.RequireFromString("0.062")
	socialSecurityWageBase = decimal.NewFromInt(168_600)

	medicareRate           = decimal.RequireFromString("0.0145")
	medicareAdditionalRate = decimal.RequireFromString("0.009")
)

// medicareThresholds is the additional-Medicare income threshold per
// filing status. Additional Medicare is owed above it but employers only
// withhold it above $200k regardless of status, a common shortfall
// source.
var medicareThresholds = map[FilingStatus]decimal.Decimal{
	Single:            decimal.NewFromInt(200_000),
	MarriedJointly:    decimal.NewFromInt(250_000),
	MarriedSeparately: decimal.NewFromInt(125_000),
	HeadOfHousehold:   decimal.NewFromInt(200_000),
}

var standardDeductions = map[FilingStatus]decimal.Decimal{
	Single:            decimal.NewFromInt(14_600),
	MarriedJointly:    decimal.NewFromInt(29_200),
	MarriedSeparately: decimal.NewFromInt(14_600),
	HeadOfHousehold:   decimal.NewFromInt(21_900),
}

type bracket struct {
	top  decimal.Decimal
	rate decimal.Decimal
}

func newBracket(top int64, rate string) bracket {
	return bracket{top: decimal.NewFromInt(top), rate: decimal.RequireFromString(rate)}
}

// brackets holds the 2024 federal income tax brackets. The last bracket
// of each table has no upper bound.
var brackets = map[FilingStatus][]bracket{
	Single: {
		newBracket(11_600, "0.10"), newBracket(47_150, "0.12"),
		newBracket(100_525, "0.22"), newBracket(191_950, "0.24"),
		newBracket(243_725, "0.32"), newBracket(609_350, "0.35"),
	},
	MarriedJointly: {
		newBracket(23_200, "0.10"), newBracket(94_300, "0.12"),
		newBracket(201_050, "0.22"), newBracket(383_900, "0.24"),
		newBracket(487_450, "0.32"), newBracket(731_200, "0.35"),
	},
	MarriedSeparately: {
		newBracket(11_600, "0.10"), newBracket(47_150, "0.12"),
		newBracket(100_525, "0.22"), newBracket(191_950, "0.24"),
		newBracket(243_725, "0.32"), newBracket(365_600, "0.35"),
	},
	HeadOfHousehold: {
		newBracket(16_550, "0.10"), newBracket(63_100, "0.12"),
		newBracket(100_500, "0.22"), newBracket(191_950, "0.24"),
		newBracket(243_700, "0.32"), newBracket(609_350, "0.35"),
	},
}

var topRate = decimal.RequireFromString("0.37")

// MarginalRate returns the federal bracket rate the given taxable income
// falls in for the filing status.
func MarginalRate(taxableIncome decimal.Decimal, status FilingStatus) decimal.Decimal {
	table, ok := brackets[status]
	if !ok {
		table = brackets[Single]
	}
	for _, b := range table {
		if taxableIncome.LessThanOrEqual(b.top) {
			return b.rate
		}
	}
	return topRate
}

// Input describes one vesting event for withholding analysis.
type Input struct {
	VestingIncome decimal.Decimal
	YTDWages      decimal.Decimal
	FilingStatus  FilingStatus
	StateRate     decimal.Decimal
}

// Withheld breaks down what the employer typically withholds at vesting.
type Withheld struct {
	Federal        decimal.Decimal `json:"federal"`
	FederalRate    decimal.Decimal `json:"federal_rate"`
	SocialSecurity decimal.Decimal `json:"social_security"`
	Medicare       decimal.Decimal `json:"medicare"`
	State          decimal.Decimal `json:"state"`
	Total          decimal.Decimal `json:"total_withheld"`
}

// ActualTax projects the tax actually owed on the vesting income, taxed
// at the marginal bracket it lands in on top of other wages.
type ActualTax struct {
	MarginalRate       decimal.Decimal `json:"marginal_bracket"`
	Federal            decimal.Decimal `json:"federal"`
	SocialSecurity     decimal.Decimal `json:"social_security"`
	Medicare           decimal.Decimal `json:"medicare"`
	AdditionalMedicare decimal.Decimal `json:"additional_medicare"`
	State              decimal.Decimal `json:"state"`
	Total              decimal.Decimal `json:"total"`
}

// Analysis is the withholding-versus-actual comparison.
type Analysis struct {
	VestingIncome    decimal.Decimal `json:"vesting_income"`
	Withheld         Withheld        `json:"withholding"`
	EstimatedActual  ActualTax       `json:"estimated_actual_tax"`
	Shortfall        decimal.Decimal `json:"shortfall"`
	ShortfallPercent decimal.Decimal `json:"shortfall_percent"`
}

// Estimate computes typical employer withholding on the vesting income
// and the estimated actual tax, and returns both with the shortfall.
func Estimate(in Input) (*Analysis, error) {
	if err := in.FilingStatus.Validate(); err != nil {
		return nil, err
	}
	if in.VestingIncome.IsNegative() {
		return nil, fmt.Errorf("vesting income must not be negative")
	}

	federalRate := supplementalRate
	if in.VestingIncome.GreaterThan(supplementalCutover) {
		federalRate = supplementalRateOver1M
	}
	federalWithheld := in.VestingIncome.Mul(federalRate)

	// Social Security stops at the wage base; YTD wages may already
	// have consumed part or all of it.
	remainingSSWages := decimal.Max(decimal.Zero, socialSecurityWageBase.Sub(in.YTDWages))
	ssWithheld := decimal.Min(in.VestingIncome, remainingSSWages).Mul(socialSecurityRate)

	medicareWithheld := in.VestingIncome.Mul(medicareRate)

	threshold := medicareThresholds[in.FilingStatus]
	totalWages := in.YTDWages.Add(in.VestingIncome)
	additionalMedicare := decimal.Zero
	if totalWages.GreaterThan(threshold) {
		overThreshold := decimal.Min(in.VestingIncome, totalWages.Sub(threshold))
		additionalMedicare = overThreshold.Mul(medicareAdditionalRate)
	}

	stateWithheld := in.VestingIncome.Mul(in.StateRate)
	totalWithheld := federalWithheld.Add(ssWithheld).Add(medicareWithheld).Add(stateWithheld)

	taxableIncome := decimal.Max(decimal.Zero, totalWages.Sub(standardDeductions[in.FilingStatus]))
	marginalRate := MarginalRate(taxableIncome, in.FilingStatus)

	estimatedFederal := in.VestingIncome.Mul(marginalRate)
	estimatedState := in.VestingIncome.Mul(in.StateRate)
	estimatedTotal := estimatedFederal.Add(ssWithheld).Add(medicareWithheld).
		Add(additionalMedicare).Add(estimatedState)

	shortfall := estimatedTotal.Sub(totalWithheld)
	shortfallPercent := decimal.Zero
	if in.VestingIncome.IsPositive() {
		shortfallPercent = shortfall.Div(in.VestingIncome).Mul(decimal.NewFromInt(100))
	}

	return &Analysis{
		VestingIncome: in.VestingIncome.Round(2),
		Withheld: Withheld{
			Federal:        federalWithheld.Round(2),
			FederalRate:    federalRate,
			SocialSecurity: ssWithheld.Round(2),
			Medicare:       medicareWithheld.Round(2),
			State:          stateWithheld.Round(2),
			Total:          totalWithheld.Round(2),
		},
		EstimatedActual: ActualTax{
			MarginalRate:       marginalRate,
			Federal:            estimatedFederal.Round(2),
			SocialSecurity:     ssWithheld.Round(2),
			Medicare:           medicareWithheld.Add(additionalMedicare).Round(2),
			AdditionalMedicare: additionalMedicare.Round(2),
			State:              estimatedState.Round(2),
			Total:              estimatedTotal.Round(2),
		},
		Shortfall:        shortfall.Round(2),
		ShortfallPercent: shortfallPercent.Round(1),
	}, nil
}
