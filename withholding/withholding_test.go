package withholding

import (
	"testing"

	"github.com/shopspring/decimal"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEstimate(t *testing.T) {
	t.Run("mid-year vesting for a single filer", func(t *testing.T) {
		analysis, err := Estimate(Input{
			VestingIncome: money("150000"),
			YTDWages:      money("100000"),
			FilingStatus:  Single,
			StateRate:     money("0.05"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Flat 22% federal on 150k.
		if !analysis.Withheld.Federal.Equal(money("33000")) {
			t.Errorf("federal withheld = %s, want 33000", analysis.Withheld.Federal)
		}
		// Only 68600 of wage base left after 100k YTD.
		if !analysis.Withheld.SocialSecurity.Equal(money("4253.20")) {
			t.Errorf("social security = %s, want 4253.20", analysis.Withheld.SocialSecurity)
		}
		if !analysis.Withheld.Medicare.Equal(money("2175")) {
			t.Errorf("medicare = %s, want 2175", analysis.Withheld.Medicare)
		}
		if !analysis.Withheld.Total.Equal(money("46928.20")) {
			t.Errorf("total withheld = %s, want 46928.20", analysis.Withheld.Total)
		}

		// 250k total lands in the 32% bracket after the deduction.
		if !analysis.EstimatedActual.MarginalRate.Equal(money("0.32")) {
			t.Errorf("marginal rate = %s, want 0.32", analysis.EstimatedActual.MarginalRate)
		}
		// 50k over the 200k threshold owes additional Medicare.
		if !analysis.EstimatedActual.AdditionalMedicare.Equal(money("450")) {
			t.Errorf("additional medicare = %s, want 450", analysis.EstimatedActual.AdditionalMedicare)
		}
		if !analysis.EstimatedActual.Total.Equal(money("62378.20")) {
			t.Errorf("estimated total = %s, want 62378.20", analysis.EstimatedActual.Total)
		}

		if !analysis.Shortfall.Equal(money("15450")) {
			t.Errorf("shortfall = %s, want 15450", analysis.Shortfall)
		}
		if !analysis.ShortfallPercent.Equal(money("10.3")) {
			t.Errorf("shortfall percent = %s, want 10.3", analysis.ShortfallPercent)
		}
	})

	t.Run("over one million uses the top supplemental rate", func(t *testing.T) {
		analysis, err := Estimate(Input{
			VestingIncome: money("1200000"),
			FilingStatus:  Single,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !analysis.Withheld.FederalRate.Equal(money("0.37")) {
			t.Errorf("federal rate = %s, want 0.37", analysis.Withheld.FederalRate)
		}
	})

	t.Run("wage base already consumed", func(t *testing.T) {
		analysis, err := Estimate(Input{
			VestingIncome: money("50000"),
			YTDWages:      money("200000"),
			FilingStatus:  Single,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !analysis.Withheld.SocialSecurity.IsZero() {
			t.Errorf("social security = %s, want 0", analysis.Withheld.SocialSecurity)
		}
	})

	t.Run("married jointly threshold defers additional medicare", func(t *testing.T) {
		analysis, err := Estimate(Input{
			VestingIncome: money("100000"),
			YTDWages:      money("120000"),
			FilingStatus:  MarriedJointly,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 220k total is under the 250k joint threshold.
		if !analysis.EstimatedActual.AdditionalMedicare.IsZero() {
			t.Errorf("additional medicare = %s, want 0", analysis.EstimatedActual.AdditionalMedicare)
		}
	})

	t.Run("unknown filing status", func(t *testing.T) {
		_, err := Estimate(Input{VestingIncome: money("1000"), FilingStatus: "widowed"})
		if err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("zero income has zero shortfall percent", func(t *testing.T) {
		analysis, err := Estimate(Input{FilingStatus: Single})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !analysis.ShortfallPercent.IsZero() {
			t.Errorf("shortfall percent = %s, want 0", analysis.ShortfallPercent)
		}
	})
}

func TestMarginalRate(t *testing.T) {
	for _, tt := range []struct {
		income string
		status FilingStatus
		want   string
	}{
		{"10000", Single, "0.10"},
		{"47150", Single, "0.12"},
		{"47151", Single, "0.22"},
		{"235400", Single, "0.32"},
		{"700000", Single, "0.37"},
		{"90000", MarriedJointly, "0.12"},
		{"400000", MarriedSeparately, "0.37"},
		{"60000", HeadOfHousehold, "0.12"},
	} {
		got := MarginalRate(money(tt.income), tt.status)
		if !got.Equal(money(tt.want)) {
			t.Errorf("MarginalRate(%s, %s) = %s, want %s", tt.income, tt.status, got, tt.want)
		}
	}
}
