package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestClassifyHolding(t *testing.T) {
	// The one-year boundary must be exact: day 365 is still short term.
	cases := []struct {
		days int
		want HoldingPeriod
	}{
		{0, ShortTerm},
		{364, ShortTerm},
		{365, ShortTerm},
		{366, LongTerm},
		{430, LongTerm},
	}

	for _, tc := range cases {
		if got := ClassifyHolding(tc.days); got != tc.want {
			t.Errorf("ClassifyHolding(%d) = %s, want %s", tc.days, got, tc.want)
		}
	}
}

func TestHoldingDays(t *testing.T) {
	t.Run("sold exactly 365 days after vesting", func(t *testing.T) {
		vest := MustDate("2023-01-15")
		sale := MustDate("2024-01-15") // 2024 is a leap year but Feb 29 is after this window
		if days := HoldingDays(vest, sale); days != 365 {
			t.Errorf("expected 365 days, got %d", days)
		}
	})

	t.Run("crosses a leap day", func(t *testing.T) {
		vest := MustDate("2024-02-01")
		sale := MustDate("2024-03-01")
		if days := HoldingDays(vest, sale); days != 29 {
			t.Errorf("expected 29 days across leap day, got %d", days)
		}
	})
}

func TestResolve_EndToEnd(t *testing.T) {
	// Lot A vested 2023-01-15 (100 sh @ $150), lot B vested 2023-06-15
	// (50 sh @ $170). Selling 120 sh on 2024-03-20 at $190 under FIFO
	// fully depletes A (long term) and takes 20 from B (short term).
	l := twoLotLedger()
	sale := &Sale{
		SaleDate:   MustDate("2024-03-20"),
		SharesSold: decimal.NewFromInt(120),
		SalePrice:  decimal.NewFromInt(190),
	}

	results, err := l.ProcessSale(sale, FIFO, Config{})
	if err != nil {
		t.Fatalf("ProcessSale failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	a, b := results[0], results[1]

	if a.SharesSold.String() != "100" || a.CostBasis.String() != "15000" ||
		a.Proceeds.String() != "19000" || a.GainLoss.String() != "4000" {
		t.Errorf("lot A figures wrong: %+v", a)
	}
	if a.HoldingDays != 430 || a.HoldingPeriod != LongTerm {
		t.Errorf("lot A holding: %d days %s, want 430 long_term", a.HoldingDays, a.HoldingPeriod)
	}

	if b.SharesSold.String() != "20" || b.CostBasis.String() != "3400" ||
		b.Proceeds.String() != "3800" || b.GainLoss.String() != "400" {
		t.Errorf("lot B figures wrong: %+v", b)
	}
	if b.HoldingDays != 279 || b.HoldingPeriod != ShortTerm {
		t.Errorf("lot B holding: %d days %s, want 279 short_term", b.HoldingDays, b.HoldingPeriod)
	}

	if l.Lots()[1].SharesRemaining.String() != "30" {
		t.Errorf("lot B remaining after sale: %s, want 30", l.Lots()[1].SharesRemaining)
	}
}

func TestResolve_BasisAdjustment(t *testing.T) {
	t.Run("zero reported basis always needs adjustment", func(t *testing.T) {
		l := twoLotLedger()
		sale := &Sale{
			SaleDate:   MustDate("2024-03-20"),
			SharesSold: decimal.NewFromInt(120),
			SalePrice:  decimal.NewFromInt(190),
		}

		results, err := l.ProcessSale(sale, FIFO, Config{})
		if err != nil {
			t.Fatalf("ProcessSale failed: %v", err)
		}
		for _, r := range results {
			if !r.BasisAdjustmentNeeded {
				t.Errorf("lot %s: zero reported basis must need adjustment", r.VestingDate)
			}
			if r.AdjustmentCode != "B" {
				t.Errorf("lot %s: expected code B, got %q", r.VestingDate, r.AdjustmentCode)
			}
			if !r.AdjustmentAmount.Equal(r.CostBasis.Sub(r.ReportedBasis)) {
				t.Errorf("lot %s: adjustment must equal correct minus reported basis", r.VestingDate)
			}
		}
	})

	t.Run("correct reported basis needs no adjustment", func(t *testing.T) {
		l, _ := NewLedger([]LotRecord{record(2, "2023-01-15", 100, 150, 0)})
		sale := &Sale{
			SaleDate:           MustDate("2024-03-20"),
			SharesSold:         decimal.NewFromInt(100),
			SalePrice:          decimal.NewFromInt(190),
			ReportedBasis1099B: decimal.NewFromInt(15000),
		}

		results, err := l.ProcessSale(sale, FIFO, Config{})
		if err != nil {
			t.Fatalf("ProcessSale failed: %v", err)
		}
		if results[0].BasisAdjustmentNeeded {
			t.Errorf("matching basis must not be flagged")
		}
		if results[0].AdjustmentCode != "" {
			t.Errorf("no code expected, got %q", results[0].AdjustmentCode)
		}
	})

	t.Run("adjustment round-trips exactly", func(t *testing.T) {
		l := twoLotLedger()
		sale := &Sale{
			SaleDate:           MustDate("2024-03-20"),
			SharesSold:         decimal.NewFromInt(120),
			SalePrice:          decimal.NewFromInt(190),
			ReportedBasis1099B: decimal.NewFromFloat(1234.56),
		}

		results, err := l.ProcessSale(sale, FIFO, Config{})
		if err != nil {
			t.Fatalf("ProcessSale failed: %v", err)
		}
		for _, r := range results {
			if !r.CostBasis.Sub(r.ReportedBasis).Equal(r.AdjustmentAmount) {
				t.Errorf("lot %s: correctBasis - reportedBasis != adjustmentAmount", r.VestingDate)
			}
		}
	})
}
