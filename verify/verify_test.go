package verify

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mkuiper/rsutax/form8949"
	"github.com/mkuiper/rsutax/ledger"
)

func testLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, errs := ledger.NewLedger([]ledger.LotRecord{
		{Row: 2, VestingDate: ledger.MustDate("2023-01-15"), SharesVested: decimal.NewFromInt(100), FMVAtVesting: decimal.NewFromInt(150)},
		{Row: 3, VestingDate: ledger.MustDate("2023-06-15"), SharesVested: decimal.NewFromInt(50), FMVAtVesting: decimal.NewFromInt(170)},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected record errors: %v", errs)
	}
	return l
}

func TestVestingIncome(t *testing.T) {
	t.Run("passes within the 1% tolerance", func(t *testing.T) {
		// Ledger income is 23500; 23400 is within 1%.
		check := VestingIncome(testLedger(t), decimal.NewFromInt(23400))
		if !check.Passed {
			t.Errorf("expected pass, got: %s", check.Message)
		}
	})

	t.Run("fails outside the tolerance with both differences reported", func(t *testing.T) {
		check := VestingIncome(testLedger(t), decimal.NewFromInt(20000))
		if check.Passed {
			t.Fatalf("expected failure")
		}
		if !strings.Contains(check.Message, "3500.00") || !strings.Contains(check.Message, "%") {
			t.Errorf("message should carry absolute and percentage difference: %s", check.Message)
		}
		if check.Status != "FAIL" {
			t.Errorf("expected FAIL status, got %s", check.Status)
		}
	})
}

func TestCapitalGains(t *testing.T) {
	figures := []GainFigure{
		{
			Label:            "2024-03-20",
			Proceeds:         decimal.NewFromInt(19000),
			CostBasis:        decimal.NewFromInt(15000),
			ReportedGainLoss: decimal.NewFromInt(4000),
		},
		{
			Label:            "2024-04-01",
			Proceeds:         decimal.NewFromInt(3800),
			CostBasis:        decimal.NewFromInt(3400),
			ReportedGainLoss: decimal.NewFromInt(390), // off by 10
		},
	}

	check := CapitalGains(figures)
	if check.Passed {
		t.Fatalf("expected failure for the mismatched sale")
	}
	if len(check.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(check.Issues))
	}
	if !strings.Contains(check.Issues[0], "2024-04-01") {
		t.Errorf("issue should name the offending sale: %s", check.Issues[0])
	}

	// A one-cent difference is within tolerance.
	figures[1].ReportedGainLoss = decimal.NewFromFloat(400.01)
	if check := CapitalGains(figures); !check.Passed {
		t.Errorf("one cent difference should pass: %v", check.Issues)
	}
}

func TestCostBasisSanity(t *testing.T) {
	l := testLedger(t)

	t.Run("zero basis is flagged", func(t *testing.T) {
		sales := []*ledger.Sale{{
			SaleDate:   ledger.MustDate("2024-03-20"),
			SharesSold: decimal.NewFromInt(10),
			SalePrice:  decimal.NewFromInt(190),
		}}
		check := CostBasisSanity(sales, l)
		if check.Passed {
			t.Errorf("zero basis must fail the check")
		}
	})

	t.Run("grant-price-like basis is flagged", func(t *testing.T) {
		sales := []*ledger.Sale{{
			SaleDate:           ledger.MustDate("2024-03-20"),
			SharesSold:         decimal.NewFromInt(10),
			SalePrice:          decimal.NewFromInt(190),
			ReportedBasis1099B: decimal.NewFromInt(200), // $20/share vs FMVs of 150-170
		}}
		check := CostBasisSanity(sales, l)
		if check.Passed {
			t.Errorf("implausibly low basis must fail the check")
		}
	})

	t.Run("plausible basis passes", func(t *testing.T) {
		sales := []*ledger.Sale{{
			SaleDate:           ledger.MustDate("2024-03-20"),
			SharesSold:         decimal.NewFromInt(10),
			SalePrice:          decimal.NewFromInt(190),
			ReportedBasis1099B: decimal.NewFromInt(1500),
		}}
		check := CostBasisSanity(sales, l)
		if !check.Passed {
			t.Errorf("expected pass, got issues: %v", check.Issues)
		}
	})
}

func TestHoldingPeriods(t *testing.T) {
	l := testLedger(t)
	sale := &ledger.Sale{
		SaleDate:   ledger.MustDate("2024-03-20"),
		SharesSold: decimal.NewFromInt(120),
		SalePrice:  decimal.NewFromInt(190),
	}
	results, err := l.ProcessSale(sale, ledger.FIFO, ledger.Config{})
	if err != nil {
		t.Fatalf("ProcessSale failed: %v", err)
	}

	if check := HoldingPeriods(results); !check.Passed {
		t.Errorf("resolver output must verify cleanly: %v", check.Issues)
	}

	// Tamper with a classification to make sure the check catches it.
	results[0].HoldingPeriod = ledger.ShortTerm
	if check := HoldingPeriods(results); check.Passed {
		t.Errorf("misclassified holding period must fail")
	}
}

func TestAdjustments(t *testing.T) {
	l := testLedger(t)
	sale := &ledger.Sale{
		SaleDate:   ledger.MustDate("2024-03-20"),
		SharesSold: decimal.NewFromInt(120),
		SalePrice:  decimal.NewFromInt(190),
	}
	results, err := l.ProcessSale(sale, ledger.FIFO, ledger.Config{})
	if err != nil {
		t.Fatalf("ProcessSale failed: %v", err)
	}
	report := form8949.Build(results)

	if check := Adjustments(report); !check.Passed {
		t.Errorf("generated report must verify cleanly: %v", check.Issues)
	}

	report.LongTerm.Entries[0].AdjustmentCode = ""
	if check := Adjustments(report); check.Passed {
		t.Errorf("adjustment amount without code must fail")
	}
}

func TestNewReport(t *testing.T) {
	checks := []Check{
		newCheck("a", true, "ok", "", nil),
		newCheck("b", false, "broken", "fix b", []string{"issue"}),
		newCheck("c", false, "broken", "fix c", nil),
	}

	report := NewReport(checks)
	if report.Overall != "FAIL" || report.Passed != 1 || report.Failed != 2 {
		t.Errorf("unexpected aggregate: %+v", report)
	}
	if len(report.ActionItems) != 2 {
		t.Errorf("every failed check needs an action item, got %d", len(report.ActionItems))
	}
	if len(report.Checks) != 3 {
		t.Errorf("all checks must be retained, got %d", len(report.Checks))
	}

	allPass := NewReport(checks[:1])
	if allPass.Overall != "PASS" || len(allPass.ActionItems) != 0 {
		t.Errorf("unexpected pass aggregate: %+v", allPass)
	}
}
