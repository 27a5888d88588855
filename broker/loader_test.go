package broker

import (
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/mkuiper/rsutax/ledger"
)

func TestReadVestingsCSV(t *testing.T) {
	t.Run("morgan stanley headers", func(t *testing.T) {
		input := strings.Join([]string{
			`Release Date,Shares Released,Release Price,Shares Withheld for Taxes,Grant Date,Award Number`,
			`01/15/2024,100,"$150.00",41,01/15/2023,RSU-001`,
			`04/15/2024,50,$170.25,21,,RSU-002`,
		}, "\n")

		imp, err := ReadVestingsCSV(strings.NewReader(input))
		assert.NoError(t, err)
		assert.Equal(t, MorganStanley, imp.Broker)
		assert.Equal(t, 0, len(imp.RowErrors))
		assert.Equal(t, 2, len(imp.Records))

		first := imp.Records[0]
		assert.Equal(t, 2, first.Row)
		assert.Equal(t, "2024-01-15", first.VestingDate.String())
		assert.True(t, first.SharesVested.Equal(decimal.NewFromInt(100)))
		assert.True(t, first.FMVAtVesting.Equal(decimal.NewFromInt(150)))
		assert.True(t, first.SharesWithheld.Equal(decimal.NewFromInt(41)))
		assert.Equal(t, "RSU-001", first.GrantID)
		assert.NotZero(t, first.GrantDate)

		second := imp.Records[1]
		assert.True(t, second.FMVAtVesting.Equal(decimal.RequireFromString("170.25")))
		assert.Zero(t, second.GrantDate)
	})

	t.Run("bad rows are collected, good rows kept", func(t *testing.T) {
		input := strings.Join([]string{
			`vesting_date,shares_vested,fmv_at_vesting`,
			`2024-01-15,100,150.00`,
			`not-a-date,50,170.00`,
			`2024-04-15,abc,170.00`,
			`2024-07-15,50,182.50`,
		}, "\n")

		imp, err := ReadVestingsCSV(strings.NewReader(input))
		assert.NoError(t, err)
		assert.Equal(t, 2, len(imp.Records))
		assert.Equal(t, 2, len(imp.RowErrors))

		var dataErr *ledger.DataError
		assert.True(t, errors.As(imp.RowErrors[0], &dataErr))
		assert.Equal(t, 3, dataErr.Row)
	})

	t.Run("missing required column fails the file", func(t *testing.T) {
		input := "shares_vested,fmv_at_vesting\n100,150.00\n"

		_, err := ReadVestingsCSV(strings.NewReader(input))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "vesting_date")
	})

	t.Run("tab delimited", func(t *testing.T) {
		input := "vesting_date\tshares_vested\tfmv_at_vesting\n2024-01-15\t100\t150.00\n"

		imp, err := ReadVestingsCSV(strings.NewReader(input))
		assert.NoError(t, err)
		assert.Equal(t, 1, len(imp.Records))
	})
}

func TestReadSalesCSV(t *testing.T) {
	t.Run("etrade export with non-sale rows", func(t *testing.T) {
		input := strings.Join([]string{
			`TransactionDate,TransactionType,Quantity,Price,Amount`,
			`03/20/2024,Sell,-120,$190.00,"$22,800.00"`,
			`03/21/2024,Dividend,0,,$12.40`,
			`06/10/2024,Sold,-30,$200.00,"$6,000.00"`,
		}, "\n")

		imp, err := ReadSalesCSV(strings.NewReader(input))
		assert.NoError(t, err)
		assert.Equal(t, ETrade, imp.Broker)
		assert.Equal(t, 2, len(imp.Sales))

		first := imp.Sales[0]
		assert.Equal(t, "2024-03-20", first.SaleDate.String())
		assert.True(t, first.SharesSold.Equal(decimal.NewFromInt(120)), "negative quantities are normalized")
		assert.True(t, first.SalePrice.Equal(decimal.NewFromInt(190)))
		assert.Equal(t, "Sell", first.TransactionType)
	})

	t.Run("price derived from total proceeds", func(t *testing.T) {
		input := strings.Join([]string{
			`sale_date,shares_sold,proceeds`,
			`2024-03-20,120,"$22,800.00"`,
		}, "\n")

		imp, err := ReadSalesCSV(strings.NewReader(input))
		assert.NoError(t, err)
		assert.Equal(t, 1, len(imp.Sales))
		assert.True(t, imp.Sales[0].SalePrice.Equal(decimal.NewFromInt(190)))
	})

	t.Run("reported basis and lot designation carried through", func(t *testing.T) {
		input := strings.Join([]string{
			`sale_date,shares_sold,sale_price,from_vesting_date,reported_basis_1099b`,
			`2024-06-10,50,200.00,2024-01-15,0.00`,
		}, "\n")

		imp, err := ReadSalesCSV(strings.NewReader(input))
		assert.NoError(t, err)

		sale := imp.Sales[0]
		assert.NotZero(t, sale.FromVestingDate)
		assert.Equal(t, "2024-01-15", sale.FromVestingDate.String())
		assert.True(t, sale.ReportedBasis1099B.IsZero())
	})

	t.Run("missing price is a row error, not a file error", func(t *testing.T) {
		input := strings.Join([]string{
			`sale_date,shares_sold,sale_price`,
			`2024-03-20,120,190.00`,
			`2024-06-10,50,`,
		}, "\n")

		imp, err := ReadSalesCSV(strings.NewReader(input))
		assert.NoError(t, err)
		assert.Equal(t, 1, len(imp.Sales))
		assert.Equal(t, 1, len(imp.RowErrors))
	})
}

func TestReadVestingsJSON(t *testing.T) {
	t.Run("bare array with alias field names", func(t *testing.T) {
		input := `[
			{"date": "2024-01-15", "shares": 100, "release_price": 150.00, "shares_withheld": 41},
			{"vesting_date": "2024-04-15", "shares_vested": 50, "fmv_at_vesting": 170.25}
		]`

		imp, err := ReadVestingsJSON(strings.NewReader(input))
		assert.NoError(t, err)
		assert.Equal(t, Generic, imp.Broker)
		assert.Equal(t, 2, len(imp.Records))
		assert.True(t, imp.Records[0].FMVAtVesting.Equal(decimal.NewFromInt(150)))
		assert.True(t, imp.Records[1].SharesVested.Equal(decimal.NewFromInt(50)))
	})

	t.Run("enveloped under vesting_lots", func(t *testing.T) {
		input := `{"vesting_lots": [{"vesting_date": "2024-01-15", "shares_vested": 100, "fmv_at_vesting": 150}]}`

		imp, err := ReadVestingsJSON(strings.NewReader(input))
		assert.NoError(t, err)
		assert.Equal(t, 1, len(imp.Records))
	})

	t.Run("record without shares is a row error", func(t *testing.T) {
		input := `[{"vesting_date": "2024-01-15", "fmv_at_vesting": 150}]`

		imp, err := ReadVestingsJSON(strings.NewReader(input))
		assert.NoError(t, err)
		assert.Equal(t, 0, len(imp.Records))
		assert.Equal(t, 1, len(imp.RowErrors))
	})
}

func TestReadSalesJSON(t *testing.T) {
	input := `{"sales": [
		{"sale_date": "2024-03-20", "shares_sold": 120, "sale_price": 190.00, "cost_basis_reported": 0, "gain_loss": 22800, "symbol": "ACME"}
	]}`

	imp, err := ReadSalesJSON(strings.NewReader(input))
	assert.NoError(t, err)
	assert.Equal(t, 1, len(imp.Sales))

	sale := imp.Sales[0]
	assert.Equal(t, "ACME", sale.Symbol)
	assert.True(t, sale.ReportedBasis1099B.IsZero())
	assert.True(t, sale.HasReportedGain)
	assert.True(t, sale.ReportedGainLoss.Equal(decimal.NewFromInt(22800)))
}

func TestParseNumber(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want string
	}{
		{"1,234.56", "1234.56"},
		{"$150.00", "150"},
		{"($500.00)", "-500"},
		{"-42", "-42"},
		{" 12 345 ", "12345"},
	} {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNumber(tt.in)
			assert.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}

	_, err := ParseNumber("")
	assert.Error(t, err)

	_, err = ParseNumber("n/a")
	assert.Error(t, err)
}

func TestDetect(t *testing.T) {
	for _, tt := range []struct {
		name    string
		headers []string
		want    ID
	}{
		{"morgan stanley", []string{"Release Date", "Release Price", "Shares Released"}, MorganStanley},
		{"fidelity", []string{"Run Date", "Quantity", "Price"}, Fidelity},
		{"schwab", []string{"Date", "Action", "Fees & Comm", "Amount"}, Schwab},
		{"etrade", []string{"TransactionDate", "TransactionType", "Quantity"}, ETrade},
		{"unknown", []string{"a", "b", "c"}, Generic},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.headers))
		})
	}
}
