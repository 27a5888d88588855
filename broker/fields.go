package broker

import "strings"

// Field is a canonical record field name. Loaders resolve each broker's
// header variants to these once per file, at load time, instead of
// re-matching strings per row.
type Field string

const (
	FieldVestingDate     Field = "vesting_date"
	FieldSharesVested    Field = "shares_vested"
	FieldFMVAtVesting    Field = "fmv_at_vesting"
	FieldSharesWithheld  Field = "shares_withheld"
	FieldGrantDate       Field = "grant_date"
	FieldGrantID         Field = "grant_id"
	FieldSaleDate        Field = "sale_date"
	FieldSharesSold      Field = "shares_sold"
	FieldSalePrice       Field = "sale_price"
	FieldFromVestingDate Field = "from_vesting_date"
	FieldReportedBasis   Field = "reported_basis_1099b"
	FieldReportedGain    Field = "gain_loss"
	FieldTransactionType Field = "transaction_type"
	FieldSymbol          Field = "symbol"
	FieldProceeds        Field = "proceeds"
)

// aliasTable maps a canonical field to the header spellings that carry it,
// in priority order. The canonical name itself is always accepted.
type aliasTable map[Field][]string

// resolve matches a header row against the table, returning the column
// index per canonical field. Matching is case-insensitive on trimmed
// headers; the first alias with a matching header wins.
func (t aliasTable) resolve(headers []string) map[Field]int {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	columns := make(map[Field]int)
	for field, aliases := range t {
		names := append([]string{string(field)}, aliases...)
	match:
		for _, name := range names {
			want := normalizeHeader(name)
			for i, h := range normalized {
				if h == want {
					columns[field] = i
					break match
				}
			}
		}
	}
	return columns
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
}

// vestingAliases covers the header variants brokers use on vesting /
// release statements. Morgan Stanley (Shareworks) calls a vesting event a
// "release"; generic exports reuse trading-screen headers.
var vestingAliases = aliasTable{
	FieldVestingDate:    {"Vesting Date", "Release Date", "Vest Date", "Date Acquired", "Date"},
	FieldSharesVested:   {"Shares Vested", "Shares Released", "Released Shares", "Quantity", "Shares"},
	FieldFMVAtVesting:   {"FMV", "Fair Market Value", "Release Price", "Price at Release", "Price"},
	FieldSharesWithheld: {"Shares Withheld", "Shares Withheld for Taxes", "Tax Shares", "Withheld for Taxes"},
	FieldGrantDate:      {"Grant Date", "Award Date"},
	FieldGrantID:        {"Grant ID", "Award ID", "Award Number", "Grant Number"},
}

// saleAliases covers sale/trade confirmation exports across the supported
// brokers.
var saleAliases = aliasTable{
	FieldSaleDate:        {"Sale Date", "Date Sold", "Trade Date", "Transaction Date", "TransactionDate", "Run Date", "Execution Date", "Date"},
	FieldSharesSold:      {"Shares Sold", "Quantity", "Shares", "Qty", "Units"},
	FieldSalePrice:       {"Sale Price", "Price Per Share", "Unit Price", "Execution Price", "Share Price", "Price ($)", "Price"},
	FieldFromVestingDate: {"From Vesting Date", "Acquisition Date", "Date Acquired"},
	FieldReportedBasis:   {"Cost Basis", "Reported Basis", "Cost Basis ($)", "Adjusted Cost Basis", "Basis", "Cost"},
	FieldReportedGain:    {"Gain/Loss", "Realized Gain/Loss", "Gain/Loss ($)", "GainLoss"},
	FieldTransactionType: {"Transaction Type", "Action", "Type", "TransactionType"},
	FieldSymbol:          {"Symbol", "Ticker", "Security Symbol", "Security"},
	FieldProceeds:        {"Proceeds", "Net Amount", "Amount ($)", "Amount", "Principal"},
}

// ID identifies a supported broker export format.
type ID string

const (
	MorganStanley ID = "morgan_stanley"
	Fidelity      ID = "fidelity"
	Schwab        ID = "schwab"
	ETrade        ID = "etrade"
	Generic       ID = "generic"
)

// Detect guesses the broker from a CSV header row. Each broker leaks a
// distinctive header; when none matches the generic alias tables still
// handle the file.
func Detect(headers []string) ID {
	joined := make([]string, len(headers))
	for i, h := range headers {
		joined[i] = normalizeHeader(h)
	}
	all := strings.Join(joined, "|")

	switch {
	case strings.Contains(all, "release price") || strings.Contains(all, "shareworks"):
		return MorganStanley
	case strings.Contains(all, "run date") || strings.Contains(all, "fidelity"):
		return Fidelity
	case strings.Contains(all, "fees & comm"):
		return Schwab
	case strings.Contains(all, "etrade") || strings.Contains(all, "transactiontype"):
		return ETrade
	}
	return Generic
}
