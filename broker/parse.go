package broker

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseNumber parses a numeric string as exported by brokers: currency
// symbols, thousands separators, and accountant-style parentheses for
// negative values are all tolerated.
func ParseNumber(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	cleaned = strings.NewReplacer("$", "", ",", "", " ", "").Replace(cleaned)

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q: %w", value, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// saleTypes are the transaction-type values that represent a disposal of
// shares. Rows with any other type (dividends, transfers, interest) are
// skipped, not errored.
var saleTypes = map[string]bool{
	"sell":     true,
	"sale":     true,
	"sold":     true,
	"release":  true,
	"exercise": true,
}

func isSaleType(value string) bool {
	return saleTypes[strings.ToLower(strings.TrimSpace(value))]
}

// detectDelimiter picks the CSV delimiter by frequency in the header
// line. Brokers export comma-, tab-, and semicolon-separated files, all
// calling them "CSV".
func detectDelimiter(header string) rune {
	best, count := ',', strings.Count(header, ",")
	if n := strings.Count(header, "\t"); n > count {
		best, count = '\t', n
	}
	if n := strings.Count(header, ";"); n > count {
		best = ';'
	}
	return best
}
