// Package broker loads vesting and sale records from broker exports.
// It normalizes the CSV header variants of Morgan Stanley, Fidelity,
// Schwab and E*TRADE through declarative alias tables, accepts the same
// canonical fields from JSON, and collects per-row errors instead of
// failing a whole file on one bad record.
package broker

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mkuiper/rsutax/ledger"
)

// SaleRecord is a normalized sale row. It extends the ledger's sale with
// broker-only figures used by the verifier.
type SaleRecord struct {
	ledger.Sale

	Symbol           string
	TransactionType  string
	ReportedGainLoss decimal.Decimal
	HasReportedGain  bool
}

// VestingImport is the result of loading a vesting statement.
type VestingImport struct {
	Source    string
	Broker    ID
	Records   []ledger.LotRecord
	RowErrors []error
}

// SaleImport is the result of loading a sales export.
type SaleImport struct {
	Source    string
	Broker    ID
	Sales     []*SaleRecord
	RowErrors []error
}

// LedgerSales returns the embedded ledger sales for allocation.
func (imp *SaleImport) LedgerSales() []*ledger.Sale {
	sales := make([]*ledger.Sale, len(imp.Sales))
	for i, s := range imp.Sales {
		sales[i] = &s.Sale
	}
	return sales
}

// LoadVestings loads vesting records from a CSV or JSON file, chosen by
// extension (.json is JSON, everything else parses as CSV).
func LoadVestings(path string) (*VestingImport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vesting file: %w", err)
	}
	defer f.Close()

	var imp *VestingImport
	if isJSON(path) {
		imp, err = ReadVestingsJSON(f)
	} else {
		imp, err = ReadVestingsCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	imp.Source = path
	return imp, nil
}

// LoadSales loads sale records from a CSV or JSON file.
func LoadSales(path string) (*SaleImport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sales file: %w", err)
	}
	defer f.Close()

	var imp *SaleImport
	if isJSON(path) {
		imp, err = ReadSalesJSON(f)
	} else {
		imp, err = ReadSalesCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	imp.Source = path
	return imp, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// ReadVestingsCSV parses a vesting statement in CSV form.
func ReadVestingsCSV(r io.Reader) (*VestingImport, error) {
	rows, headers, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	imp := &VestingImport{Broker: Detect(headers)}
	columns := vestingAliases.resolve(headers)

	for _, field := range []Field{FieldVestingDate, FieldSharesVested, FieldFMVAtVesting} {
		if _, ok := columns[field]; !ok {
			return nil, fmt.Errorf("no header matches required field %q", field)
		}
	}

	for i, row := range rows {
		rowNum := i + 2 // 1-based, after the header line
		rec, err := vestingFromRow(rowNum, row, columns)
		if err != nil {
			imp.RowErrors = append(imp.RowErrors, err)
			continue
		}
		imp.Records = append(imp.Records, rec)
	}

	return imp, nil
}

func vestingFromRow(rowNum int, row []string, columns map[Field]int) (ledger.LotRecord, error) {
	rec := ledger.LotRecord{Row: rowNum}

	date, err := ledger.NewDate(cell(row, columns, FieldVestingDate))
	if err != nil {
		return rec, ledger.NewDataError(rowNum, string(FieldVestingDate), "unparseable vesting date", err)
	}
	rec.VestingDate = date

	if rec.SharesVested, err = ParseNumber(cell(row, columns, FieldSharesVested)); err != nil {
		return rec, ledger.NewDataError(rowNum, string(FieldSharesVested), "unparseable share count", err)
	}
	if rec.FMVAtVesting, err = ParseNumber(cell(row, columns, FieldFMVAtVesting)); err != nil {
		return rec, ledger.NewDataError(rowNum, string(FieldFMVAtVesting), "unparseable FMV", err)
	}

	if raw := cell(row, columns, FieldSharesWithheld); raw != "" {
		if rec.SharesWithheld, err = ParseNumber(raw); err != nil {
			return rec, ledger.NewDataError(rowNum, string(FieldSharesWithheld), "unparseable withheld count", err)
		}
	}
	if raw := cell(row, columns, FieldGrantDate); raw != "" {
		if d, err := ledger.NewDate(raw); err == nil {
			rec.GrantDate = &d
		}
	}
	rec.GrantID = cell(row, columns, FieldGrantID)

	return rec, nil
}

// ReadSalesCSV parses a sales export in CSV form. Rows whose transaction
// type is not a disposal (dividends, transfers) are skipped silently.
func ReadSalesCSV(r io.Reader) (*SaleImport, error) {
	rows, headers, err := readCSV(r)
	if err != nil {
		return nil, err
	}

	imp := &SaleImport{Broker: Detect(headers)}
	columns := saleAliases.resolve(headers)

	for _, field := range []Field{FieldSaleDate, FieldSharesSold} {
		if _, ok := columns[field]; !ok {
			return nil, fmt.Errorf("no header matches required field %q", field)
		}
	}

	for i, row := range rows {
		rowNum := i + 2

		if txnType := cell(row, columns, FieldTransactionType); txnType != "" && !isSaleType(txnType) {
			continue
		}

		rec, err := saleFromRow(rowNum, row, columns)
		if err != nil {
			imp.RowErrors = append(imp.RowErrors, err)
			continue
		}
		imp.Sales = append(imp.Sales, rec)
	}

	return imp, nil
}

func saleFromRow(rowNum int, row []string, columns map[Field]int) (*SaleRecord, error) {
	rec := &SaleRecord{}
	rec.Row = rowNum
	rec.Symbol = cell(row, columns, FieldSymbol)
	rec.TransactionType = cell(row, columns, FieldTransactionType)

	date, err := ledger.NewDate(cell(row, columns, FieldSaleDate))
	if err != nil {
		return nil, ledger.NewDataError(rowNum, string(FieldSaleDate), "unparseable sale date", err)
	}
	rec.SaleDate = date

	if rec.SharesSold, err = ParseNumber(cell(row, columns, FieldSharesSold)); err != nil {
		return nil, ledger.NewDataError(rowNum, string(FieldSharesSold), "unparseable share count", err)
	}
	// Sold quantities show up negative in some trade exports.
	rec.SharesSold = rec.SharesSold.Abs()

	if raw := cell(row, columns, FieldSalePrice); raw != "" {
		if rec.SalePrice, err = ParseNumber(raw); err != nil {
			return nil, ledger.NewDataError(rowNum, string(FieldSalePrice), "unparseable sale price", err)
		}
	} else if raw := cell(row, columns, FieldProceeds); raw != "" && rec.SharesSold.IsPositive() {
		// Derive the per-share price when the export carries only total
		// proceeds.
		proceeds, err := ParseNumber(raw)
		if err != nil {
			return nil, ledger.NewDataError(rowNum, string(FieldProceeds), "unparseable proceeds", err)
		}
		rec.SalePrice = proceeds.Abs().Div(rec.SharesSold)
	} else {
		return nil, ledger.NewDataError(rowNum, string(FieldSalePrice), "sale price or proceeds required", nil)
	}

	if raw := cell(row, columns, FieldFromVestingDate); raw != "" {
		if d, err := ledger.NewDate(raw); err == nil {
			rec.FromVestingDate = &d
		}
	}
	if raw := cell(row, columns, FieldReportedBasis); raw != "" {
		if rec.ReportedBasis1099B, err = ParseNumber(raw); err != nil {
			return nil, ledger.NewDataError(rowNum, string(FieldReportedBasis), "unparseable reported basis", err)
		}
	}
	if raw := cell(row, columns, FieldReportedGain); raw != "" {
		if gain, err := ParseNumber(raw); err == nil {
			rec.ReportedGainLoss = gain
			rec.HasReportedGain = true
		}
	}

	return rec, nil
}

func cell(row []string, columns map[Field]int, field Field) string {
	i, ok := columns[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// readCSV reads an entire CSV document, sniffing the delimiter from the
// header line. Ragged rows are tolerated; short rows simply have empty
// cells.
func readCSV(r io.Reader) (rows [][]string, headers []string, err error) {
	br := bufio.NewReader(r)
	headerLine, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	reader := csv.NewReader(io.MultiReader(strings.NewReader(headerLine), br))
	reader.Comma = detectDelimiter(headerLine)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("malformed CSV: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("empty file")
	}

	return all[1:], all[0], nil
}

// vestingJSON accepts both canonical field names and the variants found
// in hand-maintained statements.
type vestingJSON struct {
	VestingDate    string       `json:"vesting_date"`
	Date           string       `json:"date"`
	SharesVested   *json.Number `json:"shares_vested"`
	Shares         *json.Number `json:"shares"`
	FMVAtVesting   *json.Number `json:"fmv_at_vesting"`
	ReleasePrice   *json.Number `json:"release_price"`
	SharesWithheld *json.Number `json:"shares_withheld"`
	GrantDate      string       `json:"grant_date"`
	GrantID        string       `json:"grant_id"`
}

type vestingEnvelope struct {
	Vestings       []vestingJSON `json:"vestings"`
	VestingLots    []vestingJSON `json:"vesting_lots"`
	VestingRecords []vestingJSON `json:"vesting_records"`
}

// ReadVestingsJSON parses vesting records from JSON: either a bare array
// or an object wrapping one under "vestings", "vesting_lots" or
// "vesting_records".
func ReadVestingsJSON(r io.Reader) (*VestingImport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var records []vestingJSON
	if err := json.Unmarshal(data, &records); err != nil {
		var envelope vestingEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("invalid vesting JSON: %w", err)
		}
		switch {
		case len(envelope.Vestings) > 0:
			records = envelope.Vestings
		case len(envelope.VestingLots) > 0:
			records = envelope.VestingLots
		default:
			records = envelope.VestingRecords
		}
	}

	imp := &VestingImport{Broker: Generic}
	for i, rec := range records {
		rowNum := i + 1

		dateStr := rec.VestingDate
		if dateStr == "" {
			dateStr = rec.Date
		}
		date, err := ledger.NewDate(dateStr)
		if err != nil {
			imp.RowErrors = append(imp.RowErrors,
				ledger.NewDataError(rowNum, string(FieldVestingDate), "unparseable vesting date", err))
			continue
		}

		out := ledger.LotRecord{Row: rowNum, VestingDate: date, GrantID: rec.GrantID}
		if out.SharesVested, err = numberOf(rec.SharesVested, rec.Shares); err != nil {
			imp.RowErrors = append(imp.RowErrors,
				ledger.NewDataError(rowNum, string(FieldSharesVested), "missing or invalid share count", err))
			continue
		}
		if out.FMVAtVesting, err = numberOf(rec.FMVAtVesting, rec.ReleasePrice); err != nil {
			imp.RowErrors = append(imp.RowErrors,
				ledger.NewDataError(rowNum, string(FieldFMVAtVesting), "missing or invalid FMV", err))
			continue
		}
		if rec.SharesWithheld != nil {
			if out.SharesWithheld, err = numberOf(rec.SharesWithheld); err != nil {
				imp.RowErrors = append(imp.RowErrors,
					ledger.NewDataError(rowNum, string(FieldSharesWithheld), "invalid withheld count", err))
				continue
			}
		}
		if rec.GrantDate != "" {
			if d, err := ledger.NewDate(rec.GrantDate); err == nil {
				out.GrantDate = &d
			}
		}

		imp.Records = append(imp.Records, out)
	}

	return imp, nil
}

type saleJSON struct {
	SaleDate          string       `json:"sale_date"`
	Date              string       `json:"date"`
	SharesSold        *json.Number `json:"shares_sold"`
	Shares            *json.Number `json:"shares"`
	Quantity          *json.Number `json:"quantity"`
	SalePrice         *json.Number `json:"sale_price"`
	Price             *json.Number `json:"price"`
	Proceeds          *json.Number `json:"proceeds"`
	FromVestingDate   string       `json:"from_vesting_date"`
	ReportedBasis     *json.Number `json:"reported_basis_1099b"`
	CostBasisReported *json.Number `json:"cost_basis_reported"`
	GainLoss          *json.Number `json:"gain_loss"`
	Symbol            string       `json:"symbol"`
}

type saleEnvelope struct {
	Sales        []saleJSON `json:"sales"`
	Transactions []saleJSON `json:"transactions"`
}

// ReadSalesJSON parses sale records from JSON: a bare array or an object
// wrapping one under "sales" or "transactions".
func ReadSalesJSON(r io.Reader) (*SaleImport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var records []saleJSON
	if err := json.Unmarshal(data, &records); err != nil {
		var envelope saleEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("invalid sales JSON: %w", err)
		}
		records = envelope.Sales
		if len(records) == 0 {
			records = envelope.Transactions
		}
	}

	imp := &SaleImport{Broker: Generic}
	for i, rec := range records {
		rowNum := i + 1

		dateStr := rec.SaleDate
		if dateStr == "" {
			dateStr = rec.Date
		}
		date, err := ledger.NewDate(dateStr)
		if err != nil {
			imp.RowErrors = append(imp.RowErrors,
				ledger.NewDataError(rowNum, string(FieldSaleDate), "unparseable sale date", err))
			continue
		}

		out := &SaleRecord{Symbol: rec.Symbol}
		out.Row = rowNum
		out.SaleDate = date

		if out.SharesSold, err = numberOf(rec.SharesSold, rec.Shares, rec.Quantity); err != nil {
			imp.RowErrors = append(imp.RowErrors,
				ledger.NewDataError(rowNum, string(FieldSharesSold), "missing or invalid share count", err))
			continue
		}
		out.SharesSold = out.SharesSold.Abs()

		if price, err := numberOf(rec.SalePrice, rec.Price); err == nil {
			out.SalePrice = price
		} else if proceeds, err := numberOf(rec.Proceeds); err == nil && out.SharesSold.IsPositive() {
			out.SalePrice = proceeds.Abs().Div(out.SharesSold)
		} else {
			imp.RowErrors = append(imp.RowErrors,
				ledger.NewDataError(rowNum, string(FieldSalePrice), "sale price or proceeds required", nil))
			continue
		}

		if rec.FromVestingDate != "" {
			if d, err := ledger.NewDate(rec.FromVestingDate); err == nil {
				out.FromVestingDate = &d
			}
		}
		if basis, err := numberOf(rec.ReportedBasis, rec.CostBasisReported); err == nil {
			out.ReportedBasis1099B = basis
		}
		if rec.GainLoss != nil {
			if gain, err := numberOf(rec.GainLoss); err == nil {
				out.ReportedGainLoss = gain
				out.HasReportedGain = true
			}
		}

		imp.Sales = append(imp.Sales, out)
	}

	return imp, nil
}

// numberOf returns the first present alternative as a decimal.
func numberOf(alternatives ...*json.Number) (decimal.Decimal, error) {
	for _, n := range alternatives {
		if n == nil {
			continue
		}
		return decimal.NewFromString(n.String())
	}
	return decimal.Zero, fmt.Errorf("no value present")
}
