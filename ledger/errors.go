package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DataError is returned for a malformed or inconsistent input record.
// The offending record is excluded from the batch and processing continues;
// broker exports are noisy and one bad row must not discard the rest.
type DataError struct {
	Row        int    // 1-based source row (0 if unknown)
	Field      string // offending field, if identifiable
	Reason     string
	Underlying error
}

func (e *DataError) Error() string {
	location := "record"
	if e.Row > 0 {
		location = fmt.Sprintf("row %d", e.Row)
	}

	fieldInfo := ""
	if e.Field != "" {
		fieldInfo = fmt.Sprintf(" (field %q)", e.Field)
	}

	if e.Underlying != nil {
		return fmt.Sprintf("%s%s: %s: %v", location, fieldInfo, e.Reason, e.Underlying)
	}
	return fmt.Sprintf("%s%s: %s", location, fieldInfo, e.Reason)
}

func (e *DataError) Unwrap() error {
	return e.Underlying
}

// NewDataError creates an error for an invalid input record field.
func NewDataError(row int, field, reason string, err error) *DataError {
	return &DataError{Row: row, Field: field, Reason: reason, Underlying: err}
}

// ShortfallError is returned when a sale cannot be fully satisfied from the
// available lot balances. Under the default policy the partial draws remain
// applied and the allocation is returned alongside this error; under the
// strict policy the draws are rolled back and no allocation is returned.
type ShortfallError struct {
	SaleDate    Date
	Requested   decimal.Decimal
	Allocated   decimal.Decimal
	Unsatisfied decimal.Decimal
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("%s: sale of %s shares exceeds available lot balances: %s shares unallocated",
		e.SaleDate, e.Requested, e.Unsatisfied)
}

// NewShortfallError creates an error describing an under-allocated sale.
func NewShortfallError(sale *Sale, allocated decimal.Decimal) *ShortfallError {
	return &ShortfallError{
		SaleDate:    sale.SaleDate,
		Requested:   sale.SharesSold,
		Allocated:   allocated,
		Unsatisfied: sale.SharesSold.Sub(allocated),
	}
}

// ProcessingErrors wraps the per-record errors collected while building a
// ledger or processing a batch of sales.
type ProcessingErrors struct {
	Errors []error
}

func (e *ProcessingErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d record errors occurred", len(e.Errors))
}

// Unwrap returns the underlying errors for error unwrapping.
func (e *ProcessingErrors) Unwrap() []error {
	return e.Errors
}
